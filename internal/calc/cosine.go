package calc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
	"github.com/couchcryptid/uv-irradiance-etl/internal/solver"
)

// diffuseSamples is the number of points of the trapezoid rule over [0, π/2].
const diffuseSamples = 160

// CorrectionPolicy picks a cosine-correction model from the cloud state and
// computes its per-wavelength factors.
type CorrectionPolicy interface {
	// Choose returns the model for a cloud fraction. known is false when no
	// cloud value could be resolved.
	Choose(cloud float64, known bool) domain.CorrectionModel
	// Factors returns one multiplicative factor per solver row.
	Factors(model domain.CorrectionModel, arf domain.AngularResponse, irr solver.Irradiance) ([]float64, error)
}

// CosinePolicy is the default policy. Cloud fractions strictly above
// Threshold select the diffuse model, anything at or below it the clear-sky
// model. Disabled turns the correction off.
type CosinePolicy struct {
	Threshold float64
	Disabled  bool
}

// Choose implements CorrectionPolicy.
func (p CosinePolicy) Choose(cloud float64, known bool) domain.CorrectionModel {
	switch {
	case p.Disabled || !known:
		return domain.CorrectionNone
	case cloud > p.Threshold:
		return domain.CorrectionDiffuse
	default:
		return domain.CorrectionClearSky
	}
}

// Factors implements CorrectionPolicy. NaN and infinite factors, produced by
// zero global irradiance, are replaced by 1.
func (p CosinePolicy) Factors(model domain.CorrectionModel, arf domain.AngularResponse, irr solver.Irradiance) ([]float64, error) {
	n := irr.Len()
	factors := make([]float64, n)
	switch model {
	case domain.CorrectionNone:
		// all ones
	case domain.CorrectionDiffuse:
		diff, err := DiffuseIntegral(arf)
		if err != nil {
			return nil, err
		}
		for i := range factors {
			factors[i] = 1 / diff
		}
	case domain.CorrectionClearSky:
		cs, err := clearSkyFactors(arf, irr)
		if err != nil {
			return nil, err
		}
		factors = cs
	default:
		return nil, fmt.Errorf("unknown correction model %q", model)
	}
	for i, f := range factors {
		if model == domain.CorrectionNone || math.IsNaN(f) || math.IsInf(f, 0) {
			factors[i] = 1
		}
	}
	return factors, nil
}

// DiffuseIntegral returns 2∫ARF(θ)·sin(θ)dθ over [0, π/2], the instrument's
// response to an isotropic sky.
func DiffuseIntegral(arf domain.AngularResponse) (float64, error) {
	theta := floats.Span(make([]float64, diffuseSamples), 0, math.Pi/2)
	response, err := arfAt(arf, theta)
	if err != nil {
		return 0, err
	}
	f := make([]float64, diffuseSamples)
	for i, th := range theta {
		f[i] = response[i] * math.Sin(th)
	}
	return 2 * integrate.Trapezoidal(theta, f), nil
}

// clearSkyFactors weights the diffuse and direct parts of the modelled
// irradiance by the instrument's response to each:
// 1 / (coscor_diff·Edn/Eglo + Edir/Eglo·ARF(θs)/cos θs).
func clearSkyFactors(arf domain.AngularResponse, irr solver.Irradiance) ([]float64, error) {
	if irr.Len() == 0 {
		return nil, nil
	}
	diff, err := DiffuseIntegral(arf)
	if err != nil {
		return nil, err
	}
	theta := irr.SZA[0] * math.Pi / 180
	direct, err := arfAt(arf, []float64{theta})
	if err != nil {
		return nil, err
	}
	directWeight := direct[0] / math.Cos(theta)

	factors := make([]float64, irr.Len())
	for i := range factors {
		inverse := diff*irr.Edn[i]/irr.Eglo[i] + irr.Edir[i]/irr.Eglo[i]*directWeight
		factors[i] = 1 / inverse
	}
	return factors, nil
}

// arfAt evaluates the angular response at angles given in radians.
func arfAt(arf domain.AngularResponse, radians []float64) ([]float64, error) {
	angles := make([]float64, len(arf.Angles))
	for i, a := range arf.Angles {
		angles[i] = a * math.Pi / 180
	}
	out, err := Interpolate(angles, arf.Values, radians)
	if err != nil {
		return nil, fmt.Errorf("interpolate angular response: %w", err)
	}
	return out, nil
}
