// Package calc turns one scan of an instrument day into a calibrated,
// cosine-corrected irradiance spectrum.
package calc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
	"github.com/couchcryptid/uv-irradiance-etl/internal/input"
	"github.com/couchcryptid/uv-irradiance-etl/internal/solver"
)

// Stage is a step of a calculation job.
type Stage string

const (
	StagePending   Stage = "pending"
	StageResolving Stage = "resolving_inputs"
	StageCalibrate Stage = "calibrating"
	StageSolving   Stage = "solving"
	StageCorrect   Stage = "correcting"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// StageError records the stage a calculation failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func fail(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// Calculator runs the calculation stages for one section at a time. It keeps
// no per-job state and is safe for concurrent use.
type Calculator struct {
	solver solver.Solver
	policy CorrectionPolicy
	logger *slog.Logger
}

// NewCalculator creates a calculator. A nil policy uses CosinePolicy built
// from the aggregate's settings on every call.
func NewCalculator(s solver.Solver, policy CorrectionPolicy, logger *slog.Logger) *Calculator {
	return &Calculator{solver: s, policy: policy, logger: logger}
}

// inputs are the datasets resolved for one section.
type inputs struct {
	section    domain.Section
	ozone      input.OzoneData
	cal        domain.Calibration
	params     input.ParameterData
	cloud      input.Cloud
	straylight bool
}

// Calculate computes the result for section index of agg. Failures are
// returned as *StageError.
func (c *Calculator) Calculate(ctx context.Context, agg *input.Aggregate, index int) (domain.Result, error) {
	key := agg.Key()
	log := c.logger.With("brewer_id", key.BrewerID, "date", key.Date.Format("2006-01-02"), "section", index)
	log.Debug("calculation started")

	in, err := c.resolve(ctx, agg, index)
	if err != nil {
		return domain.Result{}, fail(StageResolving, err)
	}
	settings := agg.Settings()
	header := in.section.Header

	calibrated, err := Calibrate(in.section, in.cal, in.straylight)
	if err != nil {
		return domain.Result{}, fail(StageCalibrate, err)
	}
	tempCorrection := TemperatureCorrection(settings.TemperatureCorrectionFactor, header.Temperature, settings.TemperatureCorrectionRef)
	for i := range calibrated {
		calibrated[i] *= tempCorrection
	}

	minutes := in.section.StartMinutes()
	ozone := in.ozone.At(minutes, settings.DefaultOzone)
	irr, err := c.solver.Solve(ctx, solver.Input{
		Wavelengths: in.section.Wavelengths(),
		Position:    header.Position,
		Time:        in.section.StartTime(),
		Ozone:       ozone,
		Pressure:    header.Pressure,
		Albedo:      in.params.Row.Albedo,
		Alpha:       in.params.Row.Alpha,
		Beta:        in.params.Row.Beta,
	})
	if err != nil {
		return domain.Result{}, fail(StageSolving, err)
	}
	if irr.Len() != len(calibrated) {
		return domain.Result{}, fail(StageSolving, &domain.SolverError{
			Reason: fmt.Sprintf("returned %d rows for %d wavelengths", irr.Len(), len(calibrated)),
		})
	}

	policy := c.policy
	if policy == nil {
		policy = CosinePolicy{Threshold: settings.DiffuseThreshold, Disabled: settings.NoCosCor}
	}
	cloudValue, cloudKnown := in.cloud.At(minutes)
	model := policy.Choose(cloudValue, cloudKnown)

	var arf domain.AngularResponse
	if model != domain.CorrectionNone {
		arf, err = agg.AngularResponse(ctx)
		switch {
		case domain.IsUnavailable(err):
			agg.Warn("angular response file not found, cosine correction has not been applied")
			model = domain.CorrectionNone
		case err != nil:
			return domain.Result{}, fail(StageCorrect, err)
		}
	}
	factors, err := policy.Factors(model, arf, irr)
	if err != nil {
		return domain.Result{}, fail(StageCorrect, err)
	}
	irradiance := make([]float64, len(calibrated))
	for i := range calibrated {
		irradiance[i] = calibrated[i] * factors[i]
	}

	var cloudCover *float64
	if cloudKnown {
		cloudCover = &cloudValue
	}
	sza := irr.SZA[0]
	log.Debug("calculation finished", "correction", model, "sza", sza)

	return domain.Result{
		BrewerID:              key.BrewerID,
		Date:                  key.Date,
		Section:               index,
		Header:                header,
		SolarZenithAngle:      sza,
		AirMass:               AirMass(sza),
		TemperatureCorrection: tempCorrection,
		Correction:            model,
		Parameters: domain.ResolvedParameters{
			Ozone:           ozone,
			OzoneSource:     in.ozone.Source,
			Albedo:          in.params.Row.Albedo,
			Alpha:           in.params.Row.Alpha,
			Beta:            in.params.Row.Beta,
			ParameterSource: in.params.Source,
			Pressure:        header.Pressure,
			CloudCover:      cloudCover,
			CloudSource:     in.cloud.Source,
		},
		Spectrum: domain.Spectrum{
			Wavelengths: in.section.Wavelengths(),
			Times:       in.section.Times(),
			Raw:         in.section.Events(),
			Calibrated:  calibrated,
			Factors:     factors,
			Irradiance:  irradiance,
		},
		Warnings:    agg.Warnings(),
		ProcessedAt: domain.Now(),
	}, nil
}

func (c *Calculator) resolve(ctx context.Context, agg *input.Aggregate, index int) (inputs, error) {
	var in inputs
	sections, err := agg.Sections(ctx)
	if err != nil {
		return in, err
	}
	if index < 0 || index >= len(sections) {
		return in, fmt.Errorf("section %d out of range (%d sections)", index, len(sections))
	}
	in.section = sections[index]

	if in.ozone, err = agg.Ozone(ctx); err != nil {
		return in, err
	}
	if in.cal, err = agg.Calibration(ctx); err != nil {
		return in, err
	}
	if in.params, err = agg.Parameters(ctx); err != nil {
		return in, err
	}
	if in.cloud, err = agg.CloudCover(ctx); err != nil {
		return in, err
	}

	apply, known := domain.StraylightApplies(in.ozone.BrewerType)
	if !known {
		apply = agg.Settings().ApplyStraylight()
	}
	in.straylight = apply
	return in, nil
}
