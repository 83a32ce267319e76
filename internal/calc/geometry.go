package calc

import "math"

const (
	earthRadius  = 6_370_000.0 // m
	ozoneLayerHt = 22_000.0    // m
)

// AirMass returns the relative optical path through a thin layer at ozone
// height for a solar zenith angle in degrees.
func AirMass(sza float64) float64 {
	rad := sza * math.Pi / 180
	sinTheta := earthRadius * math.Sin(math.Pi-rad) / (earthRadius + ozoneLayerHt)
	return 1 / math.Cos(math.Asin(sinTheta))
}
