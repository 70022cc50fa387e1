// Public domain.

package reduce

import (
	"math"

	"reflred/phys"
)

// The Q resolution combines three independent Gaussian contributions in
// quadrature.  Each contribution is a relative standard deviation; the
// combination is scaled by Q itself.

// WavelengthResolution is the relative resolution from the finite
// chopper-pair window: fwhmToStd(|separation| / (L1+L2)).  All lengths
// in the same unit.
func WavelengthResolution(l1, l2, chopperSeparation float64) float64 {
	return phys.FWHMToStd(math.Abs(chopperSeparation) / (l1 + l2))
}

// AngularResolution is the relative resolution from the detector pixel
// size projected through the flight path, normalized against theta:
// fwhmToStd(atan(resolution/L2)) / theta.  theta in radians.
func AngularResolution(theta, l2, detectorSpatialResolution float64) float64 {
	return phys.FWHMToStd(math.Atan(detectorSpatialResolution/l2)) / theta
}

// SampleSizeResolution is the relative resolution from the projected
// sample footprint: fwhmToStd(sampleSize / L2).
func SampleSizeResolution(l2, sampleSize float64) float64 {
	return phys.FWHMToStd(sampleSize / l2)
}

// QResolution combines the three contributions:
// sigma_Q = Q * sqrt(sigma_theta^2 + sigma_lambda^2 + sigma_sample^2).
func QResolution(q, angular, wavelength, sampleSize float64) float64 {
	return q * math.Sqrt(angular*angular+wavelength*wavelength+sampleSize*sampleSize)
}
