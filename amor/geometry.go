// Public domain.

// Package amor models the Amor reflectometer: detector geometry, the
// instrument coordinate transform graph (chopper time-of-flight
// unwrapping, gravity-corrected reflection angle, momentum transfer) and
// the standard acceptance masks applied to every run.
package amor

import (
	"math"

	"github.com/soniakeys/unit"

	"reflred/phys"
)

// Detector geometry of the Amor multi-blade detector.
const (
	NBlades  = 14 // active blades
	NWires   = 32 // wires per blade
	NStripes = 64 // stripes per blade

	// NZ is the number of z-index rows (blade * wire).
	NZ = NBlades * NWires
)

var (
	// angle of incidence of the beam on the blades
	bladeInclination = unit.AngleFromDeg(5.1)
	// pixel pitch along a blade, m
	pixelPitch = 4e-3
	// height- and depth-distance of neighboring pixels on one blade, m
	detDZ = pixelPitch * math.Sin(bladeInclination.Rad())
	detDX = pixelPitch * math.Cos(bladeInclination.Rad())
	// distance between blades, m
	bladeZ = 10.455e-3
	// distance from focal point to leading blade edge, m
	focalDistance = 4.0
	// angular offset between neighboring blades
	bladeAngle = 2 * math.Asin(0.5*bladeZ/focalDistance)
)

// PixelCoords decodes detector pixel identifiers into logical indices
// and the per-pixel beam divergence angle.
//
// Returned columns: z-index (blade*wire row), y-index (stripe), and the
// divergence angle of the ray from the sample to the pixel, relative to
// the detector center, in radians.
func PixelCoords(pixelID []float64) (zIndex, yIndex, divergence phys.Array) {
	n := len(pixelID)
	z := make([]float64, n)
	y := make([]float64, n)
	g := make([]float64, n)
	for i, id := range pixelID {
		pid := int(id)
		blade := pid / (NWires * NStripes)
		bPixel := pid % (NWires * NStripes)
		wire := bPixel / NStripes
		stripe := bPixel % NStripes

		z[i] = float64(blade*NWires + wire)
		y[i] = float64(stripe)
		g[i] = RowDivergence(blade*NWires + wire)
	}
	return phys.NewArray(z, phys.Dimensionless),
		phys.NewArray(y, phys.Dimensionless),
		phys.NewArray(g, phys.Dimensionless) // radians
}

// RowDivergence returns the divergence angle, in radians, of the ray to
// the center of z-index row z.
func RowDivergence(z int) float64 {
	blade := z / NWires
	wire := z % NWires
	return (float64(NBlades)/2-float64(blade))*bladeAngle -
		math.Atan(float64(wire)*detDZ/(focalDistance+float64(wire)*detDX))
}
