// Public domain.

package amor

import (
	"fmt"
	"math"

	"github.com/soniakeys/unit"

	"reflred/events"
	"reflred/phys"
)

// Names of the standard acceptance masks attached to every run.
const (
	MaskYRange     = "y_index_range"
	MaskZRange     = "z_index_range"
	MaskDivergence = "divergence_too_large"
	MaskWavelength = "wavelength_range"
)

// Correction strings recorded in the reduction metadata, in application
// order.
const (
	CorrChopper     = "chopper ToF correction"
	CorrFootprint   = "footprint correction"
	CorrSupermirror = "supermirror calibration"
	CorrTotalCounts = "total counts normalization"
)

// Limits are the regions of validity applied as masks.  Values outside a
// range are masked, not discarded.
type Limits struct {
	YIndex     [2]int
	ZIndex     [2]int
	Divergence [2]unit.Angle
	Wavelength [2]phys.Scalar
}

// DefaultLimits returns the standard Amor acceptance.
func DefaultLimits() Limits {
	return Limits{
		YIndex:     [2]int{11, 41},
		ZIndex:     [2]int{80, 370},
		Divergence: [2]unit.Angle{unit.AngleFromDeg(-0.75), unit.AngleFromDeg(0.75)},
		Wavelength: [2]phys.Scalar{phys.S(3.0, phys.Angstrom), phys.S(12.5, phys.Angstrom)},
	}
}

// DefaultParams returns representative Amor instrument parameters.
// Rotations, sizes and chopper settings are per-run values and are
// normally overridden at load time.
func DefaultParams() events.Params {
	return events.Params{
		ChopperPhase:              unit.AngleFromDeg(7.0),
		ChopperFrequency:          phys.S(8.333, phys.Hertz),
		ChopperDistance:           phys.S(15.0, phys.Metre),
		ChopperSeparation:         phys.S(1.0, phys.Metre),
		DetectorDistance:          phys.S(4.0, phys.Metre),
		DetectorSpatialResolution: phys.S(2.5, phys.Millimetre),
		BeamSize:                  phys.S(2.0, phys.Millimetre),
		SampleSize:                phys.S(10.0, phys.Millimetre),
	}
}

// AddCoordsAndMasks decodes pixel identifiers, attaches the physical
// coordinates (wavelength, theta, angle_of_divergence, Q) under the
// selected theta model, applies the standard acceptance masks, and
// corrects event weights for the beam footprint on the sample.
//
// The input run is unchanged; the returned run carries a new decorated
// event table.  The event table must provide the raw columns "pixel_id"
// and "event_time_offset".
func AddCoordsAndMasks(run events.Run, lim Limits, model ThetaModel) (events.Run, error) {
	t := run.Events
	pixel, ok := t.Column("pixel_id")
	if !ok {
		return events.Run{}, fmt.Errorf("run %s: missing pixel_id column", run.ID)
	}
	if _, ok := t.Column("event_time_offset"); !ok {
		return events.Run{}, fmt.Errorf("run %s: missing event_time_offset column", run.ID)
	}

	zIdx, yIdx, gamma := PixelCoords(pixel.Values)
	t, err := t.SetColumn("z_index", zIdx)
	if err != nil {
		return events.Run{}, err
	}
	if t, err = t.SetColumn("y_index", yIdx); err != nil {
		return events.Run{}, err
	}
	if t, err = t.SetColumn("divergence_angle", gamma); err != nil {
		return events.Run{}, err
	}

	g, err := NewGraph(run.Params, model)
	if err != nil {
		return events.Run{}, err
	}
	cols, err := g.Apply(t.Columns(),
		CoordWavelength, CoordTheta, CoordDivergence, CoordQ)
	if err != nil {
		return events.Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	if t, err = t.WithColumns(cols); err != nil {
		return events.Run{}, err
	}

	if t, err = applyMasks(t, lim); err != nil {
		return events.Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	if t, err = correctFootprint(t, run.Params); err != nil {
		return events.Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	return run.WithEvents(t), nil
}

func applyMasks(t *events.Table, lim Limits) (*events.Table, error) {
	n := t.Len()
	y, _ := t.Column("y_index")
	z, _ := t.Column("z_index")
	div, _ := t.Column(CoordDivergence)
	lam, _ := t.Column(CoordWavelength)

	lamLo, err := lim.Wavelength[0].Convert(lam.Unit)
	if err != nil {
		return nil, err
	}
	lamHi, err := lim.Wavelength[1].Convert(lam.Unit)
	if err != nil {
		return nil, err
	}

	yMask := make([]bool, n)
	zMask := make([]bool, n)
	dMask := make([]bool, n)
	wMask := make([]bool, n)
	dLo, dHi := lim.Divergence[0].Rad(), lim.Divergence[1].Rad()
	for i := 0; i < n; i++ {
		yMask[i] = notBetween(y.Values[i], float64(lim.YIndex[0]), float64(lim.YIndex[1]))
		zMask[i] = notBetween(z.Values[i], float64(lim.ZIndex[0]), float64(lim.ZIndex[1]))
		dMask[i] = notBetween(div.Values[i], dLo, dHi)
		wMask[i] = notBetween(lam.Values[i], lamLo.Value, lamHi.Value)
	}
	if t, err = t.SetMask(MaskYRange, yMask); err != nil {
		return nil, err
	}
	if t, err = t.SetMask(MaskZRange, zMask); err != nil {
		return nil, err
	}
	if t, err = t.SetMask(MaskDivergence, dMask); err != nil {
		return nil, err
	}
	return t.SetMask(MaskWavelength, wMask)
}

// notBetween treats NaN as out of range, so unphysical coordinates
// (unassignable chopper frame) end up masked.
func notBetween(v, lo, hi float64) bool { return !(v >= lo && v <= hi) }

// correctFootprint divides event weights by the fraction of the beam
// hitting the sample at the event's incidence angle:
// erf(fwhmToStd(sample_size * sin(theta) / beam_size)).
func correctFootprint(t *events.Table, p events.Params) (*events.Table, error) {
	theta, ok := t.Column(CoordTheta)
	if !ok {
		return nil, fmt.Errorf("footprint: theta not attached")
	}
	beam, err := p.BeamSize.Convert(phys.Metre)
	if err != nil {
		return nil, fmt.Errorf("beam size: %w", err)
	}
	sample, err := p.SampleSize.Convert(phys.Metre)
	if err != nil {
		return nil, fmt.Errorf("sample size: %w", err)
	}
	inv := make([]float64, t.Len())
	for i, th := range theta.Values {
		f := FootprintOnSample(th, beam.Value, sample.Value)
		inv[i] = 1 / f
	}
	return t.ScaleWeights(inv)
}

// FootprintOnSample is the fraction of the beam hitting the sample at
// incidence angle theta (radians).  beamSize and sampleSize in the same
// unit.
func FootprintOnSample(theta, beamSize, sampleSize float64) float64 {
	beamOnSample := beamSize / math.Sin(theta)
	return math.Erf(phys.FWHMToStd(sampleSize / beamOnSample))
}
