// Public domain.

package rfprog

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/soniakeys/unit"

	"reflred/amor"
	"reflred/curves"
	"reflred/events"
	"reflred/hist"
	"reflred/phys"
	"reflred/reduce"
)

// config is the TOML run-parameter file.  Instrument and supermirror
// sections override the Amor defaults; each [[run]] block describes one
// measurement.
type config struct {
	Title       string
	Instrument  instrumentConfig
	Supermirror supermirrorConfig
	QGrid       qgridConfig `toml:"qgrid"`
	Runs        []runConfig `toml:"run"`
}

type instrumentConfig struct {
	ChopperPhaseDeg     *float64 `toml:"chopper_phase_deg"`
	ChopperFrequencyHz  *float64 `toml:"chopper_frequency_hz"`
	ChopperDistanceM    *float64 `toml:"chopper_distance_m"`
	ChopperSeparationM  *float64 `toml:"chopper_separation_m"`
	DetectorDistanceM   *float64 `toml:"detector_distance_m"`
	SpatialResolutionMM *float64 `toml:"detector_spatial_resolution_mm"`
	BeamSizeMM          *float64 `toml:"beam_size_mm"`
	SampleSizeMM        *float64 `toml:"sample_size_mm"`
	Gravity             *bool    `toml:"gravity"`
}

type supermirrorConfig struct {
	CriticalEdge *float64 `toml:"critical_edge"` // 1/angstrom
	MValue       *float64 `toml:"m_value"`
	Alpha        *float64 `toml:"alpha"` // angstrom
}

type qgridConfig struct {
	Min   float64
	Max   float64
	N     int
	Scale string
}

type runConfig struct {
	ID                  string
	Role                string
	SampleRotationDeg   float64 `toml:"sample_rotation_deg"`
	RotationOffsetDeg   float64 `toml:"sample_rotation_offset_deg"`
	DetectorRotationDeg float64 `toml:"detector_rotation_deg"`
	Events              int
}

func readConfig(path string) (*config, error) {
	var c config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, err
	}
	if len(c.Runs) == 0 {
		return nil, fmt.Errorf("%s: no [[run]] blocks", path)
	}
	var refs int
	for i, r := range c.Runs {
		if r.ID == "" {
			return nil, fmt.Errorf("%s: run %d has no id", path, i)
		}
		switch r.Role {
		case "reference":
			refs++
		case "sample":
		default:
			return nil, fmt.Errorf("%s: run %s: role must be reference or sample, got %q",
				path, r.ID, r.Role)
		}
	}
	if refs != 1 {
		return nil, fmt.Errorf("%s: exactly one reference run required, found %d", path, refs)
	}
	return &c, nil
}

// params builds the per-run instrument parameters: Amor defaults,
// instrument-section overrides, then the run's rotations.
func (c *config) params(r runConfig) events.Params {
	p := amor.DefaultParams()
	in := c.Instrument
	if v := in.ChopperPhaseDeg; v != nil {
		p.ChopperPhase = unit.AngleFromDeg(*v)
	}
	if v := in.ChopperFrequencyHz; v != nil {
		p.ChopperFrequency = phys.S(*v, phys.Hertz)
	}
	if v := in.ChopperDistanceM; v != nil {
		p.ChopperDistance = phys.S(*v, phys.Metre)
	}
	if v := in.ChopperSeparationM; v != nil {
		p.ChopperSeparation = phys.S(*v, phys.Metre)
	}
	if v := in.DetectorDistanceM; v != nil {
		p.DetectorDistance = phys.S(*v, phys.Metre)
	}
	if v := in.SpatialResolutionMM; v != nil {
		p.DetectorSpatialResolution = phys.S(*v, phys.Millimetre)
	}
	if v := in.BeamSizeMM; v != nil {
		p.BeamSize = phys.S(*v, phys.Millimetre)
	}
	if v := in.SampleSizeMM; v != nil {
		p.SampleSize = phys.S(*v, phys.Millimetre)
	}
	p.SampleRotation = unit.AngleFromDeg(r.SampleRotationDeg)
	p.SampleRotationOffset = unit.AngleFromDeg(r.RotationOffsetDeg)
	p.DetectorRotation = unit.AngleFromDeg(r.DetectorRotationDeg)
	return p
}

// reducer builds the configured Reducer.
func (c *config) reducer() (*reduce.Reducer, error) {
	lim := amor.DefaultLimits()
	wl, err := amor.WavelengthGrid(lim, 300)
	if err != nil {
		return nil, err
	}
	red := reduce.New(wl)
	red.Limits = lim
	if c.Instrument.Gravity != nil && !*c.Instrument.Gravity {
		red.Model = amor.PlainTheta
	}
	sm := c.Supermirror
	if v := sm.CriticalEdge; v != nil {
		red.Cal.CriticalEdge = phys.S(*v, phys.PerAngstrom)
	}
	if v := sm.MValue; v != nil {
		red.Cal.MValue = *v
	}
	if v := sm.Alpha; v != nil {
		red.Cal.Alpha = phys.S(*v, phys.Angstrom)
	}
	return red, nil
}

// qEdges builds the output Q grid, logarithmic unless configured linear.
func (c *config) qEdges() (hist.Edges, error) {
	g := c.QGrid
	if g.N == 0 {
		g = qgridConfig{Min: 0.005, Max: 0.3, N: 200, Scale: "log"}
	}
	if g.Scale == "" {
		g.Scale = "log"
	}
	return curves.LinLogSpace([]float64{g.Min, g.Max}, []string{g.Scale}, []int{g.N}, phys.PerAngstrom)
}
