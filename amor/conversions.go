// Public domain.

package amor

import (
	"fmt"
	"math"

	"reflred/events"
	"reflred/graph"
	"reflred/phys"
)

// ThetaModel selects the reflection-angle variant.  The choice is made
// once, when the coordinate graph is built; it never branches per event.
type ThetaModel int

const (
	// PlainTheta is the fixed geometric angle gamma + nu - mu.
	PlainTheta ThetaModel = iota
	// GravityTheta corrects for the gravitational drop of the neutron
	// during flight, which depends on the event wavelength.
	GravityTheta
)

func (m ThetaModel) String() string {
	switch m {
	case PlainTheta:
		return "plain"
	case GravityTheta:
		return "gravity"
	}
	return fmt.Sprintf("ThetaModel(%d)", int(m))
}

// gravityDrop is g*m_n^2/(2 h^2) in 1/m^3: the dimensionless drop term
// for a flight path in metres and a wavelength in metres is
// gravityDrop * L2 * lambda^2.
const gravityDrop = phys.Gravity * phys.NeutronMass * phys.NeutronMass /
	(2 * phys.Planck * phys.Planck)

// Coordinate names produced by the transform graph.
const (
	CoordWavelength = "wavelength"
	CoordTheta      = "theta"
	CoordDivergence = "angle_of_divergence"
	CoordQ          = "Q"
)

// NewGraph builds the specular-reflection coordinate transform graph for
// a run with parameters p.  Inputs are the raw per-event columns
// "event_time_offset" (time) and "divergence_angle" (radians); the graph
// produces wavelength, theta, angle_of_divergence and Q.
func NewGraph(p events.Params, model ThetaModel) (*graph.Graph, error) {
	freq, err := p.ChopperFrequency.Convert(phys.Hertz)
	if err != nil {
		return nil, fmt.Errorf("chopper frequency: %w", err)
	}
	l1, err := p.ChopperDistance.Convert(phys.Metre)
	if err != nil {
		return nil, fmt.Errorf("chopper distance: %w", err)
	}
	l2, err := p.DetectorDistance.Convert(phys.Metre)
	if err != nil {
		return nil, fmt.Errorf("detector distance: %w", err)
	}
	mu := p.Mu().Rad()
	nu := p.DetectorRotation.Rad()

	wavelength := graph.Producer{
		Out:      CoordWavelength,
		Deps:     []string{"event_time_offset", "divergence_angle"},
		DepUnits: []phys.Unit{phys.Second, phys.Dimensionless},
		Unit:     phys.Angstrom,
		Fn: unwrapWavelength(p.ChopperPhase.Deg(), freq.Value,
			l1.Value+l2.Value),
	}

	theta := graph.Producer{
		Out:      CoordTheta,
		Deps:     []string{CoordWavelength, "divergence_angle"},
		DepUnits: []phys.Unit{phys.Angstrom, phys.Dimensionless},
		Unit:     phys.Dimensionless, // radians
	}
	switch model {
	case GravityTheta, PlainTheta:
		theta.Fn = func(args ...[]float64) []float64 {
			lam, gamma := args[0], args[1]
			out := make([]float64, len(lam))
			for i := range out {
				out[i] = ThetaAt(graph.At(gamma, i), nu, mu,
					graph.At(lam, i), l2.Value, model)
			}
			return out
		}
	default:
		return nil, fmt.Errorf("unknown theta model %v", model)
	}

	divergence := graph.Producer{
		Out:      CoordDivergence,
		Deps:     []string{CoordTheta},
		DepUnits: []phys.Unit{phys.Dimensionless},
		Unit:     phys.Dimensionless, // radians
		Fn: func(args ...[]float64) []float64 {
			th := args[0]
			out := make([]float64, len(th))
			for i := range out {
				// deviation from the beam center direction nu - mu
				out[i] = th[i] + mu - nu
			}
			return out
		},
	}

	q := graph.Producer{
		Out:      CoordQ,
		Deps:     []string{CoordWavelength, CoordTheta},
		DepUnits: []phys.Unit{phys.Angstrom, phys.Dimensionless},
		Unit:     phys.PerAngstrom,
		Fn: func(args ...[]float64) []float64 {
			lam, th := args[0], args[1]
			out := make([]float64, len(lam))
			for i := range out {
				out[i] = QFromThetaWavelength(graph.At(th, i), graph.At(lam, i))
			}
			return out
		},
	}

	return graph.New(wavelength, theta, divergence, q)
}

// ThetaAt is the reflection angle of a ray at divergence gamma from the
// detector center, under detector rotation nu and sample angle mu (all
// radians).  Under GravityTheta the gravitational drop over the sample
// to detector distance l2 (metres) at wavelength lambda (angstrom) is
// folded in.
func ThetaAt(gamma, nu, mu, lambda, l2 float64, model ThetaModel) float64 {
	if model == GravityTheta {
		lm := lambda * 1e-10 // angstrom -> m
		drop := gravityDrop * l2 * lm * lm
		return math.Asin(math.Sin(gamma+nu)+drop) - mu
	}
	return gamma + nu - mu
}

// QFromThetaWavelength is the reduced reflectometry coordinate
// 4 pi sin(theta) / lambda.  theta in radians, lambda in angstrom,
// result in 1/angstrom.
func QFromThetaWavelength(theta, lambda float64) float64 {
	return 4 * math.Pi * math.Sin(theta) / lambda
}

// unwrapWavelength converts event time offsets to wavelength using the
// chopper settings.
//
// The chopper pair defines a two-interval double-pulse frame: events in
// (-tofOffset, tau-tofOffset) belong to the current frame and gain
// tofOffset; events in (tau-tofOffset, 2 tau - tofOffset) belong to the
// previous pulse and gain tofOffset - tau; anything else cannot be
// assigned a frame and becomes NaN (masked downstream, never an error).
// A per-event path-length correction for divergent trajectories through
// the guides is subtracted before converting time to wavelength with
// lambda = h/m_n * t / (L1+L2).
func unwrapWavelength(phaseDeg, freqHz, flightPath float64) func(args ...[]float64) []float64 {
	tau := 1 / (2 * freqHz)
	tofOffset := tau * phaseDeg / 180
	frameBound := tau - tofOffset
	maximum := 2*tau - tofOffset
	return func(args ...[]float64) []float64 {
		eto, gamma := args[0], args[1]
		out := make([]float64, len(eto))
		for i, t := range eto {
			switch {
			case -tofOffset < t && t < frameBound:
				t += tofOffset
			case frameBound < t && t < maximum:
				t += tofOffset - tau
			default:
				out[i] = math.NaN()
				continue
			}
			// guide path correction for divergent trajectories
			t -= graph.At(gamma, i) / math.Pi * tau
			out[i] = phys.HOverMn * t / flightPath * 1e10 // m -> angstrom
		}
		return out
	}
}
