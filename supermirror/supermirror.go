// Public domain.

// Package supermirror models the known reflectivity curve of the
// supermirror used as calibration reference.
//
// The model is flat below the critical edge, decays linearly above it,
// and is uncharacterized beyond m times the critical edge:
//
//	R(Q) = 1                      Q < Qc
//	R(Q) = 1 - alpha (Q - Qc)     Qc <= Q < m Qc
//	R(Q) = NaN                    Q >= m Qc
//
// The NaN branch is a data-quality sentinel, later turned into a mask;
// it is never an error.
package supermirror

import (
	"math"

	"reflred/phys"
)

// Calibration holds the three supermirror constants.
type Calibration struct {
	CriticalEdge phys.Scalar // Qc, inverse length
	MValue       float64
	Alpha        phys.Scalar // slope, length (inverse of Q unit)
}

// Default returns the calibration constants of the reference supermirror
// used on Amor: Qc = 0.022 1/angstrom, m = 5, alpha = 0.25/0.088 angstrom.
func Default() Calibration {
	return Calibration{
		CriticalEdge: phys.S(0.022, phys.PerAngstrom),
		MValue:       5,
		Alpha:        phys.S(0.25/0.088, phys.Angstrom),
	}
}

// Reflectivity evaluates the model at every q.  The result is
// dimensionless with NaN beyond the characterized range.  q must carry
// an inverse-length unit.
func (c Calibration) Reflectivity(q phys.Array) (phys.Array, error) {
	qc, err := c.CriticalEdge.Convert(q.Unit)
	if err != nil {
		return phys.Array{}, err
	}
	alpha := c.Alpha.SI() * q.Unit.Scale // slope per unit of q
	out := phys.Zeros(q.Len(), phys.Dimensionless, false)
	maxQ := c.MValue * qc.Value
	for i, qi := range q.Values {
		switch {
		case qi < qc.Value:
			out.Values[i] = 1
		case qi < maxQ:
			out.Values[i] = 1 - alpha*(qi-qc.Value)
		default:
			out.Values[i] = math.NaN()
		}
	}
	return out, nil
}
