// Public domain.

// Package phys provides unit-tagged scalar and array values for
// reflectometry reduction.
//
// Every quantity flowing through the reduction carries an explicit Unit.
// Units combine structurally under multiplication and division, and
// operations between quantities of incompatible dimension fail with an
// error naming both units.  There is no silent coercion: compatible units
// (same dimension, different scale) are converted explicitly, incompatible
// ones are rejected.
//
// Arrays carry an optional variance per element.  All arithmetic
// propagates variances by the standard independent-variable rules, and
// all operations return new values; inputs are never mutated.
package phys

import (
	"fmt"
	"math"
)

// Dim is the dimension vector of a unit.  Count is a pseudo-dimension
// distinguishing detector counts from plain dimensionless numbers, so a
// count can never be silently added to a ratio.
type Dim struct {
	Length int8
	Time   int8
	Count  int8
}

// Unit tags a value with a dimension and a scale to the SI coherent unit
// of that dimension.
type Unit struct {
	Name  string
	Dim   Dim
	Scale float64
}

// Units used in the reduction.
var (
	Dimensionless = Unit{Name: "dimensionless", Scale: 1}
	Counts        = Unit{Name: "counts", Dim: Dim{Count: 1}, Scale: 1}

	Metre      = Unit{Name: "m", Dim: Dim{Length: 1}, Scale: 1}
	Millimetre = Unit{Name: "mm", Dim: Dim{Length: 1}, Scale: 1e-3}
	Angstrom   = Unit{Name: "angstrom", Dim: Dim{Length: 1}, Scale: 1e-10}

	Second      = Unit{Name: "s", Dim: Dim{Time: 1}, Scale: 1}
	Millisecond = Unit{Name: "ms", Dim: Dim{Time: 1}, Scale: 1e-3}
	Nanosecond  = Unit{Name: "ns", Dim: Dim{Time: 1}, Scale: 1e-9}

	Hertz = Unit{Name: "Hz", Dim: Dim{Time: -1}, Scale: 1}

	PerAngstrom = Unit{Name: "1/angstrom", Dim: Dim{Length: -1}, Scale: 1e10}
	PerMetre    = Unit{Name: "1/m", Dim: Dim{Length: -1}, Scale: 1}
)

// SameDim reports whether u and v measure the same dimension, i.e.
// whether values can be converted between them.
func (u Unit) SameDim(v Unit) bool { return u.Dim == v.Dim }

// Factor returns the multiplier converting a value in u to a value in to.
func (u Unit) Factor(to Unit) (float64, error) {
	if !u.SameDim(to) {
		return 0, &UnitError{Op: "convert", A: u, B: to}
	}
	return u.Scale / to.Scale, nil
}

// Mul combines units structurally under multiplication.
func (u Unit) Mul(v Unit) Unit {
	return Unit{
		Name: composeName(u, v, false),
		Dim: Dim{
			Length: u.Dim.Length + v.Dim.Length,
			Time:   u.Dim.Time + v.Dim.Time,
			Count:  u.Dim.Count + v.Dim.Count,
		},
		Scale: u.Scale * v.Scale,
	}
}

// Div combines units structurally under division.
func (u Unit) Div(v Unit) Unit {
	return Unit{
		Name: composeName(u, v, true),
		Dim: Dim{
			Length: u.Dim.Length - v.Dim.Length,
			Time:   u.Dim.Time - v.Dim.Time,
			Count:  u.Dim.Count - v.Dim.Count,
		},
		Scale: u.Scale / v.Scale,
	}
}

func composeName(u, v Unit, div bool) string {
	switch {
	case v.Dim == Dim{} && v.Scale == 1:
		return u.Name
	case u.Dim == Dim{} && u.Scale == 1 && div:
		return "1/(" + v.Name + ")"
	case div:
		return u.Name + "/(" + v.Name + ")"
	}
	return u.Name + "*" + v.Name
}

func (u Unit) String() string {
	if u.Name != "" {
		return u.Name
	}
	return fmt.Sprintf("dim{L%d T%d C%d}*%g", u.Dim.Length, u.Dim.Time,
		u.Dim.Count, u.Scale)
}

// UnitError reports an operation attempted between incompatible units.
type UnitError struct {
	Op   string
	A, B Unit
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unit mismatch in %s: %s vs %s", e.Op, e.A, e.B)
}

// DimensionError reports a shape mismatch between operands, or between a
// value and the shape an interface requires.
type DimensionError struct {
	Op        string
	Want, Got int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: dimension mismatch: want %d, got %d",
		e.Op, e.Want, e.Got)
}

// fwhmFactor is 2*sqrt(2*ln 2), relating the full width at half maximum
// of a Gaussian to its standard deviation.
var fwhmFactor = 2 * math.Sqrt(2*math.Ln2)

// FWHMToStd converts a full-width-half-maximum measure to the standard
// deviation of the corresponding Gaussian.
func FWHMToStd(fwhm float64) float64 { return fwhm / fwhmFactor }

// Physical constants used in time-of-flight and gravity-drop kinematics.
const (
	// Planck constant, J s.
	Planck = 6.62607015e-34
	// Neutron mass, kg.
	NeutronMass = 1.67492749804e-27
	// Standard gravitational acceleration, m/s^2.
	Gravity = 9.80665
)

// HOverMn is Planck/NeutronMass in m^2/s: wavelength in metres of a
// neutron is HOverMn * t / L for flight time t over path L.
const HOverMn = Planck / NeutronMass
