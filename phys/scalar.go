// Public domain.

package phys

import "fmt"

// Scalar is a single value with a unit.
type Scalar struct {
	Value float64
	Unit  Unit
}

// S is shorthand for constructing a Scalar.
func S(v float64, u Unit) Scalar { return Scalar{Value: v, Unit: u} }

// Convert returns s expressed in unit to.
func (s Scalar) Convert(to Unit) (Scalar, error) {
	f, err := s.Unit.Factor(to)
	if err != nil {
		return Scalar{}, err
	}
	return Scalar{Value: s.Value * f, Unit: to}, nil
}

// SI returns the value of s in the SI coherent unit of its dimension.
func (s Scalar) SI() float64 { return s.Value * s.Unit.Scale }

// Mul multiplies two scalars, combining units.
func (s Scalar) Mul(t Scalar) Scalar {
	return Scalar{Value: s.Value * t.Value, Unit: s.Unit.Mul(t.Unit)}
}

// Div divides two scalars, combining units.
func (s Scalar) Div(t Scalar) Scalar {
	return Scalar{Value: s.Value / t.Value, Unit: s.Unit.Div(t.Unit)}
}

// Add adds two scalars of the same dimension, converting t to the unit
// of s.
func (s Scalar) Add(t Scalar) (Scalar, error) {
	f, err := t.Unit.Factor(s.Unit)
	if err != nil {
		return Scalar{}, &UnitError{Op: "add", A: s.Unit, B: t.Unit}
	}
	return Scalar{Value: s.Value + t.Value*f, Unit: s.Unit}, nil
}

func (s Scalar) String() string {
	return fmt.Sprintf("%g %s", s.Value, s.Unit)
}
