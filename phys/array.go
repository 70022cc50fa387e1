// Public domain.

package phys

import "math"

// Array is a dense 1-D array with a unit and optional per-element
// variances.  All methods are pure: they return new arrays and never
// mutate their receiver or arguments.
type Array struct {
	Values    []float64
	Variances []float64 // nil when the array carries no statistics
	Unit      Unit
}

// NewArray wraps values in unit u.  The slice is not copied; callers who
// need isolation should Clone.
func NewArray(values []float64, u Unit) Array {
	return Array{Values: values, Unit: u}
}

// Zeros returns an n-element array of zeros in unit u, with variances if
// withVar is set.
func Zeros(n int, u Unit, withVar bool) Array {
	a := Array{Values: make([]float64, n), Unit: u}
	if withVar {
		a.Variances = make([]float64, n)
	}
	return a
}

// Ones returns an n-element array of ones in unit u, with zero variances
// if withVar is set.
func Ones(n int, u Unit, withVar bool) Array {
	a := Zeros(n, u, withVar)
	for i := range a.Values {
		a.Values[i] = 1
	}
	return a
}

// Len returns the number of elements.
func (a Array) Len() int { return len(a.Values) }

// HasVariances reports whether a carries statistics.
func (a Array) HasVariances() bool { return a.Variances != nil }

// Clone returns a deep copy.
func (a Array) Clone() Array {
	b := Array{Values: append([]float64(nil), a.Values...), Unit: a.Unit}
	if a.Variances != nil {
		b.Variances = append([]float64(nil), a.Variances...)
	}
	return b
}

// Convert returns a expressed in unit to.
func (a Array) Convert(to Unit) (Array, error) {
	f, err := a.Unit.Factor(to)
	if err != nil {
		return Array{}, err
	}
	b := a.Clone()
	b.Unit = to
	for i := range b.Values {
		b.Values[i] *= f
	}
	for i := range b.Variances {
		b.Variances[i] *= f * f
	}
	return b, nil
}

// Scale multiplies every element by the plain number k.
func (a Array) Scale(k float64) Array {
	b := a.Clone()
	for i := range b.Values {
		b.Values[i] *= k
	}
	for i := range b.Variances {
		b.Variances[i] *= k * k
	}
	return b
}

// Add returns a+b element-wise.  b is converted to the unit of a;
// incompatible dimensions or lengths are errors.
func (a Array) Add(b Array) (Array, error) {
	if a.Len() != b.Len() {
		return Array{}, &DimensionError{Op: "add", Want: a.Len(), Got: b.Len()}
	}
	f, err := b.Unit.Factor(a.Unit)
	if err != nil {
		return Array{}, &UnitError{Op: "add", A: a.Unit, B: b.Unit}
	}
	c := a.Clone()
	if b.Variances != nil && c.Variances == nil {
		c.Variances = make([]float64, c.Len())
	}
	for i := range c.Values {
		c.Values[i] += b.Values[i] * f
	}
	if b.Variances != nil {
		for i := range c.Variances {
			c.Variances[i] += b.Variances[i] * f * f
		}
	}
	return c, nil
}

// Mul returns a*b element-wise with structural unit combination and
// variance propagation var(ab) = b^2 var(a) + a^2 var(b).
func (a Array) Mul(b Array) (Array, error) {
	if a.Len() != b.Len() {
		return Array{}, &DimensionError{Op: "mul", Want: a.Len(), Got: b.Len()}
	}
	c := Zeros(a.Len(), a.Unit.Mul(b.Unit), a.Variances != nil || b.Variances != nil)
	if !c.HasVariances() {
		c.Variances = nil
	}
	for i := range c.Values {
		av, bv := a.Values[i], b.Values[i]
		c.Values[i] = av * bv
		if c.Variances != nil {
			var va, vb float64
			if a.Variances != nil {
				va = a.Variances[i]
			}
			if b.Variances != nil {
				vb = b.Variances[i]
			}
			c.Variances[i] = bv*bv*va + av*av*vb
		}
	}
	return c, nil
}

// Div returns a/b element-wise with structural unit combination and the
// ratio-of-independent-variables variance rule
// var(a/b) = var(a)/b^2 + a^2 var(b)/b^4.
// Elements with zero denominator become NaN; callers that need a mask
// instead of a NaN sentinel handle that at the histogram level.
func (a Array) Div(b Array) (Array, error) {
	if a.Len() != b.Len() {
		return Array{}, &DimensionError{Op: "div", Want: a.Len(), Got: b.Len()}
	}
	c := Zeros(a.Len(), a.Unit.Div(b.Unit), a.Variances != nil || b.Variances != nil)
	if !c.HasVariances() {
		c.Variances = nil
	}
	for i := range c.Values {
		av, bv := a.Values[i], b.Values[i]
		if bv == 0 {
			c.Values[i] = math.NaN()
			if c.Variances != nil {
				c.Variances[i] = math.NaN()
			}
			continue
		}
		c.Values[i] = av / bv
		if c.Variances != nil {
			var va, vb float64
			if a.Variances != nil {
				va = a.Variances[i]
			}
			if b.Variances != nil {
				vb = b.Variances[i]
			}
			c.Variances[i] = va/(bv*bv) + av*av*vb/(bv*bv*bv*bv)
		}
	}
	return c, nil
}

// DivScalar divides every element by s, combining units.
func (a Array) DivScalar(s Scalar) Array {
	b := a.Clone()
	b.Unit = a.Unit.Div(s.Unit)
	for i := range b.Values {
		b.Values[i] /= s.Value
	}
	for i := range b.Variances {
		b.Variances[i] /= s.Value * s.Value
	}
	return b
}

// Sum returns the sum of all values, and of all variances if present.
func (a Array) Sum() (value, variance float64) {
	for _, v := range a.Values {
		value += v
	}
	for _, v := range a.Variances {
		variance += v
	}
	return
}
