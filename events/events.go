// Public domain.

// Package events holds raw detector event collections and the per-run
// instrument parameters attached to them.
//
// A Run bundles an event table with the scalar parameters set once at
// load time.  Runs are never mutated: coordinate attachment and mask
// application produce decorated copies.
package events

import (
	"fmt"

	"github.com/soniakeys/unit"

	"reflred/phys"
)

// Role distinguishes a supermirror calibration measurement from a sample
// measurement.
type Role int

const (
	Reference Role = iota
	Sample
)

func (r Role) String() string {
	switch r {
	case Reference:
		return "reference"
	case Sample:
		return "sample"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Params are the scalar instrument parameters of a run.  Angles use the
// radian-backed unit.Angle type; lengths and rates are unit-tagged
// scalars.
type Params struct {
	SampleRotation       unit.Angle // mu
	SampleRotationOffset unit.Angle // calibration correction added to mu
	DetectorRotation     unit.Angle // nu

	ChopperPhase      unit.Angle
	ChopperFrequency  phys.Scalar // Hz
	ChopperDistance   phys.Scalar // L1: chopper midpoint to sample
	ChopperSeparation phys.Scalar // distance between the chopper pair

	DetectorDistance          phys.Scalar // L2: sample to detector
	DetectorSpatialResolution phys.Scalar

	BeamSize   phys.Scalar // FWHM of the beam
	SampleSize phys.Scalar // width of the sample along the beam
}

// Mu returns the corrected sample rotation, raw rotation plus the
// configured offset.
func (p Params) Mu() unit.Angle { return p.SampleRotation + p.SampleRotationOffset }

// Run is an immutable bundle of an identifier, a role, parameters and an
// event collection.
type Run struct {
	ID     string
	Role   Role
	Params Params
	Events *Table
}

// WithEvents returns a copy of r with a different event table.  Params
// and identity are preserved.
func (r Run) WithEvents(t *Table) Run {
	r.Events = t
	return r
}

// Table is a column-oriented event collection: per-event coordinate
// columns, per-event statistical weights, and named boolean event masks.
type Table struct {
	n       int
	cols    map[string]phys.Array
	masks   map[string][]bool
	weights phys.Array
}

// NewTable creates a table of n events with unit weights carrying unit
// variances (Poisson counting statistics).
func NewTable(n int) *Table {
	w := phys.Ones(n, phys.Counts, true)
	for i := range w.Variances {
		w.Variances[i] = 1
	}
	return &Table{
		n:       n,
		cols:    make(map[string]phys.Array),
		masks:   make(map[string][]bool),
		weights: w,
	}
}

// Len returns the number of events.
func (t *Table) Len() int { return t.n }

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := &Table{
		n:       t.n,
		cols:    make(map[string]phys.Array, len(t.cols)),
		masks:   make(map[string][]bool, len(t.masks)),
		weights: t.weights.Clone(),
	}
	for name, col := range t.cols {
		c.cols[name] = col.Clone()
	}
	for name, m := range t.masks {
		c.masks[name] = append([]bool(nil), m...)
	}
	return c
}

// SetColumn returns a copy of t with the named column set.  The column
// must have event length.
func (t *Table) SetColumn(name string, col phys.Array) (*Table, error) {
	if col.Len() != t.n {
		return nil, &phys.DimensionError{Op: "column " + name, Want: t.n, Got: col.Len()}
	}
	c := t.Clone()
	c.cols[name] = col
	return c, nil
}

// Column returns the named column.
func (t *Table) Column(name string) (phys.Array, bool) {
	col, ok := t.cols[name]
	return col, ok
}

// Columns returns a shallow copy of the column map, suitable for a
// coordinate graph evaluation.
func (t *Table) Columns() map[string]phys.Array {
	out := make(map[string]phys.Array, len(t.cols))
	for name, col := range t.cols {
		out[name] = col
	}
	return out
}

// WithColumns returns a copy of t replacing the column set.  All columns
// must have event length or length one (broadcast scalars are stored as
// given).
func (t *Table) WithColumns(cols map[string]phys.Array) (*Table, error) {
	c := t.Clone()
	c.cols = make(map[string]phys.Array, len(cols))
	for name, col := range cols {
		if col.Len() != t.n && col.Len() != 1 {
			return nil, &phys.DimensionError{Op: "column " + name, Want: t.n, Got: col.Len()}
		}
		c.cols[name] = col
	}
	return c, nil
}

// SetMask returns a copy of t with the named event mask attached.
// Masked events are retained but excluded from binning.
func (t *Table) SetMask(name string, mask []bool) (*Table, error) {
	if len(mask) != t.n {
		return nil, &phys.DimensionError{Op: "mask " + name, Want: t.n, Got: len(mask)}
	}
	c := t.Clone()
	c.masks[name] = append([]bool(nil), mask...)
	return c, nil
}

// MaskNames returns the attached mask names.
func (t *Table) MaskNames() []string {
	names := make([]string, 0, len(t.masks))
	for name := range t.masks {
		names = append(names, name)
	}
	return names
}

// Masked reports whether event i is excluded by any mask.
func (t *Table) Masked(i int) bool {
	for _, m := range t.masks {
		if m[i] {
			return true
		}
	}
	return false
}

// Weights returns the per-event weights (value + variance).
func (t *Table) Weights() phys.Array { return t.weights }

// ScaleWeights returns a copy of t with every event weight multiplied by
// the per-event factor in scale (no variance on the factor).
func (t *Table) ScaleWeights(scale []float64) (*Table, error) {
	if len(scale) != t.n {
		return nil, &phys.DimensionError{Op: "scale weights", Want: t.n, Got: len(scale)}
	}
	c := t.Clone()
	for i, s := range scale {
		c.weights.Values[i] *= s
		c.weights.Variances[i] *= s * s
	}
	return c, nil
}

// Concat concatenates event tables.  Tables must carry identical column
// and mask names; column units must be convertible to the first table's.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return NewTable(0), nil
	}
	n := 0
	for _, t := range tables {
		n += t.n
	}
	first := tables[0]
	out := NewTable(n)
	for name, col := range first.cols {
		joined := phys.Zeros(n, col.Unit, false)
		at := 0
		for _, t := range tables {
			c, ok := t.cols[name]
			if !ok {
				return nil, fmt.Errorf("concat: table missing column %q", name)
			}
			conv, err := c.Convert(col.Unit)
			if err != nil {
				return nil, fmt.Errorf("concat column %q: %w", name, err)
			}
			copy(joined.Values[at:], conv.Values)
			at += c.Len()
		}
		out.cols[name] = joined
	}
	for name := range first.masks {
		joined := make([]bool, 0, n)
		for _, t := range tables {
			m, ok := t.masks[name]
			if !ok {
				return nil, fmt.Errorf("concat: table missing mask %q", name)
			}
			joined = append(joined, m...)
		}
		out.masks[name] = joined
	}
	at := 0
	for _, t := range tables {
		copy(out.weights.Values[at:], t.weights.Values)
		copy(out.weights.Variances[at:], t.weights.Variances)
		at += t.n
	}
	return out, nil
}
