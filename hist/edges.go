// Public domain.

// Package hist implements the event binning and masking engine: dense
// histograms over bin-edge grids, named boolean masks, mask-respecting
// reductions and variance-propagating histogram arithmetic.
package hist

import (
	"fmt"
	"sort"

	"reflred/phys"
)

// Edges is an ascending bin-edge grid with a unit.  Bins are half-open
// [edge_i, edge_i+1) except the final bin, whose upper edge is closed.
type Edges struct {
	vals []float64
	unit phys.Unit
}

// NewEdges validates and wraps a bin-edge array.  At least two strictly
// ascending edges are required.
func NewEdges(a phys.Array) (Edges, error) {
	if a.Len() < 2 {
		return Edges{}, fmt.Errorf("bin edges: need at least 2 edges, got %d", a.Len())
	}
	for i := 1; i < a.Len(); i++ {
		if !(a.Values[i] > a.Values[i-1]) {
			return Edges{}, fmt.Errorf("bin edges: not strictly ascending at index %d", i)
		}
	}
	return Edges{vals: append([]float64(nil), a.Values...), unit: a.Unit}, nil
}

// NBins returns the number of bins.
func (e Edges) NBins() int { return len(e.vals) - 1 }

// Unit returns the coordinate unit of the grid.
func (e Edges) Unit() phys.Unit { return e.unit }

// Lo and Hi return the bounds of bin i.
func (e Edges) Lo(i int) float64 { return e.vals[i] }
func (e Edges) Hi(i int) float64 { return e.vals[i+1] }

// Mid returns the midpoint of bin i.
func (e Edges) Mid(i int) float64 { return 0.5 * (e.vals[i] + e.vals[i+1]) }

// Min and Max return the grid bounds.
func (e Edges) Min() float64 { return e.vals[0] }
func (e Edges) Max() float64 { return e.vals[len(e.vals)-1] }

// Values returns a copy of the edge values.
func (e Edges) Values() []float64 { return append([]float64(nil), e.vals...) }

// Mids returns the bin midpoints as an array in the grid unit.
func (e Edges) Mids() phys.Array {
	m := make([]float64, e.NBins())
	for i := range m {
		m[i] = e.Mid(i)
	}
	return phys.NewArray(m, e.unit)
}

// FindBin locates x.  Values outside the grid return -1.  A value on an
// interior edge belongs to the bin whose lower edge it is (half-open
// intervals); the final upper edge is inclusive.
func (e Edges) FindBin(x float64) int {
	n := len(e.vals)
	if x != x || x < e.vals[0] || x > e.vals[n-1] {
		return -1
	}
	if x == e.vals[n-1] {
		return n - 2
	}
	// first index with vals[i] >= x
	i := sort.SearchFloat64s(e.vals, x)
	if e.vals[i] == x {
		return i
	}
	return i - 1
}

// Equal reports whether two grids have identical edges and unit.
func (e Edges) Equal(o Edges) bool {
	if e.unit != o.unit || len(e.vals) != len(o.vals) {
		return false
	}
	for i, v := range e.vals {
		if o.vals[i] != v {
			return false
		}
	}
	return true
}
