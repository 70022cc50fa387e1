// Public domain.

package hist

import (
	"fmt"
	"math"

	"reflred/events"
	"reflred/phys"
)

// Map2D is a dense intensity map over detector z-index rows and a binned
// coordinate (wavelength), stored row-major.  It carries named per-bin
// masks and optional per-bin attached coordinates (Q, Q resolution),
// and is the shape of the reduced reference and of reflectivity over
// detector position and wavelength.
type Map2D struct {
	NZ    int
	W     Edges
	Data  phys.Array
	coord map[string]phys.Array
	masks map[string][]bool
}

// NewMap2D returns an empty map of nz rows over wavelength grid w,
// counting in unit u with variances.
func NewMap2D(nz int, w Edges, u phys.Unit) *Map2D {
	return &Map2D{
		NZ:    nz,
		W:     w,
		Data:  phys.Zeros(nz*w.NBins(), u, true),
		coord: make(map[string]phys.Array),
		masks: make(map[string][]bool),
	}
}

// Idx flattens a (row, wavelength-bin) index pair.
func (m *Map2D) Idx(z, w int) int { return z*m.W.NBins() + w }

// Len returns the flat bin count.
func (m *Map2D) Len() int { return m.NZ * m.W.NBins() }

// Clone returns a deep copy.
func (m *Map2D) Clone() *Map2D {
	c := &Map2D{
		NZ:    m.NZ,
		W:     m.W,
		Data:  m.Data.Clone(),
		coord: make(map[string]phys.Array, len(m.coord)),
		masks: make(map[string][]bool, len(m.masks)),
	}
	for name, a := range m.coord {
		c.coord[name] = a.Clone()
	}
	for name, b := range m.masks {
		c.masks[name] = append([]bool(nil), b...)
	}
	return c
}

// BinEventsZW histograms events over (z-index row, wavelength bin).
// Masked events and events with NaN or out-of-range coordinates do not
// contribute.
func BinEventsZW(t *events.Table, zCoord, wCoord string, nz int, w Edges) (*Map2D, error) {
	zCol, ok := t.Column(zCoord)
	if !ok {
		return nil, fmt.Errorf("bin: event table has no coordinate %q", zCoord)
	}
	wCol, ok := t.Column(wCoord)
	if !ok {
		return nil, fmt.Errorf("bin: event table has no coordinate %q", wCoord)
	}
	wConv, err := wCol.Convert(w.Unit())
	if err != nil {
		return nil, fmt.Errorf("bin %q: %w", wCoord, err)
	}
	weights := t.Weights()
	out := NewMap2D(nz, w, weights.Unit)
	for i := range wConv.Values {
		if t.Masked(i) {
			continue
		}
		z := int(zCol.Values[i])
		if z < 0 || z >= nz {
			continue
		}
		wb := w.FindBin(wConv.Values[i])
		if wb < 0 {
			continue
		}
		k := out.Idx(z, wb)
		out.Data.Values[k] += weights.Values[i]
		out.Data.Variances[k] += weights.Variances[i]
	}
	return out, nil
}

// SetMask attaches a named flat per-bin mask on a copy of m.
func (m *Map2D) SetMask(name string, mask []bool) (*Map2D, error) {
	if len(mask) != m.Len() {
		return nil, &phys.DimensionError{Op: "mask " + name, Want: m.Len(), Got: len(mask)}
	}
	c := m.Clone()
	c.masks[name] = append([]bool(nil), mask...)
	return c, nil
}

// SetRowMask attaches a mask over z-index rows, expanded to all bins of
// each masked row.
func (m *Map2D) SetRowMask(name string, rows []bool) (*Map2D, error) {
	if len(rows) != m.NZ {
		return nil, &phys.DimensionError{Op: "row mask " + name, Want: m.NZ, Got: len(rows)}
	}
	mask := make([]bool, m.Len())
	for z, r := range rows {
		if !r {
			continue
		}
		for w := 0; w < m.W.NBins(); w++ {
			mask[m.Idx(z, w)] = true
		}
	}
	return m.SetMask(name, mask)
}

// Mask returns the named mask, or nil.
func (m *Map2D) Mask(name string) []bool { return m.masks[name] }

// Masked reports whether flat bin i is excluded by any mask.
func (m *Map2D) Masked(i int) bool {
	for _, b := range m.masks {
		if b[i] {
			return true
		}
	}
	return false
}

// SetCoord attaches a flat per-bin coordinate on a copy of m.
func (m *Map2D) SetCoord(name string, a phys.Array) (*Map2D, error) {
	if a.Len() != m.Len() {
		return nil, &phys.DimensionError{Op: "coord " + name, Want: m.Len(), Got: a.Len()}
	}
	c := m.Clone()
	c.coord[name] = a
	return c, nil
}

// Coord returns the named per-bin coordinate.
func (m *Map2D) Coord(name string) (phys.Array, bool) {
	a, ok := m.coord[name]
	return a, ok
}

// Sum reduces unmasked bins to a total with variance.
func (m *Map2D) Sum() (value, variance float64) {
	for i, v := range m.Data.Values {
		if m.Masked(i) {
			continue
		}
		value += v
		if m.Data.Variances != nil {
			variance += m.Data.Variances[i]
		}
	}
	return
}

// Div divides m by denom bin-for-bin.  Zero, non-finite or masked
// denominator bins become undefined bins tagged maskName; masks of both
// operands propagate.  Denominator variances, when present, propagate by
// the ratio rule.
func (m *Map2D) Div(denom *Map2D, maskName string) (*Map2D, error) {
	if m.NZ != denom.NZ || !m.W.Equal(denom.W) {
		return nil, fmt.Errorf("map div: bin grids differ")
	}
	out := m.Clone()
	out.Data = phys.Zeros(m.Len(), m.Data.Unit.Div(denom.Data.Unit), true)
	for name, b := range denom.masks {
		cur, ok := out.masks[name]
		if !ok {
			out.masks[name] = append([]bool(nil), b...)
			continue
		}
		for i, v := range b {
			cur[i] = cur[i] || v
		}
	}
	undefined := make([]bool, m.Len())
	for i := 0; i < m.Len(); i++ {
		d := denom.Data.Values[i]
		if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) || denom.Masked(i) {
			undefined[i] = true
			out.Data.Values[i] = math.NaN()
			out.Data.Variances[i] = math.NaN()
			continue
		}
		a := m.Data.Values[i]
		out.Data.Values[i] = a / d
		var va, vd float64
		if m.Data.Variances != nil {
			va = m.Data.Variances[i]
		}
		if denom.Data.Variances != nil {
			vd = denom.Data.Variances[i]
		}
		out.Data.Variances[i] = va/(d*d) + a*a*vd/(d*d*d*d)
	}
	out.masks[maskName] = undefined
	return out, nil
}

// DropVariances returns a copy carrying values only.
func (m *Map2D) DropVariances() *Map2D {
	c := m.Clone()
	c.Data.Variances = nil
	return c
}
