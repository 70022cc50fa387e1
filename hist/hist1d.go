// Public domain.

package hist

import (
	"fmt"
	"math"

	"go-hep.org/x/hep/hbook"

	"reflred/events"
	"reflred/phys"
)

// Hist1D is a dense 1-D histogram: per-bin intensity (value + variance)
// over a bin-edge grid, with named boolean bin masks.  Masked bins are
// retained in the data but excluded from reductions and arithmetic.
type Hist1D struct {
	Edges Edges
	Data  phys.Array
	masks map[string][]bool
}

// NewHist1D returns an empty histogram over the given grid, counting in
// unit u with variances.
func NewHist1D(edges Edges, u phys.Unit) *Hist1D {
	return &Hist1D{
		Edges: edges,
		Data:  phys.Zeros(edges.NBins(), u, true),
		masks: make(map[string][]bool),
	}
}

// Clone returns a deep copy.
func (h *Hist1D) Clone() *Hist1D {
	c := &Hist1D{
		Edges: h.Edges,
		Data:  h.Data.Clone(),
		masks: make(map[string][]bool, len(h.masks)),
	}
	for name, m := range h.masks {
		c.masks[name] = append([]bool(nil), m...)
	}
	return c
}

// BinEvents histograms the named event coordinate over edges.  Events
// excluded by a table mask, and events whose coordinate is NaN or out of
// range, do not contribute.  The fill itself runs through an hbook
// histogram, whose per-bin sum-of-weights and sum-of-squared-weights are
// the bin value and variance.
func BinEvents(t *events.Table, coord string, edges Edges) (*Hist1D, error) {
	col, ok := t.Column(coord)
	if !ok {
		return nil, fmt.Errorf("bin: event table has no coordinate %q", coord)
	}
	conv, err := col.Convert(edges.Unit())
	if err != nil {
		return nil, fmt.Errorf("bin %q: %w", coord, err)
	}
	w := t.Weights()

	hb := hbook.NewH1DFromEdges(edges.Values())
	top := edges.Max()
	width := edges.Hi(edges.NBins()-1) - edges.Lo(edges.NBins()-1)
	for i, x := range conv.Values {
		if t.Masked(i) || x != x {
			continue
		}
		if x == top {
			// closed final edge: hbook treats the top edge as
			// overflow, nudge into the last bin
			x = top - width*1e-12
		}
		hb.Fill(x, w.Values[i])
	}

	out := NewHist1D(edges, w.Unit)
	for i, b := range hb.Binning.Bins {
		out.Data.Values[i] = b.SumW()
		out.Data.Variances[i] = b.SumW2()
	}
	return out, nil
}

// SetMask attaches a named per-bin mask, replacing any previous mask of
// that name.  The histogram is copied; the receiver is unchanged.
func (h *Hist1D) SetMask(name string, mask []bool) (*Hist1D, error) {
	if len(mask) != h.Edges.NBins() {
		return nil, &phys.DimensionError{Op: "mask " + name, Want: h.Edges.NBins(), Got: len(mask)}
	}
	c := h.Clone()
	c.masks[name] = append([]bool(nil), mask...)
	return c, nil
}

// Mask returns the named mask, or nil.
func (h *Hist1D) Mask(name string) []bool { return h.masks[name] }

// MaskNames lists attached masks.
func (h *Hist1D) MaskNames() []string {
	names := make([]string, 0, len(h.masks))
	for name := range h.masks {
		names = append(names, name)
	}
	return names
}

// Masked reports whether bin i is excluded by any mask.
func (h *Hist1D) Masked(i int) bool {
	for _, m := range h.masks {
		if m[i] {
			return true
		}
	}
	return false
}

// Sum reduces the unmasked bins to a scalar total with variance.
func (h *Hist1D) Sum() (value, variance float64) {
	for i, v := range h.Data.Values {
		if h.Masked(i) {
			continue
		}
		value += v
		if h.Data.Variances != nil {
			variance += h.Data.Variances[i]
		}
	}
	return
}

// Mean is the mean of unmasked bin values.
func (h *Hist1D) Mean() float64 {
	var sum float64
	var n int
	for i, v := range h.Data.Values {
		if h.Masked(i) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// Add accumulates o into a copy of h.  Grids must be identical; this is
// the running-sum primitive of the streaming accumulators.
func (h *Hist1D) Add(o *Hist1D) (*Hist1D, error) {
	if !h.Edges.Equal(o.Edges) {
		return nil, fmt.Errorf("hist add: bin grids differ")
	}
	data, err := h.Data.Add(o.Data)
	if err != nil {
		return nil, err
	}
	c := h.Clone()
	c.Data = data
	// masks union
	for name, m := range o.masks {
		cur, ok := c.masks[name]
		if !ok {
			c.masks[name] = append([]bool(nil), m...)
			continue
		}
		for i, b := range m {
			cur[i] = cur[i] || b
		}
	}
	return c, nil
}

// Div divides h by denom bin-for-bin with full variance propagation.
// Bins where the denominator is zero, non-finite or masked become
// first-class undefined bins: NaN data tagged with maskName.  Existing
// masks of both operands propagate to the result.
func (h *Hist1D) Div(denom *Hist1D, maskName string) (*Hist1D, error) {
	if !h.Edges.Equal(denom.Edges) {
		return nil, fmt.Errorf("hist div: bin grids differ")
	}
	n := h.Edges.NBins()
	out := &Hist1D{
		Edges: h.Edges,
		Data:  phys.Zeros(n, h.Data.Unit.Div(denom.Data.Unit), true),
		masks: make(map[string][]bool),
	}
	for name, m := range h.masks {
		out.masks[name] = append([]bool(nil), m...)
	}
	for name, m := range denom.masks {
		cur, ok := out.masks[name]
		if !ok {
			out.masks[name] = append([]bool(nil), m...)
			continue
		}
		for i, b := range m {
			cur[i] = cur[i] || b
		}
	}
	undefined := make([]bool, n)
	for i := 0; i < n; i++ {
		d := denom.Data.Values[i]
		if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) || denom.Masked(i) {
			undefined[i] = true
			out.Data.Values[i] = math.NaN()
			out.Data.Variances[i] = math.NaN()
			continue
		}
		a := h.Data.Values[i]
		out.Data.Values[i] = a / d
		var va, vd float64
		if h.Data.Variances != nil {
			va = h.Data.Variances[i]
		}
		if denom.Data.Variances != nil {
			vd = denom.Data.Variances[i]
		}
		out.Data.Variances[i] = va/(d*d) + a*a*vd/(d*d*d*d)
	}
	out.masks[maskName] = undefined
	return out, nil
}

// DropVariances returns a copy of h carrying values only.
func (h *Hist1D) DropVariances() *Hist1D {
	c := h.Clone()
	c.Data.Variances = nil
	return c
}
