// Public domain.

package curves

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"reflred/hist"
	"reflred/phys"
)

// LinLogSpace builds a bin-edge grid from piecewise linear and
// logarithmic segments.  breaks lists the segment boundaries, scales
// the spacing of each segment ("linear" or "log") and nums the number
// of edges each segment contributes; scales and nums must each be one
// shorter than breaks.
//
//	LinLogSpace([]float64{0.008, 0.08}, []string{"linear"}, []int{50}, u)
//
// is a plain 50-edge linear grid; mixing segments refines, say, the
// low-Q region linearly and the tail logarithmically.
func LinLogSpace(breaks []float64, scales []string, nums []int, u phys.Unit) (hist.Edges, error) {
	if len(scales) != len(breaks)-1 || len(nums) != len(breaks)-1 {
		return hist.Edges{}, fmt.Errorf(
			"linlogspace: sizes do not match: %d breaks need %d scales and counts, got %d and %d",
			len(breaks), len(breaks)-1, len(scales), len(nums))
	}
	var vals []float64
	for i := range scales {
		// segments after the first share their leading edge with the
		// previous segment's trailing edge
		skip := 0
		if i > 0 {
			skip = 1
		}
		seg := make([]float64, nums[i]+skip)
		switch scales[i] {
		case "linear":
			floats.Span(seg, breaks[i], breaks[i+1])
		case "log":
			floats.LogSpan(seg, breaks[i], breaks[i+1])
		default:
			return hist.Edges{}, fmt.Errorf("linlogspace: unknown scale %q", scales[i])
		}
		vals = append(vals, seg[skip:]...)
	}
	return hist.NewEdges(phys.NewArray(vals, u))
}
