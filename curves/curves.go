// Public domain.

// Package curves aligns and merges reflectivity curves measured at
// different incidence angles of the same sample: a maximum-likelihood
// fit of per-curve scale factors over the overlapping Q regions,
// followed by inverse-variance-weighted combination onto a common grid.
package curves

import (
	"fmt"
	"math"
	"sort"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/floats"

	"reflred/hist"
	"reflred/phys"
	"reflred/reduce"
)

// ScaleToOverlap finds per-curve factors that bring the curves into
// agreement in their overlapping Q regions.  The curve with the lowest
// Q range is the fixed reference with factor 1; the remaining factors
// minimize the inverse-variance-weighted squared deviation from the
// per-point weighted mean across all scaled curves.  When no two curves
// overlap every factor is 1.
//
// Scaled curves and factors are returned in the input order.
func ScaleToOverlap(cs []reduce.ReflectivityOverQ) ([]reduce.ReflectivityOverQ, []float64, error) {
	if err := checkUnits(cs); err != nil {
		return nil, nil, err
	}
	order := qMinOrder(cs)
	ordered := make([]reduce.ReflectivityOverQ, len(cs))
	for i, j := range order {
		ordered[i] = cs[j]
	}
	f, err := fitFactors(ordered)
	if err != nil {
		return nil, nil, err
	}
	factors := make([]float64, len(cs))
	for i, j := range order {
		factors[j] = f[i]
	}
	scaled := make([]reduce.ReflectivityOverQ, len(cs))
	for i, c := range cs {
		scaled[i] = c.Scale(factors[i])
	}
	return scaled, factors, nil
}

// ScaleToCriticalEdge scales all curves, anchoring the absolute scale on
// a Q interval known a priori to have reflectivity 1: a synthetic
// all-ones curve spanning [lo, hi) is prepended as the fixed reference
// and its factor discarded.  The synthetic grid density follows the
// lowest-Q input curve's edge density inside the interval.
func ScaleToCriticalEdge(cs []reduce.ReflectivityOverQ, lo, hi phys.Scalar) ([]reduce.ReflectivityOverQ, []float64, error) {
	if err := checkUnits(cs); err != nil {
		return nil, nil, err
	}
	order := qMinOrder(cs)
	first := cs[order[0]]
	l, err := lo.Convert(first.Q.Unit())
	if err != nil {
		return nil, nil, fmt.Errorf("critical edge lower bound: %w", err)
	}
	h, err := hi.Convert(first.Q.Unit())
	if err != nil {
		return nil, nil, fmt.Errorf("critical edge upper bound: %w", err)
	}
	var n int
	for _, q := range first.Q.Values() {
		if q >= l.Value && q < h.Value {
			n++
		}
	}
	if n == 0 {
		return nil, nil, fmt.Errorf("critical edge interval [%v, %v) contains no grid points", lo, hi)
	}
	vals := make([]float64, n+1)
	floats.Span(vals, l.Value, h.Value)
	qe, err := hist.NewEdges(phys.NewArray(vals, first.Q.Unit()))
	if err != nil {
		return nil, nil, err
	}
	one := phys.Ones(n, cs[0].R.Unit, true)
	for i := range one.Variances {
		one.Variances[i] = 1
	}
	edge := reduce.ReflectivityOverQ{Q: qe, R: one}

	// the synthetic edge is the pinned reference, measured curves
	// follow in Q order and all get free factors
	ordered := make([]reduce.ReflectivityOverQ, 0, len(cs)+1)
	ordered = append(ordered, edge)
	for _, j := range order {
		ordered = append(ordered, cs[j])
	}
	f, err := fitFactors(ordered)
	if err != nil {
		return nil, nil, err
	}
	factors := make([]float64, len(cs))
	for i, j := range order {
		factors[j] = f[i+1]
	}
	scaled := make([]reduce.ReflectivityOverQ, len(cs))
	for i, c := range cs {
		scaled[i] = c.Scale(factors[i])
	}
	return scaled, factors, nil
}

// Combine merges already-scaled curves onto qEdges: each curve is looked
// up (nearest bin, no smoothing) at the target bin midpoints and the
// results averaged with inverse-variance weights, combined variance
// 1/sum(1/var).  A point no curve covers is NaN, not a fabricated zero.
// The Q resolution, where the curves carry one, is averaged with the
// same weights.
func Combine(cs []reduce.ReflectivityOverQ, qEdges hist.Edges) (reduce.ReflectivityOverQ, error) {
	if err := checkUnits(cs); err != nil {
		return reduce.ReflectivityOverQ{}, err
	}
	if u := cs[0].Q.Unit(); u != qEdges.Unit() {
		return reduce.ReflectivityOverQ{}, &phys.UnitError{Op: "combine curves Q grid", A: u, B: qEdges.Unit()}
	}
	n := qEdges.NBins()
	out := reduce.ReflectivityOverQ{
		Q:     qEdges,
		R:     phys.Zeros(n, cs[0].R.Unit, true),
		Masks: make(map[string][]bool),
	}
	haveRes := false
	for _, c := range cs {
		if c.QResolution.Len() > 0 {
			haveRes = true
		}
	}
	if haveRes {
		out.QResolution = phys.Zeros(n, qEdges.Unit(), false)
	}
	for k := 0; k < n; k++ {
		x := qEdges.Mid(k)
		var sumRW, sumW, sumResW float64
		for _, c := range cs {
			r, v, s := lookup(c, x)
			if math.IsNaN(r) || math.IsNaN(v) || v == 0 {
				continue
			}
			w := 1 / v
			sumRW += r * w
			sumW += w
			if !math.IsNaN(s) {
				sumResW += s * w
			}
		}
		if sumW == 0 {
			out.R.Values[k] = math.NaN()
			out.R.Variances[k] = math.NaN()
			if haveRes {
				out.QResolution.Values[k] = math.NaN()
			}
			continue
		}
		out.R.Values[k] = sumRW / sumW
		out.R.Variances[k] = 1 / sumW
		if haveRes {
			out.QResolution.Values[k] = sumResW / sumW
		}
	}
	return out, nil
}

// fitFactors runs the weighted least-squares fit on curves already
// ordered by minimum Q.  Factor 0 is pinned to 1.
func fitFactors(cs []reduce.ReflectivityOverQ) ([]float64, error) {
	nc := len(cs)
	ones := make([]float64, nc)
	for i := range ones {
		ones[i] = 1
	}
	if nc < 2 {
		return ones, nil
	}

	points := overlapGridPoints(cs)
	np := len(points)
	if np == 0 {
		// no overlap, nothing to fit
		return ones, nil
	}

	// curve values and variances sampled on the overlap grid
	r := make([][]float64, nc)
	v := make([][]float64, nc)
	for c := range cs {
		r[c] = make([]float64, np)
		v[c] = make([]float64, np)
		for k, x := range points {
			r[c][k], v[c][k], _ = lookup(cs[c], x)
		}
	}

	residuals := func(dst, p []float64) {
		s := make([]float64, nc)
		s[0] = 1
		copy(s[1:], p)
		for k := 0; k < np; k++ {
			var sumRW, sumW float64
			for c := 0; c < nc; c++ {
				if w, ok := invVar(s[c], r[c][k], v[c][k]); ok {
					sumRW += s[c] * r[c][k] * w
					sumW += w
				}
			}
			for c := 0; c < nc; c++ {
				i := c*np + k
				dst[i] = 0
				if sumW == 0 {
					continue
				}
				if w, ok := invVar(s[c], r[c][k], v[c][k]); ok {
					dst[i] = (s[c]*r[c][k] - sumRW/sumW) * math.Sqrt(w)
				}
			}
		}
	}

	jac := lm.NumJac{Func: residuals}
	problem := lm.LMProblem{
		Dim:        nc - 1,
		Size:       nc * np,
		Func:       residuals,
		Jac:        jac.Jac,
		InitParams: ones[1:],
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}
	result, err := lm.LM(problem, &lm.Settings{Iterations: 100, ObjectiveTol: 1e-16})
	if err != nil {
		return nil, fmt.Errorf("scale curves: %w", err)
	}
	factors := make([]float64, nc)
	factors[0] = 1
	copy(factors[1:], result.X)
	return factors, nil
}

// invVar is the inverse variance of curve value r scaled by s, or false
// when the point carries no usable information.
func invVar(s, r, v float64) (float64, bool) {
	if math.IsNaN(r) || math.IsNaN(v) || v == 0 {
		return 0, false
	}
	return 1 / (s * s * v), true
}

// lookup samples curve c at Q value x: the value, variance and Q
// resolution of the bin containing x, or NaN when x is outside the
// curve's range or the bin is masked.
func lookup(c reduce.ReflectivityOverQ, x float64) (r, v, res float64) {
	i := c.Q.FindBin(x)
	if i < 0 || c.Masked(i) {
		return math.NaN(), math.NaN(), math.NaN()
	}
	r = c.R.Values[i]
	v = math.NaN()
	if c.R.Variances != nil {
		v = c.R.Variances[i]
	}
	res = math.NaN()
	if c.QResolution.Len() > 0 {
		res = c.QResolution.Values[i]
	}
	return r, v, res
}

// overlapGridPoints builds the sampling points for the overlap fit: for
// every Q interval where at least two curves overlap, the densest
// curve grid inside that interval, concatenated, sampled at midpoints.
func overlapGridPoints(cs []reduce.ReflectivityOverQ) []float64 {
	intervals := overlapIntervals(cs)
	var grid []float64
	for _, iv := range intervals {
		var densest []float64
		for _, c := range cs {
			q := c.Q.Values()
			lo := searchGreater(q, iv[0]) - 1
			if lo < 0 {
				lo = 0
			}
			hi := searchGreater(q, iv[1]) + 1
			if hi > len(q) {
				hi = len(q)
			}
			if hi-lo > len(densest) {
				densest = q[lo:hi]
			}
		}
		grid = append(grid, densest...)
	}
	points := make([]float64, 0, len(grid))
	for k := 0; k+1 < len(grid); k++ {
		points = append(points, 0.5*(grid[k]+grid[k+1]))
	}
	return points
}

// overlapIntervals sweeps the curves' Q ranges and returns the intervals
// covered by two or more curves.
func overlapIntervals(cs []reduce.ReflectivityOverQ) [][2]float64 {
	type edge struct {
		x     float64
		start bool
	}
	es := make([]edge, 0, 2*len(cs))
	for _, c := range cs {
		es = append(es, edge{c.Q.Min(), true}, edge{c.Q.Max(), false})
	}
	sort.SliceStable(es, func(i, j int) bool { return es[i].x < es[j].x })

	var out [][2]float64
	var start float64
	depth := 0
	for _, e := range es {
		if depth == 1 && e.start {
			start = e.x
		}
		if depth == 2 && !e.start {
			out = append(out, [2]float64{start, e.x})
		}
		if e.start {
			depth++
		} else {
			depth--
		}
	}
	return out
}

// searchGreater is the index of the first element of a greater than v,
// or len(a).
func searchGreater(a []float64, v float64) int {
	return sort.Search(len(a), func(i int) bool { return a[i] > v })
}

func qMinOrder(cs []reduce.ReflectivityOverQ) []int {
	order := make([]int, len(cs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return cs[order[i]].Q.Min() < cs[order[j]].Q.Min()
	})
	return order
}

// checkUnits requires identical reflectivity and Q units across curves.
func checkUnits(cs []reduce.ReflectivityOverQ) error {
	if len(cs) == 0 {
		return fmt.Errorf("no curves given")
	}
	for _, c := range cs[1:] {
		if c.R.Unit != cs[0].R.Unit {
			return &phys.UnitError{Op: "curve reflectivity", A: cs[0].R.Unit, B: c.R.Unit}
		}
		if c.Q.Unit() != cs[0].Q.Unit() {
			return &phys.UnitError{Op: "curve Q", A: cs[0].Q.Unit(), B: c.Q.Unit()}
		}
	}
	return nil
}
