// Public domain.

package reduce

import (
	"fmt"

	"reflred/phys"
)

// defaultCountNormTolerance bounds the share of the total any single bin
// may carry when dividing by total counts.  Dividing by the total treats
// the denominator as exact; that is only sound when each bin is a small
// part of it, otherwise the correlation between numerator and
// denominator is not negligible.
const defaultCountNormTolerance = 0.1

// NormalizeByCounts divides a by its own unmasked total, dropping the
// total's variance.  masked may be nil.  It fails when any bin carries
// more than tol of the total (tol <= 0 selects the default 0.1), since
// the dropped numerator-denominator correlation would then bias the
// variances.
func NormalizeByCounts(a phys.Array, masked []bool, tol float64) (phys.Array, error) {
	if tol <= 0 {
		tol = defaultCountNormTolerance
	}
	var total, maxBin float64
	for i, v := range a.Values {
		if masked != nil && masked[i] {
			continue
		}
		total += v
		if v > maxBin {
			maxBin = v
		}
	}
	if total == 0 {
		return phys.Array{}, fmt.Errorf("normalize by counts: total is zero")
	}
	if maxBin > tol*total {
		return phys.Array{}, fmt.Errorf(
			"normalize by counts: largest bin %g is %.2f of total %g, above tolerance %.2f",
			maxBin, maxBin/total, total, tol)
	}
	return a.DivScalar(phys.S(total, a.Unit)), nil
}

// NormalizeByCounts applies the reducer's configured tolerance.
func (r *Reducer) NormalizeByCounts(a phys.Array, masked []bool) (phys.Array, error) {
	return NormalizeByCounts(a, masked, r.CountNormTolerance)
}
