// Public domain.

package curves_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"reflred/curves"
	"reflred/hist"
	"reflred/phys"
	"reflred/reduce"
)

// span is a linear grid with the final endpoint set exactly.
func span(lo, hi float64, n int) []float64 {
	vals := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range vals {
		vals[i] = lo + float64(i)*step
	}
	vals[n-1] = hi
	return vals
}

// stepCurve is a 25-bin reflectivity curve over [qmin, qmax]: the first
// 10 bins at scale, the remaining 15 at scale/2, all variances 0.1.
func stepCurve(t *testing.T, scale, qmin, qmax float64) reduce.ReflectivityOverQ {
	t.Helper()
	e, err := hist.NewEdges(phys.NewArray(span(qmin, qmax, 26), phys.PerAngstrom))
	if err != nil {
		t.Fatal(err)
	}
	r := phys.Zeros(25, phys.Counts, true)
	for i := range r.Values {
		if i < 10 {
			r.Values[i] = scale
		} else {
			r.Values[i] = 0.5 * scale
		}
		r.Variances[i] = 0.1
	}
	return reduce.ReflectivityOverQ{Q: e, R: r}
}

func closeTo(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestScaleToOverlap(t *testing.T) {
	cs := []reduce.ReflectivityOverQ{
		stepCurve(t, 1.0, 0, 0.3),
		stepCurve(t, 0.8, 0.2, 0.7),
		stepCurve(t, 0.1, 0.6, 1.0),
	}
	scaled, factors, err := curves.ScaleToOverlap(cs)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1.0, 0.5 / 0.8, 0.25 / 0.1}
	for i := range want {
		if !closeTo(factors[i], want[i]) {
			t.Fatal("factors =", factors, "want", want)
		}
	}
	// the scaled tail of the second curve lines up with the first
	if !closeTo(scaled[1].R.Values[0], 0.5) {
		t.Fatal("scaled[1] head =", scaled[1].R.Values[0], "want 0.5")
	}
}

func TestScaleToOverlapInputOrder(t *testing.T) {
	// factors follow the input order, not the internal Q ordering
	cs := []reduce.ReflectivityOverQ{
		stepCurve(t, 0.1, 0.6, 1.0),
		stepCurve(t, 1.0, 0, 0.3),
		stepCurve(t, 0.8, 0.2, 0.7),
	}
	_, factors, err := curves.ScaleToOverlap(cs)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{2.5, 1.0, 0.625}
	for i := range want {
		if !closeTo(factors[i], want[i]) {
			t.Fatal("factors =", factors, "want", want)
		}
	}
}

func TestScaleToOverlapDisjoint(t *testing.T) {
	cs := []reduce.ReflectivityOverQ{
		stepCurve(t, 1.0, 0, 1),
		stepCurve(t, 0.3, 2, 3),
	}
	_, factors, err := curves.ScaleToOverlap(cs)
	if err != nil {
		t.Fatal(err)
	}
	for i, f := range factors {
		if f != 1 {
			t.Fatal("factor", i, "=", f, "want 1 without overlap")
		}
	}
}

func TestScaleToCriticalEdge(t *testing.T) {
	cs := []reduce.ReflectivityOverQ{
		stepCurve(t, 2, 0, 0.3),
		stepCurve(t, 0.8, 0.2, 0.7),
		stepCurve(t, 0.1, 0.6, 1.0),
	}
	_, factors, err := curves.ScaleToCriticalEdge(cs,
		phys.S(0.01, phys.PerAngstrom), phys.S(0.05, phys.PerAngstrom))
	if err != nil {
		t.Fatal(err)
	}
	// the first curve is pulled down to reflectivity 1 at the edge
	want := []float64{0.5, 0.5 / 0.8, 0.25 / 0.1}
	for i := range want {
		if !closeTo(factors[i], want[i]) {
			t.Fatal("factors =", factors, "want", want)
		}
	}
}

func TestScaleToCriticalEdgeSingleCurve(t *testing.T) {
	cs := []reduce.ReflectivityOverQ{stepCurve(t, 2.5, 0.4, 0.8)}
	_, factors, err := curves.ScaleToCriticalEdge(cs,
		phys.S(0.0, phys.PerAngstrom), phys.S(0.5, phys.PerAngstrom))
	if err != nil {
		t.Fatal(err)
	}
	if !closeTo(factors[0], 0.4) {
		t.Fatal("factor =", factors[0], "want 0.4")
	}
}

func TestScaleToCriticalEdgeEmptyInterval(t *testing.T) {
	cs := []reduce.ReflectivityOverQ{stepCurve(t, 1.0, 0.4, 0.8)}
	_, _, err := curves.ScaleToCriticalEdge(cs,
		phys.S(2.0, phys.PerAngstrom), phys.S(3.0, phys.PerAngstrom))
	if err == nil {
		t.Fatal("interval outside every curve accepted")
	}
}

func TestCombine(t *testing.T) {
	cs := []reduce.ReflectivityOverQ{
		stepCurve(t, 1.0, 0, 0.3),
		stepCurve(t, 1.0, 0.2, 0.7).Scale(0.5),
		stepCurve(t, 1.0, 0.6, 1.0).Scale(0.25),
	}
	grid, err := hist.NewEdges(phys.NewArray(span(0, 1, 26), phys.PerAngstrom))
	if err != nil {
		t.Fatal(err)
	}
	got, err := curves.Combine(cs, grid)
	if err != nil {
		t.Fatal(err)
	}
	wantValues := []float64{
		1, 1, 1,
		0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5,
		0.25, 0.25, 0.25, 0.25, 0.25, 0.25, 0.25, 0.25, 0.25,
		0.125, 0.125, 0.125, 0.125, 0.125, 0.125,
	}
	wantVariances := []float64{
		0.1, 0.1, 0.1, 0.1, 0.1,
		0.02, 0.02,
		0.025, 0.025, 0.025, 0.025, 0.025, 0.025, 0.025, 0.025,
		0.005, 0.005,
		0.00625, 0.00625, 0.00625, 0.00625, 0.00625, 0.00625, 0.00625, 0.00625,
	}
	for i := range wantValues {
		if !closeTo(got.R.Values[i], wantValues[i]) {
			t.Fatal("bin", i, "value =", got.R.Values[i], "want", wantValues[i])
		}
		if !closeTo(got.R.Variances[i], wantVariances[i]) {
			t.Fatal("bin", i, "variance =", got.R.Variances[i], "want", wantVariances[i])
		}
	}
}

func TestCombineUncoveredBins(t *testing.T) {
	cs := []reduce.ReflectivityOverQ{stepCurve(t, 1.0, 0, 0.3)}
	grid, err := hist.NewEdges(phys.NewArray(span(0, 0.6, 7), phys.PerAngstrom))
	if err != nil {
		t.Fatal(err)
	}
	got, err := curves.Combine(cs, grid)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < grid.NBins(); i++ {
		covered := grid.Mid(i) <= 0.3
		if covered == math.IsNaN(got.R.Values[i]) {
			t.Fatal("bin", i, "at", grid.Mid(i), "=", got.R.Values[i])
		}
	}
}

func TestCombineQResolution(t *testing.T) {
	a := stepCurve(t, 1.0, 0, 0.3)
	a.QResolution = phys.Zeros(25, phys.PerAngstrom, false)
	for i := range a.QResolution.Values {
		a.QResolution.Values[i] = 0.01
	}
	grid, err := hist.NewEdges(phys.NewArray(span(0, 0.3, 6), phys.PerAngstrom))
	if err != nil {
		t.Fatal(err)
	}
	got, err := curves.Combine([]reduce.ReflectivityOverQ{a}, grid)
	if err != nil {
		t.Fatal(err)
	}
	if got.QResolution.Len() != grid.NBins() {
		t.Fatal("no Q resolution propagated")
	}
	for i, s := range got.QResolution.Values {
		if !closeTo(s, 0.01) {
			t.Fatal("sigmaQ bin", i, "=", s)
		}
	}
}

func TestUnitMismatch(t *testing.T) {
	a := stepCurve(t, 1.0, 0, 0.3)
	b := stepCurve(t, 1.0, 0.2, 0.7)
	e, err := hist.NewEdges(phys.NewArray(span(0.2, 0.7, 26), phys.PerMetre))
	if err != nil {
		t.Fatal(err)
	}
	b.Q = e
	var ue *phys.UnitError
	if _, _, err := curves.ScaleToOverlap([]reduce.ReflectivityOverQ{a, b}); !errors.As(err, &ue) {
		t.Fatal("want UnitError, got", err)
	}
	if _, _, err := curves.ScaleToOverlap(nil); err == nil {
		t.Fatal("empty input accepted")
	}
}

func TestLinLogSpaceLinear(t *testing.T) {
	e, err := curves.LinLogSpace([]float64{0.008, 0.08},
		[]string{"linear"}, []int{50}, phys.PerAngstrom)
	if err != nil {
		t.Fatal(err)
	}
	want := span(0.008, 0.08, 50)
	got := e.Values()
	if len(got) != 50 {
		t.Fatal("len =", len(got))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatal("edge", i, "=", got[i], "want", want[i])
		}
	}
}

func TestLinLogSpaceLog(t *testing.T) {
	e, err := curves.LinLogSpace([]float64{0.008, 0.08},
		[]string{"log"}, []int{50}, phys.PerAngstrom)
	if err != nil {
		t.Fatal(err)
	}
	got := e.Values()
	r := got[1] / got[0]
	for i := 2; i < len(got); i++ {
		if math.Abs(got[i]/got[i-1]-r) > 1e-9 {
			t.Fatal("ratio breaks at edge", i)
		}
	}
}

func TestLinLogSpaceMixed(t *testing.T) {
	e, err := curves.LinLogSpace([]float64{0.008, 0.03, 0.08},
		[]string{"linear", "log"}, []int{16, 20}, phys.PerAngstrom)
	if err != nil {
		t.Fatal(err)
	}
	got := e.Values()
	if len(got) != 36 {
		t.Fatal("len =", len(got), "want 36")
	}
	lin := span(0.008, 0.03, 16)
	for i := range lin {
		if math.Abs(got[i]-lin[i]) > 1e-12 {
			t.Fatal("linear edge", i, "=", got[i], "want", lin[i])
		}
	}
	if math.Abs(got[35]-0.08) > 1e-12 {
		t.Fatal("last edge =", got[35])
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatal("edges not increasing at", i)
		}
	}
}

func TestLinLogSpaceErrors(t *testing.T) {
	_, err := curves.LinLogSpace([]float64{0.008, 0.03, 0.08},
		[]string{"linear"}, []int{16}, phys.PerAngstrom)
	if err == nil || !strings.Contains(err.Error(), "sizes do not match") {
		t.Fatal("want size mismatch error, got", err)
	}
	_, err = curves.LinLogSpace([]float64{0.008, 0.08},
		[]string{"cubic"}, []int{16}, phys.PerAngstrom)
	if err == nil || !strings.Contains(err.Error(), "unknown scale") {
		t.Fatal("want unknown scale error, got", err)
	}
}
