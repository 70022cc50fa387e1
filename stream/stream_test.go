// Public domain.

package stream_test

import (
	"math"
	"testing"

	"github.com/soniakeys/unit"

	"reflred/amor"
	"reflred/events"
	"reflred/hist"
	"reflred/phys"
	"reflred/reduce"
	"reflred/stream"
)

func countHist(t *testing.T, values ...float64) *hist.Hist1D {
	t.Helper()
	e, err := hist.NewEdges(phys.NewArray([]float64{0, 1, 2, 3}, phys.PerAngstrom))
	if err != nil {
		t.Fatal(err)
	}
	h := hist.NewHist1D(e, phys.Counts)
	copy(h.Data.Values, values)
	copy(h.Data.Variances, values)
	return h
}

func TestEternal(t *testing.T) {
	var e stream.Eternal
	if e.Value() != nil {
		t.Fatal("empty accumulator has a value")
	}
	for _, h := range []*hist.Hist1D{
		countHist(t, 1, 0, 2),
		countHist(t, 3, 1, 0),
		countHist(t, 0, 2, 4),
	} {
		if err := e.Push(h); err != nil {
			t.Fatal(err)
		}
	}
	want := []float64{4, 3, 6}
	got := e.Value().Data
	for i := range want {
		if got.Values[i] != want[i] || got.Variances[i] != want[i] {
			t.Fatal("total =", got.Values, got.Variances, "want", want)
		}
	}

	other, err := hist.NewEdges(phys.NewArray([]float64{0, 2, 4, 6}, phys.PerAngstrom))
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Push(hist.NewHist1D(other, phys.Counts)); err == nil {
		t.Fatal("mismatched grid accepted")
	}

	e.Clear()
	if e.Value() != nil {
		t.Fatal("Clear left a value")
	}
}

func TestLatestKeepsCopy(t *testing.T) {
	we, err := hist.NewEdges(phys.NewArray([]float64{4, 6, 8}, phys.Angstrom))
	if err != nil {
		t.Fatal(err)
	}
	mk := func(id string, v float64) *reduce.ReducedReference {
		m := hist.NewMap2D(1, we, phys.Counts)
		m.Data.Values[0] = v
		return &reduce.ReducedReference{RunID: id, Map: m}
	}
	var l stream.Latest
	r1 := mk("r1", 1)
	l.Push(r1)
	r2 := mk("r2", 2)
	l.Push(r2)

	held := l.Value()
	if held.RunID != "r2" {
		t.Fatal("held =", held.RunID, "want r2")
	}
	// the held reference is isolated from later mutation of the pushed one
	r2.Map.Data.Values[0] = 99
	if held.Map.Data.Values[0] != 2 {
		t.Fatal("held reference shares storage with pushed value")
	}

	l.Clear()
	if l.Value() != nil {
		t.Fatal("Clear left a reference")
	}
}

func testParams() events.Params {
	p := amor.DefaultParams()
	p.SampleRotation = unit.AngleFromDeg(0.4)
	p.DetectorRotation = unit.AngleFromDeg(0.8)
	return p
}

// makeEvents builds a detector event table with the given z-index rows
// and wavelengths, times inverted through the chopper frame so the
// reduction recovers the wavelengths exactly.
func makeEvents(t *testing.T, p events.Params, zs []int, lams []float64) *events.Table {
	t.Helper()
	freq, err := p.ChopperFrequency.Convert(phys.Hertz)
	if err != nil {
		t.Fatal(err)
	}
	l1, _ := p.ChopperDistance.Convert(phys.Metre)
	l2, _ := p.DetectorDistance.Convert(phys.Metre)
	tau := 1 / (2 * freq.Value)
	tofOffset := tau * p.ChopperPhase.Deg() / 180
	flight := l1.Value + l2.Value

	n := len(zs)
	pixel := make([]float64, n)
	tof := make([]float64, n)
	for i, z := range zs {
		blade, wire := z/amor.NWires, z%amor.NWires
		pixel[i] = float64(blade*amor.NWires*amor.NStripes + wire*amor.NStripes + 20)
		tt := lams[i] * 1e-10 * flight / phys.HOverMn
		tt += amor.RowDivergence(z) / math.Pi * tau
		tof[i] = tt - tofOffset
	}
	tbl := events.NewTable(n)
	if tbl, err = tbl.SetColumn("pixel_id", phys.NewArray(pixel, phys.Dimensionless)); err != nil {
		t.Fatal(err)
	}
	if tbl, err = tbl.SetColumn("event_time_offset", phys.NewArray(tof, phys.Second)); err != nil {
		t.Fatal(err)
	}
	return tbl
}

func TestProcessorMatchesSingleReduction(t *testing.T) {
	p := testParams()
	we, err := amor.WavelengthGrid(amor.DefaultLimits(), 40)
	if err != nil {
		t.Fatal(err)
	}
	r := reduce.New(we)
	qe, err := amor.QGrid(p, amor.DefaultLimits(), 30)
	if err != nil {
		t.Fatal(err)
	}

	refTbl := makeEvents(t, p,
		[]int{100, 120, 150, 200, 230, 250, 280, 150, 200, 250},
		[]float64{4, 5, 6, 7, 8, 9, 10, 5.5, 6.5, 7.5})
	refRun := events.Run{ID: "ref", Role: events.Reference, Params: p, Events: refTbl}

	batch1 := makeEvents(t, p,
		[]int{110, 140, 180, 220, 260},
		[]float64{4.2, 5.1, 6.3, 7.7, 8.9})
	batch2 := makeEvents(t, p,
		[]int{130, 170, 210, 240, 270},
		[]float64{4.8, 5.9, 7.1, 9.4, 10.8})

	proc := stream.NewProcessor(r, qe)
	if _, err := proc.Finalize(); err == nil {
		t.Fatal("Finalize on empty processor succeeded")
	}
	sample := func(id string, tbl *events.Table) events.Run {
		return events.Run{ID: id, Role: events.Sample, Params: p, Events: tbl}
	}
	if err := proc.PushSample(sample("s1", batch1)); err != nil {
		t.Fatal(err)
	}
	if _, err := proc.Finalize(); err == nil {
		t.Fatal("Finalize without reference succeeded")
	}
	if err := proc.PushReference(refRun); err != nil {
		t.Fatal(err)
	}
	if err := proc.PushSample(sample("s2", batch2)); err != nil {
		t.Fatal(err)
	}
	got, err := proc.Finalize()
	if err != nil {
		t.Fatal(err)
	}

	// the same reduction in one shot over all events
	all, err := events.Concat(batch1, batch2)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := r.ReduceReference(refRun)
	if err != nil {
		t.Fatal(err)
	}
	want, err := r.SampleOverQ(sample("all", all), mustEval(t, r, ref, p), qe)
	if err != nil {
		t.Fatal(err)
	}

	if got.R.Len() != want.R.Len() {
		t.Fatal("lengths differ:", got.R.Len(), want.R.Len())
	}
	for i := range want.R.Values {
		a, b := got.R.Values[i], want.R.Values[i]
		if math.IsNaN(a) != math.IsNaN(b) {
			t.Fatal("bin", i, "=", a, "want", b)
		}
		if !math.IsNaN(a) && math.Abs(a-b) > 1e-12 {
			t.Fatal("bin", i, "=", a, "want", b)
		}
	}

	// state stays intact, so finalizing again gives the same curve
	again, err := proc.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	for i := range got.R.Values {
		a, b := again.R.Values[i], got.R.Values[i]
		if a != b && !(math.IsNaN(a) && math.IsNaN(b)) {
			t.Fatal("repeated Finalize differs at bin", i)
		}
	}

	proc.Clear()
	if _, err := proc.Finalize(); err == nil {
		t.Fatal("Finalize after Clear succeeded")
	}
}

func mustEval(t *testing.T, r *reduce.Reducer, ref *reduce.ReducedReference, p events.Params) *reduce.Reference {
	t.Helper()
	ev, err := r.EvaluateReference(ref, events.Run{Params: p, Role: events.Sample})
	if err != nil {
		t.Fatal(err)
	}
	return ev
}
