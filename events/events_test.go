// Public domain.

package events_test

import (
	"errors"
	"testing"

	"reflred/events"
	"reflred/phys"
)

func TestNewTableWeights(t *testing.T) {
	tbl := events.NewTable(3)
	w := tbl.Weights()
	if w.Unit != phys.Counts {
		t.Fatal("weight unit =", w.Unit)
	}
	for i := 0; i < 3; i++ {
		if w.Values[i] != 1 || w.Variances[i] != 1 {
			t.Fatal("weight", i, "=", w.Values[i], w.Variances[i], "want 1, 1")
		}
	}
}

func TestSetColumn(t *testing.T) {
	tbl := events.NewTable(2)
	tbl2, err := tbl.SetColumn("x", phys.NewArray([]float64{1, 2}, phys.Metre))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tbl.Column("x"); ok {
		t.Fatal("SetColumn mutated the receiver")
	}
	x, ok := tbl2.Column("x")
	if !ok || x.Values[1] != 2 {
		t.Fatal("column not set")
	}

	var de *phys.DimensionError
	if _, err := tbl.SetColumn("x", phys.NewArray([]float64{1}, phys.Metre)); !errors.As(err, &de) {
		t.Fatal("want DimensionError, got", err)
	}
}

func TestMasks(t *testing.T) {
	tbl := events.NewTable(3)
	tbl, err := tbl.SetMask("a", []bool{true, false, false})
	if err != nil {
		t.Fatal(err)
	}
	tbl, err = tbl.SetMask("b", []bool{false, true, false})
	if err != nil {
		t.Fatal(err)
	}
	want := []bool{true, true, false}
	for i, m := range want {
		if tbl.Masked(i) != m {
			t.Fatal("Masked(", i, ") =", tbl.Masked(i), "want", m)
		}
	}
	if len(tbl.MaskNames()) != 2 {
		t.Fatal("mask names =", tbl.MaskNames())
	}
	if _, err := tbl.SetMask("c", []bool{true}); err == nil {
		t.Fatal("short mask accepted")
	}
}

func TestScaleWeights(t *testing.T) {
	tbl := events.NewTable(2)
	scaled, err := tbl.ScaleWeights([]float64{2, 3})
	if err != nil {
		t.Fatal(err)
	}
	w := scaled.Weights()
	if w.Values[0] != 2 || w.Values[1] != 3 {
		t.Fatal("values =", w.Values)
	}
	// the scale factor carries no variance of its own
	if w.Variances[0] != 4 || w.Variances[1] != 9 {
		t.Fatal("variances =", w.Variances)
	}
	if tbl.Weights().Values[0] != 1 {
		t.Fatal("ScaleWeights mutated the receiver")
	}
}

func TestConcat(t *testing.T) {
	mk := func(vals []float64, mask []bool) *events.Table {
		tbl := events.NewTable(len(vals))
		tbl, err := tbl.SetColumn("x", phys.NewArray(vals, phys.Metre))
		if err != nil {
			t.Fatal(err)
		}
		if tbl, err = tbl.SetMask("m", mask); err != nil {
			t.Fatal(err)
		}
		return tbl
	}
	a := mk([]float64{1, 2}, []bool{false, true})
	b := mk([]float64{3}, []bool{false})

	c, err := events.Concat(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 3 {
		t.Fatal("len =", c.Len())
	}
	x, _ := c.Column("x")
	for i, want := range []float64{1, 2, 3} {
		if x.Values[i] != want {
			t.Fatal("x =", x.Values)
		}
	}
	if c.Masked(0) || !c.Masked(1) || c.Masked(2) {
		t.Fatal("mask not concatenated")
	}

	// a table missing a column cannot be concatenated
	if _, err := events.Concat(a, events.NewTable(1)); err == nil {
		t.Fatal("missing column accepted")
	}
}

func TestConcatConvertsUnits(t *testing.T) {
	a := events.NewTable(1)
	a, err := a.SetColumn("x", phys.NewArray([]float64{1}, phys.Metre))
	if err != nil {
		t.Fatal(err)
	}
	b := events.NewTable(1)
	if b, err = b.SetColumn("x", phys.NewArray([]float64{500}, phys.Millimetre)); err != nil {
		t.Fatal(err)
	}
	c, err := events.Concat(a, b)
	if err != nil {
		t.Fatal(err)
	}
	x, _ := c.Column("x")
	if x.Unit != phys.Metre || x.Values[1] != 0.5 {
		t.Fatal("concat did not convert:", x.Unit, x.Values)
	}
}
