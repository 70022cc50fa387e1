// Public domain.

package graph_test

import (
	"strings"
	"testing"

	"reflred/graph"
	"reflred/phys"
)

func double(args ...[]float64) []float64 {
	out := make([]float64, len(args[0]))
	for i, v := range args[0] {
		out[i] = 2 * v
	}
	return out
}

func TestApplyChain(t *testing.T) {
	g, err := graph.New(
		graph.Producer{Out: "b", Deps: []string{"a"}, Unit: phys.Dimensionless, Fn: double},
		graph.Producer{Out: "c", Deps: []string{"b"}, Unit: phys.Dimensionless, Fn: double},
	)
	if err != nil {
		t.Fatal(err)
	}
	cols := map[string]phys.Array{
		"a": phys.NewArray([]float64{1, 2, 3}, phys.Dimensionless),
	}
	out, err := g.Apply(cols, "c")
	if err != nil {
		t.Fatal(err)
	}
	c := out["c"]
	for i, want := range []float64{4, 8, 12} {
		if c.Values[i] != want {
			t.Fatal("c =", c.Values, "want [4 8 12]")
		}
	}
	// intermediates are not part of the result unless requested
	if _, ok := out["b"]; ok {
		t.Fatal("unrequested intermediate b in output")
	}
}

func TestCycle(t *testing.T) {
	_, err := graph.New(
		graph.Producer{Out: "a", Deps: []string{"b"}, Fn: double},
		graph.Producer{Out: "b", Deps: []string{"a"}, Fn: double},
	)
	if err == nil {
		t.Fatal("cyclic graph accepted")
	}
	if !strings.Contains(err.Error(), "cyclic") {
		t.Fatal("error should name the cycle:", err)
	}
}

func TestDuplicateProducer(t *testing.T) {
	_, err := graph.New(
		graph.Producer{Out: "a", Fn: double},
		graph.Producer{Out: "a", Fn: double},
	)
	if err == nil {
		t.Fatal("duplicate producer accepted")
	}
}

func TestMissingCoordinate(t *testing.T) {
	g, err := graph.New(
		graph.Producer{Out: "b", Deps: []string{"nowhere"}, Fn: double},
	)
	if err != nil {
		t.Fatal(err)
	}
	_, err = g.Apply(map[string]phys.Array{}, "b", "alsomissing")
	if err == nil {
		t.Fatal("unreachable request accepted")
	}
	for _, name := range []string{"nowhere", "alsomissing"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("error %q should name %q", err, name)
		}
	}
}

// a producer declaring DepUnits gets its dependency converted, and a
// dependency of the wrong dimension is a hard error.
func TestDepUnitConversion(t *testing.T) {
	g, err := graph.New(graph.Producer{
		Out:      "metres",
		Deps:     []string{"x"},
		DepUnits: []phys.Unit{phys.Metre},
		Unit:     phys.Metre,
		Fn: func(args ...[]float64) []float64 {
			return append([]float64(nil), args[0]...)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	out, err := g.Apply(map[string]phys.Array{
		"x": phys.NewArray([]float64{2000}, phys.Millimetre),
	}, "metres")
	if err != nil {
		t.Fatal(err)
	}
	if got := out["metres"].Values[0]; got != 2 {
		t.Fatal("2000 mm =", got, "m")
	}
	_, err = g.Apply(map[string]phys.Array{
		"x": phys.NewArray([]float64{1}, phys.Second),
	}, "metres")
	if err == nil {
		t.Fatal("seconds fed to a metre dependency must fail")
	}
}

func TestBroadcast(t *testing.T) {
	g, err := graph.New(graph.Producer{
		Out:  "sum",
		Deps: []string{"x", "k"},
		Unit: phys.Dimensionless,
		Fn: func(args ...[]float64) []float64 {
			x, k := args[0], args[1]
			out := make([]float64, len(x))
			for i := range out {
				out[i] = graph.At(x, i) + graph.At(k, i)
			}
			return out
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	out, err := g.Apply(map[string]phys.Array{
		"x": phys.NewArray([]float64{1, 2, 3}, phys.Dimensionless),
		"k": phys.NewArray([]float64{10}, phys.Dimensionless),
	}, "sum")
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{11, 12, 13} {
		if out["sum"].Values[i] != want {
			t.Fatal("sum =", out["sum"].Values)
		}
	}
}
