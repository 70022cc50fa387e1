// Public domain.

// Package graph implements the coordinate transform graph used to derive
// physical event coordinates (wavelength, theta, Q) from raw detector
// coordinates.
//
// A graph is a set of named producers.  Each producer declares the
// coordinate it computes and the coordinates it consumes.  Requesting a
// set of output coordinates resolves an evaluation order once, by
// topological substitution, and caches it; the evaluation itself is a
// plain pass over the cached order.  Cyclic producer definitions are
// rejected at construction, before any evaluation.  Requests for
// coordinates not reachable from the available inputs fail naming every
// missing coordinate.
package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"reflred/phys"
)

// Producer computes one named coordinate from named dependencies.
//
// Fn receives one slice per dependency, in Deps order, and returns the
// produced column.  Dependency slices are either full event length or a
// single broadcast element; Fn implementations use At to index them.
// DepUnits, when non-nil, declares the unit each dependency is expected
// in; dependency columns of compatible dimension are converted, columns
// of a different dimension are a hard error.
type Producer struct {
	Out      string
	Deps     []string
	DepUnits []phys.Unit
	Unit     phys.Unit
	Fn       func(args ...[]float64) []float64
}

// At indexes a column that may be a single broadcast element.
func At(col []float64, i int) float64 {
	if len(col) == 1 {
		return col[0]
	}
	return col[i]
}

// Graph is an immutable resolved set of producers.
type Graph struct {
	producers map[string]Producer

	mu    sync.Mutex
	cache map[string][]string // request key -> evaluation order
}

// New builds a graph from producers.  Duplicate output names and cyclic
// definitions are configuration errors.
func New(producers ...Producer) (*Graph, error) {
	g := &Graph{
		producers: make(map[string]Producer, len(producers)),
		cache:     make(map[string][]string),
	}
	for _, p := range producers {
		if _, dup := g.producers[p.Out]; dup {
			return nil, fmt.Errorf("coordinate graph: duplicate producer for %q", p.Out)
		}
		if p.DepUnits != nil && len(p.DepUnits) != len(p.Deps) {
			return nil, fmt.Errorf("coordinate graph: producer %q declares %d units for %d dependencies",
				p.Out, len(p.DepUnits), len(p.Deps))
		}
		g.producers[p.Out] = p
	}
	if cycle := g.findCycle(); cycle != nil {
		return nil, fmt.Errorf("coordinate graph: cyclic producers: %s",
			strings.Join(cycle, " -> "))
	}
	return g, nil
}

// findCycle runs a coloring DFS over producer dependencies.  Dependencies
// without a producer are leaves (inputs) and cannot participate in a
// cycle.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.producers))
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		p, ok := g.producers[name]
		if !ok {
			return false
		}
		switch color[name] {
		case grey:
			// found: slice the stack from the repeated name
			for i, s := range stack {
				if s == name {
					cycle = append(append([]string{}, stack[i:]...), name)
					return true
				}
			}
			return true
		case black:
			return false
		}
		color[name] = grey
		stack = append(stack, name)
		for _, d := range p.Deps {
			if visit(d) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return false
	}

	names := g.names()
	for _, name := range names {
		if visit(name) {
			return cycle
		}
	}
	return nil
}

func (g *Graph) names() []string {
	names := make([]string, 0, len(g.producers))
	for name := range g.producers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve computes the evaluation order for the requested coordinates
// given the set of known input coordinates.  The order is cached per
// (request, known) key.  Coordinates that are neither known nor
// producible are reported together in one error.
func (g *Graph) Resolve(request []string, known map[string]bool) ([]string, error) {
	key := cacheKey(request, known)
	g.mu.Lock()
	if order, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return order, nil
	}
	g.mu.Unlock()

	var order []string
	var missing []string
	state := make(map[string]int) // 0 unvisited, 1 scheduled
	var need func(name string)
	need = func(name string) {
		if known[name] || state[name] == 1 {
			return
		}
		p, ok := g.producers[name]
		if !ok {
			missing = append(missing, name)
			state[name] = 1
			return
		}
		state[name] = 1
		for _, d := range p.Deps {
			need(d)
		}
		order = append(order, name)
	}
	for _, name := range request {
		need(name)
	}
	if missing != nil {
		sort.Strings(missing)
		return nil, fmt.Errorf("coordinate graph: unreachable coordinate(s): %s",
			strings.Join(missing, ", "))
	}

	g.mu.Lock()
	g.cache[key] = order
	g.mu.Unlock()
	return order, nil
}

func cacheKey(request []string, known map[string]bool) string {
	r := append([]string(nil), request...)
	sort.Strings(r)
	k := make([]string, 0, len(known))
	for name, ok := range known {
		if ok {
			k = append(k, name)
		}
	}
	sort.Strings(k)
	return strings.Join(r, ",") + "|" + strings.Join(k, ",")
}

// Apply evaluates the requested coordinates over the given columns and
// returns a new column set holding the inputs plus the requested
// coordinates.  Intermediate coordinates are dropped unless requested.
func (g *Graph) Apply(cols map[string]phys.Array, request ...string) (map[string]phys.Array, error) {
	known := make(map[string]bool, len(cols))
	for name := range cols {
		known[name] = true
	}
	order, err := g.Resolve(request, known)
	if err != nil {
		return nil, err
	}

	work := make(map[string]phys.Array, len(cols)+len(order))
	for name, c := range cols {
		work[name] = c
	}
	for _, name := range order {
		p := g.producers[name]
		args := make([][]float64, len(p.Deps))
		for i, d := range p.Deps {
			c, ok := work[d]
			if !ok {
				return nil, fmt.Errorf("coordinate graph: internal: %q not evaluated before %q", d, name)
			}
			if p.DepUnits != nil {
				conv, err := c.Convert(p.DepUnits[i])
				if err != nil {
					return nil, fmt.Errorf("coordinate %q dependency %q: %w", name, d, err)
				}
				c = conv
			}
			args[i] = c.Values
		}
		work[name] = phys.NewArray(p.Fn(args...), p.Unit)
	}

	out := make(map[string]phys.Array, len(cols)+len(request))
	for name, c := range cols {
		out[name] = c
	}
	for _, name := range request {
		out[name] = work[name]
	}
	return out, nil
}
