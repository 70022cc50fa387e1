// Public domain.

// Package stream supports incremental reduction of event batches
// arriving during a live measurement.  Intermediate histograms are
// accumulated batch by batch so the full pipeline never reruns from
// scratch; finalizing at any point yields the same result as a single
// reduction over everything pushed so far.
package stream

import (
	"fmt"
	"sync"

	"reflred/events"
	"reflred/hist"
	"reflred/reduce"
)

// Eternal is a running-sum accumulator: every pushed histogram is added
// to the total.  Used for sample intensity, which grows monotonically
// and is always needed in total.
type Eternal struct {
	total *hist.Hist1D
}

// Push adds a batch.  The first batch fixes the bin grid.
func (e *Eternal) Push(h *hist.Hist1D) error {
	if e.total == nil {
		e.total = h.Clone()
		return nil
	}
	sum, err := e.total.Add(h)
	if err != nil {
		return err
	}
	e.total = sum
	return nil
}

// Value is the accumulated total, or nil before the first push.
func (e *Eternal) Value() *hist.Hist1D { return e.total }

// Clear discards the accumulated state.
func (e *Eternal) Clear() { e.total = nil }

// Latest keeps only the most recently pushed reference, discarding
// history.  A static reference re-pushed with each batch must not be
// summed into itself.
type Latest struct {
	ref *reduce.ReducedReference
}

// Push replaces the held value with a deep copy of ref.
func (l *Latest) Push(ref *reduce.ReducedReference) {
	c := *ref
	c.Map = ref.Map.Clone()
	l.ref = &c
}

// Value is the most recent reference, or nil before the first push.
func (l *Latest) Value() *reduce.ReducedReference { return l.ref }

// Clear discards the held reference.
func (l *Latest) Clear() { l.ref = nil }

// Processor runs the reduction pipeline incrementally: sample batches
// accumulate into a Q histogram, reference pushes replace the held
// calibration, and Finalize normalizes the accumulated sample by the
// current reference.  Safe for concurrent pushes.
type Processor struct {
	reducer *reduce.Reducer
	qEdges  hist.Edges

	mu           sync.Mutex
	sample       Eternal
	reference    Latest
	sampleParams events.Params
	haveSample   bool
}

// NewProcessor returns a Processor reducing onto the given Q grid.
func NewProcessor(r *reduce.Reducer, qEdges hist.Edges) *Processor {
	return &Processor{reducer: r, qEdges: qEdges}
}

// PushSample reduces a sample event batch to a Q histogram and adds it
// to the running total.  All batches must share the run geometry.
func (p *Processor) PushSample(run events.Run) error {
	h, err := p.reducer.BinSampleOverQ(run, p.qEdges)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.sample.Push(h); err != nil {
		return err
	}
	p.sampleParams = run.Params
	p.haveSample = true
	return nil
}

// PushReference reduces a calibration run and replaces the held
// reference.  Re-pushing the same static reference is idempotent.
func (p *Processor) PushReference(run events.Run) error {
	ref, err := p.reducer.ReduceReference(run)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.reference.Push(ref)
	p.mu.Unlock()
	return nil
}

// Finalize normalizes the accumulated sample histogram by the current
// reference.  The accumulated state is left intact, so further batches
// may follow and Finalize may be called repeatedly.
func (p *Processor) Finalize() (reduce.ReflectivityOverQ, error) {
	p.mu.Lock()
	sample := p.sample.Value()
	ref := p.reference.Value()
	params := p.sampleParams
	have := p.haveSample
	p.mu.Unlock()

	if !have || sample == nil {
		return reduce.ReflectivityOverQ{}, fmt.Errorf("finalize: no sample batches pushed")
	}
	if ref == nil {
		return reduce.ReflectivityOverQ{}, fmt.Errorf("finalize: no reference pushed")
	}
	evaluated, err := p.reducer.EvaluateReference(ref, events.Run{Params: params, Role: events.Sample})
	if err != nil {
		return reduce.ReflectivityOverQ{}, err
	}
	return reduce.NormalizeOverQ(sample, evaluated)
}

// Clear resets the processor to its initial empty state.
func (p *Processor) Clear() {
	p.mu.Lock()
	p.sample.Clear()
	p.reference.Clear()
	p.haveSample = false
	p.sampleParams = events.Params{}
	p.mu.Unlock()
}
