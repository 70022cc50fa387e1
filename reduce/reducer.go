// Public domain.

package reduce

import (
	"fmt"
	"math"
	"sync"

	"reflred/amor"
	"reflred/events"
	"reflred/hist"
	"reflred/phys"
	"reflred/supermirror"
)

// Reducer holds the configuration of a reduction: the supermirror
// calibration constants, the theta model, the acceptance limits and the
// wavelength grid.  It memoizes evaluated references, which are
// expensive and shared across repeated sample runs.
//
// The configuration is immutable after construction; the cache is
// guarded so independent runs may be reduced concurrently by a caller.
type Reducer struct {
	Cal             supermirror.Calibration
	Model           amor.ThetaModel
	Limits          amor.Limits
	WavelengthEdges hist.Edges

	// CountNormTolerance bounds max(bin/total) in total-count
	// normalization; above it the denominator variance may not be
	// dropped and normalization fails. Zero means the default 0.1.
	CountNormTolerance float64

	mu       sync.Mutex
	refCache map[refKey]*Reference
}

type refKey struct {
	runID  string
	mu, nu float64
	sample float64 // sample size, m
	res    float64 // detector spatial resolution, m
}

// New returns a Reducer over the given wavelength grid with the default
// supermirror calibration and acceptance.
func New(wavelengthEdges hist.Edges) *Reducer {
	return &Reducer{
		Cal:             supermirror.Default(),
		Model:           amor.GravityTheta,
		Limits:          amor.DefaultLimits(),
		WavelengthEdges: wavelengthEdges,
	}
}

// Prepare attaches coordinates and acceptance masks to a raw run.
func (r *Reducer) Prepare(run events.Run) (events.Run, error) {
	return amor.AddCoordsAndMasks(run, r.Limits, r.Model)
}

// ReduceReference reduces a supermirror calibration run to the ideal
// intensity map: event weights are divided by the known supermirror
// reflectivity at the event's Q, events beyond the characterized range
// are masked invalid, and the result is histogrammed over (z-index row,
// wavelength).
func (r *Reducer) ReduceReference(run events.Run) (*ReducedReference, error) {
	if run.Role != events.Reference {
		return nil, fmt.Errorf("reduce reference: run %s has role %s", run.ID, run.Role)
	}
	prep, err := r.Prepare(run)
	if err != nil {
		return nil, err
	}
	t := prep.Events
	q, ok := t.Column(amor.CoordQ)
	if !ok {
		return nil, fmt.Errorf("reduce reference: Q not attached")
	}
	model, err := r.Cal.Reflectivity(q)
	if err != nil {
		return nil, fmt.Errorf("reduce reference: %w", err)
	}

	invalid := make([]bool, t.Len())
	scale := make([]float64, t.Len())
	for i, R := range model.Values {
		if math.IsNaN(R) || R <= 0 {
			invalid[i] = true
			scale[i] = 1 // excluded by mask, keep the weight finite
			continue
		}
		scale[i] = 1 / R
	}
	if t, err = t.SetMask(MaskSupermirrorInvalid, invalid); err != nil {
		return nil, err
	}
	if t, err = t.ScaleWeights(scale); err != nil {
		return nil, err
	}

	m, err := hist.BinEventsZW(t, "z_index", amor.CoordWavelength, amor.NZ, r.WavelengthEdges)
	if err != nil {
		return nil, err
	}
	return &ReducedReference{RunID: run.ID, Params: run.Params, Map: m}, nil
}

// EvaluateReference attaches Q and Q-resolution coordinates to every bin
// of the ideal intensity map, computed as if the bin's intensity came
// from the sample measurement: the sample run's rotations, sample size
// and detector resolution are used, because the physical Q of a
// reference event depends on them.  Results are memoized per reference
// and sample geometry.
func (r *Reducer) EvaluateReference(ref *ReducedReference, sample events.Run) (*Reference, error) {
	p := sample.Params
	l2m, err := p.DetectorDistance.Convert(phys.Metre)
	if err != nil {
		return nil, fmt.Errorf("detector distance: %w", err)
	}
	resm, err := p.DetectorSpatialResolution.Convert(phys.Metre)
	if err != nil {
		return nil, fmt.Errorf("detector resolution: %w", err)
	}
	sizem, err := p.SampleSize.Convert(phys.Metre)
	if err != nil {
		return nil, fmt.Errorf("sample size: %w", err)
	}
	l1m, err := p.ChopperDistance.Convert(phys.Metre)
	if err != nil {
		return nil, fmt.Errorf("chopper distance: %w", err)
	}
	sepm, err := p.ChopperSeparation.Convert(phys.Metre)
	if err != nil {
		return nil, fmt.Errorf("chopper separation: %w", err)
	}

	key := refKey{
		runID:  ref.RunID,
		mu:     p.Mu().Rad(),
		nu:     p.DetectorRotation.Rad(),
		sample: sizem.Value,
		res:    resm.Value,
	}
	r.mu.Lock()
	if cached, ok := r.refCache[key]; ok && ref.RunID != "" {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	m := ref.Map
	nw := m.W.NBins()
	qc := phys.Zeros(m.Len(), phys.PerAngstrom, false)
	qres := phys.Zeros(m.Len(), phys.PerAngstrom, false)

	sigmaL := WavelengthResolution(l1m.Value, l2m.Value, sepm.Value)
	sigmaS := SampleSizeResolution(l2m.Value, sizem.Value)
	nu, mu := key.nu, key.mu

	for z := 0; z < m.NZ; z++ {
		gamma := amor.RowDivergence(z)
		for w := 0; w < nw; w++ {
			lam := m.W.Mid(w)
			theta := amor.ThetaAt(gamma, nu, mu, lam, l2m.Value, r.Model)
			k := m.Idx(z, w)
			q := amor.QFromThetaWavelength(theta, lam)
			qc.Values[k] = q
			sigmaT := AngularResolution(theta, l2m.Value, resm.Value)
			qres.Values[k] = QResolution(q, sigmaT, sigmaL, sigmaS)
		}
	}

	out := m.Clone()
	if out, err = out.SetCoord("Q", qc); err != nil {
		return nil, err
	}
	if out, err = out.SetCoord("Q_resolution", qres); err != nil {
		return nil, err
	}
	evaluated := &Reference{RunID: ref.RunID, Map: out}

	if ref.RunID != "" {
		r.mu.Lock()
		if r.refCache == nil {
			r.refCache = make(map[refKey]*Reference)
		}
		r.refCache[key] = evaluated
		r.mu.Unlock()
	}
	return evaluated, nil
}

// BinSampleOverQ prepares a sample run and histograms its events in Q.
func (r *Reducer) BinSampleOverQ(run events.Run, qEdges hist.Edges) (*hist.Hist1D, error) {
	if run.Role != events.Sample {
		return nil, fmt.Errorf("sample reduction: run %s has role %s", run.ID, run.Role)
	}
	prep, err := r.Prepare(run)
	if err != nil {
		return nil, err
	}
	return hist.BinEvents(prep.Events, amor.CoordQ, qEdges)
}

// NormalizeOverQ divides a Q-binned sample histogram by the evaluated
// reference re-histogrammed onto the same grid.  Reference variances are
// dropped (the reference is the fixed denominator); bins without
// reference intensity are masked "too_few_events".  The Q resolution per
// bin is the intensity-weighted RMS of the contributing reference bins'
// resolutions.
func NormalizeOverQ(sample *hist.Hist1D, ref *Reference) (ReflectivityOverQ, error) {
	qEdges := sample.Edges
	q, ok := ref.Map.Coord("Q")
	if !ok {
		return ReflectivityOverQ{}, fmt.Errorf("normalize: reference has no Q coordinate")
	}
	qres, hasRes := ref.Map.Coord("Q_resolution")

	n := qEdges.NBins()
	href := hist.NewHist1D(qEdges, ref.Map.Data.Unit)
	wres := make([]float64, n)
	for i, v := range ref.Map.Data.Values {
		if ref.Map.Masked(i) || math.IsNaN(v) {
			continue
		}
		qb := qEdges.FindBin(q.Values[i])
		if qb < 0 {
			continue
		}
		href.Data.Values[qb] += v
		if hasRes {
			s := qres.Values[i]
			wres[qb] += v * s * s
		}
	}

	rr, err := sample.Div(href.DropVariances(), MaskTooFewEvents)
	if err != nil {
		return ReflectivityOverQ{}, err
	}

	out := ReflectivityOverQ{
		Q:     qEdges,
		R:     rr.Data,
		Masks: make(map[string][]bool),
	}
	for _, name := range rr.MaskNames() {
		out.Masks[name] = append([]bool(nil), rr.Mask(name)...)
	}
	if hasRes {
		res := phys.Zeros(n, qres.Unit, false)
		for i := 0; i < n; i++ {
			if h := href.Data.Values[i]; h > 0 {
				res.Values[i] = math.Sqrt(wres[i] / h)
			} else {
				res.Values[i] = math.NaN()
			}
		}
		out.QResolution = res
	}
	return out, nil
}

// SampleOverQ runs the full sample reduction against an evaluated
// reference: bin in Q, normalize, propagate resolution.
func (r *Reducer) SampleOverQ(run events.Run, ref *Reference, qEdges hist.Edges) (ReflectivityOverQ, error) {
	s, err := r.BinSampleOverQ(run, qEdges)
	if err != nil {
		return ReflectivityOverQ{}, err
	}
	return NormalizeOverQ(s, ref)
}

// SampleOverZW computes reflectivity over (z-index row, wavelength),
// dividing the sample histogram bin-for-bin by the ideal intensity map.
// This preserves spatial information for diagnostics at the cost of not
// being expressed in Q.
func (r *Reducer) SampleOverZW(run events.Run, ref *ReducedReference) (ReflectivityOverZW, error) {
	if run.Role != events.Sample {
		return ReflectivityOverZW{}, fmt.Errorf("sample reduction: run %s has role %s", run.ID, run.Role)
	}
	prep, err := r.Prepare(run)
	if err != nil {
		return ReflectivityOverZW{}, err
	}
	s, err := hist.BinEventsZW(prep.Events, "z_index", amor.CoordWavelength, amor.NZ, r.WavelengthEdges)
	if err != nil {
		return ReflectivityOverZW{}, err
	}
	m, err := s.Div(ref.Map.DropVariances(), MaskTooFewEvents)
	if err != nil {
		return ReflectivityOverZW{}, err
	}
	return ReflectivityOverZW{Map: m}, nil
}

// MaskOutsideSupermirror masks sample events in detector regions the
// reference measurement cannot cover: the supermirror reflectivity is
// evaluated at the Q the event would have had as a reference event
// (reference rotations, plain geometry), and events in the NaN region
// are masked.
func (r *Reducer) MaskOutsideSupermirror(sample events.Run, ref *ReducedReference) (events.Run, error) {
	t := sample.Events
	lam, ok := t.Column(amor.CoordWavelength)
	if !ok {
		return events.Run{}, fmt.Errorf("coverage mask: wavelength not attached")
	}
	gamma, ok := t.Column("divergence_angle")
	if !ok {
		return events.Run{}, fmt.Errorf("coverage mask: divergence_angle not attached")
	}
	nu := ref.Params.DetectorRotation.Rad()
	mu := ref.Params.Mu().Rad()

	q := phys.Zeros(t.Len(), phys.PerAngstrom, false)
	for i := range q.Values {
		// plain geometry under the reference rotations
		theta := amor.ThetaAt(gamma.Values[i], nu, mu, lam.Values[i], 0, amor.PlainTheta)
		q.Values[i] = amor.QFromThetaWavelength(theta, lam.Values[i])
	}
	model, err := r.Cal.Reflectivity(q)
	if err != nil {
		return events.Run{}, err
	}
	mask := make([]bool, t.Len())
	for i, v := range model.Values {
		mask[i] = math.IsNaN(v)
	}
	t, err = t.SetMask(MaskSupermirrorCoverage, mask)
	if err != nil {
		return events.Run{}, err
	}
	return sample.WithEvents(t), nil
}

// Reflectivity reduces a (reference, sample) run pair to reflectivity
// over the given Q grid: reference reduction (memoized evaluation under
// the sample geometry), sample binning, normalization.
func (r *Reducer) Reflectivity(reference, sample events.Run, qEdges hist.Edges) (ReflectivityOverQ, error) {
	rr, err := r.ReduceReference(reference)
	if err != nil {
		return ReflectivityOverQ{}, err
	}
	ref, err := r.EvaluateReference(rr, sample)
	if err != nil {
		return ReflectivityOverQ{}, err
	}
	return r.SampleOverQ(sample, ref, qEdges)
}
