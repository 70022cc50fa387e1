// Public domain.

// Package reduce implements the reference-normalization and Q-reduction
// pipeline: supermirror reference reduction, re-evaluation of the
// reference under a sample's geometry, sample normalization over Q or
// over detector-position and wavelength, and resolution propagation.
package reduce

import (
	"reflred/events"
	"reflred/hist"
	"reflred/phys"
)

// MaskTooFewEvents tags reflectivity bins whose reference intensity was
// zero or undefined.  Such bins are first-class undefined values, never
// a silent division by zero.
const MaskTooFewEvents = "too_few_events"

// MaskSupermirrorInvalid tags reference events whose Q lies beyond the
// characterized supermirror range.
const MaskSupermirrorInvalid = "supermirror_invalid"

// MaskSupermirrorCoverage tags sample events in detector regions the
// reference measurement does not cover.
const MaskSupermirrorCoverage = "supermirror_does_not_cover"

// ReducedReference is the ideal-sample intensity distribution estimated
// from a supermirror calibration run: expected counts per (z-index row,
// wavelength bin) for a sample with reflectivity 1.
type ReducedReference struct {
	RunID  string
	Params events.Params // geometry of the calibration run
	Map    *hist.Map2D
}

// Reference is a ReducedReference re-evaluated under a sample run's
// geometry: every bin carries the Q and Q-resolution the bin would have
// had as a sample event.  It is the normalization denominator and is
// cached per (reference, sample geometry) pair.
type Reference struct {
	RunID string
	Map   *hist.Map2D // coords "Q", "Q_resolution"
}

// ReflectivityOverQ is the final reduction product: reflectivity with
// variance over a Q grid, with the Gaussian resolution standard
// deviation per bin and the undefined-bin mask.
type ReflectivityOverQ struct {
	Q           hist.Edges
	R           phys.Array  // dimensionless, value + variance
	QResolution phys.Array  // same unit as Q; nil when not propagated
	Masks       map[string][]bool
}

// Masked reports whether bin i is excluded by any mask.
func (r ReflectivityOverQ) Masked(i int) bool {
	for _, m := range r.Masks {
		if m[i] {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (r ReflectivityOverQ) Clone() ReflectivityOverQ {
	c := ReflectivityOverQ{
		Q: r.Q,
		R: r.R.Clone(),
		Masks: make(map[string][]bool, len(r.Masks)),
	}
	if r.QResolution.Len() > 0 {
		c.QResolution = r.QResolution.Clone()
	}
	for name, m := range r.Masks {
		c.Masks[name] = append([]bool(nil), m...)
	}
	return c
}

// Scale returns a copy with reflectivity multiplied by k.
func (r ReflectivityOverQ) Scale(k float64) ReflectivityOverQ {
	c := r.Clone()
	c.R = c.R.Scale(k)
	return c
}

// ReflectivityOverZW is reflectivity over detector position and
// wavelength, preserving spatial information for diagnostics.
type ReflectivityOverZW struct {
	Map *hist.Map2D
}
