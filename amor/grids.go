// Public domain.

package amor

import (
	"gonum.org/v1/gonum/floats"

	"reflred/events"
	"reflred/hist"
	"reflred/phys"
)

// QGrid derives a geometric Q-bin grid from the divergence and
// wavelength acceptance of a sample run: the lowest achievable Q (or
// 1e-3 1/angstrom, whichever is larger) up to the highest, with n+1
// edges.
func QGrid(p events.Params, lim Limits, n int) (hist.Edges, error) {
	nu, mu := p.DetectorRotation.Rad(), p.Mu().Rad()
	thMin := lim.Divergence[0].Rad() + nu - mu
	thMax := lim.Divergence[1].Rad() + nu - mu
	lamLo, err := lim.Wavelength[0].Convert(phys.Angstrom)
	if err != nil {
		return hist.Edges{}, err
	}
	lamHi, err := lim.Wavelength[1].Convert(phys.Angstrom)
	if err != nil {
		return hist.Edges{}, err
	}
	qMin := QFromThetaWavelength(thMin, lamHi.Value)
	qMax := QFromThetaWavelength(thMax, lamLo.Value)
	if qMin < 1e-3 {
		qMin = 1e-3
	}
	return GeomEdges(qMin, qMax, n, phys.PerAngstrom)
}

// WavelengthGrid returns a linear wavelength grid over the acceptance
// window with n bins.
func WavelengthGrid(lim Limits, n int) (hist.Edges, error) {
	lo, err := lim.Wavelength[0].Convert(phys.Angstrom)
	if err != nil {
		return hist.Edges{}, err
	}
	hi, err := lim.Wavelength[1].Convert(phys.Angstrom)
	if err != nil {
		return hist.Edges{}, err
	}
	vals := floats.Span(make([]float64, n+1), lo.Value, hi.Value)
	return hist.NewEdges(phys.NewArray(vals, phys.Angstrom))
}

// GeomEdges returns n geometrically spaced bins from lo to hi in unit u.
func GeomEdges(lo, hi float64, n int, u phys.Unit) (hist.Edges, error) {
	vals := floats.LogSpan(make([]float64, n+1), lo, hi)
	return hist.NewEdges(phys.NewArray(vals, u))
}
