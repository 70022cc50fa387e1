// Public domain.

package rfprog

import (
	"math"

	xrand "golang.org/x/exp/rand"

	"reflred/amor"
	"reflred/events"
	"reflred/phys"
)

// synthesize generates n detector events for a run: pixels uniform over
// the accepted detector region and arrival times corresponding to
// wavelengths uniform inside the acceptance window, inverted through the
// chopper frame so the reduction's unwrapping recovers them.  Until raw
// file loading is hooked up this stands in for a NeXus event stream.
func synthesize(p events.Params, lim amor.Limits, n int, rnd *xrand.Rand) (*events.Table, error) {
	freq, err := p.ChopperFrequency.Convert(phys.Hertz)
	if err != nil {
		return nil, err
	}
	l1, err := p.ChopperDistance.Convert(phys.Metre)
	if err != nil {
		return nil, err
	}
	l2, err := p.DetectorDistance.Convert(phys.Metre)
	if err != nil {
		return nil, err
	}
	wlo, err := lim.Wavelength[0].Convert(phys.Angstrom)
	if err != nil {
		return nil, err
	}
	whi, err := lim.Wavelength[1].Convert(phys.Angstrom)
	if err != nil {
		return nil, err
	}

	tau := 1 / (2 * freq.Value)
	tofOffset := tau * p.ChopperPhase.Deg() / 180
	flight := l1.Value + l2.Value
	// stay clear of the acceptance edges so no generated event is masked
	lamLo := wlo.Value + 0.5
	lamHi := whi.Value - 0.5

	pixel := make([]float64, n)
	tof := make([]float64, n)
	for i := 0; i < n; i++ {
		z := lim.ZIndex[0] + rnd.Intn(lim.ZIndex[1]-lim.ZIndex[0]+1)
		y := lim.YIndex[0] + rnd.Intn(lim.YIndex[1]-lim.YIndex[0]+1)
		blade := z / amor.NWires
		wire := z % amor.NWires
		pixel[i] = float64(blade*amor.NWires*amor.NStripes + wire*amor.NStripes + y)

		lam := lamLo + rnd.Float64()*(lamHi-lamLo)
		gamma := amor.RowDivergence(z)
		// invert the unwrapping: time of flight, guide path term back
		// on, frame offset back off
		t := lam * 1e-10 * flight / phys.HOverMn
		t += gamma / math.Pi * tau
		tof[i] = t - tofOffset
	}

	t := events.NewTable(n)
	if t, err = t.SetColumn("pixel_id", phys.NewArray(pixel, phys.Dimensionless)); err != nil {
		return nil, err
	}
	return t.SetColumn("event_time_offset", phys.NewArray(tof, phys.Second))
}
