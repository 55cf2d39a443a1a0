package checkweigh

// Pin is the one-bit output the station drives a lamp through.
// machine.Pin satisfies it.
type Pin interface {
	High()
	Low()
}

// Outputs drives the three band lamps. Apply rewrites all three levels
// every call rather than tracking the previous band, so a reapplied band
// is a no-op electrically and a missed update cannot leave two lamps lit.
type Outputs struct {
	low  Pin
	ok   Pin
	high Pin
}

// NewOutputs wires the three lamps. Any pin may be nil if the lamp is
// not fitted.
func NewOutputs(low, ok, high Pin) *Outputs {
	return &Outputs{low: low, ok: ok, high: high}
}

// Apply lights exactly the lamp for b and extinguishes the other two.
func (o *Outputs) Apply(b Band) {
	if o == nil {
		return
	}
	drive(o.low, b == BandLow)
	drive(o.ok, b == BandOk)
	drive(o.high, b == BandHigh)
}

func drive(p Pin, on bool) {
	if p == nil {
		return
	}
	if on {
		p.High()
	} else {
		p.Low()
	}
}
