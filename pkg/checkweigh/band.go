// Package checkweigh classifies scale readings against an accept band
// and drives the station's lamps, panel and telemetry from them.
package checkweigh

// Band is the check-weigh verdict for one reading.
type Band uint8

const (
	BandLow Band = iota
	BandOk
	BandHigh
)

func (b Band) String() string {
	switch b {
	case BandLow:
		return "low"
	case BandOk:
		return "ok"
	case BandHigh:
		return "high"
	}
	return "invalid"
}

// Classify places weight in the accept band. Both limits belong to the
// Ok band; only readings strictly outside it trip the low or high lamp.
// Classification is pure: the same weight against the same limits always
// lands in the same band.
func Classify(weight, low, high float64) Band {
	switch {
	case weight < low:
		return BandLow
	case weight > high:
		return BandHigh
	default:
		return BandOk
	}
}
