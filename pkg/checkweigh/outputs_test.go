package checkweigh

import "testing"

type fakePin struct {
	on     bool
	writes int
}

func (p *fakePin) High() { p.on = true; p.writes++ }
func (p *fakePin) Low()  { p.on = false; p.writes++ }

func newTestOutputs() (*Outputs, *fakePin, *fakePin, *fakePin) {
	low, ok, high := &fakePin{}, &fakePin{}, &fakePin{}
	return NewOutputs(low, ok, high), low, ok, high
}

func TestOutputsExactlyOneLampPerBand(t *testing.T) {
	tests := []struct {
		name string
		band Band
	}{
		{"Low", BandLow},
		{"Ok", BandOk},
		{"High", BandHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outputs, low, ok, high := newTestOutputs()
			outputs.Apply(tt.band)

			states := map[string]bool{"low": low.on, "ok": ok.on, "high": high.on}
			for name, on := range states {
				expected := name == tt.band.String()
				if on != expected {
					t.Errorf("%s lamp: expected %v, got %v", name, expected, on)
				}
			}
		})
	}
}

func TestOutputsRewritesAllLamps(t *testing.T) {
	outputs, low, ok, high := newTestOutputs()
	outputs.Apply(BandOk)
	outputs.Apply(BandOk)

	// Idempotent but not skipped: every Apply writes every lamp.
	for name, pin := range map[string]*fakePin{"low": low, "ok": ok, "high": high} {
		if pin.writes != 2 {
			t.Errorf("%s lamp: expected 2 writes, got %d", name, pin.writes)
		}
	}
	if low.on || !ok.on || high.on {
		t.Errorf("lamps after repeat: expected only ok lit, got low=%v ok=%v high=%v", low.on, ok.on, high.on)
	}
}

func TestOutputsBandTransition(t *testing.T) {
	outputs, low, ok, high := newTestOutputs()
	outputs.Apply(BandLow)
	outputs.Apply(BandHigh)

	if low.on {
		t.Error("low lamp still lit after transition to high")
	}
	if ok.on {
		t.Error("ok lamp lit after transition to high")
	}
	if !high.on {
		t.Error("high lamp not lit after transition to high")
	}
}

func TestOutputsNilSafe(t *testing.T) {
	// Missing lamps and a missing output block must not panic.
	NewOutputs(nil, nil, nil).Apply(BandOk)

	var outputs *Outputs
	outputs.Apply(BandHigh)
}
