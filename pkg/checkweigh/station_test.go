package checkweigh

import (
	"testing"

	"github.com/stephan-lechner/tinygo-checkweigher-rp2040/pkg/config"
	"github.com/stephan-lechner/tinygo-checkweigher-rp2040/pkg/telemetry"
)

type fakeDisplay struct {
	raw      string
	weight   float64
	capacity float64
	width    int
	calls    int
}

func (d *fakeDisplay) ShowReading(raw string, weight, capacity float64, width int) {
	d.raw = raw
	d.weight = weight
	d.capacity = capacity
	d.width = width
	d.calls++
}

type testStation struct {
	station  *Station
	display  *fakeDisplay
	low      *fakePin
	ok       *fakePin
	high     *fakePin
	readings chan telemetry.Reading
}

func newTestStation(t *testing.T) *testStation {
	t.Helper()
	display := &fakeDisplay{}
	low, ok, high := &fakePin{}, &fakePin{}, &fakePin{}
	readings := make(chan telemetry.Reading, 4)
	station := NewStation(config.Default(), display, NewOutputs(low, ok, high), readings, nil)
	return &testStation{
		station:  station,
		display:  display,
		low:      low,
		ok:       ok,
		high:     high,
		readings: readings,
	}
}

func TestStationHandleLineOk(t *testing.T) {
	ts := newTestStation(t)
	ts.station.HandleLine("  5000.0 g S")

	if !ts.ok.on || ts.low.on || ts.high.on {
		t.Errorf("lamps: expected only ok lit, got low=%v ok=%v high=%v", ts.low.on, ts.ok.on, ts.high.on)
	}
	if ts.display.calls != 1 {
		t.Fatalf("display calls: expected 1, got %d", ts.display.calls)
	}
	if ts.display.raw != "  5000.0 g S" {
		t.Errorf("display raw: expected %q, got %q", "  5000.0 g S", ts.display.raw)
	}
	if ts.display.weight != 5000.0 {
		t.Errorf("display weight: expected 5000, got %v", ts.display.weight)
	}
	if ts.display.capacity != 6200 {
		t.Errorf("display capacity: expected 6200, got %v", ts.display.capacity)
	}
	if ts.display.width != 16 {
		t.Errorf("display width: expected 16, got %d", ts.display.width)
	}

	last := ts.station.LastReading()
	if last.Weight != 5000.0 || last.Band != BandOk || !last.Valid {
		t.Errorf("last reading: expected 5000/ok/valid, got %+v", last)
	}
}

func TestStationHandleLineBands(t *testing.T) {
	tests := []struct {
		name string
		line string
		band Band
	}{
		{"Under", "  4980.0 g", BandLow},
		{"AtLowLimit", "  4990.0 g", BandOk},
		{"AtHighLimit", "  5010.0 g", BandOk},
		{"Over", "  5025.5 g", BandHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestStation(t)
			ts.station.HandleLine(tt.line)
			if last := ts.station.LastReading(); last.Band != tt.band {
				t.Errorf("band: expected %v, got %v", tt.band, last.Band)
			}
		})
	}
}

func TestStationEmptyLine(t *testing.T) {
	ts := newTestStation(t)
	ts.station.HandleLine("")

	last := ts.station.LastReading()
	if last.Weight != 0 {
		t.Errorf("weight: expected 0, got %v", last.Weight)
	}
	if last.Valid {
		t.Error("expected invalid reading for empty line")
	}
	if last.Band != BandLow {
		t.Errorf("band: expected BandLow, got %v", last.Band)
	}
	// Zero weight is under the band: outputs still driven.
	if !ts.low.on {
		t.Error("low lamp not lit for empty line")
	}
	if ts.display.calls != 1 {
		t.Errorf("display calls: expected 1, got %d", ts.display.calls)
	}
}

func TestStationUnparseableLine(t *testing.T) {
	ts := newTestStation(t)
	ts.station.HandleLine("ERR overload")

	last := ts.station.LastReading()
	if last.Valid {
		t.Error("expected invalid reading")
	}
	if last.Raw != "ERR overload" {
		t.Errorf("raw: expected %q, got %q", "ERR overload", last.Raw)
	}
	if last.Weight != 0 {
		t.Errorf("weight: expected 0, got %v", last.Weight)
	}
}

func TestStationCounts(t *testing.T) {
	ts := newTestStation(t)
	for _, line := range []string{"100 g", "5000 g", "5001 g", "9999 g"} {
		ts.station.HandleLine(line)
	}

	counts := ts.station.Counts()
	if counts.Low != 1 || counts.Ok != 2 || counts.High != 1 {
		t.Errorf("counts: expected 1/2/1, got %d/%d/%d", counts.Low, counts.Ok, counts.High)
	}
	if counts.Total() != 4 {
		t.Errorf("total: expected 4, got %d", counts.Total())
	}

	ts.station.ResetCounts()
	if counts := ts.station.Counts(); counts.Total() != 0 {
		t.Errorf("total after reset: expected 0, got %d", counts.Total())
	}
}

func TestStationSetConfig(t *testing.T) {
	ts := newTestStation(t)

	cfg := config.Default()
	cfg.LowLimit = 100
	cfg.HighLimit = 200
	if err := ts.station.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}

	ts.station.HandleLine("150 g")
	if last := ts.station.LastReading(); last.Band != BandOk {
		t.Errorf("band with new limits: expected BandOk, got %v", last.Band)
	}
	ts.station.HandleLine("5000 g")
	if last := ts.station.LastReading(); last.Band != BandHigh {
		t.Errorf("band with new limits: expected BandHigh, got %v", last.Band)
	}
}

func TestStationSetConfigRejectsInvalid(t *testing.T) {
	ts := newTestStation(t)

	cfg := config.Default()
	cfg.LowLimit = 5010
	cfg.HighLimit = 4990
	if err := ts.station.SetConfig(cfg); err == nil {
		t.Fatal("expected error for inverted limits")
	}
	// The active configuration is untouched.
	if active := ts.station.Config(); active.LowLimit != 4990 {
		t.Errorf("active low limit: expected 4990, got %v", active.LowLimit)
	}
}

func TestStationQueuesTelemetry(t *testing.T) {
	ts := newTestStation(t)
	ts.station.HandleLine("  5000.0 g")

	select {
	case r := <-ts.readings:
		if r.Weight != 5000.0 {
			t.Errorf("reading weight: expected 5000, got %v", r.Weight)
		}
		if r.Band != "ok" {
			t.Errorf("reading band: expected %q, got %q", "ok", r.Band)
		}
		if !r.Valid {
			t.Error("reading: expected valid")
		}
		if r.Raw != "  5000.0 g" {
			t.Errorf("reading raw: expected %q, got %q", "  5000.0 g", r.Raw)
		}
	default:
		t.Fatal("no reading queued")
	}
}

func TestStationTelemetryBackpressureDropsNotBlocks(t *testing.T) {
	ts := newTestStation(t)
	// Overrun the 4-slot channel; HandleLine must return every time.
	for i := 0; i < 10; i++ {
		ts.station.HandleLine("5000 g")
	}
	if counts := ts.station.Counts(); counts.Ok != 10 {
		t.Errorf("ok count: expected 10, got %d", counts.Ok)
	}
	if len(ts.readings) != 4 {
		t.Errorf("queued readings: expected 4, got %d", len(ts.readings))
	}
}

func TestStationHeadless(t *testing.T) {
	// No display, no lamps, no telemetry: the pipeline still runs.
	station := NewStation(config.Default(), nil, nil, nil, nil)
	station.HandleLine("  5000.0 g")
	if last := station.LastReading(); last.Band != BandOk {
		t.Errorf("band: expected BandOk, got %v", last.Band)
	}
}
