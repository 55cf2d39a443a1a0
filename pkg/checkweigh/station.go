package checkweigh

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stephan-lechner/tinygo-checkweigher-rp2040/pkg/config"
	"github.com/stephan-lechner/tinygo-checkweigher-rp2040/pkg/scale"
	"github.com/stephan-lechner/tinygo-checkweigher-rp2040/pkg/telemetry"
)

// Display is the panel surface the station presents readings on.
// *display.Manager satisfies it; a nil manager is a valid headless panel.
type Display interface {
	ShowReading(raw string, weight, capacity float64, width int)
}

// Reading is one fully processed scale line.
type Reading struct {
	Weight float64
	Band   Band
	Valid  bool // false when the line carried no parseable number
	Raw    string
}

// Counts tallies classified readings since boot or the last reset.
type Counts struct {
	Low  uint32
	Ok   uint32
	High uint32
}

// Total returns the number of readings counted.
func (c Counts) Total() uint32 {
	return c.Low + c.Ok + c.High
}

// Station runs the check-weigh pipeline for one scale: parse the line,
// classify it, and drive every output from the result. The weighing loop
// calls HandleLine; the host protocol reads and reconfigures the station
// from another goroutine, so all shared state sits behind the mutex.
type Station struct {
	display  Display
	outputs  *Outputs
	readings chan<- telemetry.Reading
	logger   *slog.Logger
	started  time.Time

	mu       sync.Mutex
	cfg      config.Config
	last     Reading
	haveLast bool
	counts   Counts
}

// NewStation wires the pipeline. display and readings may be nil when the
// panel or the telemetry link is absent; the pipeline runs the same way
// without them.
func NewStation(cfg config.Config, display Display, outputs *Outputs, readings chan<- telemetry.Reading, logger *slog.Logger) *Station {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Station{
		display:  display,
		outputs:  outputs,
		readings: readings,
		logger:   logger,
		started:  time.Now(),
		cfg:      cfg,
	}
}

// HandleLine processes one completed scale line end to end. Every output
// is driven on every line, whether or not anything changed: the lamps are
// rewritten, both panel rows are rewritten, and the reading is queued for
// telemetry. An unparseable line classifies its zero weight like any
// other reading.
func (s *Station) HandleLine(raw string) {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	weight, valid := scale.ParseWeight(raw)
	band := Classify(weight, float64(cfg.LowLimit), float64(cfg.HighLimit))
	s.logger.Debug("station:reading",
		slog.Float64("weight", weight),
		slog.String("band", band.String()),
	)

	s.outputs.Apply(band)
	if s.display != nil {
		s.display.ShowReading(raw, weight, float64(cfg.Capacity), int(cfg.RowWidth))
	}

	s.mu.Lock()
	switch band {
	case BandLow:
		s.counts.Low++
	case BandOk:
		s.counts.Ok++
	case BandHigh:
		s.counts.High++
	}
	changed := !s.haveLast || band != s.last.Band
	s.last = Reading{Weight: weight, Band: band, Valid: valid, Raw: raw}
	s.haveLast = true
	s.mu.Unlock()

	if s.readings != nil {
		telemetry.Send(s.readings, telemetry.Reading{
			Weight:   weight,
			Band:     band.String(),
			Valid:    valid,
			Raw:      raw,
			UptimeMS: time.Since(s.started).Milliseconds(),
		})
	}

	if changed {
		s.logger.Info("station:band-changed",
			slog.String("band", band.String()),
			slog.Float64("weight", weight),
		)
	}
}

// Config returns the active configuration.
func (s *Station) Config() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetConfig swaps the active configuration after validating it. The new
// limits apply from the next completed line; a line mid-assembly is not
// disturbed.
func (s *Station) SetConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.logger.Info("station:config-updated",
		slog.Float64("low", float64(cfg.LowLimit)),
		slog.Float64("high", float64(cfg.HighLimit)),
		slog.Float64("capacity", float64(cfg.Capacity)),
	)
	return nil
}

// LastReading returns the most recent reading. Before the first completed
// line it returns a zero Reading with Valid false.
func (s *Station) LastReading() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Counts returns the per-band tallies.
func (s *Station) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

// ResetCounts zeroes the per-band tallies.
func (s *Station) ResetCounts() {
	s.mu.Lock()
	s.counts = Counts{}
	s.mu.Unlock()
	s.logger.Info("station:counts-reset")
}
