// Package telemetry publishes classified readings to an MQTT broker over
// the Pico W radio. Builds without the picow tag get a stub dialer and
// the station runs standalone; the weighing loop itself never depends on
// the network being up.
package telemetry

// Reading is one classified scale reading as published to the broker.
type Reading struct {
	Weight   float64 `json:"weight"`
	Band     string  `json:"band"`
	Valid    bool    `json:"valid"`
	Raw      string  `json:"raw,omitempty"`
	UptimeMS int64   `json:"uptime_ms"`
}

// Send queues r without blocking. When the channel is full (broker slow,
// link down) the reading is dropped and Send reports false; the weighing
// loop must never wait on the network.
func Send(ch chan<- Reading, r Reading) bool {
	select {
	case ch <- r:
		return true
	default:
		return false
	}
}
