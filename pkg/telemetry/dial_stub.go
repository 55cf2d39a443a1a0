//go:build !picow

package telemetry

// NewDialer reports ErrNoRadio: telemetry needs the Pico W radio and the
// picow build tag. Without it the station runs standalone and the caller
// simply does not start a Client.
func NewDialer(cfg NetConfig) (DialFunc, error) {
	return nil, ErrNoRadio
}
