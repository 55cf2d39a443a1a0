//go:build nolcd

// Package display provides a no-op stub when built with the nolcd tag.
// This drops the LCD driver for panel-less builds and keeps the package
// machine-free so the row helpers run under `go test -tags nolcd`.
package display

// Panel dimensions, mirrored from the hardware build.
const (
	Cols = 16
	Rows = 2
)

// Manager is a no-op stub when the nolcd build tag is used.
type Manager struct{}

// NewManager returns a nil manager: there is no panel to configure.
// Callers treat a nil manager as a headless panel.
func NewManager() (*Manager, error) {
	return nil, nil
}

// ShowReading is a no-op without a panel.
func (m *Manager) ShowReading(raw string, weight, capacity float64, width int) {}
