//go:build !nolcd

// Package display drives the station's 16x2 HD44780 character panel over
// an I2C backpack. Row 0 carries the raw scale line, row 1 a bar graph of
// weight against scale capacity.
//
// To build without the panel attached (bench bring-up), use:
//
//	tinygo build -tags=nolcd -target=pico -o firmware.uf2 .
//
// The nolcd stub has no machine dependency, so the row helpers in this
// package also run on the host with `go test -tags nolcd`.
package display

import (
	"errors"
	"machine"
	"time"

	"tinygo.org/x/drivers/hd44780i2c"
)

const (
	// I2C wiring for the PCF8574 backpack
	i2cAddress = 0x27
	sdaPin     = machine.GP4
	sclPin     = machine.GP5

	// Panel dimensions
	Cols = 16
	Rows = 2
)

// Manager owns the LCD. A nil Manager is a valid headless panel: every
// method is a no-op on it, so callers never guard a failed init.
type Manager struct {
	device hd44780i2c.Device
}

// NewManager configures I2C0 and the panel and shows the splash rows.
// On error the station runs headless with a nil manager.
func NewManager() (*Manager, error) {
	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{
		SDA: sdaPin,
		SCL: sclPin,
	}); err != nil {
		return nil, errors.New("i2c configure:" + err.Error())
	}

	// Small delay for bus stabilization
	time.Sleep(10 * time.Millisecond)

	dev := hd44780i2c.New(i2c, i2cAddress)
	if err := dev.Configure(hd44780i2c.Config{
		Width:  Cols,
		Height: Rows,
	}); err != nil {
		return nil, errors.New("lcd configure:" + err.Error())
	}

	m := &Manager{device: dev}

	// The one and only full clear; afterwards rows are rewritten whole.
	m.device.ClearDisplay()
	m.writeRow(0, Pad("checkweigher", Cols))
	m.writeRow(1, Pad("waiting for data", Cols))

	return m, nil
}

// ShowReading rewrites both rows for one completed line: raw text on
// row 0, the capacity bar on row 1. Each row is a single full-width
// write, so updates at the scale's print rate do not flicker.
func (m *Manager) ShowReading(raw string, weight, capacity float64, width int) {
	if m == nil {
		return
	}
	if width < 1 || width > Cols {
		width = Cols
	}
	m.writeRow(0, Pad(raw, width))
	m.writeRow(1, Bar(weight, capacity, width))
}

func (m *Manager) writeRow(row uint8, cells []byte) {
	m.device.SetCursor(0, row)
	m.device.Print(cells)
}
