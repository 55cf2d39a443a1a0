// Package config defines the runtime configuration for the check-weigh
// station. The struct is laid out for zero-allocation binary
// serialization because it travels over the host protocol as a fixed-size
// record.
package config

import (
	"encoding/binary"
	"errors"
	"math"
)

// CurrentVersion is the config format version.
// Bump this when making breaking changes to the config layout.
// The host protocol rejects configs carrying a different version.
const CurrentVersion uint16 = 1

// Size is the marshaled length in bytes.
const Size = 18

// Config holds the station's weighing parameters. Limits and capacity
// are in whatever unit the scale prints; the station never converts.
// Total size: 18 bytes
// Layout:
//
//	[0-1]:   Version (uint16)
//	[2-5]:   LowLimit (float32)
//	[6-9]:   HighLimit (float32)
//	[10-13]: Capacity (float32)
//	[14]:    RowWidth (uint8)
//	[15]:    MaxLine (uint8)
//	[16-17]: Reserved (uint16)
type Config struct {
	Version   uint16  // Config format version
	LowLimit  float32 // Lower accept limit, inclusive
	HighLimit float32 // Upper accept limit, inclusive
	Capacity  float32 // Full-scale capacity for the bar graph
	RowWidth  uint8   // Panel row width in characters
	MaxLine   uint8   // Longest accepted scale line in bytes
	Reserved  uint16  // Padding / future use
}

// Default returns the shipping configuration: a 5 kg nominal with a
// +/-10 unit accept band on a 6200-unit scale, a 16-column panel, and
// 41-character lines (the longest line the scale's print format emits).
func Default() Config {
	return Config{
		Version:   CurrentVersion,
		LowLimit:  4990,
		HighLimit: 5010,
		Capacity:  6200,
		RowWidth:  16,
		MaxLine:   41,
	}
}

// Errors
var (
	ErrInvalidSize   = errors.New("invalid config size")
	ErrLimitRange    = errors.New("limit not a finite number")
	ErrLimitOrder    = errors.New("low limit above high limit")
	ErrCapacityRange = errors.New("capacity must be positive and finite")
	ErrRowWidthRange = errors.New("row width out of range")
	ErrMaxLineRange  = errors.New("max line length out of range")
)

// Validate checks the configuration before it is applied. Unmarshaled
// bytes can encode NaN or infinity in the float fields, so limits are
// checked for finiteness, not just order.
func (c *Config) Validate() error {
	if !finite(c.LowLimit) || !finite(c.HighLimit) {
		return ErrLimitRange
	}
	if c.LowLimit > c.HighLimit {
		return ErrLimitOrder
	}
	if !finite(c.Capacity) || c.Capacity <= 0 {
		return ErrCapacityRange
	}
	// 40 columns is the longest row an HD44780 controller addresses.
	if c.RowWidth < 1 || c.RowWidth > 40 {
		return ErrRowWidthRange
	}
	// 64 bytes is the assembler's buffer capacity.
	if c.MaxLine < 1 || c.MaxLine > 64 {
		return ErrMaxLineRange
	}
	return nil
}

func finite(f float32) bool {
	f64 := float64(f)
	return !math.IsNaN(f64) && !math.IsInf(f64, 0)
}

// MarshalBinary implements encoding.BinaryMarshaler for Config.
func (c *Config) MarshalBinary() ([]byte, error) {
	buf := make([]byte, Size)
	binary.LittleEndian.PutUint16(buf[0:], c.Version)
	binary.LittleEndian.PutUint32(buf[2:], math.Float32bits(c.LowLimit))
	binary.LittleEndian.PutUint32(buf[6:], math.Float32bits(c.HighLimit))
	binary.LittleEndian.PutUint32(buf[10:], math.Float32bits(c.Capacity))
	buf[14] = c.RowWidth
	buf[15] = c.MaxLine
	binary.LittleEndian.PutUint16(buf[16:], c.Reserved)
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for Config.
func (c *Config) UnmarshalBinary(data []byte) error {
	if len(data) < Size {
		return ErrInvalidSize
	}

	c.Version = binary.LittleEndian.Uint16(data[0:])
	c.LowLimit = math.Float32frombits(binary.LittleEndian.Uint32(data[2:]))
	c.HighLimit = math.Float32frombits(binary.LittleEndian.Uint32(data[6:]))
	c.Capacity = math.Float32frombits(binary.LittleEndian.Uint32(data[10:]))
	c.RowWidth = data[14]
	c.MaxLine = data[15]
	c.Reserved = binary.LittleEndian.Uint16(data[16:])
	return nil
}
