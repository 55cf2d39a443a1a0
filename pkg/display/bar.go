package display

import "math"

// Cell values as sent to the panel. 0xFF is the HD44780 character ROM's
// full-block glyph.
const (
	cellFull  byte = 0xFF
	cellEmpty byte = ' '
)

// Bar renders weight as a proportional gauge of exactly width cells,
// rounding to the nearest cell. The cell count is clamped to [0, width]:
// an over-capacity item shows a full bar, a negative (tare-offset)
// reading an empty one. A non-positive capacity renders empty rather
// than divide.
func Bar(weight, capacity float64, width int) []byte {
	if width <= 0 {
		return nil
	}
	// Clamp in the float domain: the ratio can be large enough that
	// converting it to int first would overflow and come out negative.
	filled := 0
	if capacity > 0 {
		switch {
		case weight >= capacity:
			filled = width
		case weight > 0:
			filled = int(math.Round(weight / capacity * float64(width)))
		}
	}
	cells := make([]byte, width)
	for i := range cells {
		if i < filled {
			cells[i] = cellFull
		} else {
			cells[i] = cellEmpty
		}
	}
	return cells
}
