package display

// Pad lays text into exactly width cells: left-aligned, truncated when
// long, space-filled when short. Rows are always rewritten whole so a
// short reading never leaves stale characters from the previous one and
// no clear-then-write flash is needed.
func Pad(text string, width int) []byte {
	if width <= 0 {
		return nil
	}
	cells := make([]byte, width)
	n := copy(cells, text)
	for i := n; i < width; i++ {
		cells[i] = cellEmpty
	}
	return cells
}
