// Package scale assembles and parses the auto-print stream of a serial
// bench scale. The scale transmits one reading per line: ASCII text,
// CR+LF terminated, the weight right-justified at the start of the line
// followed by the unit and stability flags.
package scale

const (
	// MaxLineBytes is the hard capacity of the line buffer. The longest
	// line the scale's print format produces is 41 characters plus the
	// CR+LF terminator; the extra headroom absorbs odd formats without
	// growing the buffer.
	MaxLineBytes = 64

	terminator     = '\n'
	carriageReturn = '\r'
)

// Assembler builds complete lines from a byte-at-a-time stream. It owns
// the only mutable buffer in the receive path; callers feed it one byte
// per poll and act on the line it hands back.
type Assembler struct {
	buf [MaxLineBytes]byte
	n   int
	max int
}

// NewAssembler returns an assembler that finalizes lines at maxLen bytes
// even when no terminator arrives. maxLen values outside [1, MaxLineBytes]
// fall back to MaxLineBytes.
func NewAssembler(maxLen int) *Assembler {
	if maxLen < 1 || maxLen > MaxLineBytes {
		maxLen = MaxLineBytes
	}
	return &Assembler{max: maxLen}
}

// Feed consumes one byte. When the byte completes a line, either because
// a line feed arrived or because the buffer hit its limit, Feed returns
// the line and true, and the buffer is empty again for the next line.
// Every other byte is stored as content; there are no invalid input bytes.
func (a *Assembler) Feed(b byte) (line string, done bool) {
	if b == terminator {
		return a.finalize(), true
	}
	a.buf[a.n] = b
	a.n++
	if a.n >= a.max {
		// The scale stopped terminating lines (or the format is longer
		// than configured): emit what we have rather than grow or drop.
		return a.finalize(), true
	}
	return "", false
}

// finalize snapshots the buffered text and resets the assembler. A CR
// immediately before the terminator belongs to the line ending, not the
// content; an empty buffer must not be indexed for that check.
func (a *Assembler) finalize() string {
	n := a.n
	if n > 0 && a.buf[n-1] == carriageReturn {
		n--
	}
	line := string(a.buf[:n])
	a.n = 0
	return line
}
