// Package serial connects the firmware's byte streams: the scale's UART
// feed into the line assembler, and the USB CDC port into the frame
// codec.
package serial

import (
	"io"
	"machine"
	"runtime"

	"github.com/stephan-lechner/tinygo-checkweigher-rp2040/pkg/scale"
)

// Port polls a serial peripheral one byte at a time and assembles the
// scale's print lines.
type Port struct {
	serial machine.Serialer
	asm    *scale.Assembler
}

// NewPort wraps a configured peripheral. maxLine bounds the assembled
// lines; see scale.NewAssembler.
func NewPort(serial machine.Serialer, maxLine int) *Port {
	return &Port{
		serial: serial,
		asm:    scale.NewAssembler(maxLine),
	}
}

// Poll consumes at most one pending byte. It never blocks: with nothing
// buffered it returns immediately with done=false so the caller's loop
// can yield. When the byte completes a line, Poll returns it.
func (p *Port) Poll() (line string, done bool) {
	b, err := p.serial.ReadByte()
	if err != nil {
		return "", false
	}
	return p.asm.Feed(b)
}

// ByteReader adapts a machine.Serialer to io.Reader for the frame codec.
// Read blocks by yielding until at least one byte arrives; TinyGo is
// single-core, so the yield is what keeps the other goroutines running.
type ByteReader struct {
	serial machine.Serialer
}

// NewByteReader wraps a configured peripheral.
func NewByteReader(serial machine.Serialer) *ByteReader {
	return &ByteReader{serial: serial}
}

// Read fills p with the bytes already buffered, waiting for the first
// one. It never returns an error; the USB CDC port has no EOF.
func (r *ByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := 0
	for n == 0 {
		for r.serial.Buffered() == 0 {
			runtime.Gosched()
		}
		for n < len(p) {
			b, err := r.serial.ReadByte()
			if err != nil {
				break
			}
			p[n] = b
			n++
		}
	}
	return n, nil
}

var _ io.Reader = (*ByteReader)(nil)
