// Package protocol implements the binary host link on the USB serial
// port. A companion app uses it to identify the station, tune the accept
// band and watch live readings without disturbing the weighing loop.
//
// Frame format:
//
//	[SYNC:1][CMD:1][LEN:2][PAYLOAD:LEN][CRC:2]
//	- SYNC: 0xAA (frame start marker)
//	- CMD: Command byte
//	- LEN: Payload length (uint16, little-endian)
//	- PAYLOAD: Variable length data
//	- CRC: CRC16-CCITT of [CMD][LEN][PAYLOAD]
//
// Responses use the same framing with a status byte in the command slot.
package protocol

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math"

	"github.com/stephan-lechner/tinygo-checkweigher-rp2040/pkg/checkweigh"
	"github.com/stephan-lechner/tinygo-checkweigher-rp2040/pkg/config"
)

const (
	SyncByte = 0xAA

	// Command codes (host → station)
	CmdPing        = 0x01
	CmdGetConfig   = 0x02
	CmdSetConfig   = 0x03
	CmdGetReading  = 0x04
	CmdGetCounts   = 0x05
	CmdResetCounts = 0x06
	CmdGetVersion  = 0x07
	CmdDiscover    = 0x08

	// Response status codes (station → host)
	StatusOK              = 0x00
	StatusError           = 0x01
	StatusInvalidCmd      = 0x02
	StatusInvalidData     = 0x03
	StatusVersionMismatch = 0x04
	StatusCRCError        = 0x05
)

// MaxPayload bounds the length field. The largest real payload is a
// GetReading response; anything bigger is line noise, not a frame.
const MaxPayload = 64

// maxReadingText is the longest raw line a GetReading response carries.
const maxReadingText = MaxPayload - 7

// Firmware version reported by CmdGetVersion.
const (
	FirmwareMajor = 1
	FirmwareMinor = 0
)

// DeviceName is the identity string returned by CmdDiscover.
const DeviceName = "checkweigher-rp2040"

var (
	ErrInvalidFrame = errors.New("invalid frame")
	ErrCRCMismatch  = errors.New("CRC mismatch")
)

// Station is the live state the handler serves. The handler itself owns
// nothing and is pure request/response.
type Station interface {
	Config() config.Config
	SetConfig(config.Config) error
	LastReading() checkweigh.Reading
	Counts() checkweigh.Counts
	ResetCounts()
}

// Frame represents a command frame.
type Frame struct {
	Cmd     uint8
	Payload []byte
}

// Response represents a response frame.
type Response struct {
	Status  uint8
	Payload []byte
}

// ReadFrame reads and validates one frame. A byte that is not the sync
// marker fails fast with ErrInvalidFrame so a desynced stream is scanned
// forward one byte at a time.
func ReadFrame(r io.Reader) (*Frame, error) {
	var header [4]byte // sync + cmd + len

	if _, err := io.ReadFull(r, header[:1]); err != nil {
		return nil, err
	}
	if header[0] != SyncByte {
		return nil, ErrInvalidFrame
	}
	if _, err := io.ReadFull(r, header[1:]); err != nil {
		return nil, err
	}

	length := binary.LittleEndian.Uint16(header[2:])
	if length > MaxPayload {
		return nil, ErrInvalidFrame
	}

	var payload []byte
	if length > 0 {
		payload = make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	var crcBytes [2]byte
	if _, err := io.ReadFull(r, crcBytes[:]); err != nil {
		return nil, err
	}
	receivedCRC := binary.LittleEndian.Uint16(crcBytes[:])

	crc := crcUpdate(crcInit, header[1:])
	crc = crcUpdate(crc, payload)
	if receivedCRC != crc {
		return nil, ErrCRCMismatch
	}

	return &Frame{
		Cmd:     header[1],
		Payload: payload,
	}, nil
}

// ReadResponse reads and validates one response frame (the host side of
// the link; the firmware never calls it).
func ReadResponse(r io.Reader) (*Response, error) {
	frame, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return &Response{Status: frame.Cmd, Payload: frame.Payload}, nil
}

// WriteResponse writes a response frame to the writer.
func WriteResponse(w io.Writer, resp *Response) error {
	_, err := w.Write(appendFrame(resp.Status, resp.Payload))
	return err
}

// WriteFrame writes a command frame (the host side of the link; also
// used by tests).
func WriteFrame(w io.Writer, frame *Frame) error {
	_, err := w.Write(appendFrame(frame.Cmd, frame.Payload))
	return err
}

// appendFrame builds a complete wire frame. Command and response frames
// share the layout; kind is the command or status byte.
func appendFrame(kind uint8, payload []byte) []byte {
	buf := make([]byte, 0, 1+1+2+len(payload)+2)

	buf = append(buf, SyncByte, kind)

	var lenBytes [2]byte
	binary.LittleEndian.PutUint16(lenBytes[:], uint16(len(payload)))
	buf = append(buf, lenBytes[:]...)

	buf = append(buf, payload...)

	var crcBytes [2]byte
	binary.LittleEndian.PutUint16(crcBytes[:], crc16(buf[1:])) // Skip sync byte
	return append(buf, crcBytes[:]...)
}

// Handler processes protocol commands against a station.
type Handler struct {
	station Station
}

// NewHandler creates a new protocol handler.
func NewHandler(st Station) *Handler {
	return &Handler{
		station: st,
	}
}

// Handle processes a command frame and returns a response.
func (h *Handler) Handle(frame *Frame) *Response {
	switch frame.Cmd {
	case CmdPing:
		return h.handlePing(frame.Payload)
	case CmdGetConfig:
		return h.handleGetConfig()
	case CmdSetConfig:
		return h.handleSetConfig(frame.Payload)
	case CmdGetReading:
		return h.handleGetReading()
	case CmdGetCounts:
		return h.handleGetCounts()
	case CmdResetCounts:
		return h.handleResetCounts()
	case CmdGetVersion:
		return h.handleGetVersion()
	case CmdDiscover:
		return h.handleDiscover()
	default:
		return &Response{Status: StatusInvalidCmd}
	}
}

// handlePing responds with the same payload (echo).
func (h *Handler) handlePing(payload []byte) *Response {
	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleGetConfig returns the active configuration.
func (h *Handler) handleGetConfig() *Response {
	cfg := h.station.Config()
	data, err := cfg.MarshalBinary()
	if err != nil {
		return &Response{Status: StatusError}
	}
	return &Response{
		Status:  StatusOK,
		Payload: data,
	}
}

// handleSetConfig applies a new configuration.
// Payload: [Config:18 bytes]
func (h *Handler) handleSetConfig(payload []byte) *Response {
	if len(payload) != config.Size {
		return &Response{Status: StatusInvalidData}
	}

	var cfg config.Config
	if err := cfg.UnmarshalBinary(payload); err != nil {
		return &Response{Status: StatusInvalidData}
	}

	// Check version
	if cfg.Version != config.CurrentVersion {
		return &Response{Status: StatusVersionMismatch}
	}

	if err := h.station.SetConfig(cfg); err != nil {
		return &Response{Status: StatusInvalidData}
	}

	return &Response{Status: StatusOK}
}

// handleGetReading returns the most recent classified reading.
// Response: [Weight:4 float32][Band:1][Valid:1][TextLen:1][Text:TextLen]
func (h *Handler) handleGetReading() *Response {
	reading := h.station.LastReading()

	text := reading.Raw
	if len(text) > maxReadingText {
		text = text[:maxReadingText]
	}

	payload := make([]byte, 7+len(text))
	binary.LittleEndian.PutUint32(payload[0:], math.Float32bits(float32(reading.Weight)))
	payload[4] = uint8(reading.Band)
	if reading.Valid {
		payload[5] = 1
	}
	payload[6] = uint8(len(text))
	copy(payload[7:], text)

	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleGetCounts returns the per-band tallies.
// Response: [Low:4][Ok:4][High:4] (uint32, little-endian)
func (h *Handler) handleGetCounts() *Response {
	counts := h.station.Counts()

	payload := make([]byte, 12)
	binary.LittleEndian.PutUint32(payload[0:], counts.Low)
	binary.LittleEndian.PutUint32(payload[4:], counts.Ok)
	binary.LittleEndian.PutUint32(payload[8:], counts.High)

	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleResetCounts zeroes the per-band tallies.
func (h *Handler) handleResetCounts() *Response {
	h.station.ResetCounts()
	return &Response{Status: StatusOK}
}

// handleGetVersion returns firmware and config version info.
// Response: [FirmwareMajor:1][FirmwareMinor:1][ConfigVersion:2]
func (h *Handler) handleGetVersion() *Response {
	payload := make([]byte, 4)
	payload[0] = FirmwareMajor
	payload[1] = FirmwareMinor
	binary.LittleEndian.PutUint16(payload[2:], config.CurrentVersion)

	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleDiscover identifies the device so a host can probe serial ports.
func (h *Handler) handleDiscover() *Response {
	return &Response{
		Status:  StatusOK,
		Payload: []byte(DeviceName),
	}
}

// Serve runs the request loop: one frame in, one response out. Garbage
// bytes are skipped silently, a frame that fails its CRC is answered
// with StatusCRCError, and the loop returns when the transport fails.
// On hardware the reader blocks forever, so Serve runs for the life of
// the firmware.
func Serve(r io.Reader, w io.Writer, h *Handler, logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	for {
		frame, err := ReadFrame(r)
		if err == ErrInvalidFrame {
			// Not at a frame boundary yet; scan forward.
			continue
		}
		if err == ErrCRCMismatch {
			logger.Warn("link:crc-mismatch")
			_ = WriteResponse(w, &Response{Status: StatusCRCError})
			continue
		}
		if err != nil {
			return
		}

		resp := h.Handle(frame)
		if err := WriteResponse(w, resp); err != nil {
			logger.Error("link:write-failed", slog.Any("reason", err))
			return
		}
	}
}

const crcInit = 0xFFFF

// crc16 calculates CRC16-CCITT over data in one shot.
// Polynomial: 0x1021, Initial: 0xFFFF
func crc16(data []byte) uint16 {
	return crcUpdate(crcInit, data)
}

// crcUpdate folds data into a running CRC16-CCITT value.
func crcUpdate(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
