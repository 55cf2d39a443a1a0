// Check-weighing station firmware for the RP2040.
//
// A serial bench scale auto-prints one line per reading on UART0. Each
// completed line is parsed, classified against the accept band and fanned
// out to the band lamps, the LCD panel and the telemetry queue. A host
// can probe and reconfigure the station over the USB CDC port.
//
// Wiring:
//
//	UART0 RX (GP1)   <- scale RS-232 TX via level shifter, 9600 8N1
//	I2C0 (GP4/GP5)   <- 16x2 HD44780 panel on a PCF8574 backpack
//	GP13/GP14/GP15   -> under / accept / over lamps
//	UART1 TX (GP8)   -> debug log console, 115200
//	USB CDC          <- host configuration protocol
//
// Build:
//
//	tinygo build -target=pico -o firmware.uf2 .
//
// Pico W with MQTT telemetry:
//
//	tinygo build -target=pico-w -tags=picow -o firmware.uf2 .
package main

import (
	"log/slog"
	"machine"
	"runtime"
	"time"

	"github.com/stephan-lechner/tinygo-checkweigher-rp2040/pkg/checkweigh"
	"github.com/stephan-lechner/tinygo-checkweigher-rp2040/pkg/config"
	"github.com/stephan-lechner/tinygo-checkweigher-rp2040/pkg/display"
	"github.com/stephan-lechner/tinygo-checkweigher-rp2040/pkg/protocol"
	"github.com/stephan-lechner/tinygo-checkweigher-rp2040/pkg/telemetry"
	"github.com/stephan-lechner/tinygo-checkweigher-rp2040/serial"
)

const (
	scaleBaud = 9600
	debugBaud = 115200

	lampLowPin  = machine.GP13
	lampOkPin   = machine.GP14
	lampHighPin = machine.GP15

	hostname   = "checkweigher"
	brokerAddr = "10.0.0.9:1883"
)

func main() {
	logger := newLogger()
	cfg := config.Default()

	lcd, err := display.NewManager()
	if err != nil {
		// Headless: the station weighs fine without a panel.
		logger.Error("lcd:init-failed", slog.String("err", err.Error()))
		lcd = nil
	}

	readings := make(chan telemetry.Reading, 8)
	station := checkweigh.NewStation(cfg, lcd, configureLamps(), readings, logger)

	// Host protocol on the USB CDC port.
	go protocol.Serve(
		serial.NewByteReader(machine.Serial),
		machine.Serial,
		protocol.NewHandler(station),
		logger,
	)

	startTelemetry(readings, logger)

	// Scale feed on UART0.
	uart := machine.UART0
	if err := uart.Configure(machine.UARTConfig{
		BaudRate: scaleBaud,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	}); err != nil {
		logger.Error("uart:config-failed", slog.String("err", err.Error()))
	}
	port := serial.NewPort(uart, int(cfg.MaxLine))

	logger.Info("station:ready",
		slog.Float64("low", float64(cfg.LowLimit)),
		slog.Float64("high", float64(cfg.HighLimit)),
		slog.Float64("capacity", float64(cfg.Capacity)),
	)

	// One byte per pass; a completed line is fully classified, presented
	// and counted before the next byte is read.
	for {
		line, done := port.Poll()
		if done {
			station.HandleLine(line)
			continue
		}
		runtime.Gosched()
	}
}

// newLogger puts the debug log on UART1 so it never interleaves with the
// host protocol on USB.
func newLogger() *slog.Logger {
	uart := machine.UART1
	uart.Configure(machine.UARTConfig{
		BaudRate: debugBaud,
		TX:       machine.UART1_TX_PIN,
		RX:       machine.UART1_RX_PIN,
	})
	return slog.New(slog.NewTextHandler(uart, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func configureLamps() *checkweigh.Outputs {
	for _, pin := range []machine.Pin{lampLowPin, lampOkPin, lampHighPin} {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}
	return checkweigh.NewOutputs(lampLowPin, lampOkPin, lampHighPin)
}

// startTelemetry launches the MQTT publisher when the build has a radio.
// The whole bring-up runs in the client's goroutine: joining WiFi can
// take as long as the access point takes to appear, and the scale must
// weigh the whole time. Plain pico builds hit the ErrNoRadio branch
// inside Start and run standalone.
func startTelemetry(readings chan telemetry.Reading, logger *slog.Logger) {
	client := &telemetry.Client{
		ID:      hostname,
		Topic:   "checkweigher/readings",
		Timeout: 5 * time.Second,
		Logger:  logger,
	}
	client.Start(func() (telemetry.DialFunc, error) {
		return telemetry.NewDialer(telemetry.NetConfig{
			Hostname: hostname,
			Broker:   brokerAddr,
			Logger:   logger,
		})
	}, readings)
}
