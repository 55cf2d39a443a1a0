package telemetry

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	mqtt "github.com/soypat/natiu-mqtt"
)

// ErrNoRadio is reported by NewDialer on builds without the picow tag.
var ErrNoRadio = errors.New("no radio on this build")

var pubFlags, _ = mqtt.NewPublishFlags(mqtt.QoS0, false, false)

// Conn is the transport a dialer hands back: a TCP connection to the
// broker with deadline support for the MQTT handshake and publishes.
type Conn interface {
	io.ReadWriteCloser
	SetDeadline(t time.Time) error
}

// DialFunc opens a fresh connection to the broker. The network bring-up
// behind it (radio init, WiFi join, DHCP) happens once in NewDialer.
type DialFunc func() (Conn, error)

// NetConfig configures the network side of telemetry.
type NetConfig struct {
	// Hostname is used for DHCP requests.
	Hostname string
	// Broker is the MQTT broker as host:port; host may be an IP literal
	// or a DNS name.
	Broker string
	// Logger for network and session events.
	Logger *slog.Logger
}

// Client publishes queued readings to the broker and reconnects forever
// when the session drops.
type Client struct {
	ID                string
	Topic             string
	Timeout           time.Duration
	HeartbeatInterval time.Duration
	// IdlePoll paces the session loop when nothing is queued. Zero
	// selects the default.
	IdlePoll time.Duration
	Logger   *slog.Logger
}

const defaultIdlePoll = 50 * time.Millisecond

// idlePoll returns the pause applied when a connected session has no
// work pending, so the loop does not spin between readings.
func (c *Client) idlePoll() time.Duration {
	if c.IdlePoll > 0 {
		return c.IdlePoll
	}
	return defaultIdlePoll
}

// Start brings the network up and runs the publisher, all in its own
// goroutine. Bring-up can block indefinitely (radio init, WiFi join,
// DHCP wait for an access point that may not be there), so Start
// returns immediately and the weighing loop never waits on it. When
// setup fails, telemetry stays off and the station runs standalone.
func (c *Client) Start(setup func() (DialFunc, error), readings <-chan Reading) {
	go func() {
		dial, err := setup()
		if err != nil {
			logger := c.Logger
			if logger == nil {
				logger = slog.New(slog.NewTextHandler(io.Discard, nil))
			}
			logger.Info("telemetry:off", slog.String("reason", err.Error()))
			return
		}
		c.Run(dial, readings)
	}()
}

// Run dials, speaks MQTT and drains the readings channel until the
// process ends. Every failure path sleeps and retries; the caller just
// starts Run in a goroutine and forgets it.
func (c *Client) Run(dial DialFunc, readings <-chan Reading) {
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	heartbeatInterval := c.HeartbeatInterval
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}
	topic := c.Topic
	if topic == "" {
		topic = "checkweigher/readings"
	}
	idle := c.idlePoll()

	cfg := mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 1024)},
		OnPub: func(pubHead mqtt.Header, varPub mqtt.VariablesPublish, r io.Reader) error {
			// We publish only; nothing is subscribed.
			logger.Info("mqtt:unexpected-publish", slog.String("topic", string(varPub.TopicName)))
			return nil
		},
	}
	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(c.ID))

	mqttClient := mqtt.NewClient(cfg)
	pubVar := mqtt.VariablesPublish{TopicName: []byte(topic)}

	for {
		conn, err := dial()
		if err != nil {
			logger.Error("telemetry:dial-failed", slog.String("err", err.Error()))
			time.Sleep(5 * time.Second)
			continue
		}

		// MQTT connect with a deadline on the socket.
		conn.SetDeadline(time.Now().Add(timeout))
		if err := mqttClient.StartConnect(conn, &varconn); err != nil {
			logger.Error("mqtt:start-connect-failed", slog.String("reason", err.Error()))
			conn.Close()
			time.Sleep(2 * time.Second)
			continue
		}
		for retries := 50; retries > 0 && !mqttClient.IsConnected(); retries-- {
			time.Sleep(100 * time.Millisecond)
			if err := mqttClient.HandleNext(); err != nil {
				logger.Error("mqtt:handle-next-failed", slog.String("err", err.Error()))
			}
		}
		if !mqttClient.IsConnected() {
			logger.Error("mqtt:connect-failed", slog.Any("reason", mqttClient.Err()))
			conn.Close()
			time.Sleep(2 * time.Second)
			continue
		}
		logger.Info("mqtt:connected", slog.String("topic", topic))

		heartbeat := time.NewTicker(heartbeatInterval)
		for mqttClient.IsConnected() {
			select {
			case reading := <-readings:
				payload, err := json.Marshal(reading)
				if err != nil {
					logger.Error("mqtt:marshal-failed", slog.Any("reason", err))
					continue
				}
				conn.SetDeadline(time.Now().Add(timeout))
				pubVar.PacketIdentifier++
				if err := mqttClient.PublishPayload(pubFlags, pubVar, payload); err != nil {
					logger.Error("mqtt:publish-failed", slog.Any("reason", err))
					continue
				}
				if err := mqttClient.HandleNext(); err != nil {
					logger.Error("mqtt:handle-next-failed", slog.String("err", err.Error()))
				}
			case <-heartbeat.C:
				// No readings since the last interval; process broker
				// pings so the session stays alive.
				if err := mqttClient.HandleNext(); err != nil {
					logger.Error("mqtt:handle-next-failed", slog.String("err", err.Error()))
				}
			default:
				// Nothing pending: sleep rather than spin so the
				// weighing loop and the network pump get the core.
				time.Sleep(idle)
			}
		}
		heartbeat.Stop()

		logger.Error("mqtt:disconnected", slog.Any("reason", mqttClient.Err()))
		conn.Close()
		time.Sleep(2 * time.Second)
	}
}

// splitHostPort splits a host:port string into host and port components.
func splitHostPort(addr string) (host, port string, err error) {
	// Find the last colon to support IPv6 addresses
	colonIdx := -1
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			colonIdx = i
			break
		}
	}

	if colonIdx == -1 {
		return "", "", errors.New("missing port in address")
	}

	host = addr[:colonIdx]
	port = addr[colonIdx+1:]

	if host == "" {
		return "", "", errors.New("empty host")
	}
	if port == "" {
		return "", "", errors.New("empty port")
	}

	return host, port, nil
}

// parsePort converts a port string to uint16. Returns 0 if parsing
// fails; 0 is never a usable broker port, so callers treat it as an
// error.
func parsePort(portStr string) uint16 {
	var port uint16
	for i := 0; i < len(portStr); i++ {
		if portStr[i] < '0' || portStr[i] > '9' {
			return 0
		}
		port = port*10 + uint16(portStr[i]-'0')
	}
	return port
}
