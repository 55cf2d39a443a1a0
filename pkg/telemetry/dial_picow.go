//go:build picow

package telemetry

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"runtime"
	"time"

	"github.com/soypat/cyw43439"
	"github.com/soypat/lneto/tcp"
	"github.com/soypat/lneto/x/xnet"
)

// WiFi credentials, set at link time:
//
//	tinygo build -target=pico-w -tags=picow \
//	  -ldflags="-X 'github.com/stephan-lechner/tinygo-checkweigher-rp2040/pkg/telemetry.ssid=MyNet' -X 'github.com/stephan-lechner/tinygo-checkweigher-rp2040/pkg/telemetry.pass=secret'" .
var (
	ssid string
	pass string
)

const (
	mtu        = cyw43439.MTU
	tcpBufSize = 2030 // MTU - ethhdr - iphdr - tcphdr
	pollTime   = 50 * time.Millisecond
)

// netstack owns the radio and the IP stack shared by every dial.
type netstack struct {
	s       xnet.StackAsync
	dev     *cyw43439.Device
	log     *slog.Logger
	sendbuf []byte
}

// NewDialer brings the radio up once (init, WiFi join, DHCP) and returns
// a DialFunc that opens a fresh TCP connection to cfg.Broker per call.
// The join loop retries forever; a wrong SSID blocks here rather than
// failing, matching a station that boots before the access point.
func NewDialer(cfg NetConfig) (DialFunc, error) {
	if cfg.Hostname == "" {
		return nil, errors.New("empty hostname")
	}
	host, portStr, err := splitHostPort(cfg.Broker)
	if err != nil {
		return nil, errors.New("broker address:" + err.Error())
	}
	port := parsePort(portStr)
	if port == 0 {
		return nil, errors.New("broker address: bad port " + portStr)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	start := time.Now()
	dev := cyw43439.NewPicoWDevice()
	dev.SetLogger(logger)
	if err := dev.Init(cyw43439.DefaultWifiConfig()); err != nil {
		return nil, errors.New("wifi init:" + err.Error())
	}

	for {
		err := dev.JoinWPA2(ssid, pass)
		if err == nil {
			break
		}
		logger.Error("wifi:join-failed", slog.String("err", err.Error()))
		time.Sleep(5 * time.Second)
	}

	mac, err := dev.HardwareAddr6()
	if err != nil {
		return nil, errors.New("get hardware address:" + err.Error())
	}
	logger.Info("wifi:joined", slog.String("mac", net.HardwareAddr(mac[:]).String()))

	ns := &netstack{
		dev:     dev,
		log:     logger,
		sendbuf: make([]byte, mtu),
	}
	err = ns.s.Reset(xnet.StackConfig{
		Hostname:        cfg.Hostname,
		MaxTCPConns:     1,
		RandSeed:        time.Since(start).Nanoseconds(),
		HardwareAddress: mac,
		MTU:             mtu,
	})
	if err != nil {
		return nil, errors.New("stack reset:" + err.Error())
	}
	dev.RecvEthHandle(func(pkt []byte) error {
		return ns.s.Demux(pkt, 0)
	})
	go ns.pump()

	rstack := ns.s.StackRetrying(pollTime)

	results, err := rstack.DoDHCPv4([4]byte{0, 0, 0, 0}, 3*time.Second, 3)
	if err != nil {
		return nil, errors.New("dhcp:" + err.Error())
	}
	if err := ns.s.AssimilateDHCPResults(results); err != nil {
		return nil, errors.New("assimilate dhcp:" + err.Error())
	}

	// Resolve and set the router hardware address as the gateway
	gatewayHW, err := rstack.DoResolveHardwareAddress6(results.Router, 500*time.Millisecond, 4)
	if err != nil {
		return nil, errors.New("resolve gateway:" + err.Error())
	}
	ns.s.SetGateway6(gatewayHW)

	logger.Info("net:ready",
		slog.String("ip", results.AssignedAddr.String()),
		slog.String("router", results.Router.String()),
	)

	dial := func() (Conn, error) {
		// IP literal first, DNS otherwise. Resolved per dial so a broker
		// that moves behind its name comes back after a reconnect.
		brokerAddr, err := netip.ParseAddr(host)
		if err != nil {
			addrs, lookupErr := rstack.DoLookupIP(host, 5*time.Second, 3)
			if lookupErr != nil {
				return nil, errors.New("dns lookup for " + host + ": " + lookupErr.Error())
			}
			if len(addrs) == 0 {
				return nil, errors.New("dns lookup for " + host + ": no addresses returned")
			}
			brokerAddr = addrs[0]
		}

		conn := &tcp.Conn{}
		err = conn.Configure(tcp.ConnConfig{
			RxBuf:             make([]byte, tcpBufSize),
			TxBuf:             make([]byte, tcpBufSize),
			TxPacketQueueSize: 3,
		})
		if err != nil {
			return nil, errors.New("tcp configure:" + err.Error())
		}

		localPort := uint16(ns.s.Prand32()>>17) + 1024
		logger.Info("socket:dialing",
			slog.String("broker", brokerAddr.String()),
			slog.Uint64("localPort", uint64(localPort)),
		)
		err = rstack.DoDialTCP(conn, localPort, netip.AddrPortFrom(brokerAddr, port), 10*time.Second, 3)
		if err != nil {
			conn.Abort()
			return nil, errors.New("dial:" + err.Error())
		}
		return brokerConn{conn}, nil
	}
	return dial, nil
}

// brokerConn upgrades Close to wait out the FIN handshake and then
// abort, so the stack's single TCP slot is free for the next dial.
type brokerConn struct {
	*tcp.Conn
}

func (b brokerConn) Close() error {
	err := b.Conn.Close()
	for i := 0; i < 50 && !b.Conn.State().IsClosed(); i++ {
		time.Sleep(100 * time.Millisecond)
	}
	b.Conn.Abort()
	return err
}

// pump moves frames between the radio and the stack for the life of the
// firmware. Single core: yield whenever a pass did no work.
func (ns *netstack) pump() {
	for {
		send, recv := ns.exchange()
		if send == 0 && recv == 0 {
			runtime.Gosched()
		}
	}
}

func (ns *netstack) exchange() (send, recv int) {
	gotPacket, err := ns.dev.PollOne()
	if gotPacket {
		recv = 1
	}
	if err != nil {
		ns.log.Error("net:poll-failed", slog.String("err", err.Error()))
	}

	send, err = ns.s.Encapsulate(ns.sendbuf, -1, 0)
	if err != nil {
		ns.log.Error("net:encapsulate-failed", slog.Int("plen", send), slog.String("err", err.Error()))
		return send, recv
	}
	if send == 0 {
		return send, recv
	}

	if err := ns.dev.SendEth(ns.sendbuf[:send]); err != nil {
		ns.log.Error("net:send-failed", slog.Int("plen", send), slog.String("err", err.Error()))
	}
	return send, recv
}
