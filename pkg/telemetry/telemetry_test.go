package telemetry

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSendQueues(t *testing.T) {
	ch := make(chan Reading, 2)
	r := Reading{Weight: 5000, Band: "ok", Valid: true, Raw: "5000 g"}

	if !Send(ch, r) {
		t.Fatal("Send failed with room in the channel")
	}
	got := <-ch
	if got.Weight != 5000 || got.Band != "ok" || !got.Valid {
		t.Errorf("queued reading: expected 5000/ok/valid, got %+v", got)
	}
}

func TestSendDropsWhenFull(t *testing.T) {
	ch := make(chan Reading, 1)
	if !Send(ch, Reading{Weight: 1}) {
		t.Fatal("first Send failed")
	}
	// Channel now full; this must drop, not block.
	if Send(ch, Reading{Weight: 2}) {
		t.Error("Send reported success with a full channel")
	}
	got := <-ch
	if got.Weight != 1 {
		t.Errorf("kept reading: expected weight 1, got %v", got.Weight)
	}
}

func TestReadingJSON(t *testing.T) {
	r := Reading{
		Weight:   4989.5,
		Band:     "low",
		Valid:    true,
		Raw:      "  4989.5 g S",
		UptimeMS: 120000,
	}

	payload, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded Reading
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded != r {
		t.Errorf("roundtrip: expected %+v, got %+v", r, decoded)
	}

	expected := `{"weight":4989.5,"band":"low","valid":true,"raw":"  4989.5 g S","uptime_ms":120000}`
	if string(payload) != expected {
		t.Errorf("payload: expected %s, got %s", expected, payload)
	}
}

func TestReadingJSONOmitsEmptyRaw(t *testing.T) {
	payload, err := json.Marshal(Reading{Weight: 0, Band: "low"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	expected := `{"weight":0,"band":"low","valid":false,"uptime_ms":0}`
	if string(payload) != expected {
		t.Errorf("payload: expected %s, got %s", expected, payload)
	}
}

func TestStartDoesNotWaitForNetwork(t *testing.T) {
	// Network bring-up can block forever (no access point in range);
	// Start must hand control back immediately so the weighing loop
	// keeps running without telemetry.
	block := make(chan struct{})
	defer close(block)

	client := &Client{}
	returned := make(chan struct{})
	go func() {
		client.Start(func() (DialFunc, error) {
			<-block
			return nil, ErrNoRadio
		}, nil)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Start blocked on network bring-up")
	}
}

func TestStartSetupFailureStaysOff(t *testing.T) {
	// A failed setup (stub dialer, dead radio) must not panic or leave
	// a session running; the setup must still have been attempted.
	client := &Client{}
	called := make(chan struct{})
	client.Start(func() (DialFunc, error) {
		close(called)
		return nil, ErrNoRadio
	}, nil)

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("Start never ran setup")
	}
}

func TestClientIdlePoll(t *testing.T) {
	tests := []struct {
		name     string
		idle     time.Duration
		expected time.Duration
	}{
		{"Default", 0, defaultIdlePoll},
		{"Negative", -time.Second, defaultIdlePoll},
		{"Custom", 10 * time.Millisecond, 10 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{IdlePoll: tt.idle}
			if got := c.idlePoll(); got != tt.expected {
				t.Errorf("idlePoll: expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestSplitHostPort(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		host    string
		port    string
		wantErr bool
	}{
		{"HostPort", "broker.local:1883", "broker.local", "1883", false},
		{"IPPort", "10.0.0.9:1883", "10.0.0.9", "1883", false},
		{"IPv6Port", "::1:1883", "::1", "1883", false},
		{"MissingPort", "broker.local", "", "", true},
		{"EmptyHost", ":1883", "", "", true},
		{"EmptyPort", "broker.local:", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, err := splitHostPort(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err: expected wantErr=%v, got %v", tt.wantErr, err)
			}
			if host != tt.host {
				t.Errorf("host: expected %q, got %q", tt.host, host)
			}
			if port != tt.port {
				t.Errorf("port: expected %q, got %q", tt.port, port)
			}
		})
	}
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		port     string
		expected uint16
	}{
		{"1883", 1883},
		{"8883", 8883},
		{"0", 0},
		{"abc", 0},
		{"18x3", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parsePort(tt.port); got != tt.expected {
			t.Errorf("parsePort(%q): expected %d, got %d", tt.port, tt.expected, got)
		}
	}
}
