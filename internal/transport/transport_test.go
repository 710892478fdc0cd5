package transport

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/knobgrid/knobgrid-core/internal/infrastructure/config"
	"github.com/knobgrid/knobgrid-core/internal/infrastructure/logging"
	"github.com/knobgrid/knobgrid-core/internal/infrastructure/mqtt"
	"github.com/knobgrid/knobgrid-core/internal/protocol"
)

// testEngine builds a one-channel engine with two knobs for exercising
// transports end to end.
func testEngine(t *testing.T) *protocol.Engine {
	t.Helper()

	alpha, beta := 0.0, 0.0
	registry, err := protocol.NewRegistry([]protocol.Knob{
		{Name: "alpha", Unit: "dB", Min: 0, Max: 10, Value: &alpha},
		{Name: "beta", Unit: "ms", Min: 0, Max: 100, Value: &beta},
	}, 1, 2)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	engine, err := protocol.New(protocol.Config{Registry: registry})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return engine
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

func TestTCPRoundTrip(t *testing.T) {
	engine := testEngine(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close() //nolint:errcheck // Only needed the free port

	transport := NewTCP(engine, config.TCPConfig{Host: "127.0.0.1", Port: port}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- transport.Run(ctx)
	}()

	conn := dialRetry(t, fmt.Sprintf("127.0.0.1:%d", port))
	defer conn.Close() //nolint:errcheck // Test cleanup

	// Switch to extended mode, then set beta to half range.
	if _, err := conn.Write([]byte("/*0B50;")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	reply := readUntil(t, conn, "ACK=")
	if !strings.Contains(reply, "ACK=1\n") {
		t.Errorf("reply = %q, want it to contain ACK=1", reply)
	}
	if !strings.Contains(reply, "B0=50.000000\n") {
		t.Errorf("reply = %q, want it to contain B0=50.000000", reply)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Run() did not stop after cancellation")
	}
}

func TestTCPIndependentSessions(t *testing.T) {
	engine := testEngine(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close() //nolint:errcheck // Only needed the free port

	transport := NewTCP(engine, config.TCPConfig{Host: "127.0.0.1", Port: port}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go transport.Run(ctx) //nolint:errcheck // Stopped via cancel

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	extended := dialRetry(t, addr)
	defer extended.Close() //nolint:errcheck // Test cleanup
	basic := dialRetry(t, addr)
	defer basic.Close() //nolint:errcheck // Test cleanup

	// First client goes extended and issues a framed query.
	if _, err := extended.Write([]byte("/&0A;")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	reply := readUntil(t, extended, "A0=")
	if !strings.Contains(reply, "A0=0.000000\n") {
		t.Errorf("extended reply = %q, want A0=0.000000", reply)
	}

	// Second client must still be in basic mode: a lone '/' acks
	// immediately, no terminator needed. Had the first client's mode
	// switch leaked over, this byte would sit in a line buffer instead.
	if _, err := basic.Write([]byte("/")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	reply = readUntil(t, basic, "ACK=")
	if !strings.Contains(reply, "ACK=1\n") {
		t.Errorf("basic reply = %q, want ACK=1", reply)
	}
}

// dialRetry dials the transport, retrying briefly while the listener
// goroutine starts up.
func dialRetry(t *testing.T, addr string) net.Conn {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			return conn
		}
		if time.Now().After(deadline) {
			t.Fatalf("Dial(%s) error = %v", addr, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// readUntil reads from conn until the accumulated reply contains marker.
func readUntil(t *testing.T, conn net.Conn, marker string) string {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline
	var reply strings.Builder
	buf := make([]byte, 256)
	for !strings.Contains(reply.String(), marker) {
		n, err := conn.Read(buf)
		if n > 0 {
			reply.Write(buf[:n])
		}
		if err != nil {
			t.Fatalf("Read() error = %v (got %q)", err, reply.String())
		}
	}
	return reply.String()
}

// fakeBus captures bridge traffic in memory.
type fakeBus struct {
	mu        sync.Mutex
	handler   mqtt.MessageHandler
	topic     string
	published [][]byte
	unsub     []string
}

func (f *fakeBus) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topic = topic
	f.handler = handler
	return nil
}

func (f *fakeBus) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsub = append(f.unsub, topic)
	return nil
}

func (f *fakeBus) PublishResponse(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make([]byte, len(payload))
	copy(copied, payload)
	f.published = append(f.published, copied)
	return nil
}

func (f *fakeBus) deliver(payload []byte) error {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	return handler(f.topic, payload)
}

func (f *fakeBus) responses() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.published))
	copy(out, f.published)
	return out
}

func TestMQTTBridgeRoundTrip(t *testing.T) {
	engine := testEngine(t)
	bus := &fakeBus{}
	bridge := NewMQTTBridge(engine, bus, "wdrc-bench-01", 1, testLogger())

	if err := bridge.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if bus.topic != "knobgrid/wdrc-bench-01/cmd" {
		t.Errorf("subscribed topic = %q, want %q", bus.topic, "knobgrid/wdrc-bench-01/cmd")
	}

	// Mode switch acks, then a set directive echoes and acks.
	if err := bus.deliver([]byte("/")); err != nil {
		t.Fatalf("deliver(/) error = %v", err)
	}
	if err := bus.deliver([]byte("*0B25;")); err != nil {
		t.Fatalf("deliver(*0B25;) error = %v", err)
	}

	responses := bus.responses()
	if len(responses) != 2 {
		t.Fatalf("published responses = %d, want 2", len(responses))
	}
	if got := string(responses[0]); got != "ACK=1\n" {
		t.Errorf("mode switch response = %q, want %q", got, "ACK=1\n")
	}
	if got := string(responses[1]); got != "B0=25.000000\nACK=1\n" {
		t.Errorf("set response = %q, want %q", got, "B0=25.000000\nACK=1\n")
	}
}

func TestMQTTBridgeSilentPayload(t *testing.T) {
	engine := testEngine(t)
	bus := &fakeBus{}
	bridge := NewMQTTBridge(engine, bus, "wdrc-bench-01", 1, testLogger())

	if err := bridge.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Unknown basic-mode bytes produce no output and publish nothing.
	if err := bus.deliver([]byte("zz")); err != nil {
		t.Fatalf("deliver(zz) error = %v", err)
	}
	if got := len(bus.responses()); got != 0 {
		t.Errorf("published responses = %d, want 0", got)
	}
}

func TestMQTTBridgeStop(t *testing.T) {
	engine := testEngine(t)
	bus := &fakeBus{}
	bridge := NewMQTTBridge(engine, bus, "wdrc-bench-01", 1, testLogger())

	if err := bridge.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := bridge.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if len(bus.unsub) != 1 || bus.unsub[0] != "knobgrid/wdrc-bench-01/cmd" {
		t.Errorf("unsubscribed = %v, want the command topic", bus.unsub)
	}
}

func TestSerialPumpFeedsSession(t *testing.T) {
	engine := testEngine(t)
	serial := NewSerial(engine, config.SerialConfig{Port: "/dev/null", BaudRate: 115200, ReconnectDelay: 1}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	client, device := net.Pipe()
	defer client.Close() //nolint:errcheck // Test cleanup

	done := make(chan error, 1)
	go func() {
		done <- serial.pump(ctx, device)
	}()

	if _, err := client.Write([]byte("/&0B;")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	reply := readUntil(t, client, "B0=")
	if !strings.Contains(reply, "ACK=1\n") {
		t.Errorf("reply = %q, want mode-switch ack", reply)
	}
	if !strings.Contains(reply, "B0=0.000000\n") {
		t.Errorf("reply = %q, want B0=0.000000", reply)
	}

	cancel()
	client.Close()  //nolint:errcheck // Unblocks the pump read
	device.Close()  //nolint:errcheck // Unblocks the pump read
	<-done
}
