// ABOUTME: Tests for the device websocket client
// ABOUTME: Covers the hello handshake and intensity command framing
package haptics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luuxx/hapticsync/internal/protocol"
)

// fakeServer is a minimal device server for tests.
type fakeServer struct {
	anticipationMs int
	received       chan []byte
}

func (f *fakeServer) handler(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Handshake: expect device/hello, answer server/hello
	_, data, err := conn.ReadMessage()
	if err != nil {
		return
	}
	msgType, _, err := protocol.Unmarshal(data)
	if err != nil || msgType != protocol.TypeDeviceHello {
		return
	}

	resp, _ := protocol.Marshal(protocol.TypeServerHello, protocol.ServerHello{
		ServerID:       "test-server",
		Name:           "Test Device Server",
		AnticipationMs: f.anticipationMs,
	})
	if err := conn.WriteMessage(websocket.TextMessage, resp); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		f.received <- data
	}
}

func startFakeServer(t *testing.T, anticipationMs int) (*fakeServer, string) {
	t.Helper()

	fs := &fakeServer{
		anticipationMs: anticipationMs,
		received:       make(chan []byte, 16),
	}
	ts := httptest.NewServer(http.HandlerFunc(fs.handler))
	t.Cleanup(ts.Close)

	return fs, strings.TrimPrefix(ts.URL, "http://")
}

func (f *fakeServer) next(t *testing.T) (string, []byte) {
	t.Helper()
	select {
	case data := <-f.received:
		msgType, raw, err := protocol.Unmarshal(data)
		if err != nil {
			t.Fatalf("server received malformed message: %v", err)
		}
		return msgType, raw
	case <-time.After(time.Second):
		t.Fatal("server received no message")
		return "", nil
	}
}

func TestDeviceHandshake(t *testing.T) {
	_, addr := startFakeServer(t, 150)

	d := NewDevice(DeviceConfig{Addr: addr, Name: "test-client"})
	if err := d.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer d.Close()

	if !d.IsConnected() {
		t.Error("IsConnected false after successful connect")
	}
	if d.AnticipationMs() != 150 {
		t.Errorf("AnticipationMs = %d, want 150", d.AnticipationMs())
	}
}

func TestDeviceIntensityCommand(t *testing.T) {
	fs, addr := startFakeServer(t, 0)

	d := NewDevice(DeviceConfig{Addr: addr, Name: "test-client"})
	if err := d.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer d.Close()

	if err := d.SetSyncIntensity(context.Background(), 0.75); err != nil {
		t.Fatalf("SetSyncIntensity: %v", err)
	}

	msgType, raw := fs.next(t)
	if msgType != protocol.TypeDeviceIntensity {
		t.Fatalf("message type = %q, want %q", msgType, protocol.TypeDeviceIntensity)
	}
	cmd, err := protocol.UnmarshalPayload[protocol.DeviceIntensity](raw)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if cmd.Value != 0.75 {
		t.Errorf("intensity = %v, want 0.75", cmd.Value)
	}
}

func TestDeviceIntensityClamped(t *testing.T) {
	fs, addr := startFakeServer(t, 0)

	d := NewDevice(DeviceConfig{Addr: addr, Name: "test-client"})
	if err := d.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer d.Close()

	if err := d.SetSyncIntensity(context.Background(), 1.5); err != nil {
		t.Fatalf("SetSyncIntensity: %v", err)
	}

	_, raw := fs.next(t)
	cmd, _ := protocol.UnmarshalPayload[protocol.DeviceIntensity](raw)
	if cmd.Value != 1.0 {
		t.Errorf("intensity = %v, want clamped to 1.0", cmd.Value)
	}
}

func TestDeviceStopCommand(t *testing.T) {
	fs, addr := startFakeServer(t, 0)

	d := NewDevice(DeviceConfig{Addr: addr, Name: "test-client"})
	if err := d.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer d.Close()

	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	msgType, _ := fs.next(t)
	if msgType != protocol.TypeDeviceStop {
		t.Errorf("message type = %q, want %q", msgType, protocol.TypeDeviceStop)
	}
}

func TestDeviceSendAfterClose(t *testing.T) {
	_, addr := startFakeServer(t, 0)

	d := NewDevice(DeviceConfig{Addr: addr, Name: "test-client"})
	if err := d.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	d.Close()
	if d.IsConnected() {
		t.Error("IsConnected true after Close")
	}
	if err := d.SetSyncIntensity(context.Background(), 0.5); err == nil {
		t.Error("expected error sending after Close")
	}
}
