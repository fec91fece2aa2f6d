// ABOUTME: WebSocket client for the haptic device server
// ABOUTME: Handles connection, hello handshake, and intensity commands
package haptics

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/luuxx/hapticsync/internal/protocol"
	"github.com/luuxx/hapticsync/internal/version"
)

// DeviceConfig holds device client configuration.
type DeviceConfig struct {
	Addr   string // host:port of the device server
	Name   string // friendly client name
	Logger *log.Logger
}

// Device is a websocket client for a haptic device server. It implements
// the Sink boundary.
type Device struct {
	config DeviceConfig
	logger *log.Logger

	mu             sync.RWMutex
	conn           *websocket.Conn
	connected      bool
	anticipationMs int

	ctx    context.Context
	cancel context.CancelFunc
}

var _ Sink = (*Device)(nil)

// NewDevice creates a device client.
func NewDevice(config DeviceConfig) *Device {
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Device{
		config: config,
		logger: config.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Connect dials the device server and performs the hello handshake.
func (d *Device) Connect() error {
	u := url.URL{Scheme: "ws", Host: d.config.Addr, Path: "/haptic"}
	d.logger.Printf("Connecting to device server %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("device dial failed: %w", err)
	}

	d.mu.Lock()
	d.conn = conn
	d.connected = true
	d.mu.Unlock()

	if err := d.handshake(); err != nil {
		d.Close()
		return fmt.Errorf("device handshake failed: %w", err)
	}

	go d.readMessages()

	return nil
}

// handshake sends device/hello and waits for server/hello, which carries
// the device's anticipation delay.
func (d *Device) handshake() error {
	hello := protocol.DeviceHello{
		ClientID:        uuid.New().String(),
		Name:            d.config.Name,
		Product:         version.Product,
		Manufacturer:    version.Manufacturer,
		SoftwareVersion: version.Version,
	}

	if err := d.send(protocol.TypeDeviceHello, hello); err != nil {
		return fmt.Errorf("send device/hello: %w", err)
	}

	d.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := d.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read server/hello: %w", err)
	}
	d.conn.SetReadDeadline(time.Time{})

	msgType, raw, err := protocol.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("parse server/hello: %w", err)
	}
	if msgType != protocol.TypeServerHello {
		return fmt.Errorf("expected %s, got %s", protocol.TypeServerHello, msgType)
	}

	srv, err := protocol.UnmarshalPayload[protocol.ServerHello](raw)
	if err != nil {
		return fmt.Errorf("decode server/hello: %w", err)
	}

	d.mu.Lock()
	d.anticipationMs = srv.AnticipationMs
	d.mu.Unlock()

	d.logger.Printf("Device handshake complete: server=%s anticipation=%dms",
		srv.Name, srv.AnticipationMs)

	return nil
}

// readMessages drains the connection so pings and closes are handled;
// the device link is command-oriented and the server sends little back.
func (d *Device) readMessages() {
	defer d.Close()

	for {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		_, data, err := d.conn.ReadMessage()
		if err != nil {
			d.logger.Printf("Device read error: %v", err)
			return
		}

		msgType, _, err := protocol.Unmarshal(data)
		if err != nil {
			d.logger.Printf("Device sent malformed message: %v", err)
			continue
		}
		d.logger.Printf("Device message: %s", msgType)
	}
}

// send marshals and writes one envelope under the write lock.
func (d *Device) send(msgType string, payload interface{}) error {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return fmt.Errorf("device not connected")
	}
	return d.conn.WriteMessage(websocket.TextMessage, data)
}

// SetSyncIntensity sends a continuous intensity command.
func (d *Device) SetSyncIntensity(ctx context.Context, value float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if value < 0 {
		value = 0
	} else if value > 1 {
		value = 1
	}

	return d.send(protocol.TypeDeviceIntensity, protocol.DeviceIntensity{Value: value})
}

// Stop silences the device.
func (d *Device) Stop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.send(protocol.TypeDeviceStop, nil)
}

// IsConnected reports connection status.
func (d *Device) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// AnticipationMs returns the device's reported anticipation delay.
func (d *Device) AnticipationMs() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.anticipationMs
}

// Close closes the device connection.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		d.connected = false
		d.cancel()
		d.conn.Close()
		d.logger.Printf("Device connection closed")
	}
}
