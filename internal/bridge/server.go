// ABOUTME: WebSocket bridge between the in-page instrumentation layer and the sync core
// ABOUTME: Routes inbound playback events and pushes sync status back to the page
package bridge

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/luuxx/hapticsync/internal/audiosync"
	"github.com/luuxx/hapticsync/internal/protocol"
)

// Config holds bridge server configuration.
type Config struct {
	ListenAddr string
	Service    *audiosync.Service
	Logger     *log.Logger
}

// Server accepts one websocket connection from the page instrumentation
// layer, feeds its playback events into the sync service, and pushes
// sync status envelopes back. A newer connection replaces the old one.
type Server struct {
	config   Config
	logger   *log.Logger
	upgrader websocket.Upgrader

	httpServer *http.Server

	mu   sync.Mutex
	conn *websocket.Conn

	stopChan chan struct{}
	stopOnce sync.Once
}

// New creates a bridge server and wires the service's outbound
// callbacks to the page connection.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	s := &Server{
		config: config,
		logger: config.Logger,
		upgrader: websocket.Upgrader{
			// The bridge binds to loopback; the page extension is the
			// only expected peer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		stopChan: make(chan struct{}),
	}

	return s
}

// Start runs the HTTP listener until Stop is called. Blocking.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/bridge", s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:    s.config.ListenAddr,
		Handler: mux,
	}

	s.logger.Printf("Bridge listening on %s", s.config.ListenAddr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-s.stopChan:
		s.logger.Printf("Bridge shutting down...")
	case err := <-errChan:
		return fmt.Errorf("bridge server error: %w", err)
	}

	s.httpServer.Shutdown(context.Background())
	return nil
}

// Stop shuts the bridge down. Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// NotifyStarted pushes a sync/started envelope to the page.
func (s *Server) NotifyStarted(message string) {
	s.push(protocol.TypeSyncStarted, protocol.SyncStarted{Message: message})
}

// NotifyProgress pushes a sync/progress envelope to the page.
func (s *Server) NotifyProgress(current, total int, label string) {
	s.push(protocol.TypeSyncProgress, protocol.SyncProgress{Current: current, Total: total, Label: label})
}

// NotifyCompleted pushes a sync/completed envelope to the page.
func (s *Server) NotifyCompleted() {
	s.push(protocol.TypeSyncCompleted, nil)
}

// NotifyError pushes a sync/error envelope to the page.
func (s *Server) NotifyError(message string) {
	s.push(protocol.TypeSyncError, protocol.SyncError{Message: message})
}

// push sends an envelope to the connected page, if any. Status pushes
// are advisory; send failures are logged and dropped.
func (s *Server) push(msgType string, payload interface{}) {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		s.logger.Printf("Marshal %s failed: %v", msgType, err)
		return
	}

	s.mu.Lock()
	conn := s.conn
	if conn != nil {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Printf("Push %s failed: %v", msgType, err)
		}
	}
	s.mu.Unlock()
}

// handleWebSocket upgrades the page connection and runs its read loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("Bridge upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	if s.conn != nil {
		// Latest page connection wins
		s.conn.Close()
	}
	s.conn = conn
	s.mu.Unlock()

	s.logger.Printf("Page connected: %s", r.RemoteAddr)
	s.readLoop(conn)

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()

	conn.Close()
	s.logger.Printf("Page disconnected: %s", r.RemoteAddr)
}

// readLoop routes inbound page events into the sync service.
func (s *Server) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		msgType, raw, err := protocol.Unmarshal(data)
		if err != nil {
			s.logger.Printf("Malformed bridge message: %v", err)
			continue
		}

		s.dispatch(msgType, raw)
	}
}

// dispatch handles one inbound envelope. Video detection runs in its
// own goroutine because the first-chunk wait suspends for up to the
// configured timeout; heartbeats must keep flowing meanwhile.
func (s *Server) dispatch(msgType string, raw []byte) {
	switch msgType {
	case protocol.TypeVideoDetected:
		msg, err := protocol.UnmarshalPayload[protocol.VideoDetected](raw)
		if err != nil {
			s.logger.Printf("Bad %s payload: %v", msgType, err)
			return
		}
		go func() {
			if err := s.config.Service.OnVideoDetected(context.Background(), msg.URL); err != nil {
				s.logger.Printf("Video detection failed: %v", err)
			}
		}()

	case protocol.TypePlaybackUpdate:
		msg, err := protocol.UnmarshalPayload[protocol.PlaybackUpdate](raw)
		if err != nil {
			s.logger.Printf("Bad %s payload: %v", msgType, err)
			return
		}
		s.config.Service.OnPlaybackStateUpdate(msg.CurrentTime, msg.Paused)

	case protocol.TypePlaybackSeek:
		msg, err := protocol.UnmarshalPayload[protocol.PlaybackSeek](raw)
		if err != nil {
			s.logger.Printf("Bad %s payload: %v", msgType, err)
			return
		}
		s.config.Service.OnVideoSeek(msg.Time)

	case protocol.TypeVideoEnded:
		s.config.Service.OnVideoEnded()

	default:
		s.logger.Printf("Unknown bridge message type: %s", msgType)
	}
}
