// ABOUTME: Top-level audio-haptic sync orchestrator and state machine
// ABOUTME: Drives the chunk manager from playback events and dispatches intensity
package audiosync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luuxx/hapticsync/internal/chunk"
	"github.com/luuxx/hapticsync/internal/config"
	"github.com/luuxx/hapticsync/internal/haptics"
	"github.com/luuxx/hapticsync/internal/media"
)

// State is the service's top-level processing state.
type State int

const (
	StateIdle State = iota
	StateProcessing
	StateReady
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds service construction parameters. Settings, sink, and
// logger are injected here; nothing is reached through globals.
type Config struct {
	Settings   config.Settings
	Sink       haptics.Sink
	Classifier media.Classifier
	Processor  media.ChunkProcessor
	Logger     *log.Logger

	// OnProcessingStarted asks the embedder to show a preparing-sync
	// indicator.
	OnProcessingStarted func(message string)

	// OnProgress reports coarse chunk-processing progress.
	OnProgress func(current, total int, label string)

	// OnProcessingCompleted signals that playback may proceed, with or
	// without successful sync.
	OnProcessingCompleted func()

	// OnError surfaces a non-fatal, user-visible warning.
	OnError func(message string)
}

// session is one video's worth of sync state.
type session struct {
	id      string
	manager *chunk.Manager
	ctx     context.Context
	cancel  context.CancelFunc
}

// Service orchestrates chunked audio analysis against playback events
// and emits latency-compensated intensity commands to the haptic sink.
type Service struct {
	cfg    Config
	logger *log.Logger

	// detectMu serializes session replacement: teardown of the old
	// session and install of its successor happen as one step.
	detectMu sync.Mutex

	mu      sync.Mutex
	state   State
	session *session

	// Mirror of the external player's reported state
	isPlaying            bool
	isPaused             bool
	lastPlaybackPosition float64
	lastSyncTime         time.Time
}

// New creates a sync service.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = media.NewClassifier()
	}

	return &Service{
		cfg:    cfg,
		logger: cfg.Logger,
		state:  StateIdle,
	}
}

// State returns the current processing state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnVideoDetected starts a sync session for a newly detected video. It
// is a no-op when sync is disabled, the device is disconnected, or the
// URL is not recognized as playable video; those are expected
// steady-state conditions, not errors. Any prior session is torn down
// first. The call then suspends until the first chunk is ready or the
// configured timeout elapses. On timeout the service still reports
// completion so playback is never blocked.
func (s *Service) OnVideoDetected(ctx context.Context, videoURL string) error {
	if !s.cfg.Settings.Enabled {
		s.logger.Printf("Sync disabled, ignoring video: %s", videoURL)
		return nil
	}
	if !s.cfg.Sink.IsConnected() {
		s.logger.Printf("Device not connected, ignoring video: %s", videoURL)
		return nil
	}
	if !s.cfg.Classifier.IsLikelyVideoURL(videoURL) {
		s.logger.Printf("URL not recognized as video: %s", videoURL)
		return nil
	}

	// At most one active session: fence the previous one off completely
	// before its replacement exists. detectMu keeps two concurrent
	// detections from both passing teardown and overwriting each other's
	// session, which would leak an uncancellable manager.
	s.detectMu.Lock()
	s.teardownSession()

	sessCtx, sessCancel := context.WithCancel(context.Background())
	sess := &session{
		id: uuid.New().String(),
		manager: chunk.NewManager(chunk.ManagerConfig{
			VideoURL:       videoURL,
			ChunkSeconds:   s.cfg.Settings.ChunkSeconds,
			PrefetchMargin: s.cfg.Settings.PrefetchMarginSeconds,
			Processor:      s.cfg.Processor,
			Logger:         s.logger,
		}),
		ctx:    sessCtx,
		cancel: sessCancel,
	}

	s.mu.Lock()
	s.session = sess
	s.state = StateProcessing
	s.isPlaying = false
	s.isPaused = false
	s.lastPlaybackPosition = 0
	s.mu.Unlock()
	s.detectMu.Unlock()

	s.logger.Printf("Session %s: processing %s", sess.id, videoURL)
	s.notifyStarted("Preparing haptic sync...")

	go s.pumpEvents(sess)

	sess.manager.StartFirstChunk()

	timeout := s.cfg.Settings.FirstChunkTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-sess.manager.FirstChunkReady():
		s.logger.Printf("Session %s: first chunk ready", sess.id)

	case <-timer.C:
		s.logger.Printf("Session %s: first chunk timed out after %v", sess.id, timeout)
		s.notifyError("Sync preparation timed out; playback continues without haptics")

	case <-sess.ctx.Done():
		// Superseded by a newer session or reset
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	if s.session == sess {
		s.state = StateReady
	}
	s.mu.Unlock()

	s.notifyCompleted()
	return nil
}

// pumpEvents multiplexes one session's chunk outcomes into the outbound
// callbacks. A single consumer goroutine per session avoids callback
// re-entrancy from chunk workers.
func (s *Service) pumpEvents(sess *session) {
	for {
		select {
		case c := <-sess.manager.Ready():
			s.logger.Printf("Session %s: %v merged, %d samples total",
				sess.id, c, sess.manager.Track().SampleCount())

		case p := <-sess.manager.Progress():
			s.notifyProgress(p.Current, p.Total, p.Label)

		case e := <-sess.manager.Errors():
			s.notifyError(fmt.Sprintf("Audio chunk %d failed: %s", e.Index, e.Message))

		case <-sess.ctx.Done():
			return
		}
	}
}

// OnPlaybackStateUpdate is the continuous playback heartbeat. Pause
// transitions are edge-triggered; while playing, the buffer is kept
// ahead and one latency-compensated intensity command is dispatched per
// tick. Ticks arriving while the service is idle are ignored: after
// StopSync only a new OnVideoDetected re-arms dispatch. This path never
// returns an error: every failure is logged and absorbed so the next
// tick runs.
func (s *Service) OnPlaybackStateUpdate(currentTime float64, paused bool) {
	s.mu.Lock()

	sess := s.session
	if sess == nil || s.state == StateIdle {
		s.mu.Unlock()
		return
	}

	// Edge-triggered pause: silence output once, then ignore updates
	// until resume.
	if paused {
		wasPlaying := !s.isPaused
		s.isPaused = true
		s.isPlaying = false
		s.mu.Unlock()

		if wasPlaying {
			s.logger.Printf("Playback paused at %.2fs, stopping haptics", currentTime)
			if err := s.cfg.Sink.Stop(sess.ctx); err != nil {
				s.logger.Printf("Haptic stop failed: %v", err)
			}
		}
		return
	}

	if s.isPaused {
		s.logger.Printf("Playback resumed at %.2fs", currentTime)
	}
	s.isPaused = false
	s.isPlaying = true
	s.lastPlaybackPosition = currentTime
	s.lastSyncTime = time.Now()

	lookAhead := currentTime + s.lookaheadOffsetSeconds()
	s.mu.Unlock()

	sess.manager.CheckBufferAndProcess(currentTime)

	tr := sess.manager.Track()
	if !tr.HasDataForTime(lookAhead) {
		// Buffering hasn't caught up; skip the tick, not an error
		s.logger.Printf("No intensity data at lookahead %.2fs, skipping tick", lookAhead)
		return
	}

	intensity := tr.GetIntensityAt(lookAhead)
	if err := s.cfg.Sink.SetSyncIntensity(sess.ctx, intensity); err != nil {
		// Swallowed per tick; the next update retries naturally
		s.logger.Printf("Intensity dispatch failed: %v", err)
	}
}

// lookaheadOffsetSeconds combines device anticipation and the manual
// latency offset. Caller holds s.mu.
func (s *Service) lookaheadOffsetSeconds() float64 {
	totalMs := s.cfg.Sink.AnticipationMs() + s.cfg.Settings.ManualLatencyOffsetMs
	return float64(totalMs) / 1000.0
}

// OnVideoSeek handles a user seek. Coverage for the new position is
// requested immediately rather than waiting for the next heartbeat.
func (s *Service) OnVideoSeek(newTime float64) {
	s.mu.Lock()
	sess := s.session
	s.lastPlaybackPosition = newTime
	s.mu.Unlock()

	if sess == nil {
		return
	}

	s.logger.Printf("Seek to %.2fs", newTime)

	if !sess.manager.Track().HasDataForTime(newTime) {
		sess.manager.CheckBufferAndProcess(newTime)
	}
}

// OnVideoEnded handles natural end of playback.
func (s *Service) OnVideoEnded() {
	s.logger.Printf("Video ended")
	s.StopSync()
}

// StopSync stops haptic output and in-flight chunk work. Already-merged
// track data is retained until Reset. Idempotent.
func (s *Service) StopSync() {
	s.mu.Lock()
	sess := s.session
	s.isPlaying = false
	s.isPaused = false
	s.state = StateIdle
	s.mu.Unlock()

	if sess == nil {
		return
	}

	if err := s.cfg.Sink.Stop(context.Background()); err != nil {
		s.logger.Printf("Haptic stop failed: %v", err)
	}
	sess.manager.Stop()
}

// Reset fully tears down the session: stops sync, disposes the chunk
// manager and track, and returns to idle. Called when navigating away
// from the video entirely.
func (s *Service) Reset() {
	s.StopSync()
	s.teardownSession()
}

// teardownSession cancels and disposes the current session, waiting for
// in-flight chunk work so no stale completion can write anywhere.
func (s *Service) teardownSession() {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.state = StateIdle
	s.mu.Unlock()

	if sess == nil {
		return
	}

	s.logger.Printf("Session %s: teardown", sess.id)
	sess.cancel()
	sess.manager.Dispose()
}

func (s *Service) notifyStarted(message string) {
	if s.cfg.OnProcessingStarted != nil {
		s.cfg.OnProcessingStarted(message)
	}
}

func (s *Service) notifyProgress(current, total int, label string) {
	if s.cfg.OnProgress != nil {
		s.cfg.OnProgress(current, total, label)
	}
}

func (s *Service) notifyCompleted() {
	if s.cfg.OnProcessingCompleted != nil {
		s.cfg.OnProcessingCompleted()
	}
}

func (s *Service) notifyError(message string) {
	if s.cfg.OnError != nil {
		s.cfg.OnError(message)
	} else {
		s.logger.Printf("Sync error: %s", message)
	}
}
