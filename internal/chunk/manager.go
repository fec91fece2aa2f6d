// ABOUTME: Chunk lifecycle manager for one active video session
// ABOUTME: Bootstraps chunk 0 and prefetches ahead of the playback horizon
package chunk

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/luuxx/hapticsync/internal/media"
	"github.com/luuxx/hapticsync/internal/track"
)

// ManagerConfig configures a chunk manager for one video.
type ManagerConfig struct {
	VideoURL       string
	ChunkSeconds   float64 // fixed window length, default 20
	PrefetchMargin float64 // seconds of horizon slack, default 30
	Processor      media.ChunkProcessor
	Logger         *log.Logger
}

// Manager owns the chunk set and the track for one video session. It
// starts chunk work, merges completed samples into the track, and keeps
// coverage ahead of the playback position. All chunk goroutines carry
// the manager's context, so tearing the session down fences any stale
// completion away from a newer session's track.
type Manager struct {
	cfg    ManagerConfig
	track  *track.Track
	logger *log.Logger

	mu      sync.Mutex
	chunks  map[int]*Chunk
	total   int // highest index started + 1, for progress reports
	stopped bool

	firstReady chan struct{}
	firstOnce  sync.Once

	ready    chan Chunk
	progress chan Progress
	errs     chan Error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager for one video URL. Chunk boundaries are
// deterministic: chunk n covers [n*W, (n+1)*W) for the configured
// window length W.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.ChunkSeconds <= 0 {
		cfg.ChunkSeconds = 20
	}
	if cfg.PrefetchMargin <= 0 {
		cfg.PrefetchMargin = 30
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		cfg:        cfg,
		track:      track.New(),
		logger:     cfg.Logger,
		chunks:     make(map[int]*Chunk),
		firstReady: make(chan struct{}),
		ready:      make(chan Chunk, 16),
		progress:   make(chan Progress, 16),
		errs:       make(chan Error, 16),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Track returns the session's intensity track.
func (m *Manager) Track() *track.Track {
	return m.track
}

// BoundsFor returns the half-open time range chunk `index` covers.
func (m *Manager) BoundsFor(index int) (start, end float64) {
	w := m.cfg.ChunkSeconds
	return float64(index) * w, float64(index+1) * w
}

// indexFor returns the chunk index covering playback time t.
func (m *Manager) indexFor(t float64) int {
	if t < 0 {
		return 0
	}
	return int(t / m.cfg.ChunkSeconds)
}

// StartFirstChunk begins download+analysis of chunk 0 without blocking.
func (m *Manager) StartFirstChunk() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startChunkLocked(0)
}

// IsFirstChunkReady reports whether chunk 0 has been merged into the track.
func (m *Manager) IsFirstChunkReady() bool {
	select {
	case <-m.firstReady:
		return true
	default:
		return false
	}
}

// FirstChunkReady is closed once chunk 0's samples are merged. Callers
// wait on it with their own timeout instead of polling.
func (m *Manager) FirstChunkReady() <-chan struct{} {
	return m.firstReady
}

// Ready delivers chunks whose samples have been merged into the track.
func (m *Manager) Ready() <-chan Chunk {
	return m.ready
}

// Progress delivers coarse processing-progress reports.
func (m *Manager) Progress() <-chan Progress {
	return m.progress
}

// Errors delivers per-chunk failure reports.
func (m *Manager) Errors() <-chan Error {
	return m.errs
}

// CheckBufferAndProcess is called on every playback time update. When
// the buffered horizon ahead of currentTime falls inside the prefetch
// margin, the next required chunks are started. Repeated calls while a
// chunk is in flight start no duplicate work.
func (m *Manager) CheckBufferAndProcess(currentTime float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	from := m.indexFor(currentTime)
	limit := currentTime + m.cfg.PrefetchMargin

	// Contiguous merged coverage past the horizon means every window the
	// scan would consider is already in the track.
	if m.track.CoverageEnd(currentTime) > limit {
		return
	}

	for idx := from; ; idx++ {
		start, _ := m.BoundsFor(idx)
		if idx > from && start > limit {
			break
		}
		if _, exists := m.chunks[idx]; exists {
			continue
		}
		m.startChunkLocked(idx)
	}
}

// startChunkLocked spawns processing for one chunk index. Existing
// records (in flight, ready, or failed) are never restarted. Caller
// holds m.mu.
func (m *Manager) startChunkLocked(index int) {
	if m.stopped {
		return
	}
	if _, exists := m.chunks[index]; exists {
		return
	}

	start, end := m.BoundsFor(index)
	c := &Chunk{Index: index, Start: start, End: end, State: StateDownloading}
	m.chunks[index] = c
	if index+1 > m.total {
		m.total = index + 1
	}

	m.logger.Printf("Starting %v", *c)
	m.emitProgressLocked()

	m.wg.Add(1)
	go m.process(c)
}

// process runs one chunk's download+analysis and merges the result.
func (m *Manager) process(c *Chunk) {
	defer m.wg.Done()

	req := media.ChunkRequest{
		VideoURL: m.cfg.VideoURL,
		Index:    c.Index,
		Start:    c.Start,
		End:      c.End,
	}

	samples, err := m.cfg.Processor.ProcessChunk(m.ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Session teardown, not a chunk failure
			c.State = StatePending
			return
		}

		c.State = StateFailed
		m.logger.Printf("Chunk %d failed: %v", c.Index, err)
		m.emitProgressLocked()

		select {
		case m.errs <- Error{Index: c.Index, Message: err.Error()}:
		default:
		}
		return
	}

	c.State = StateAnalyzing
	m.track.AppendChunk(c.Index, c.Start, c.End, samples)
	c.State = StateReady

	if c.Index == 0 {
		m.firstOnce.Do(func() { close(m.firstReady) })
	}

	m.emitProgressLocked()

	select {
	case m.ready <- *c:
	default:
	}
}

// emitProgressLocked publishes a coarse progress report. Caller holds m.mu.
func (m *Manager) emitProgressLocked() {
	done := 0
	var label string
	for _, c := range m.chunks {
		if c.State == StateReady || c.State == StateFailed {
			done++
		} else {
			label = c.String()
		}
	}

	select {
	case m.progress <- Progress{Current: done, Total: m.total, Label: label}:
	default:
	}
}

// ChunkState returns the recorded state for a chunk index.
func (m *Manager) ChunkState(index int) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.chunks[index]; ok {
		return c.State
	}
	return StatePending
}

// Stop cancels in-flight chunk work. Already-merged track data is
// retained. Safe to call repeatedly and when nothing is in flight.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()

	m.cancel()
}

// Dispose cancels all work and waits for in-flight chunk goroutines to
// drain, fully ending the session. No chunk callback can reach the
// track afterwards.
func (m *Manager) Dispose() {
	m.Stop()
	m.wg.Wait()

	m.mu.Lock()
	m.chunks = make(map[int]*Chunk)
	m.mu.Unlock()
}
