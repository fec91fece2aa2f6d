// ABOUTME: Tests for the chunk manager
// ABOUTME: Covers boundary contiguity, prefetch idempotence, and failure holes
package chunk

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/luuxx/hapticsync/internal/media"
	"github.com/luuxx/hapticsync/internal/track"
)

// stubProcessor is a scripted chunk processor for tests.
type stubProcessor struct {
	mu       sync.Mutex
	calls    map[int]int
	delay    time.Duration
	failIdx  map[int]bool
	blockIdx map[int]bool // never complete (until ctx cancel)
}

func newStubProcessor() *stubProcessor {
	return &stubProcessor{
		calls:    make(map[int]int),
		failIdx:  make(map[int]bool),
		blockIdx: make(map[int]bool),
	}
}

func (s *stubProcessor) ProcessChunk(ctx context.Context, req media.ChunkRequest) ([]track.Sample, error) {
	s.mu.Lock()
	s.calls[req.Index]++
	fail := s.failIdx[req.Index]
	block := s.blockIdx[req.Index]
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if fail {
		return nil, fmt.Errorf("stub failure for chunk %d", req.Index)
	}

	// Two samples spanning the window keep interpolation exercised
	return []track.Sample{
		{Time: req.Start, Intensity: 0.3},
		{Time: req.End - 0.05, Intensity: 0.7},
	}, nil
}

func (s *stubProcessor) callCount(idx int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[idx]
}

func newTestManager(p media.ChunkProcessor) *Manager {
	return NewManager(ManagerConfig{
		VideoURL:       "https://x/video.mp4",
		ChunkSeconds:   20,
		PrefetchMargin: 30,
		Processor:      p,
	})
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestBoundaryContiguity(t *testing.T) {
	m := newTestManager(newStubProcessor())
	defer m.Dispose()

	for n := 0; n < 50; n++ {
		_, end := m.BoundsFor(n)
		start, _ := m.BoundsFor(n + 1)
		if end != start {
			t.Fatalf("chunk %d end %v != chunk %d start %v", n, end, n+1, start)
		}
	}

	start, end := m.BoundsFor(0)
	if start != 0 || end != 20 {
		t.Errorf("chunk 0 bounds = [%v, %v), want [0, 20)", start, end)
	}
}

func TestFirstChunkReady(t *testing.T) {
	p := newStubProcessor()
	p.delay = 20 * time.Millisecond
	m := newTestManager(p)
	defer m.Dispose()

	if m.IsFirstChunkReady() {
		t.Fatal("first chunk ready before any work started")
	}

	m.StartFirstChunk()

	select {
	case <-m.FirstChunkReady():
	case <-time.After(time.Second):
		t.Fatal("first chunk never became ready")
	}

	if !m.IsFirstChunkReady() {
		t.Error("IsFirstChunkReady false after readiness signal")
	}
	if !m.Track().HasDataForTime(10) {
		t.Error("track has no coverage after chunk 0 merged")
	}
}

func TestCheckBufferIdempotent(t *testing.T) {
	p := newStubProcessor()
	p.blockIdx[0] = true
	p.blockIdx[1] = true
	m := newTestManager(p)
	defer m.Dispose()

	// Repeated heartbeat calls while chunks are in flight
	for i := 0; i < 25; i++ {
		m.CheckBufferAndProcess(5.0)
	}

	waitFor(t, time.Second, func() bool { return p.callCount(0) >= 1 && p.callCount(1) >= 1 })

	if p.callCount(0) != 1 {
		t.Errorf("chunk 0 started %d times, want 1", p.callCount(0))
	}
	if p.callCount(1) != 1 {
		t.Errorf("chunk 1 started %d times, want 1", p.callCount(1))
	}
}

func TestBufferCheckSkipsWhenHorizonCovered(t *testing.T) {
	p := newStubProcessor()
	m := newTestManager(p)
	defer m.Dispose()

	m.CheckBufferAndProcess(5.0)
	waitFor(t, time.Second, func() bool {
		return m.ChunkState(0) == StateReady && m.ChunkState(1) == StateReady
	})

	// Coverage [0, 40) extends past the 35s horizon: heartbeats have
	// nothing left to start.
	for i := 0; i < 10; i++ {
		m.CheckBufferAndProcess(5.0)
	}
	time.Sleep(20 * time.Millisecond)

	if got := p.callCount(0) + p.callCount(1); got != 2 {
		t.Errorf("chunk work restarted: %d calls, want 2", got)
	}
	if got := p.callCount(2); got != 0 {
		t.Errorf("chunk 2 started %d times, want 0 (outside margin)", got)
	}
}

func TestPrefetchWithinMargin(t *testing.T) {
	p := newStubProcessor()
	m := newTestManager(p)
	defer m.Dispose()

	// At t=5 the margin (30s) reaches into chunk 1's window [20,40)
	// but not chunk 2's [40,60).
	m.CheckBufferAndProcess(5.0)

	waitFor(t, time.Second, func() bool {
		return m.ChunkState(0) == StateReady && m.ChunkState(1) == StateReady
	})

	if got := p.callCount(2); got != 0 {
		t.Errorf("chunk 2 started %d times, want 0 (outside margin)", got)
	}

	// Advancing the playhead pulls chunk 2 inside the margin.
	m.CheckBufferAndProcess(15.0)
	waitFor(t, time.Second, func() bool { return m.ChunkState(2) == StateReady })
}

func TestFailedChunkLeavesHoleAndContinues(t *testing.T) {
	p := newStubProcessor()
	p.failIdx[2] = true
	m := newTestManager(p)
	defer m.Dispose()

	m.CheckBufferAndProcess(35.0) // reaches chunks 1..3

	var gotErr Error
	select {
	case gotErr = <-m.Errors():
	case <-time.After(time.Second):
		t.Fatal("no error event for failed chunk")
	}
	if gotErr.Index != 2 {
		t.Errorf("error for chunk %d, want 2", gotErr.Index)
	}

	waitFor(t, time.Second, func() bool { return m.ChunkState(3) == StateReady })

	if m.ChunkState(2) != StateFailed {
		t.Errorf("chunk 2 state = %v, want failed", m.ChunkState(2))
	}

	// Chunk 2's window is a permanent hole; its neighbors are covered.
	if m.Track().HasDataForTime(50) {
		t.Error("track has data inside failed chunk's window")
	}
	if !m.Track().HasDataForTime(65) {
		t.Error("chunk 3's window should be covered despite chunk 2 failing")
	}

	// Failed chunks are never retried.
	m.CheckBufferAndProcess(41.0)
	time.Sleep(20 * time.Millisecond)
	if p.callCount(2) != 1 {
		t.Errorf("failed chunk retried: %d calls", p.callCount(2))
	}
}

func TestStopCancelsInFlightKeepsData(t *testing.T) {
	p := newStubProcessor()
	m := newTestManager(p)

	m.StartFirstChunk()
	waitFor(t, time.Second, func() bool { return m.ChunkState(0) == StateReady })

	p.blockIdx[1] = true
	m.CheckBufferAndProcess(15.0)
	waitFor(t, time.Second, func() bool { return p.callCount(1) == 1 })

	m.Stop()
	m.Stop() // idempotent

	// Ready data survives Stop
	if !m.Track().HasDataForTime(10) {
		t.Error("ready data discarded by Stop")
	}

	// No new work after Stop
	m.CheckBufferAndProcess(100.0)
	time.Sleep(20 * time.Millisecond)
	if p.callCount(5) != 0 {
		t.Error("Stop did not prevent new chunk work")
	}

	m.Dispose()
}

func TestDisposeDrainsWorkers(t *testing.T) {
	p := newStubProcessor()
	p.blockIdx[0] = true
	m := newTestManager(p)

	m.StartFirstChunk()
	waitFor(t, time.Second, func() bool { return p.callCount(0) == 1 })

	done := make(chan struct{})
	go func() {
		m.Dispose()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispose did not drain in-flight workers")
	}
}

func TestSeekFarAheadStartsCoverage(t *testing.T) {
	p := newStubProcessor()
	m := newTestManager(p)
	defer m.Dispose()

	// Seek to 300s: chunk 15 covers [300, 320)
	m.CheckBufferAndProcess(300.0)

	waitFor(t, time.Second, func() bool { return m.ChunkState(15) == StateReady })

	if !m.Track().HasDataForTime(310) {
		t.Error("no coverage at seek target")
	}
	if p.callCount(0) != 0 {
		t.Error("seek should not start chunks behind the playhead")
	}
}
