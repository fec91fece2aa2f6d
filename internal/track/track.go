// ABOUTME: Append-only timeline of derived haptic intensity samples
// ABOUTME: Single-writer chunk appends, lock-guarded lookahead reads
package track

import (
	"sort"
	"sync"
)

// Sample is one derived intensity measurement at a playback time.
type Sample struct {
	Time      float64 // playback seconds
	Intensity float64 // 0.0 - 1.0
}

// span is one chunk's merged contribution: the half-open time range
// [Start, End) plus its ordered samples.
type span struct {
	index   int
	start   float64
	end     float64
	samples []Sample
}

// Track holds the per-session intensity timeline. Chunk completions
// append whole spans; the playback heartbeat reads by lookahead time.
// Once a region is populated it is never retracted within the session.
type Track struct {
	mu       sync.RWMutex
	spans    []span // sorted by start, non-overlapping
	appended map[int]bool
}

// New creates an empty track.
func New() *Track {
	return &Track{
		appended: make(map[int]bool),
	}
}

// AppendChunk merges one chunk's samples into the track. The range is
// half-open [start, end). Re-appending an already-merged chunk index is
// a no-op, guarding against duplicate ready callbacks. Intensities are
// clamped to [0, 1] on the way in.
func (t *Track) AppendChunk(index int, start, end float64, samples []Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.appended[index] {
		return
	}
	t.appended[index] = true

	clamped := make([]Sample, len(samples))
	for i, s := range samples {
		if s.Intensity < 0 {
			s.Intensity = 0
		} else if s.Intensity > 1 {
			s.Intensity = 1
		}
		clamped[i] = s
	}

	sp := span{index: index, start: start, end: end, samples: clamped}

	// Insert sorted; chunks usually arrive in order so this is an append.
	pos := sort.Search(len(t.spans), func(i int) bool {
		return t.spans[i].start >= sp.start
	})
	t.spans = append(t.spans, span{})
	copy(t.spans[pos+1:], t.spans[pos:])
	t.spans[pos] = sp
}

// HasDataForTime reports whether playback time t falls inside a
// populated region.
func (t *Track) HasDataForTime(at float64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.findSpan(at) >= 0
}

// GetIntensityAt returns the intensity at playback time t, linearly
// interpolated between the bracketing samples of the covering chunk.
// Uncovered times return 0.0; callers gate on HasDataForTime first.
func (t *Track) GetIntensityAt(at float64) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	i := t.findSpan(at)
	if i < 0 {
		return 0.0
	}

	samples := t.spans[i].samples
	if len(samples) == 0 {
		return 0.0
	}

	// First sample at or after `at`
	j := sort.Search(len(samples), func(k int) bool {
		return samples[k].Time >= at
	})

	switch {
	case j == 0:
		return samples[0].Intensity
	case j == len(samples):
		return samples[len(samples)-1].Intensity
	}

	lo, hi := samples[j-1], samples[j]
	if hi.Time == lo.Time {
		return hi.Intensity
	}
	frac := (at - lo.Time) / (hi.Time - lo.Time)
	return lo.Intensity + frac*(hi.Intensity-lo.Intensity)
}

// CoverageEnd returns the end of the contiguous populated region
// containing time `from`, or `from` itself when it is uncovered. Small
// float gaps between adjacent spans are bridged.
func (t *Track) CoverageEnd(from float64) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	i := t.findSpan(from)
	if i < 0 {
		return from
	}

	end := t.spans[i].end
	for k := i + 1; k < len(t.spans); k++ {
		if t.spans[k].start > end+1e-6 {
			break
		}
		end = t.spans[k].end
	}
	return end
}

// SampleCount returns the total number of merged samples.
func (t *Track) SampleCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, sp := range t.spans {
		n += len(sp.samples)
	}
	return n
}

// findSpan returns the index of the span covering `at`, or -1.
// Caller holds at least the read lock.
func (t *Track) findSpan(at float64) int {
	// First span starting after `at`; the candidate is the one before it.
	i := sort.Search(len(t.spans), func(k int) bool {
		return t.spans[k].start > at
	})
	if i == 0 {
		return -1
	}
	if at < t.spans[i-1].end {
		return i - 1
	}
	return -1
}
