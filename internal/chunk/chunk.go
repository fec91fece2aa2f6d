// ABOUTME: AudioChunk record and processing state machine
// ABOUTME: One chunk is one fixed time-window of a video's audio
package chunk

import "fmt"

// State is a chunk's position in the processing lifecycle.
type State int

const (
	StatePending State = iota
	StateDownloading
	StateAnalyzing
	StateReady
	StateFailed
)

// String returns a human-readable state name for logging.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDownloading:
		return "downloading"
	case StateAnalyzing:
		return "analyzing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Chunk is one bounded time-window of a video's audio, processed as a
// unit of download+analysis. Ranges are half-open [Start, End) and
// contiguous across the index sequence.
type Chunk struct {
	Index int
	Start float64 // seconds
	End   float64 // seconds
	State State
}

// String returns a human-readable description for logging.
func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d [%.1f-%.1f) %s", c.Index, c.Start, c.End, c.State)
}

// Progress is a coarse processing-progress report, used for UI display
// only; it carries no sync-correctness weight.
type Progress struct {
	Current int
	Total   int
	Label   string
}

// Error reports one chunk's unrecoverable failure. The chunk's window
// stays unpopulated; processing continues with later chunks.
type Error struct {
	Index   int
	Message string
}
