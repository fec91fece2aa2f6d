// ABOUTME: Chunk download and analysis boundary plus the reference implementation
// ABOUTME: Fetches one audio window over HTTP and derives an RMS intensity envelope
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hajimehoshi/go-mp3"

	"github.com/luuxx/hapticsync/internal/track"
)

// ErrNotVideo is returned when a chunk request targets a URL the
// extraction endpoint cannot serve audio for.
var ErrNotVideo = errors.New("url is not a playable video")

// ChunkRequest describes one audio window to fetch and analyze.
type ChunkRequest struct {
	VideoURL string
	Index    int
	Start    float64 // seconds, inclusive
	End      float64 // seconds, exclusive
}

// ChunkProcessor downloads and analyzes one chunk's audio into intensity
// samples covering [Start, End). Implementations must honor ctx
// cancellation; the chunk manager cancels in-flight work on teardown.
type ChunkProcessor interface {
	ProcessChunk(ctx context.Context, req ChunkRequest) ([]track.Sample, error)
}

// HTTPProcessor is the reference processor: it fetches the chunk's audio
// window as MP3 from the extraction endpoint and computes a peak-normalized
// RMS envelope at a fixed sample interval.
type HTTPProcessor struct {
	client           *http.Client
	sampleIntervalMs int
	logger           *log.Logger
}

// HTTPProcessorConfig configures the reference processor.
type HTTPProcessorConfig struct {
	Timeout          time.Duration
	SampleIntervalMs int
	Logger           *log.Logger
}

// NewHTTPProcessor creates the reference HTTP+MP3 processor.
func NewHTTPProcessor(cfg HTTPProcessorConfig) *HTTPProcessor {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.SampleIntervalMs == 0 {
		cfg.SampleIntervalMs = 50
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	return &HTTPProcessor{
		client:           &http.Client{Timeout: cfg.Timeout},
		sampleIntervalMs: cfg.SampleIntervalMs,
		logger:           cfg.Logger,
	}
}

// ProcessChunk fetches and analyzes one chunk window.
func (p *HTTPProcessor) ProcessChunk(ctx context.Context, req ChunkRequest) ([]track.Sample, error) {
	chunkURL, err := buildChunkURL(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, chunkURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build chunk request: %w", err)
	}
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("download chunk %d: %w", req.Index, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
	case http.StatusUnsupportedMediaType, http.StatusNotFound:
		return nil, fmt.Errorf("chunk %d: %w", req.Index, ErrNotVideo)
	default:
		return nil, fmt.Errorf("chunk %d download failed: HTTP %d", req.Index, resp.StatusCode)
	}

	samples, err := p.analyze(ctx, resp.Body, req.Start)
	if err != nil {
		return nil, fmt.Errorf("chunk %d analysis: %w", req.Index, err)
	}

	p.logger.Printf("Chunk %d analyzed: %d samples for [%.1f, %.1f)",
		req.Index, len(samples), req.Start, req.End)

	return samples, nil
}

// buildChunkURL asks the extraction endpoint for one time window of the
// video's audio.
func buildChunkURL(req ChunkRequest) (string, error) {
	u, err := url.Parse(req.VideoURL)
	if err != nil {
		return "", fmt.Errorf("parse video url: %w", err)
	}

	q := u.Query()
	q.Set("audio_start", strconv.FormatFloat(req.Start, 'f', 3, 64))
	q.Set("audio_duration", strconv.FormatFloat(req.End-req.Start, 'f', 3, 64))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// analyze decodes MP3 audio and derives the intensity envelope. go-mp3
// always emits 16-bit stereo PCM at the source sample rate.
func (p *HTTPProcessor) analyze(ctx context.Context, r io.Reader, start float64) ([]track.Sample, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("create mp3 decoder: %w", err)
	}

	const bytesPerFrame = 4 // 2 channels x int16
	framesPerWindow := decoder.SampleRate() * p.sampleIntervalMs / 1000
	if framesPerWindow < 1 {
		framesPerWindow = 1
	}

	var (
		windows   []float64
		sumSq     float64
		frameIdx  int
		windowLen = framesPerWindow
	)

	buf := make([]byte, 8192)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, err := decoder.Read(buf)
		for i := 0; i+bytesPerFrame <= n; i += bytesPerFrame {
			left := int16(uint16(buf[i]) | uint16(buf[i+1])<<8)
			right := int16(uint16(buf[i+2]) | uint16(buf[i+3])<<8)
			mono := (float64(left) + float64(right)) / (2 * 32768.0)

			sumSq += mono * mono
			frameIdx++
			if frameIdx == windowLen {
				windows = append(windows, rms(sumSq, windowLen))
				sumSq = 0
				frameIdx = 0
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("mp3 decode: %w", err)
		}
	}

	if frameIdx > 0 {
		windows = append(windows, rms(sumSq, frameIdx))
	}

	return envelopeSamples(windows, start, p.sampleIntervalMs), nil
}

func rms(sumSq float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(n))
}

// envelopeSamples normalizes window RMS values by the chunk peak and
// stamps them onto the chunk's timeline. A silent chunk yields all zeros.
func envelopeSamples(windows []float64, start float64, intervalMs int) []track.Sample {
	peak := 0.0
	for _, w := range windows {
		if w > peak {
			peak = w
		}
	}

	samples := make([]track.Sample, len(windows))
	step := float64(intervalMs) / 1000.0
	for i, w := range windows {
		v := 0.0
		if peak > 0 {
			v = w / peak
		}
		samples[i] = track.Sample{
			Time:      start + float64(i)*step,
			Intensity: v,
		}
	}
	return samples
}
