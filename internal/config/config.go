// ABOUTME: Runtime configuration loaded from environment variables
// ABOUTME: Produces the immutable settings snapshot handed to all components
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Settings holds all runtime configuration, loaded once at startup.
// Components receive the snapshot at construction and never re-read it.
type Settings struct {
	// Sync behavior
	Enabled               bool
	ManualLatencyOffsetMs int

	// Chunking policy
	ChunkSeconds          float64       // fixed chunk window length
	PrefetchMarginSeconds float64       // start next chunk when horizon is this close
	FirstChunkTimeout     time.Duration // give up waiting for chunk 0 after this
	SampleIntervalMs      int           // intensity envelope resolution

	// Transports
	ListenAddr     string // bridge websocket listen address
	DeviceAddr     string // haptic device server (empty = discover via mDNS)
	RequestTimeout time.Duration
}

// Load reads configuration from a .env file (if present) and the
// environment, applying defaults for anything unset.
func Load(envFile string) Settings {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			log.Printf("Could not load env file %s: %v", envFile, err)
		}
	}

	return Settings{
		Enabled:               envBool("HAPTIC_SYNC_ENABLED", true),
		ManualLatencyOffsetMs: envInt("HAPTIC_LATENCY_OFFSET_MS", 0),

		ChunkSeconds:          envFloat("HAPTIC_CHUNK_SECONDS", 20),
		PrefetchMarginSeconds: envFloat("HAPTIC_PREFETCH_MARGIN_SECONDS", 30),
		FirstChunkTimeout:     envDur("HAPTIC_FIRST_CHUNK_TIMEOUT", 2*time.Minute),
		SampleIntervalMs:      envInt("HAPTIC_SAMPLE_INTERVAL_MS", 50),

		ListenAddr:     envStr("HAPTIC_LISTEN_ADDR", "127.0.0.1:8931"),
		DeviceAddr:     envStr("HAPTIC_DEVICE_ADDR", ""),
		RequestTimeout: envDur("HAPTIC_REQUEST_TIMEOUT", 30*time.Second),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
