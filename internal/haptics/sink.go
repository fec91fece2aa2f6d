// ABOUTME: Haptic output boundary consumed by the sync service
// ABOUTME: Narrow contract over the device transport
package haptics

import "context"

// Sink is the haptic device boundary. The sync service is the only
// writer for sync purposes; Stop lets callers that drive the device for
// other purposes take over cleanly.
type Sink interface {
	// SetSyncIntensity sends a continuous intensity command in [0, 1].
	SetSyncIntensity(ctx context.Context, value float64) error

	// Stop silences the device.
	Stop(ctx context.Context) error

	// IsConnected reports whether the device link is up.
	IsConnected() bool

	// AnticipationMs is the device's fixed round-trip delay, folded
	// into the service's latency compensation.
	AnticipationMs() int
}
