// ABOUTME: Message type definitions for the bridge and device links
// ABOUTME: Defines envelope payload structs for all wire messages
package protocol

// Message type constants for the page-bridge connection (inbound).
const (
	TypeVideoDetected  = "video/detected"
	TypePlaybackUpdate = "playback/update"
	TypePlaybackSeek   = "playback/seek"
	TypeVideoEnded     = "video/ended"
)

// Message type constants for the page-bridge connection (outbound).
const (
	TypeSyncStarted   = "sync/started"
	TypeSyncProgress  = "sync/progress"
	TypeSyncCompleted = "sync/completed"
	TypeSyncError     = "sync/error"
)

// Message type constants for the haptic device connection.
const (
	TypeDeviceHello     = "device/hello"
	TypeServerHello     = "server/hello"
	TypeDeviceIntensity = "device/intensity"
	TypeDeviceStop      = "device/stop"
)

// VideoDetected announces a new playable video element on the page.
type VideoDetected struct {
	URL string `json:"url"`
}

// PlaybackUpdate is the steady player heartbeat.
type PlaybackUpdate struct {
	CurrentTime float64 `json:"current_time"` // playback seconds
	Paused      bool    `json:"paused"`
}

// PlaybackSeek reports a user-initiated seek.
type PlaybackSeek struct {
	Time float64 `json:"time"`
}

// SyncStarted asks the page to show a "preparing sync" indicator.
type SyncStarted struct {
	Message string `json:"message"`
}

// SyncProgress reports coarse chunk-processing progress.
type SyncProgress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Label   string `json:"label,omitempty"`
}

// SyncError is a non-fatal, user-visible warning.
type SyncError struct {
	Message string `json:"message"`
}

// DeviceHello initiates the device handshake.
type DeviceHello struct {
	ClientID        string `json:"client_id"`
	Name            string `json:"name"`
	Product         string `json:"product"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello is the device server's handshake response. AnticipationMs
// is the device round-trip delay folded into latency compensation.
type ServerHello struct {
	ServerID       string `json:"server_id"`
	Name           string `json:"name"`
	AnticipationMs int    `json:"anticipation_ms"`
}

// DeviceIntensity is a continuous intensity command.
type DeviceIntensity struct {
	Value float64 `json:"value"` // 0.0 - 1.0
}
