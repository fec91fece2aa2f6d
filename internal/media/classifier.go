// ABOUTME: Video URL classifier for the detection path
// ABOUTME: Decides whether a detected URL is worth starting a sync session for
package media

import (
	"net/url"
	"path"
	"strings"
)

// videoExtensions are file suffixes treated as playable video.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".webm": true,
	".mov":  true,
	".mkv":  true,
	".avi":  true,
	".m3u8": true,
	".mpd":  true,
	".ts":   true,
}

// Classifier decides whether a URL likely points at playable video.
type Classifier interface {
	IsLikelyVideoURL(rawURL string) bool
}

// URLClassifier is the default extension/host based classifier.
type URLClassifier struct{}

// NewClassifier returns the default classifier.
func NewClassifier() *URLClassifier {
	return &URLClassifier{}
}

// IsLikelyVideoURL reports whether the URL looks like a playable video
// source. Non-fetchable schemes (blob, data, about) are rejected even
// though pages commonly report them for media elements.
func (c *URLClassifier) IsLikelyVideoURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return false
	}
	if u.Host == "" {
		return false
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if videoExtensions[ext] {
		return true
	}

	// Streaming endpoints without a file extension
	lowerPath := strings.ToLower(u.Path)
	if strings.Contains(lowerPath, "videoplayback") || strings.Contains(lowerPath, "/video/") {
		return true
	}

	// Some CDNs signal the payload type via a mime query parameter
	if mime := u.Query().Get("mime"); strings.HasPrefix(mime, "video/") {
		return true
	}

	return false
}
