// ABOUTME: Tests for the video URL classifier
// ABOUTME: Covers accepted formats and rejected schemes
package media

import "testing"

func TestIsLikelyVideoURL(t *testing.T) {
	c := NewClassifier()

	cases := []struct {
		url  string
		want bool
	}{
		{"https://x/video.mp4", true},
		{"https://cdn.example.com/clips/intro.webm", true},
		{"http://host/stream/master.m3u8", true},
		{"https://host/dash/manifest.mpd", true},
		{"https://r4.example.net/videoplayback?expire=123", true},
		{"https://host/media/play?mime=video%2Fmp4", true},
		{"https://host/video/8271", true},

		{"", false},
		{"https://example.com/article.html", false},
		{"https://example.com/podcast.mp3", false},
		{"blob:https://example.com/9f2c", false},
		{"data:video/mp4;base64,AAAA", false},
		{"about:blank", false},
		{"ftp://host/video.mp4", false},
		{"not a url at all ://", false},
	}

	for _, tc := range cases {
		if got := c.IsLikelyVideoURL(tc.url); got != tc.want {
			t.Errorf("IsLikelyVideoURL(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}
