// ABOUTME: Tests for the wire envelope codec
// ABOUTME: Covers round-trips and malformed envelopes
package protocol

import (
	"testing"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	data, err := Marshal(TypePlaybackUpdate, PlaybackUpdate{CurrentTime: 12.5, Paused: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	msgType, raw, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msgType != TypePlaybackUpdate {
		t.Errorf("type = %q, want %q", msgType, TypePlaybackUpdate)
	}

	upd, err := UnmarshalPayload[PlaybackUpdate](raw)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if upd.CurrentTime != 12.5 || !upd.Paused {
		t.Errorf("payload = %+v", upd)
	}
}

func TestEmptyPayload(t *testing.T) {
	data, err := Marshal(TypeVideoEnded, nil)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	msgType, raw, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msgType != TypeVideoEnded {
		t.Errorf("type = %q", msgType)
	}
	if len(raw) != 0 {
		t.Errorf("expected empty payload, got %s", raw)
	}
}

func TestMissingType(t *testing.T) {
	if _, _, err := Unmarshal([]byte(`{"payload":{}}`)); err == nil {
		t.Error("expected error for envelope without type")
	}
}

func TestMalformedEnvelope(t *testing.T) {
	if _, _, err := Unmarshal([]byte(`{{{`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
