package media

import (
	"encoding/base64"
	"testing"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind EventKind
	}{
		{"connected", `{"event":"connected"}`, EventConnected},
		{"stop", `{"event":"stop","stream_sid":"s1"}`, EventStop},
		{"clear", `{"event":"clear","stream_sid":"s1"}`, EventClear},
		{"unknown", `{"event":"dtmf","stream_sid":"s1"}`, EventUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.raw))
			if err != nil {
				t.Fatalf("ParseEvent() error = %v", err)
			}
			if ev.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", ev.Kind, tt.kind)
			}
		})
	}
}

func TestParseStartEvent(t *testing.T) {
	raw := `{
		"event": "start",
		"stream_sid": "stream-1",
		"start": {
			"call_sid": "call-1",
			"from": "+15551234567",
			"to": "+15557654321",
			"media_format": {"sample_rate": "16000"},
			"custom_parameters": {"tenant_id": "t-1"}
		}
	}`

	ev, err := ParseEvent([]byte(raw))
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	if ev.Kind != EventStart {
		t.Fatalf("Kind = %q, want start", ev.Kind)
	}
	if ev.Start.CallSID != "call-1" {
		t.Errorf("CallSID = %q, want call-1", ev.Start.CallSID)
	}
	if ev.Start.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", ev.Start.SampleRate)
	}
	if ev.Start.CustomParameters["tenant_id"] != "t-1" {
		t.Errorf("custom parameter tenant_id missing: %v", ev.Start.CustomParameters)
	}
}

func TestParseMediaEvent(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	raw := `{"event":"media","stream_sid":"s1","media":{"payload":"` +
		base64.StdEncoding.EncodeToString(pcm) + `"}}`

	ev, err := ParseEvent([]byte(raw))
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	if ev.Kind != EventMedia {
		t.Fatalf("Kind = %q, want media", ev.Kind)
	}
	if len(ev.Audio) != len(pcm) {
		t.Errorf("Audio length = %d, want %d", len(ev.Audio), len(pcm))
	}
	for i := range pcm {
		if ev.Audio[i] != pcm[i] {
			t.Fatalf("Audio[%d] = %x, want %x", i, ev.Audio[i], pcm[i])
		}
	}
}

func TestParseEventMalformed(t *testing.T) {
	if _, err := ParseEvent([]byte("not json")); err == nil {
		t.Error("expected error for malformed payload")
	}
	if _, err := ParseEvent([]byte(`{"event":"media","media":{"payload":"!!"}}`)); err == nil {
		t.Error("expected error for invalid base64 payload")
	}
}
