package media

import (
	"encoding/json"
	"fmt"

	"github.com/troikatech/voice-agent/pkg/audio"
)

// Telephony media streams exchange JSON events over a WebSocket. The
// provider sends start, media, stop and mark events; we send media,
// mark and clear.

// EventKind identifies a provider media event.
type EventKind string

const (
	EventConnected EventKind = "connected"
	EventStart     EventKind = "start"
	EventMedia     EventKind = "media"
	EventStop      EventKind = "stop"
	EventMark      EventKind = "mark"
	EventClear     EventKind = "clear"
	EventUnknown   EventKind = "unknown"
)

// StartInfo carries the call metadata from the provider's start event.
type StartInfo struct {
	CallSID          string
	StreamSID        string
	From             string
	To               string
	SampleRate       int
	CustomParameters map[string]string
}

// Event is a decoded provider media event. Audio is raw PCM for media
// events; Start is set for start events; MarkName for mark events.
type Event struct {
	Kind      EventKind
	StreamSID string
	Start     *StartInfo
	Audio     []byte
	MarkName  string
}

type envelope struct {
	Event     string `json:"event"`
	StreamSid string `json:"stream_sid,omitempty"`
}

type startEvent struct {
	Event     string `json:"event"`
	StreamSid string `json:"stream_sid"`
	Start     struct {
		CallSid     string `json:"call_sid"`
		From        string `json:"from"`
		To          string `json:"to"`
		MediaFormat struct {
			SampleRate int `json:"sample_rate,string"`
		} `json:"media_format"`
		CustomParameters map[string]string `json:"custom_parameters"`
	} `json:"start"`
}

type mediaEvent struct {
	Event     string `json:"event"`
	StreamSid string `json:"stream_sid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

type markEvent struct {
	Event     string `json:"event"`
	StreamSid string `json:"stream_sid"`
	Mark      struct {
		Name string `json:"name"`
	} `json:"mark"`
}

// ParseEvent decodes a provider JSON message into a typed event. Media
// payloads are base64-decoded to raw PCM.
func ParseEvent(raw []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to parse media event: %w", err)
	}

	switch env.Event {
	case "connected":
		return &Event{Kind: EventConnected}, nil
	case "start":
		var se startEvent
		if err := json.Unmarshal(raw, &se); err != nil {
			return nil, fmt.Errorf("failed to parse start event: %w", err)
		}
		return &Event{
			Kind:      EventStart,
			StreamSID: se.StreamSid,
			Start: &StartInfo{
				CallSID:          se.Start.CallSid,
				StreamSID:        se.StreamSid,
				From:             se.Start.From,
				To:               se.Start.To,
				SampleRate:       se.Start.MediaFormat.SampleRate,
				CustomParameters: se.Start.CustomParameters,
			},
		}, nil
	case "media":
		var me mediaEvent
		if err := json.Unmarshal(raw, &me); err != nil {
			return nil, fmt.Errorf("failed to parse media event: %w", err)
		}
		pcm, err := audio.DecodeBase64PCM(me.Media.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode media payload: %w", err)
		}
		return &Event{Kind: EventMedia, StreamSID: me.StreamSid, Audio: pcm}, nil
	case "stop":
		return &Event{Kind: EventStop, StreamSID: env.StreamSid}, nil
	case "mark":
		var mk markEvent
		if err := json.Unmarshal(raw, &mk); err != nil {
			return nil, fmt.Errorf("failed to parse mark event: %w", err)
		}
		return &Event{Kind: EventMark, StreamSID: mk.StreamSid, MarkName: mk.Mark.Name}, nil
	case "clear":
		return &Event{Kind: EventClear, StreamSID: env.StreamSid}, nil
	default:
		return &Event{Kind: EventUnknown, StreamSID: env.StreamSid}, nil
	}
}
