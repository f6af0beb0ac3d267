package stt

import "context"

// EventKind classifies a speech event from a transcription stream.
type EventKind string

const (
	// EventInterim is a provisional hypothesis that may still change.
	EventInterim EventKind = "interim"
	// EventFinal is a settled transcript for a finished utterance.
	EventFinal EventKind = "final"
	// EventError terminates the stream. No events follow it.
	EventError EventKind = "error"
)

// Event is one element of a transcription stream.
type Event struct {
	Kind       EventKind
	Text       string
	Confidence float64
	Language   string
	// AudioSeconds is the amount of audio covered by this event, used
	// for cost accounting. Zero on interim events.
	AudioSeconds float64
	Err          error
}

// Result is a single-shot recognition result.
type Result struct {
	Text       string
	Language   string
	Confidence float64
	Duration   float64
}

// Options configures recognition.
type Options struct {
	SampleRate int
	Language   string
	Model      string
}

// Stream is a live transcription session. Events is unbounded and
// non-restartable: it closes after Close or after an EventError.
// Providers do not retry internally; retry policy belongs to the caller.
type Stream interface {
	// Write submits one PCM16 audio frame.
	Write(frame []byte) error
	// Events yields speech events in arrival order.
	Events() <-chan Event
	// Close flushes and tears down the session.
	Close() error
}

// Transcriber converts speech audio to text, either whole-buffer or
// streaming.
type Transcriber interface {
	Recognize(ctx context.Context, audio []byte, opts Options) (*Result, error)
	Stream(ctx context.Context, opts Options) (Stream, error)
}
