package tts

import "context"

// Options configures synthesis.
type Options struct {
	VoiceID      string
	ModelID      string
	OutputFormat string
	Stability    float64
	Similarity   float64
}

// Stream is a lazy sequence of synthesized audio frames at a fixed
// sample rate. Frames closes when synthesis completes or fails; Err
// reports the terminal error, if any, once Frames is drained.
type Stream interface {
	Frames() <-chan []byte
	Err() error
	Close() error
}

// Synthesizer converts text to speech audio. Streaming and buffered
// paths produce equivalent audio content; the streaming path is
// optimized for low first-byte latency.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts Options) ([]byte, error)
	StreamSynthesize(ctx context.Context, text string, opts Options) (Stream, error)
}
