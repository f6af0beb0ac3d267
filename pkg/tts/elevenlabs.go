package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ElevenLabsClient synthesizes speech via the ElevenLabs REST API.
type ElevenLabsClient struct {
	apiKey              string
	defaultVoiceID      string
	defaultModelID      string
	defaultOutputFormat string
	timeout             time.Duration
	logger              *zap.Logger
	baseURL             string
}

var _ Synthesizer = (*ElevenLabsClient)(nil)

// NewElevenLabsClient creates an ElevenLabs synthesizer.
func NewElevenLabsClient(apiKey, voiceID, modelID, outputFormat string, logger *zap.Logger) *ElevenLabsClient {
	return &ElevenLabsClient{
		apiKey:              apiKey,
		defaultVoiceID:      voiceID,
		defaultModelID:      modelID,
		defaultOutputFormat: outputFormat,
		timeout:             30 * time.Second,
		logger:              logger,
		baseURL:             "https://api.elevenlabs.io/v1",
	}
}

// IsAvailable returns true if the client is configured with an API key.
func (c *ElevenLabsClient) IsAvailable() bool {
	return c.apiKey != ""
}

func (c *ElevenLabsClient) resolve(opts Options) Options {
	if opts.VoiceID == "" {
		opts.VoiceID = c.defaultVoiceID
	}
	if opts.VoiceID == "" {
		opts.VoiceID = "21m00Tcm4TlvDq8ikWAM"
	}
	if opts.ModelID == "" {
		opts.ModelID = c.defaultModelID
	}
	if opts.ModelID == "" {
		opts.ModelID = "eleven_multilingual_v2"
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = c.defaultOutputFormat
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = "pcm_16000"
	}
	if opts.Stability == 0 {
		opts.Stability = 0.5
	}
	if opts.Similarity == 0 {
		opts.Similarity = 0.5
	}
	return opts
}

func (c *ElevenLabsClient) buildRequest(ctx context.Context, text string, opts Options, stream bool) (*http.Request, error) {
	body := map[string]interface{}{
		"text":     text,
		"model_id": opts.ModelID,
		"voice_settings": map[string]interface{}{
			"stability":        opts.Stability,
			"similarity_boost": opts.Similarity,
		},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", c.baseURL, opts.VoiceID, opts.OutputFormat)
	if stream {
		url = fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s", c.baseURL, opts.VoiceID, opts.OutputFormat)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)
	return req, nil
}

// Synthesize converts text to a complete audio buffer.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string, opts Options) ([]byte, error) {
	if !c.IsAvailable() {
		return nil, fmt.Errorf("TTS service not available. Set ELEVENLABS_API_KEY environment variable")
	}
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	opts = c.resolve(opts)

	req, err := c.buildRequest(ctx, text, opts, false)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: c.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ElevenLabs API error: %d - %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	c.logger.Debug("Synthesized speech",
		zap.String("voice_id", opts.VoiceID),
		zap.Int("text_chars", len(text)),
		zap.Int("audio_bytes", len(audio)))

	return audio, nil
}

// StreamSynthesize converts text to speech and returns audio chunks as
// they arrive from the API.
func (c *ElevenLabsClient) StreamSynthesize(ctx context.Context, text string, opts Options) (Stream, error) {
	if !c.IsAvailable() {
		return nil, fmt.Errorf("TTS service not available. Set ELEVENLABS_API_KEY environment variable")
	}
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	opts = c.resolve(opts)

	req, err := c.buildRequest(ctx, text, opts, true)
	if err != nil {
		return nil, err
	}

	// No client timeout here; the stream lives until drained or closed.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ElevenLabs API error: %d - %s", resp.StatusCode, string(body))
	}

	s := &elevenLabsStream{
		body:   resp.Body,
		frames: make(chan []byte, 8),
		done:   make(chan struct{}),
	}
	go s.readLoop(ctx)
	return s, nil
}

type elevenLabsStream struct {
	body   io.ReadCloser
	frames chan []byte
	done   chan struct{}

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

func (s *elevenLabsStream) readLoop(ctx context.Context) {
	defer close(s.frames)

	buf := make([]byte, 4096)
	for {
		n, err := s.body.Read(buf)
		if n > 0 {
			frame := make([]byte, n)
			copy(frame, buf[:n])
			select {
			case s.frames <- frame:
			case <-ctx.Done():
				s.setErr(ctx.Err())
				return
			case <-s.done:
				return
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			select {
			case <-s.done:
			default:
				s.setErr(fmt.Errorf("failed to read stream: %w", err))
			}
			return
		}
	}
}

func (s *elevenLabsStream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *elevenLabsStream) Frames() <-chan []byte {
	return s.frames
}

func (s *elevenLabsStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *elevenLabsStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.body.Close()
	})
	return nil
}
