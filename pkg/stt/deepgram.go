package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	pkgaudio "github.com/troikatech/voice-agent/pkg/audio"
)

// DeepgramClient implements Transcriber against the Deepgram API.
// Prerecorded recognition goes over HTTP; live recognition over the
// listen WebSocket.
type DeepgramClient struct {
	apiKey    string
	timeout   time.Duration
	logger    *zap.Logger
	baseURL   string
	wsBaseURL string
}

var _ Transcriber = (*DeepgramClient)(nil)

// NewDeepgramClient creates a new Deepgram STT client
func NewDeepgramClient(apiKey string, timeout time.Duration, logger *zap.Logger) *DeepgramClient {
	if apiKey == "" {
		return &DeepgramClient{logger: logger}
	}

	return &DeepgramClient{
		apiKey:    apiKey,
		timeout:   timeout,
		logger:    logger,
		baseURL:   "https://api.deepgram.com/v1",
		wsBaseURL: "wss://api.deepgram.com/v1",
	}
}

// IsAvailable checks if the Deepgram client is configured
func (d *DeepgramClient) IsAvailable() bool {
	return d.apiKey != ""
}

func (d *DeepgramClient) queryParams(opts Options, interim bool) url.Values {
	params := url.Values{}
	model := opts.Model
	if model == "" {
		model = "nova-2"
	}
	params.Set("model", model)
	if opts.Language != "" {
		params.Set("language", opts.Language)
	}
	params.Set("punctuate", "true")
	if interim {
		params.Set("interim_results", "true")
		params.Set("endpointing", "300")
		params.Set("encoding", "linear16")
		sampleRate := opts.SampleRate
		if sampleRate == 0 {
			sampleRate = 16000
		}
		params.Set("sample_rate", strconv.Itoa(sampleRate))
		params.Set("channels", "1")
	}
	return params
}

// Recognize converts a whole audio buffer to text. Audio must be raw
// PCM16, mono, little-endian at opts.SampleRate.
func (d *DeepgramClient) Recognize(ctx context.Context, audio []byte, opts Options) (*Result, error) {
	if !d.IsAvailable() {
		return nil, fmt.Errorf("Deepgram STT service not available. Set DEEPGRAM_API_KEY environment variable")
	}

	if len(audio) == 0 {
		return nil, fmt.Errorf("audio data cannot be empty")
	}

	reqURL := fmt.Sprintf("%s/listen?%s", d.baseURL, d.queryParams(opts, false).Encode())

	// Prerecorded audio goes up as WAV; the container carries the sample
	// rate, so no encoding params are needed on this path.
	wav := pkgaudio.WAVFromPCM(audio, opts.SampleRate)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewReader(wav))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "audio/wav")
	httpReq.Header.Set("Authorization", "Token "+d.apiKey)

	client := &http.Client{Timeout: d.timeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Deepgram API error: %d - %s", resp.StatusCode, string(body))
	}

	var deepgramResp struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string  `json:"transcript"`
					Confidence float64 `json:"confidence"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
		Metadata struct {
			Language string  `json:"language"`
			Duration float64 `json:"duration"`
		} `json:"metadata"`
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, &deepgramResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	result := &Result{
		Language: deepgramResp.Metadata.Language,
		Duration: deepgramResp.Metadata.Duration,
	}
	if len(deepgramResp.Results.Channels) > 0 && len(deepgramResp.Results.Channels[0].Alternatives) > 0 {
		alt := deepgramResp.Results.Channels[0].Alternatives[0]
		result.Text = alt.Transcript
		result.Confidence = alt.Confidence
	}
	if result.Language == "" {
		result.Language = opts.Language
	}

	return result, nil
}

// Stream opens a live transcription session over the Deepgram listen
// WebSocket.
func (d *DeepgramClient) Stream(ctx context.Context, opts Options) (Stream, error) {
	if !d.IsAvailable() {
		return nil, fmt.Errorf("Deepgram STT service not available. Set DEEPGRAM_API_KEY environment variable")
	}

	wsURL := fmt.Sprintf("%s/listen?%s", d.wsBaseURL, d.queryParams(opts, true).Encode())

	header := http.Header{}
	header.Set("Authorization", "Token "+d.apiKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("Deepgram websocket dial failed: %d - %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("Deepgram websocket dial failed: %w", err)
	}

	s := &deepgramStream{
		conn:     conn,
		events:   make(chan Event, 16),
		logger:   d.logger,
		language: opts.Language,
	}
	go s.readLoop(ctx)

	return s, nil
}

type deepgramStream struct {
	conn     *websocket.Conn
	events   chan Event
	logger   *zap.Logger
	language string

	writeMu sync.Mutex
	closed  bool
}

type deepgramLiveMessage struct {
	Type     string  `json:"type"`
	IsFinal  bool    `json:"is_final"`
	Duration float64 `json:"duration"`
	Channel  struct {
		Alternatives []struct {
			Transcript string   `json:"transcript"`
			Confidence float64  `json:"confidence"`
			Languages  []string `json:"languages"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *deepgramStream) readLoop(ctx context.Context) {
	defer close(s.events)

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || s.isClosed() {
				return
			}
			s.emit(ctx, Event{Kind: EventError, Err: fmt.Errorf("deepgram stream read: %w", err)})
			return
		}

		var msg deepgramLiveMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.logger.Warn("Failed to parse Deepgram live message", zap.Error(err))
			continue
		}

		if msg.Type != "Results" || len(msg.Channel.Alternatives) == 0 {
			continue
		}

		alt := msg.Channel.Alternatives[0]
		if alt.Transcript == "" {
			continue
		}

		event := Event{
			Kind:       EventInterim,
			Text:       alt.Transcript,
			Confidence: alt.Confidence,
			Language:   s.language,
		}
		if len(alt.Languages) > 0 {
			event.Language = alt.Languages[0]
		}
		if msg.IsFinal {
			event.Kind = EventFinal
			event.AudioSeconds = msg.Duration
		}

		if !s.emit(ctx, event) {
			return
		}
	}
}

func (s *deepgramStream) emit(ctx context.Context, event Event) bool {
	select {
	case s.events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *deepgramStream) isClosed() bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.closed
}

// Write submits one PCM16 frame to the live session.
func (s *deepgramStream) Write(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return fmt.Errorf("stream is closed")
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// Events yields live speech events.
func (s *deepgramStream) Events() <-chan Event {
	return s.events
}

// Close flushes the session and closes the connection.
func (s *deepgramStream) Close() error {
	s.writeMu.Lock()
	if s.closed {
		s.writeMu.Unlock()
		return nil
	}
	s.closed = true
	_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	s.writeMu.Unlock()

	return s.conn.Close()
}
