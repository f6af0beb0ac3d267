package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/voice-agent/internal/store"
	"github.com/troikatech/voice-agent/internal/tenant"
	"github.com/troikatech/voice-agent/internal/tools"
	"github.com/troikatech/voice-agent/pkg/ai"
	apperrors "github.com/troikatech/voice-agent/pkg/errors"
	"github.com/troikatech/voice-agent/pkg/metrics"
	"github.com/troikatech/voice-agent/pkg/otel"
	"github.com/troikatech/voice-agent/pkg/stt"
	"github.com/troikatech/voice-agent/pkg/tts"
)

// Session states. A session enters each state at most once.
const (
	StateProvisioning = "provisioning"
	StateActive       = "active"
	StateFinalizing   = "finalizing"
	StateClosed       = "closed"
)

const defaultGreeting = "Hello! Thanks for calling. How can I help you today?"

const apologyUtterance = "I'm sorry, I'm having a little trouble right now. Could you say that again?"

// Speaker delivers synthesized audio to the caller. The media layer
// provides it.
type Speaker func(ctx context.Context, audio []byte) error

// Config wires a session's collaborators.
type Config struct {
	Call        *store.Call
	Tenant      *tenant.Config
	Store       store.CallStore
	Registry    *tools.Registry
	Responder   ai.Responder
	Synthesizer tts.Synthesizer
	Speak       Speaker
	Accountant  *Accountant
	Greeting    string
	VoiceID     string
	Logger      *zap.Logger
}

// Session drives one call: it consumes transcript events, runs
// responder turns, executes tools and speaks the results. One
// goroutine tree per call; sessions share nothing but the store.
type Session struct {
	cfg     Config
	callID  string
	history []ai.Message
	turn    int

	mu    sync.Mutex
	state string

	finalizeOnce sync.Once
}

// NewSession validates the session metadata bundle. A missing tenant or
// call id is a configuration error; the turn loop must never start.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Call == nil || cfg.Call.ID.IsZero() {
		return nil, apperrors.NewValidation("session requires a call id")
	}
	if cfg.Call.TenantID == "" || cfg.Tenant == nil {
		return nil, apperrors.NewValidation("session requires a tenant")
	}
	if cfg.Store == nil || cfg.Registry == nil || cfg.Responder == nil {
		return nil, apperrors.NewValidation("session requires store, registry and responder")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Greeting == "" {
		cfg.Greeting = defaultGreeting
	}

	s := &Session{
		cfg:    cfg,
		callID: cfg.Call.ID.Hex(),
		state:  StateProvisioning,
	}
	if cfg.Tenant.PersonaPrompt != "" {
		s.history = append(s.history, ai.Message{Role: ai.RoleSystem, Content: cfg.Tenant.PersonaPrompt})
	}
	return s, nil
}

// State returns the session's current lifecycle state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Run is the turn loop. It consumes the transcriber's event stream
// until the stream closes or ctx is cancelled, then finalizes.
func (s *Session) Run(ctx context.Context, events <-chan stt.Event) {
	s.setState(StateActive)
	metrics.RecordCallStarted()

	s.cfg.Logger.Info("Session active",
		zap.String("call_id", s.callID),
		zap.String("tenant_id", s.cfg.Call.TenantID))

	s.speakAndRecord(ctx, s.cfg.Greeting)

	defer func() {
		s.Finalize(context.WithoutCancel(ctx), StatusFromContext(ctx))
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			switch event.Kind {
			case stt.EventFinal:
				if event.AudioSeconds > 0 && s.cfg.Accountant != nil {
					s.cfg.Accountant.AddSTTSeconds(event.AudioSeconds)
				}
				if event.Text == "" {
					continue
				}
				s.handleUserUtterance(ctx, event.Text)
			case stt.EventError:
				s.cfg.Logger.Warn("Transcriber stream error",
					zap.String("call_id", s.callID),
					zap.Error(event.Err))
				return
			}
		}
	}
}

// handleUserUtterance runs one full turn for a final transcript.
func (s *Session) handleUserUtterance(ctx context.Context, text string) {
	s.turn++
	ctx, span := otel.StartTurnSpan(ctx, s.callID, s.turn)
	defer span.End()

	// Transcript writes are awaited; later turns read this state.
	s.appendTranscript(ctx, "user", text)
	s.history = append(s.history, ai.Message{Role: ai.RoleUser, Content: text})

	start := time.Now()
	result, err := s.cfg.Responder.Complete(ctx, &ai.TurnRequest{
		Messages: s.history,
		Tools:    s.cfg.Registry.Schemas(),
	})
	metrics.RecordStage("llm", err == nil, time.Since(start))
	if err != nil {
		s.cfg.Logger.Error("Responder turn failed",
			zap.String("call_id", s.callID),
			zap.Error(err))
		s.recordErrorEvent(ctx, "responder_failed", err)
		s.speakAndRecord(ctx, apologyUtterance)
		return
	}

	if s.cfg.Accountant != nil {
		s.cfg.Accountant.AddLLMUsage(result.Usage.PromptTokens, result.Usage.CompletionTokens)
	}

	if len(result.ToolCalls) == 0 {
		if result.Text != "" {
			s.speakAndRecord(ctx, result.Text)
		}
		return
	}

	// The assistant turn that requested the tools must stay in history
	// so each tool result below can reference its call id.
	s.history = append(s.history, ai.Message{
		Role:      ai.RoleAssistant,
		Content:   result.Text,
		ToolCalls: result.ToolCalls,
	})

	// Tools run sequentially; later tools may depend on rows written
	// by earlier ones.
	for _, call := range result.ToolCalls {
		s.executeTool(ctx, call)
	}
}

func (s *Session) executeTool(ctx context.Context, call ai.ToolCall) {
	ctx, span := otel.StartToolSpan(ctx, s.callID, call.Name)
	defer span.End()

	var reply string
	inv, err := tools.ParseInvocation(call.Name, call.Arguments)
	if err != nil {
		metrics.RecordTool(call.Name, false)
		s.cfg.Logger.Warn("Tool invocation rejected",
			zap.String("call_id", s.callID),
			zap.String("tool", call.Name),
			zap.Error(err))
		reply = "I'm sorry, could you give me that information once more?"
	} else {
		reply, err = s.cfg.Registry.Execute(ctx, inv)
		metrics.RecordTool(call.Name, err == nil)
		if err != nil {
			s.cfg.Logger.Error("Tool execution failed",
				zap.String("call_id", s.callID),
				zap.String("tool", call.Name),
				zap.Error(err))
			s.recordErrorEvent(ctx, "tool_failed", err)
			reply = "I'm sorry, I couldn't complete that just now, but I'll make sure our team reaches out to help."
		}
	}

	// Every requested call gets exactly one tool result in history,
	// keyed by the call id. The reply doubles as that result, so it is
	// not re-appended as a plain assistant message.
	s.history = append(s.history, ai.Message{
		Role:       ai.RoleTool,
		Content:    reply,
		ToolCallID: call.ID,
		ToolName:   call.Name,
	})
	s.appendTranscript(ctx, "agent", reply)
	s.speak(ctx, reply)
}

// speakAndRecord speaks a plain assistant utterance and appends it to
// both the transcript and the conversation history.
func (s *Session) speakAndRecord(ctx context.Context, text string) {
	s.appendTranscript(ctx, "agent", text)
	s.history = append(s.history, ai.Message{Role: ai.RoleAssistant, Content: text})
	s.speak(ctx, text)
}

// speak synthesizes an utterance and plays it to the caller. Synthesis
// failures never end the call.
func (s *Session) speak(ctx context.Context, text string) {
	if s.cfg.Synthesizer == nil || s.cfg.Speak == nil {
		return
	}

	start := time.Now()
	audio, err := s.cfg.Synthesizer.Synthesize(ctx, text, tts.Options{VoiceID: s.cfg.VoiceID})
	metrics.RecordStage("tts", err == nil, time.Since(start))
	if err != nil {
		s.cfg.Logger.Error("Synthesis failed",
			zap.String("call_id", s.callID),
			zap.Error(err))
		s.recordErrorEvent(ctx, "synthesis_failed", err)
		return
	}

	if s.cfg.Accountant != nil {
		s.cfg.Accountant.AddTTSChars(len(text))
	}

	if err := s.cfg.Speak(ctx, audio); err != nil {
		s.cfg.Logger.Warn("Audio playback failed",
			zap.String("call_id", s.callID),
			zap.Error(err))
	}
}

func (s *Session) appendTranscript(ctx context.Context, speaker, text string) {
	entry := store.TranscriptEntry{
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now(),
	}
	if err := s.cfg.Store.AppendTranscript(ctx, s.cfg.Call.ID, entry); err != nil {
		s.cfg.Logger.Warn("Failed to persist transcript entry",
			zap.String("call_id", s.callID),
			zap.String("speaker", speaker),
			zap.Error(err))
	}

	// Speech boundaries are fire-and-forget telemetry, like error events.
	eventType := "agent_utterance"
	if speaker == "user" {
		eventType = "user_speech_final"
	}
	_ = s.cfg.Store.AppendEvent(ctx, &store.CallEvent{
		CallID:    s.cfg.Call.ID,
		EventType: eventType,
		EventData: map[string]interface{}{"text": text},
	})
}

func (s *Session) recordErrorEvent(ctx context.Context, eventType string, err error) {
	_ = s.cfg.Store.AppendEvent(ctx, &store.CallEvent{
		CallID:    s.cfg.Call.ID,
		EventType: eventType,
		EventData: map[string]interface{}{"error": err.Error()},
	})
}

// Finalize closes the call record: duration, terminal status, cost
// flush. It runs at most once and never panics past the session
// boundary.
func (s *Session) Finalize(ctx context.Context, status string) {
	s.finalizeOnce.Do(func() {
		s.setState(StateFinalizing)
		defer s.setState(StateClosed)
		defer metrics.RecordCallFinalized()

		if status == "" {
			status = store.StatusCompleted
		}

		endedAt := time.Now()
		duration := int(endedAt.Sub(s.cfg.Call.StartedAt).Seconds())
		if duration < 0 {
			duration = 0
		}

		if s.cfg.Accountant != nil {
			s.cfg.Accountant.SetTelephonySeconds(float64(duration))
			if err := s.cfg.Accountant.Flush(ctx); err != nil {
				s.cfg.Logger.Warn("Cost flush failed during finalization",
					zap.String("call_id", s.callID),
					zap.Error(err))
			}
		}

		update := &store.CallUpdate{
			Status:          &status,
			EndedAt:         &endedAt,
			DurationSeconds: &duration,
		}
		if err := s.cfg.Store.UpdateCall(ctx, s.cfg.Call.ID, update); err != nil {
			s.cfg.Logger.Error("Failed to finalize call record",
				zap.String("call_id", s.callID),
				zap.Error(err))
		}

		s.cfg.Logger.Info("Session finalized",
			zap.String("call_id", s.callID),
			zap.String("status", status),
			zap.Int("duration_seconds", duration))
	})
}

// StatusFromContext maps the loop's exit cause to a terminal status.
func StatusFromContext(ctx context.Context) string {
	if ctx.Err() == context.DeadlineExceeded {
		return store.StatusAbandoned
	}
	return store.StatusCompleted
}
