package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/troikatech/voice-agent/internal/store"
	"github.com/troikatech/voice-agent/internal/tenant"
	"github.com/troikatech/voice-agent/internal/tools"
	"github.com/troikatech/voice-agent/pkg/ai"
	apperrors "github.com/troikatech/voice-agent/pkg/errors"
	"github.com/troikatech/voice-agent/pkg/stt"
	"github.com/troikatech/voice-agent/pkg/tts"
)

// scriptedResponder returns queued results in order, then an error. It
// snapshots the history of every request it sees.
type scriptedResponder struct {
	results  []*ai.TurnResult
	errs     []error
	calls    int
	requests [][]ai.Message
}

func (r *scriptedResponder) Complete(_ context.Context, req *ai.TurnRequest) (*ai.TurnResult, error) {
	r.requests = append(r.requests, append([]ai.Message(nil), req.Messages...))
	i := r.calls
	r.calls++
	if i < len(r.errs) && r.errs[i] != nil {
		return nil, r.errs[i]
	}
	if i < len(r.results) {
		return r.results[i], nil
	}
	return &ai.TurnResult{Text: "Anything else?"}, nil
}

// fakeSynth returns a fixed buffer or an error.
type fakeSynth struct {
	err   error
	calls int
}

func (f *fakeSynth) Synthesize(_ context.Context, text string, _ tts.Options) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(text), nil
}

func (f *fakeSynth) StreamSynthesize(_ context.Context, _ string, _ tts.Options) (tts.Stream, error) {
	return nil, errors.New("not implemented")
}

type sessionFixture struct {
	session *Session
	store   *store.MemoryStore
	call    *store.Call
	spoken  *[]string
}

func newSessionFixture(t *testing.T, responder ai.Responder, synth tts.Synthesizer) *sessionFixture {
	t.Helper()

	mem := store.NewMemoryStore()
	call := &store.Call{TenantID: "t-1", SessionID: "sess-1", CallerPhone: "+15551230000"}
	if err := mem.CreateCall(context.Background(), call); err != nil {
		t.Fatalf("CreateCall() error = %v", err)
	}

	cfg := &tenant.Config{TenantID: "t-1", PersonaPrompt: "You are a friendly receptionist.", Timezone: "UTC"}
	registry := tools.NewRegistry(tools.CallContext{
		TenantID:    "t-1",
		CallID:      call.ID,
		CallerPhone: call.CallerPhone,
	}, tools.Deps{Store: mem, Tenant: cfg, Logger: zap.NewNop()})

	var spoken []string
	session, err := NewSession(Config{
		Call:        call,
		Tenant:      cfg,
		Store:       mem,
		Registry:    registry,
		Responder:   responder,
		Synthesizer: synth,
		Speak: func(_ context.Context, audio []byte) error {
			spoken = append(spoken, string(audio))
			return nil
		},
		Accountant: NewAccountant(call.ID, mem, Rates{}, zap.NewNop()),
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	return &sessionFixture{session: session, store: mem, call: call, spoken: &spoken}
}

func runEvents(fx *sessionFixture, events ...stt.Event) {
	ch := make(chan stt.Event, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	fx.session.Run(context.Background(), ch)
}

func TestNewSessionRequiresIdentity(t *testing.T) {
	_, err := NewSession(Config{})
	if !apperrors.IsValidation(err) {
		t.Errorf("expected validation error for empty config, got %v", err)
	}

	mem := store.NewMemoryStore()
	call := &store.Call{SessionID: "sess-1"}
	if err := mem.CreateCall(context.Background(), call); err != nil {
		t.Fatal(err)
	}
	_, err = NewSession(Config{Call: call, Store: mem})
	if !apperrors.IsValidation(err) {
		t.Errorf("expected validation error for missing tenant, got %v", err)
	}
}

func TestSessionPlainTextTurn(t *testing.T) {
	responder := &scriptedResponder{results: []*ai.TurnResult{
		{Text: "We open at nine.", Usage: ai.Usage{PromptTokens: 10, CompletionTokens: 5}},
	}}
	synth := &fakeSynth{}
	fx := newSessionFixture(t, responder, synth)

	runEvents(fx, stt.Event{Kind: stt.EventFinal, Text: "When do you open?", AudioSeconds: 1.5})

	if responder.calls != 1 {
		t.Errorf("responder calls = %d, want 1", responder.calls)
	}
	if len(*fx.spoken) != 2 {
		t.Fatalf("spoken = %d utterances, want greeting + answer", len(*fx.spoken))
	}
	if (*fx.spoken)[1] != "We open at nine." {
		t.Errorf("spoken[1] = %q", (*fx.spoken)[1])
	}

	call, _ := fx.store.GetCall(context.Background(), fx.call.ID)
	var texts []string
	for _, e := range call.Transcript {
		texts = append(texts, e.Speaker+":"+e.Text)
	}
	joined := strings.Join(texts, "|")
	if !strings.Contains(joined, "user:When do you open?") {
		t.Errorf("transcript missing user utterance: %s", joined)
	}
	if !strings.Contains(joined, "agent:We open at nine.") {
		t.Errorf("transcript missing agent utterance: %s", joined)
	}
	if call.Status != store.StatusCompleted {
		t.Errorf("status = %q, want completed", call.Status)
	}
	if call.EndedAt == nil {
		t.Error("EndedAt should be set after finalization")
	}
}

func TestSessionToolCallTurn(t *testing.T) {
	args, _ := json.Marshal(map[string]string{"name": "Jane Smith", "phone": "+15557778888"})
	responder := &scriptedResponder{results: []*ai.TurnResult{
		{ToolCalls: []ai.ToolCall{{ID: "call_1", Name: "create_lead", Arguments: args}}},
	}}
	fx := newSessionFixture(t, responder, &fakeSynth{})

	runEvents(fx, stt.Event{Kind: stt.EventFinal, Text: "Please save my details."})

	leads := fx.store.Leads()
	if len(leads) != 1 {
		t.Fatalf("leads = %d, want 1", len(leads))
	}
	if leads[0].Name != "Jane Smith" {
		t.Errorf("lead name = %q", leads[0].Name)
	}

	// The tool's confirmation must reach both the caller and transcript.
	found := false
	for _, u := range *fx.spoken {
		if strings.Contains(u, "Jane Smith") {
			found = true
		}
	}
	if !found {
		t.Errorf("tool confirmation was never spoken: %v", *fx.spoken)
	}
}

// requireToolResultsAnswerCalls checks that every tool message in a
// request answers a tool call announced by the assistant message it
// follows. The chat API rejects histories that break this pairing.
func requireToolResultsAnswerCalls(t *testing.T, messages []ai.Message) {
	t.Helper()
	for i, m := range messages {
		if m.Role != ai.RoleTool {
			continue
		}
		j := i - 1
		for j >= 0 && messages[j].Role == ai.RoleTool {
			j--
		}
		if j < 0 || messages[j].Role != ai.RoleAssistant {
			t.Fatalf("tool message at index %d has no preceding assistant message", i)
		}
		matched := false
		for _, tc := range messages[j].ToolCalls {
			if tc.ID == m.ToolCallID {
				matched = true
			}
		}
		if !matched {
			t.Errorf("tool message at index %d answers call %q, but the assistant message never requested it", i, m.ToolCallID)
		}
	}
}

func TestSessionToolTurnHistoryProtocol(t *testing.T) {
	args, _ := json.Marshal(map[string]string{"name": "Jane Smith", "phone": "+15557778888"})
	responder := &scriptedResponder{results: []*ai.TurnResult{
		{ToolCalls: []ai.ToolCall{{ID: "call_1", Name: "create_lead", Arguments: args}}},
		{Text: "All set."},
	}}
	fx := newSessionFixture(t, responder, &fakeSynth{})

	runEvents(fx,
		stt.Event{Kind: stt.EventFinal, Text: "Please save my details."},
		stt.Event{Kind: stt.EventFinal, Text: "Thanks, that's all."},
	)

	if len(responder.requests) != 2 {
		t.Fatalf("responder requests = %d, want 2", len(responder.requests))
	}

	// The second turn replays the tool exchange from the first.
	second := responder.requests[1]
	requireToolResultsAnswerCalls(t, second)

	var assistantCalls, toolResults int
	var toolReply string
	for _, m := range second {
		if m.Role == ai.RoleAssistant && len(m.ToolCalls) > 0 {
			assistantCalls++
			if m.ToolCalls[0].ID != "call_1" {
				t.Errorf("assistant tool call id = %q, want call_1", m.ToolCalls[0].ID)
			}
		}
		if m.Role == ai.RoleTool {
			toolResults++
			toolReply = m.Content
		}
	}
	if assistantCalls != 1 {
		t.Errorf("assistant messages carrying tool calls = %d, want 1", assistantCalls)
	}
	if toolResults != 1 {
		t.Errorf("tool result messages = %d, want 1", toolResults)
	}

	// The spoken tool reply must not be duplicated as a plain assistant
	// message.
	for _, m := range second {
		if m.Role == ai.RoleAssistant && len(m.ToolCalls) == 0 && m.Content == toolReply {
			t.Errorf("tool reply %q duplicated as an assistant message", toolReply)
		}
	}
}

func TestSessionRejectedToolStillAnswersModel(t *testing.T) {
	responder := &scriptedResponder{results: []*ai.TurnResult{
		{ToolCalls: []ai.ToolCall{{ID: "call_9", Name: "book_flight", Arguments: json.RawMessage(`{}`)}}},
		{Text: "Understood."},
	}}
	fx := newSessionFixture(t, responder, &fakeSynth{})

	runEvents(fx,
		stt.Event{Kind: stt.EventFinal, Text: "Book me a flight."},
		stt.Event{Kind: stt.EventFinal, Text: "Never mind."},
	)

	if len(responder.requests) != 2 {
		t.Fatalf("responder requests = %d, want 2", len(responder.requests))
	}
	requireToolResultsAnswerCalls(t, responder.requests[1])

	found := false
	for _, m := range responder.requests[1] {
		if m.Role == ai.RoleTool && m.ToolCallID == "call_9" {
			found = true
		}
	}
	if !found {
		t.Error("rejected tool call has no tool result in the next request")
	}
}

func TestSessionRecordsSpeechBoundaryEvents(t *testing.T) {
	responder := &scriptedResponder{results: []*ai.TurnResult{{Text: "We open at nine."}}}
	fx := newSessionFixture(t, responder, &fakeSynth{})

	runEvents(fx, stt.Event{Kind: stt.EventFinal, Text: "When do you open?"})

	var userFinals, agentUtterances int
	for _, e := range fx.store.Events() {
		switch e.EventType {
		case "user_speech_final":
			userFinals++
		case "agent_utterance":
			agentUtterances++
		}
	}
	if userFinals != 1 {
		t.Errorf("user_speech_final events = %d, want 1", userFinals)
	}
	// Greeting plus the answer.
	if agentUtterances != 2 {
		t.Errorf("agent_utterance events = %d, want 2", agentUtterances)
	}
}

func TestSessionResponderFailureSpeaksApology(t *testing.T) {
	responder := &scriptedResponder{errs: []error{errors.New("model unavailable")}}
	fx := newSessionFixture(t, responder, &fakeSynth{})

	runEvents(fx, stt.Event{Kind: stt.EventFinal, Text: "Hello?"})

	apologized := false
	for _, u := range *fx.spoken {
		if strings.Contains(u, "trouble") {
			apologized = true
		}
	}
	if !apologized {
		t.Errorf("expected an apology utterance, got %v", *fx.spoken)
	}

	call, _ := fx.store.GetCall(context.Background(), fx.call.ID)
	if call.Status != store.StatusCompleted {
		t.Errorf("responder failure must not fail the call, status = %q", call.Status)
	}
}

func TestSessionSynthesisFailureContinues(t *testing.T) {
	responder := &scriptedResponder{results: []*ai.TurnResult{{Text: "Sure thing."}}}
	fx := newSessionFixture(t, responder, &fakeSynth{err: errors.New("tts down")})

	runEvents(fx, stt.Event{Kind: stt.EventFinal, Text: "Can you help?"})

	// Audio never played, but the utterance still lands in the transcript.
	call, _ := fx.store.GetCall(context.Background(), fx.call.ID)
	found := false
	for _, e := range call.Transcript {
		if e.Speaker == "agent" && e.Text == "Sure thing." {
			found = true
		}
	}
	if !found {
		t.Error("agent utterance missing from transcript after synthesis failure")
	}
	if call.Status != store.StatusCompleted {
		t.Errorf("status = %q, want completed", call.Status)
	}
}

func TestSessionFinalizeOnce(t *testing.T) {
	fx := newSessionFixture(t, &scriptedResponder{}, &fakeSynth{})

	runEvents(fx)
	if fx.session.State() != StateClosed {
		t.Errorf("state = %q, want closed", fx.session.State())
	}

	// A second finalization is a no-op, not a status error.
	fx.session.Finalize(context.Background(), store.StatusFailed)

	call, _ := fx.store.GetCall(context.Background(), fx.call.ID)
	if call.Status != store.StatusCompleted {
		t.Errorf("status = %q, want completed after single finalization", call.Status)
	}
}

func TestSessionStreamErrorFinalizes(t *testing.T) {
	fx := newSessionFixture(t, &scriptedResponder{}, &fakeSynth{})

	runEvents(fx, stt.Event{Kind: stt.EventError, Err: errors.New("stream torn down")})

	if fx.session.State() != StateClosed {
		t.Errorf("state = %q, want closed", fx.session.State())
	}
	call, _ := fx.store.GetCall(context.Background(), fx.call.ID)
	if call.Status != store.StatusCompleted {
		t.Errorf("status = %q", call.Status)
	}
}
