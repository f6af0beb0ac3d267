package ai

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/troikatech/voice-agent/pkg/errors"
)

func TestOpenAIClientAvailability(t *testing.T) {
	tests := []struct {
		name      string
		apiKey    string
		available bool
	}{
		{"with key", "sk-test", true},
		{"without key", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewOpenAIClient(tt.apiKey, "", 0, 0, zap.NewNop())
			if c.IsAvailable() != tt.available {
				t.Errorf("IsAvailable() = %v, want %v", c.IsAvailable(), tt.available)
			}
		})
	}
}

func TestOpenAIClientDefaults(t *testing.T) {
	c := NewOpenAIClient("sk-test", "", 0, 0, zap.NewNop())

	if c.model == "" {
		t.Error("expected default model to be set")
	}
	if c.maxTokens != 1024 {
		t.Errorf("maxTokens = %d, want 1024", c.maxTokens)
	}
	if c.timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", c.timeout)
	}
}

func TestCompleteRejectsEmptyRequest(t *testing.T) {
	c := NewOpenAIClient("sk-test", "gpt-4o-mini", 0, 0, zap.NewNop())

	_, err := c.Complete(context.Background(), &TurnRequest{})
	if !apperrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCompleteUnavailable(t *testing.T) {
	c := NewOpenAIClient("", "gpt-4o-mini", 0, 0, zap.NewNop())

	_, err := c.Complete(context.Background(), &TurnRequest{
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	if err == nil {
		t.Fatal("expected error when API key is missing")
	}
}

func TestToChatMessages(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "You are a receptionist."},
		{Role: RoleUser, Content: "Book me for Tuesday."},
		{Role: RoleAssistant, Content: "One moment."},
		{Role: RoleTool, Content: `{"status":"ok"}`, ToolCallID: "call_1", ToolName: "book_appointment"},
	}

	out := toChatMessages(messages)
	if len(out) != 4 {
		t.Fatalf("len = %d, want 4", len(out))
	}
	if out[0].Role != "system" || out[0].Content != "You are a receptionist." {
		t.Errorf("unexpected system message: %+v", out[0])
	}
	if out[3].ToolCallID != "call_1" {
		t.Errorf("ToolCallID = %q, want call_1", out[3].ToolCallID)
	}
	if out[3].Name != "book_appointment" {
		t.Errorf("Name = %q, want book_appointment", out[3].Name)
	}
	if out[1].ToolCallID != "" {
		t.Errorf("user message should not carry a tool call id")
	}
}
