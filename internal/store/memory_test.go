package store

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/troikatech/voice-agent/pkg/errors"
)

func TestCallStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"in progress to completed", StatusInProgress, StatusCompleted, true},
		{"in progress to failed", StatusInProgress, StatusFailed, true},
		{"in progress to abandoned", StatusInProgress, StatusAbandoned, true},
		{"completed back to in progress", StatusCompleted, StatusInProgress, false},
		{"completed to failed", StatusCompleted, StatusFailed, false},
		{"same status", StatusInProgress, StatusInProgress, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := &Call{Status: tt.from}
			if got := call.CanTransitionTo(tt.to); got != tt.allowed {
				t.Errorf("CanTransitionTo(%q) = %v, want %v", tt.to, got, tt.allowed)
			}
		})
	}
}

func TestMemoryStoreStatusGuard(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	call := &Call{TenantID: "t-1", SessionID: "sess-1"}
	if err := s.CreateCall(ctx, call); err != nil {
		t.Fatalf("CreateCall() error = %v", err)
	}
	if call.Status != StatusInProgress {
		t.Fatalf("new call status = %q, want in_progress", call.Status)
	}

	completed := StatusCompleted
	if err := s.UpdateCall(ctx, call.ID, &CallUpdate{Status: &completed}); err != nil {
		t.Fatalf("UpdateCall() error = %v", err)
	}

	abandoned := StatusAbandoned
	err := s.UpdateCall(ctx, call.ID, &CallUpdate{Status: &abandoned})
	if !apperrors.IsValidation(err) {
		t.Errorf("expected validation error moving out of terminal state, got %v", err)
	}

	got, err := s.GetCall(ctx, call.ID)
	if err != nil {
		t.Fatalf("GetCall() error = %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
}

func TestMemoryStoreTranscriptOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	call := &Call{TenantID: "t-1", SessionID: "sess-1"}
	if err := s.CreateCall(ctx, call); err != nil {
		t.Fatalf("CreateCall() error = %v", err)
	}

	base := time.Now()
	entries := []TranscriptEntry{
		{Speaker: "user", Text: "hello", Timestamp: base},
		{Speaker: "agent", Text: "hi there", Timestamp: base.Add(time.Second)},
		{Speaker: "user", Text: "book me in", Timestamp: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := s.AppendTranscript(ctx, call.ID, e); err != nil {
			t.Fatalf("AppendTranscript() error = %v", err)
		}
	}

	got, err := s.GetCall(ctx, call.ID)
	if err != nil {
		t.Fatalf("GetCall() error = %v", err)
	}
	if len(got.Transcript) != len(entries) {
		t.Fatalf("transcript length = %d, want %d", len(got.Transcript), len(entries))
	}
	for i := range entries {
		if got.Transcript[i].Text != entries[i].Text {
			t.Errorf("transcript[%d].Text = %q, want %q", i, got.Transcript[i].Text, entries[i].Text)
		}
		if i > 0 && got.Transcript[i].Timestamp.Before(got.Transcript[i-1].Timestamp) {
			t.Errorf("transcript[%d] timestamp out of order", i)
		}
	}
}

func TestMemoryStoreFindRecentLeadByPhone(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	older := &Lead{TenantID: "t-1", Name: "Old", Phone: "+15551234567"}
	if err := s.CreateLead(ctx, older); err != nil {
		t.Fatalf("CreateLead() error = %v", err)
	}
	// Ensure distinct created_at values.
	time.Sleep(2 * time.Millisecond)
	newer := &Lead{TenantID: "t-1", Name: "New", Phone: "+15551234567"}
	if err := s.CreateLead(ctx, newer); err != nil {
		t.Fatalf("CreateLead() error = %v", err)
	}

	got, err := s.FindRecentLeadByPhone(ctx, "t-1", "+15551234567")
	if err != nil {
		t.Fatalf("FindRecentLeadByPhone() error = %v", err)
	}
	if got.Name != "New" {
		t.Errorf("Name = %q, want New", got.Name)
	}

	if _, err := s.FindRecentLeadByPhone(ctx, "t-1", "+15550000000"); !apperrors.IsNotFound(err) {
		t.Errorf("expected not found for unknown phone, got %v", err)
	}
	if _, err := s.FindRecentLeadByPhone(ctx, "t-2", "+15551234567"); !apperrors.IsNotFound(err) {
		t.Errorf("expected not found for other tenant, got %v", err)
	}
}

func TestMemoryStoreGetCallBySession(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	call := &Call{TenantID: "t-1", SessionID: "sess-42"}
	if err := s.CreateCall(ctx, call); err != nil {
		t.Fatalf("CreateCall() error = %v", err)
	}

	got, err := s.GetCallBySession(ctx, "sess-42")
	if err != nil {
		t.Fatalf("GetCallBySession() error = %v", err)
	}
	if got.ID != call.ID {
		t.Errorf("ID mismatch")
	}

	if _, err := s.GetCallBySession(ctx, "missing"); !apperrors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}
