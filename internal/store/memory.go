package store

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	apperrors "github.com/troikatech/voice-agent/pkg/errors"
)

// MemoryStore is an in-memory CallStore for tests and local runs.
type MemoryStore struct {
	mu           sync.RWMutex
	calls        map[primitive.ObjectID]*Call
	leads        map[primitive.ObjectID]*Lead
	appointments map[primitive.ObjectID]*Appointment
	events       []CallEvent
}

var _ CallStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		calls:        make(map[primitive.ObjectID]*Call),
		leads:        make(map[primitive.ObjectID]*Lead),
		appointments: make(map[primitive.ObjectID]*Appointment),
	}
}

func (s *MemoryStore) CreateCall(_ context.Context, call *Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if call.ID.IsZero() {
		call.ID = primitive.NewObjectID()
	}
	if call.StartedAt.IsZero() {
		call.StartedAt = now
	}
	if call.Status == "" {
		call.Status = StatusInProgress
	}
	if call.Transcript == nil {
		call.Transcript = []TranscriptEntry{}
	}
	call.CreatedAt = now
	call.UpdatedAt = now

	copied := *call
	s.calls[call.ID] = &copied
	return nil
}

func (s *MemoryStore) GetCall(_ context.Context, id primitive.ObjectID) (*Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	call, ok := s.calls[id]
	if !ok {
		return nil, apperrors.NewNotFound("call", id.Hex())
	}
	copied := *call
	copied.Transcript = append([]TranscriptEntry(nil), call.Transcript...)
	return &copied, nil
}

func (s *MemoryStore) GetCallBySession(_ context.Context, sessionID string) (*Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, call := range s.calls {
		if call.SessionID == sessionID {
			copied := *call
			copied.Transcript = append([]TranscriptEntry(nil), call.Transcript...)
			return &copied, nil
		}
	}
	return nil, apperrors.NewNotFound("call", sessionID)
}

func (s *MemoryStore) UpdateCall(_ context.Context, id primitive.ObjectID, update *CallUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[id]
	if !ok {
		return apperrors.NewNotFound("call", id.Hex())
	}

	if update.Status != nil {
		if !call.CanTransitionTo(*update.Status) {
			return apperrors.NewValidation("call %s is no longer in progress", id.Hex())
		}
		call.Status = *update.Status
	}
	if update.Outcome != nil {
		call.Outcome = *update.Outcome
	}
	if update.TransferredToHuman != nil {
		call.TransferredToHuman = *update.TransferredToHuman
	}
	if update.TelephonyCallID != nil {
		call.TelephonyCallID = *update.TelephonyCallID
	}
	if update.TelephonyStatus != nil {
		call.TelephonyStatus = *update.TelephonyStatus
	}
	if update.CallerPhone != nil {
		call.CallerPhone = *update.CallerPhone
	}
	if update.AnsweredAt != nil {
		call.AnsweredAt = update.AnsweredAt
	}
	if update.EndedAt != nil {
		call.EndedAt = update.EndedAt
	}
	if update.DurationSeconds != nil {
		call.DurationSeconds = *update.DurationSeconds
	}
	if update.Costs != nil {
		call.Costs = *update.Costs
	}
	if update.Notes != nil {
		call.Notes = *update.Notes
	}
	if update.Summary != nil {
		call.Summary = *update.Summary
	}
	call.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) AppendTranscript(_ context.Context, id primitive.ObjectID, entry TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[id]
	if !ok {
		return apperrors.NewNotFound("call", id.Hex())
	}
	call.Transcript = append(call.Transcript, entry)
	call.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ListCalls(_ context.Context, tenantID string, limit int64) ([]Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	var calls []Call
	for _, call := range s.calls {
		if tenantID != "" && call.TenantID != tenantID {
			continue
		}
		calls = append(calls, *call)
		if int64(len(calls)) >= limit {
			break
		}
	}
	return calls, nil
}

func (s *MemoryStore) CreateLead(_ context.Context, lead *Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if lead.ID.IsZero() {
		lead.ID = primitive.NewObjectID()
	}
	if lead.Status == "" {
		lead.Status = LeadStatusNew
	}
	lead.CreatedAt = now
	lead.UpdatedAt = now

	copied := *lead
	s.leads[lead.ID] = &copied
	return nil
}

func (s *MemoryStore) UpdateLead(_ context.Context, id primitive.ObjectID, update *LeadUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok {
		return apperrors.NewNotFound("lead", id.Hex())
	}
	if update.Status != nil {
		lead.Status = *update.Status
	}
	if update.CRMContactID != nil {
		lead.CRMContactID = *update.CRMContactID
	}
	if update.CRMSyncedAt != nil {
		lead.CRMSyncedAt = update.CRMSyncedAt
	}
	lead.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) FindRecentLeadByPhone(_ context.Context, tenantID, phone string) (*Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Lead
	for _, lead := range s.leads {
		if lead.TenantID != tenantID || lead.Phone != phone {
			continue
		}
		if best == nil || lead.CreatedAt.After(best.CreatedAt) {
			best = lead
		}
	}
	if best == nil {
		return nil, apperrors.NewNotFound("lead", phone)
	}
	copied := *best
	return &copied, nil
}

func (s *MemoryStore) CreateAppointment(_ context.Context, appt *Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if appt.ID.IsZero() {
		appt.ID = primitive.NewObjectID()
	}
	if appt.Status == "" {
		appt.Status = AppointmentStatusScheduled
	}
	if appt.DurationMinutes <= 0 {
		appt.DurationMinutes = 30
	}
	appt.CreatedAt = now
	appt.UpdatedAt = now

	copied := *appt
	s.appointments[appt.ID] = &copied
	return nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, event *CallEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	s.events = append(s.events, *event)
	return nil
}

// Leads returns all stored leads. Test helper.
func (s *MemoryStore) Leads() []Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Lead, 0, len(s.leads))
	for _, lead := range s.leads {
		out = append(out, *lead)
	}
	return out
}

// Appointments returns all stored appointments. Test helper.
func (s *MemoryStore) Appointments() []Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Appointment, 0, len(s.appointments))
	for _, appt := range s.appointments {
		out = append(out, *appt)
	}
	return out
}

// Events returns all appended call events. Test helper.
func (s *MemoryStore) Events() []CallEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]CallEvent(nil), s.events...)
}
