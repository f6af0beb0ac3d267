package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CallUpdate is a partial update of a Call. Nil fields are untouched.
// Setting Status is guarded: a call leaves in_progress at most once and
// terminal states are final.
type CallUpdate struct {
	Status             *string
	Outcome            *string
	TransferredToHuman *bool
	TelephonyCallID    *string
	TelephonyStatus    *string
	CallerPhone        *string
	AnsweredAt         *time.Time
	EndedAt            *time.Time
	DurationSeconds    *int
	Costs              *Costs
	Notes              *string
	Summary            *string
}

// LeadUpdate is a partial update of a Lead. Nil fields are untouched.
type LeadUpdate struct {
	Status       *string
	CRMContactID *string
	CRMSyncedAt  *time.Time
}

// CallStore is the persistence surface for calls and their artifacts.
// All operations are atomic single-row writes.
type CallStore interface {
	CreateCall(ctx context.Context, call *Call) error
	GetCall(ctx context.Context, id primitive.ObjectID) (*Call, error)
	GetCallBySession(ctx context.Context, sessionID string) (*Call, error)
	UpdateCall(ctx context.Context, id primitive.ObjectID, update *CallUpdate) error
	AppendTranscript(ctx context.Context, id primitive.ObjectID, entry TranscriptEntry) error
	ListCalls(ctx context.Context, tenantID string, limit int64) ([]Call, error)

	CreateLead(ctx context.Context, lead *Lead) error
	UpdateLead(ctx context.Context, id primitive.ObjectID, update *LeadUpdate) error
	FindRecentLeadByPhone(ctx context.Context, tenantID, phone string) (*Lead, error)

	CreateAppointment(ctx context.Context, appt *Appointment) error

	AppendEvent(ctx context.Context, event *CallEvent) error
}
