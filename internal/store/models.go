package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Call lifecycle statuses. Status only moves forward from
// StatusInProgress to one of the terminal states.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusAbandoned  = "abandoned"
)

// Call outcomes. Last write wins; each write also appends a CallEvent
// so the full sequence stays reconstructible.
const (
	OutcomeAppointmentBooked = "appointment_booked"
	OutcomeLeadCaptured      = "lead_captured"
	OutcomeTransferred       = "transferred"
	OutcomeVoicemail         = "voicemail"
	OutcomeHungUp            = "hung_up"
)

// TranscriptEntry is one utterance in a call's transcript. Speaker is
// "agent" or "user".
type TranscriptEntry struct {
	Speaker   string    `bson:"speaker" json:"speaker"`
	Text      string    `bson:"text" json:"text"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// Costs holds per-provider cost accumulators in USD. Values only grow.
type Costs struct {
	STT       float64 `bson:"stt" json:"stt"`
	LLM       float64 `bson:"llm" json:"llm"`
	TTS       float64 `bson:"tts" json:"tts"`
	Telephony float64 `bson:"telephony" json:"telephony"`
	Total     float64 `bson:"total" json:"total"`
}

// Call is the authoritative record of one phone conversation.
type Call struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID           string             `bson:"tenant_id" json:"tenant_id"`
	Direction          string             `bson:"direction" json:"direction"`
	CallerPhone        string             `bson:"caller_phone" json:"caller_phone"`
	CalleePhone        string             `bson:"callee_phone" json:"callee_phone"`
	SessionID          string             `bson:"session_id" json:"session_id"`
	RoomName           string             `bson:"room_name,omitempty" json:"room_name,omitempty"`
	TelephonyCallID    string             `bson:"telephony_call_id,omitempty" json:"telephony_call_id,omitempty"`
	TelephonyStatus    string             `bson:"telephony_status,omitempty" json:"telephony_status,omitempty"`
	StartedAt          time.Time          `bson:"started_at" json:"started_at"`
	AnsweredAt         *time.Time         `bson:"answered_at,omitempty" json:"answered_at,omitempty"`
	EndedAt            *time.Time         `bson:"ended_at,omitempty" json:"ended_at,omitempty"`
	DurationSeconds    int                `bson:"duration_seconds" json:"duration_seconds"`
	Status             string             `bson:"status" json:"status"`
	Outcome            string             `bson:"outcome,omitempty" json:"outcome,omitempty"`
	TransferredToHuman bool               `bson:"transferred_to_human" json:"transferred_to_human"`
	Transcript         []TranscriptEntry  `bson:"transcript" json:"transcript"`
	Costs              Costs              `bson:"costs" json:"costs"`
	Notes              string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Summary            string             `bson:"summary,omitempty" json:"summary,omitempty"`
	Tags               []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updated_at"`
}

// CanTransitionTo reports whether the call status may move to next.
// in_progress may move to any terminal state; terminal states are final.
func (c *Call) CanTransitionTo(next string) bool {
	if c.Status == next {
		return false
	}
	if c.Status != StatusInProgress {
		return false
	}
	switch next {
	case StatusCompleted, StatusFailed, StatusAbandoned:
		return true
	}
	return false
}

// Lead lifecycle statuses.
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusConverted = "converted"
	LeadStatusLost      = "lost"
)

// Lead is a captured prospect, foreign-keyed to the originating call.
// CallID is nullable so the lead survives call archival.
type Lead struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	TenantID      string              `bson:"tenant_id" json:"tenant_id"`
	CallID        *primitive.ObjectID `bson:"call_id,omitempty" json:"call_id,omitempty"`
	Name          string              `bson:"name" json:"name"`
	Email         string              `bson:"email,omitempty" json:"email,omitempty"`
	Phone         string              `bson:"phone,omitempty" json:"phone,omitempty"`
	Company       string              `bson:"company,omitempty" json:"company,omitempty"`
	InterestLevel string              `bson:"interest_level" json:"interest_level"`
	Notes         string              `bson:"notes,omitempty" json:"notes,omitempty"`
	Status        string              `bson:"status" json:"status"`
	CRMContactID  string              `bson:"crm_contact_id,omitempty" json:"crm_contact_id,omitempty"`
	CRMSyncedAt   *time.Time          `bson:"crm_synced_at,omitempty" json:"crm_synced_at,omitempty"`
	CreatedAt     time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `bson:"updated_at" json:"updated_at"`
}

// Appointment lifecycle statuses.
const (
	AppointmentStatusScheduled = "scheduled"
	AppointmentStatusConfirmed = "confirmed"
	AppointmentStatusCanceled  = "canceled"
	AppointmentStatusCompleted = "completed"
	AppointmentStatusNoShow    = "no_show"
)

// Appointment is a booking created by a tool, foreign-keyed to the
// originating call.
type Appointment struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	TenantID        string              `bson:"tenant_id" json:"tenant_id"`
	CallID          *primitive.ObjectID `bson:"call_id,omitempty" json:"call_id,omitempty"`
	CustomerName    string              `bson:"customer_name" json:"customer_name"`
	CustomerEmail   string              `bson:"customer_email,omitempty" json:"customer_email,omitempty"`
	CustomerPhone   string              `bson:"customer_phone,omitempty" json:"customer_phone,omitempty"`
	Purpose         string              `bson:"purpose,omitempty" json:"purpose,omitempty"`
	ScheduledAt     time.Time           `bson:"scheduled_at" json:"scheduled_at"`
	DurationMinutes int                 `bson:"duration_minutes" json:"duration_minutes"`
	MeetingURL      string              `bson:"meeting_url,omitempty" json:"meeting_url,omitempty"`
	CalendarEventID string              `bson:"calendar_event_id,omitempty" json:"calendar_event_id,omitempty"`
	Status          string              `bson:"status" json:"status"`
	CreatedAt       time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `bson:"updated_at" json:"updated_at"`
}

// CallEvent is an immutable audit record appended by the orchestrator
// and tools for every notable transition.
type CallEvent struct {
	ID        primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	CallID    primitive.ObjectID     `bson:"call_id" json:"call_id"`
	EventType string                 `bson:"event_type" json:"event_type"`
	EventData map[string]interface{} `bson:"event_data,omitempty" json:"event_data,omitempty"`
	CreatedAt time.Time              `bson:"created_at" json:"created_at"`
}
