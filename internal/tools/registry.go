package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/troikatech/voice-agent/internal/store"
	"github.com/troikatech/voice-agent/internal/tenant"
	"github.com/troikatech/voice-agent/pkg/ai"
	"github.com/troikatech/voice-agent/pkg/calendar"
	"github.com/troikatech/voice-agent/pkg/carrier"
	"github.com/troikatech/voice-agent/pkg/crm"
	apperrors "github.com/troikatech/voice-agent/pkg/errors"
)

// Kind identifies a tool. The set is closed; dispatch is an exhaustive
// switch, so adding a tool means adding a variant here and a case in
// Execute.
type Kind string

const (
	KindBookAppointment    Kind = "book_appointment"
	KindCreateLead         Kind = "create_lead"
	KindLookupCustomer     Kind = "lookup_customer"
	KindTransferToHuman    Kind = "transfer_to_human"
	KindCheckBusinessHours Kind = "check_business_hours"
)

// BookAppointmentArgs schedules a meeting for the caller.
type BookAppointmentArgs struct {
	Date            string `json:"date"`
	Time            string `json:"time"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone,omitempty"`
	Purpose         string `json:"purpose,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

// CreateLeadArgs captures the caller as a prospect.
type CreateLeadArgs struct {
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Company       string `json:"company,omitempty"`
	InterestLevel string `json:"interest_level,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// LookupCustomerArgs looks up prior contact history by phone.
type LookupCustomerArgs struct {
	Phone string `json:"phone,omitempty"`
}

// TransferToHumanArgs hands the caller to a team member.
type TransferToHumanArgs struct {
	Reason  string `json:"reason"`
	Urgency string `json:"urgency,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// CheckBusinessHoursArgs has no parameters.
type CheckBusinessHoursArgs struct{}

// Invocation is a parsed tool call. Exactly one argument field is
// non-nil, matching Kind.
type Invocation struct {
	Kind               Kind
	BookAppointment    *BookAppointmentArgs
	CreateLead         *CreateLeadArgs
	LookupCustomer     *LookupCustomerArgs
	TransferToHuman    *TransferToHumanArgs
	CheckBusinessHours *CheckBusinessHoursArgs
}

// ParseInvocation decodes a named tool call into its typed variant.
// Unknown names and malformed argument JSON are validation errors.
func ParseInvocation(name string, rawArgs json.RawMessage) (*Invocation, error) {
	if len(rawArgs) == 0 {
		rawArgs = json.RawMessage("{}")
	}

	decode := func(out interface{}) error {
		if err := json.Unmarshal(rawArgs, out); err != nil {
			return apperrors.NewValidation("malformed arguments for %s: %v", name, err)
		}
		return nil
	}

	switch Kind(name) {
	case KindBookAppointment:
		var args BookAppointmentArgs
		if err := decode(&args); err != nil {
			return nil, err
		}
		return &Invocation{Kind: KindBookAppointment, BookAppointment: &args}, nil
	case KindCreateLead:
		var args CreateLeadArgs
		if err := decode(&args); err != nil {
			return nil, err
		}
		return &Invocation{Kind: KindCreateLead, CreateLead: &args}, nil
	case KindLookupCustomer:
		var args LookupCustomerArgs
		if err := decode(&args); err != nil {
			return nil, err
		}
		return &Invocation{Kind: KindLookupCustomer, LookupCustomer: &args}, nil
	case KindTransferToHuman:
		var args TransferToHumanArgs
		if err := decode(&args); err != nil {
			return nil, err
		}
		return &Invocation{Kind: KindTransferToHuman, TransferToHuman: &args}, nil
	case KindCheckBusinessHours:
		return &Invocation{Kind: KindCheckBusinessHours, CheckBusinessHours: &CheckBusinessHoursArgs{}}, nil
	default:
		return nil, apperrors.NewValidation("unknown tool %q", name)
	}
}

// Registry executes tools against a fixed call context. Constructed
// once per call; collaborators are injected so tests can substitute
// fakes.
type Registry struct {
	callCtx  CallContext
	store    store.CallStore
	tenant   *tenant.Config
	calendar calendar.Scheduler
	crm      crm.Contacts
	carrier  carrier.Telephony
	now      func() time.Time
	logger   *zap.Logger
}

// Deps bundles the registry's collaborators.
type Deps struct {
	Store    store.CallStore
	Tenant   *tenant.Config
	Calendar calendar.Scheduler
	CRM      crm.Contacts
	Carrier  carrier.Telephony
	Now      func() time.Time
	Logger   *zap.Logger
}

func NewRegistry(callCtx CallContext, deps Deps) *Registry {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Registry{
		callCtx:  callCtx,
		store:    deps.Store,
		tenant:   deps.Tenant,
		calendar: deps.Calendar,
		crm:      deps.CRM,
		carrier:  deps.Carrier,
		now:      deps.Now,
		logger:   deps.Logger,
	}
}

// WithTelephonyCallID returns a registry copy whose call context
// carries the discovered telephony leg id.
func (r *Registry) WithTelephonyCallID(id string) *Registry {
	copied := *r
	copied.callCtx = r.callCtx.WithTelephonyCallID(id)
	return &copied
}

// CallContext returns the registry's call context value.
func (r *Registry) CallContext() CallContext {
	return r.callCtx
}

// Execute runs a parsed invocation and returns the sentence to speak
// back to the caller. Integration failures are absorbed here; an error
// return means even the database-only fallback failed.
func (r *Registry) Execute(ctx context.Context, inv *Invocation) (string, error) {
	switch inv.Kind {
	case KindBookAppointment:
		return r.bookAppointment(ctx, inv.BookAppointment)
	case KindCreateLead:
		return r.createLead(ctx, inv.CreateLead)
	case KindLookupCustomer:
		return r.lookupCustomer(ctx, inv.LookupCustomer)
	case KindTransferToHuman:
		return r.transferToHuman(ctx, inv.TransferToHuman)
	case KindCheckBusinessHours:
		return r.checkBusinessHours(ctx)
	default:
		return "", apperrors.NewValidation("unknown tool kind %q", inv.Kind)
	}
}

func (r *Registry) appendEvent(ctx context.Context, eventType string, data map[string]interface{}) {
	event := &store.CallEvent{
		CallID:    r.callCtx.CallID,
		EventType: eventType,
		EventData: data,
	}
	// Best effort; the store logs failures.
	_ = r.store.AppendEvent(ctx, event)
}

func (r *Registry) location() *time.Location {
	if r.tenant != nil && r.tenant.Timezone != "" {
		if loc, err := time.LoadLocation(r.tenant.Timezone); err == nil {
			return loc
		}
		r.logger.Warn("Invalid tenant timezone, using UTC",
			zap.String("tenant_id", r.callCtx.TenantID),
			zap.String("timezone", r.tenant.Timezone))
	}
	return time.UTC
}

// Schemas returns the tool definitions advertised to the model.
func (r *Registry) Schemas() []ai.ToolSchema {
	return []ai.ToolSchema{
		{
			Name:        string(KindBookAppointment),
			Description: "Book an appointment for the caller. Use when the caller wants to schedule a meeting, consultation, or visit.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"date": {"type": "string", "description": "Appointment date in YYYY-MM-DD format"},
					"time": {"type": "string", "description": "Appointment time in HH:MM 24-hour format"},
					"customer_name": {"type": "string", "description": "Caller's full name"},
					"customer_email": {"type": "string", "description": "Caller's email address"},
					"customer_phone": {"type": "string", "description": "Caller's phone number"},
					"purpose": {"type": "string", "description": "What the appointment is about"},
					"duration_minutes": {"type": "integer", "description": "Appointment length in minutes, default 30"}
				},
				"required": ["date", "time", "customer_name", "customer_email"]
			}`),
		},
		{
			Name:        string(KindCreateLead),
			Description: "Save the caller's contact information as a sales lead. Use when the caller expresses interest in products or services.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"name": {"type": "string", "description": "Caller's full name"},
					"email": {"type": "string", "description": "Caller's email address"},
					"phone": {"type": "string", "description": "Caller's phone number"},
					"company": {"type": "string", "description": "Caller's company name"},
					"interest_level": {"type": "string", "enum": ["low", "medium", "high"], "description": "How interested the caller seems"},
					"notes": {"type": "string", "description": "Anything notable about the caller's interest"}
				},
				"required": ["name"]
			}`),
		},
		{
			Name:        string(KindLookupCustomer),
			Description: "Look up whether the caller has contacted us before. Use at the start of a conversation or when the caller mentions prior contact.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"phone": {"type": "string", "description": "Phone number to look up; defaults to the caller's number"}
				}
			}`),
		},
		{
			Name:        string(KindTransferToHuman),
			Description: "Transfer the caller to a human team member. Use when the caller asks for a person or the request is beyond your abilities.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"reason": {"type": "string", "description": "Why the caller needs a human"},
					"urgency": {"type": "string", "enum": ["low", "medium", "high"], "description": "How urgent the request is"},
					"notes": {"type": "string", "description": "Context to pass to the team member"}
				},
				"required": ["reason"]
			}`),
		},
		{
			Name:        string(KindCheckBusinessHours),
			Description: "Check whether the business is currently open. Use when the caller asks about opening hours or availability.",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
		},
	}
}

func objectIDPtr(id primitive.ObjectID) *primitive.ObjectID {
	if id.IsZero() {
		return nil
	}
	return &id
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func weekdayKey(d time.Weekday) string {
	return map[time.Weekday]string{
		time.Monday:    "monday",
		time.Tuesday:   "tuesday",
		time.Wednesday: "wednesday",
		time.Thursday:  "thursday",
		time.Friday:    "friday",
		time.Saturday:  "saturday",
		time.Sunday:    "sunday",
	}[d]
}

func formatSpokenTime(t time.Time) string {
	return fmt.Sprintf("%s at %s", t.Format("Monday, January 2"), t.Format("3:04 PM"))
}
