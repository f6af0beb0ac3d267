package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/voice-agent/internal/store"
	"github.com/troikatech/voice-agent/internal/tenant"
	"github.com/troikatech/voice-agent/pkg/calendar"
	"github.com/troikatech/voice-agent/pkg/carrier"
	"github.com/troikatech/voice-agent/pkg/crm"
	apperrors "github.com/troikatech/voice-agent/pkg/errors"
)

// fakeScheduler returns a canned event or an error.
type fakeScheduler struct {
	event *calendar.Event
	err   error
	calls int
}

func (f *fakeScheduler) CreateEvent(_ context.Context, _ *calendar.EventRequest) (*calendar.Event, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.event, nil
}

// fakeContacts returns a canned contact or an error.
type fakeContacts struct {
	contact *crm.Contact
	err     error
	calls   int
}

func (f *fakeContacts) CreateContact(_ context.Context, _ *crm.ContactRequest) (*crm.Contact, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.contact, nil
}

// fakeTelephony records redirects and optionally fails them.
type fakeTelephony struct {
	redirects int
	err       error
}

func (f *fakeTelephony) Redirect(_ context.Context, _, _ string) error {
	f.redirects++
	return f.err
}

func (f *fakeTelephony) GetCallStatus(_ context.Context, _ string) (*carrier.CallStatus, error) {
	return &carrier.CallStatus{Status: "in-progress"}, nil
}

// countingStore counts lead lookups on top of the in-memory store.
type countingStore struct {
	*store.MemoryStore
	lookups int
}

func (s *countingStore) FindRecentLeadByPhone(ctx context.Context, tenantID, phone string) (*store.Lead, error) {
	s.lookups++
	return s.MemoryStore.FindRecentLeadByPhone(ctx, tenantID, phone)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type registryFixture struct {
	registry *Registry
	store    *store.MemoryStore
	call     *store.Call
}

func newFixture(t *testing.T, cfg *tenant.Config, customize func(*Deps)) *registryFixture {
	t.Helper()

	mem := store.NewMemoryStore()
	call := &store.Call{TenantID: "t-1", SessionID: "sess-1", CallerPhone: "+15551230000"}
	if err := mem.CreateCall(context.Background(), call); err != nil {
		t.Fatalf("CreateCall() error = %v", err)
	}

	deps := Deps{
		Store:  mem,
		Tenant: cfg,
		Now:    fixedClock(time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)),
		Logger: zap.NewNop(),
	}
	if customize != nil {
		customize(&deps)
	}

	registry := NewRegistry(CallContext{
		TenantID:    "t-1",
		CallID:      call.ID,
		CallerPhone: call.CallerPhone,
	}, deps)

	return &registryFixture{registry: registry, store: mem, call: call}
}

func eventsOfType(events []store.CallEvent, eventType string) []store.CallEvent {
	var out []store.CallEvent
	for _, e := range events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestParseInvocation(t *testing.T) {
	inv, err := ParseInvocation("book_appointment",
		json.RawMessage(`{"date":"2099-01-01","time":"14:00","customer_name":"John Doe","customer_email":"john@example.com"}`))
	if err != nil {
		t.Fatalf("ParseInvocation() error = %v", err)
	}
	if inv.Kind != KindBookAppointment || inv.BookAppointment == nil {
		t.Fatalf("unexpected invocation: %+v", inv)
	}
	if inv.BookAppointment.CustomerName != "John Doe" {
		t.Errorf("CustomerName = %q", inv.BookAppointment.CustomerName)
	}

	if _, err := ParseInvocation("delete_everything", nil); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error for unknown tool, got %v", err)
	}
	if _, err := ParseInvocation("create_lead", json.RawMessage(`{"name":`)); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error for malformed args, got %v", err)
	}
}

func TestBookAppointmentFutureNoCalendar(t *testing.T) {
	fx := newFixture(t, &tenant.Config{TenantID: "t-1", Timezone: "UTC"}, nil)

	inv, err := ParseInvocation("book_appointment",
		json.RawMessage(`{"date":"2099-01-01","time":"14:00","customer_name":"John Doe","customer_email":"john@example.com"}`))
	if err != nil {
		t.Fatalf("ParseInvocation() error = %v", err)
	}

	reply, err := fx.registry.Execute(context.Background(), inv)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(reply, "successfully booked") {
		t.Errorf("reply missing booking confirmation: %q", reply)
	}
	if !strings.Contains(reply, "john@example.com") {
		t.Errorf("reply missing email: %q", reply)
	}
	if strings.Contains(strings.ToLower(reply), "meeting link") {
		t.Errorf("reply should not mention a meeting link: %q", reply)
	}

	appts := fx.store.Appointments()
	if len(appts) != 1 {
		t.Fatalf("appointments = %d, want 1", len(appts))
	}
	if appts[0].MeetingURL != "" {
		t.Errorf("MeetingURL = %q, want empty", appts[0].MeetingURL)
	}

	call, _ := fx.store.GetCall(context.Background(), fx.call.ID)
	if call.Outcome != store.OutcomeAppointmentBooked {
		t.Errorf("outcome = %q, want appointment_booked", call.Outcome)
	}
}

func TestBookAppointmentCalendarFailureStillBooks(t *testing.T) {
	scheduler := &fakeScheduler{err: errors.New("calendar down")}
	cfg := &tenant.Config{
		TenantID: "t-1",
		Timezone: "UTC",
		Calendar: &tenant.CalendarConnection{CalendarID: "cal-1"},
	}
	fx := newFixture(t, cfg, func(d *Deps) { d.Calendar = scheduler })

	inv, _ := ParseInvocation("book_appointment",
		json.RawMessage(`{"date":"2099-01-01","time":"14:00","customer_name":"Jane Roe","customer_email":"jane@example.com"}`))

	reply, err := fx.registry.Execute(context.Background(), inv)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if scheduler.calls != 1 {
		t.Errorf("calendar calls = %d, want 1", scheduler.calls)
	}
	if !strings.Contains(reply, "successfully booked") {
		t.Errorf("reply missing booking confirmation: %q", reply)
	}
	if len(fx.store.Appointments()) != 1 {
		t.Errorf("appointment row missing despite calendar failure")
	}
}

func TestBookAppointmentWithMeetingLink(t *testing.T) {
	scheduler := &fakeScheduler{event: &calendar.Event{ID: "ev-1", MeetingURL: "https://meet.example.com/abc"}}
	cfg := &tenant.Config{
		TenantID: "t-1",
		Timezone: "UTC",
		Calendar: &tenant.CalendarConnection{CalendarID: "cal-1"},
	}
	fx := newFixture(t, cfg, func(d *Deps) { d.Calendar = scheduler })

	inv, _ := ParseInvocation("book_appointment",
		json.RawMessage(`{"date":"2099-01-01","time":"14:00","customer_name":"Jane Roe","customer_email":"jane@example.com"}`))

	reply, err := fx.registry.Execute(context.Background(), inv)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(strings.ToLower(reply), "meeting link") {
		t.Errorf("reply should mention the meeting link: %q", reply)
	}

	appts := fx.store.Appointments()
	if len(appts) != 1 || appts[0].MeetingURL != "https://meet.example.com/abc" {
		t.Errorf("appointment missing meeting url: %+v", appts)
	}
}

func TestBookAppointmentPastDate(t *testing.T) {
	fx := newFixture(t, &tenant.Config{TenantID: "t-1", Timezone: "UTC"}, nil)

	inv, _ := ParseInvocation("book_appointment",
		json.RawMessage(`{"date":"2000-01-01","time":"10:00","customer_name":"John Doe","customer_email":"john@example.com"}`))

	reply, err := fx.registry.Execute(context.Background(), inv)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(reply, "already passed") {
		t.Errorf("reply should say the date has passed: %q", reply)
	}
	if len(fx.store.Appointments()) != 0 {
		t.Errorf("no appointment should be persisted for a past date")
	}
}

func TestCreateLeadNoContactChannel(t *testing.T) {
	fx := newFixture(t, &tenant.Config{TenantID: "t-1"}, nil)
	// Strip the caller id fallback.
	fx.registry.callCtx.CallerPhone = ""

	inv, _ := ParseInvocation("create_lead", json.RawMessage(`{"name":"Ghost Caller"}`))

	reply, err := fx.registry.Execute(context.Background(), inv)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(reply, "phone number or email") {
		t.Errorf("reply should ask for contact information: %q", reply)
	}
	if len(fx.store.Leads()) != 0 {
		t.Errorf("no lead should be persisted without a contact channel")
	}
}

func TestCreateLeadWithPhone(t *testing.T) {
	fx := newFixture(t, &tenant.Config{TenantID: "t-1"}, nil)

	inv, _ := ParseInvocation("create_lead",
		json.RawMessage(`{"name":"Jane Smith","phone":"+15557778888"}`))

	reply, err := fx.registry.Execute(context.Background(), inv)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(reply, "Jane Smith") {
		t.Errorf("reply should address the caller: %q", reply)
	}

	leads := fx.store.Leads()
	if len(leads) != 1 {
		t.Fatalf("leads = %d, want 1", len(leads))
	}
	if leads[0].Phone != "+15557778888" {
		t.Errorf("lead phone = %q", leads[0].Phone)
	}

	call, _ := fx.store.GetCall(context.Background(), fx.call.ID)
	if call.Outcome != store.OutcomeLeadCaptured {
		t.Errorf("outcome = %q, want lead_captured", call.Outcome)
	}
}

func TestCreateLeadCRMUnreachable(t *testing.T) {
	contacts := &fakeContacts{err: errors.New("crm down")}
	cfg := &tenant.Config{TenantID: "t-1", CRM: &tenant.CRMConnection{APIKey: "key"}}
	fx := newFixture(t, cfg, func(d *Deps) { d.CRM = contacts })

	inv, _ := ParseInvocation("create_lead",
		json.RawMessage(`{"name":"Jane Smith","phone":"+15557778888"}`))

	if _, err := fx.registry.Execute(context.Background(), inv); err != nil {
		t.Fatalf("Execute() error = %v, want nil despite CRM failure", err)
	}
	if contacts.calls != 1 {
		t.Errorf("crm calls = %d, want 1", contacts.calls)
	}

	leads := fx.store.Leads()
	if len(leads) != 1 {
		t.Fatalf("lead row missing despite CRM failure")
	}
	if leads[0].CRMContactID != "" {
		t.Errorf("CRMContactID should stay empty on sync failure")
	}

	call, _ := fx.store.GetCall(context.Background(), fx.call.ID)
	if call.Outcome != store.OutcomeLeadCaptured {
		t.Errorf("outcome = %q, want lead_captured", call.Outcome)
	}
}

func TestLookupCustomerNoPhone(t *testing.T) {
	counting := &countingStore{MemoryStore: store.NewMemoryStore()}
	call := &store.Call{TenantID: "t-1", SessionID: "sess-1"}
	if err := counting.CreateCall(context.Background(), call); err != nil {
		t.Fatalf("CreateCall() error = %v", err)
	}

	registry := NewRegistry(CallContext{TenantID: "t-1", CallID: call.ID}, Deps{
		Store:  counting,
		Logger: zap.NewNop(),
	})

	inv, _ := ParseInvocation("lookup_customer", nil)
	reply, err := registry.Execute(context.Background(), inv)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(reply, "phone number") {
		t.Errorf("reply should ask for a number: %q", reply)
	}
	if counting.lookups != 0 {
		t.Errorf("lookups = %d, want 0", counting.lookups)
	}
}

func TestLookupCustomerNewAndReturning(t *testing.T) {
	fx := newFixture(t, &tenant.Config{TenantID: "t-1"}, nil)

	inv, _ := ParseInvocation("lookup_customer", json.RawMessage(`{"phone":"+15550001111"}`))
	reply, err := fx.registry.Execute(context.Background(), inv)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(reply, "first time") {
		t.Errorf("unknown phone should read as a new customer: %q", reply)
	}

	if err := fx.store.CreateLead(context.Background(), &store.Lead{
		TenantID: "t-1",
		Name:     "Sam Patel",
		Phone:    "+15550001111",
		Status:   store.LeadStatusConverted,
	}); err != nil {
		t.Fatalf("CreateLead() error = %v", err)
	}

	reply, err = fx.registry.Execute(context.Background(), inv)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(reply, "Sam Patel") {
		t.Errorf("reply should greet by name: %q", reply)
	}
	if !strings.Contains(reply, "customers") {
		t.Errorf("converted lead should read as an existing customer: %q", reply)
	}

	lookupEvents := eventsOfType(fx.store.Events(), "customer_lookup")
	if len(lookupEvents) != 1 {
		t.Errorf("customer_lookup events = %d, want 1", len(lookupEvents))
	}
}
