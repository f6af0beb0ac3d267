package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	apperrors "github.com/troikatech/voice-agent/pkg/errors"
	appmongo "github.com/troikatech/voice-agent/pkg/mongo"
	"github.com/troikatech/voice-agent/pkg/retry"
)

const (
	collCalls        = "calls"
	collLeads        = "leads"
	collAppointments = "appointments"
	collCallEvents   = "call_events"
)

// MongoStore persists calls and their artifacts in MongoDB. Writes that
// gate call state retry with backoff; audit-event appends are single
// attempt.
type MongoStore struct {
	client *appmongo.Client
	retry  retry.Config
	logger *zap.Logger
}

var _ CallStore = (*MongoStore)(nil)

func NewMongoStore(client *appmongo.Client, logger *zap.Logger) *MongoStore {
	return &MongoStore{
		client: client,
		retry:  retry.DefaultConfig(),
		logger: logger,
	}
}

func (s *MongoStore) CreateCall(ctx context.Context, call *Call) error {
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

	err := retry.Do(ctx, s.retry, func() error {
		_, err := s.client.NewQuery(collCalls).Insert(ctx, call)
		return err
	})
	if err != nil {
		return apperrors.NewPersistence("create call", err)
	}
	return nil
}

func (s *MongoStore) GetCall(ctx context.Context, id primitive.ObjectID) (*Call, error) {
	var call Call
	err := s.client.NewQuery(collCalls).Eq("_id", id).FindOne(ctx, &call)
	if appmongo.IsNoDocuments(err) {
		return nil, apperrors.NewNotFound("call", id.Hex())
	}
	if err != nil {
		return nil, apperrors.NewPersistence("get call", err)
	}
	return &call, nil
}

func (s *MongoStore) GetCallBySession(ctx context.Context, sessionID string) (*Call, error) {
	var call Call
	err := s.client.NewQuery(collCalls).Eq("session_id", sessionID).FindOne(ctx, &call)
	if appmongo.IsNoDocuments(err) {
		return nil, apperrors.NewNotFound("call", sessionID)
	}
	if err != nil {
		return nil, apperrors.NewPersistence("get call by session", err)
	}
	return &call, nil
}

func callUpdateDoc(update *CallUpdate) bson.M {
	doc := bson.M{"updated_at": time.Now()}
	if update.Status != nil {
		doc["status"] = *update.Status
	}
	if update.Outcome != nil {
		doc["outcome"] = *update.Outcome
	}
	if update.TransferredToHuman != nil {
		doc["transferred_to_human"] = *update.TransferredToHuman
	}
	if update.TelephonyCallID != nil {
		doc["telephony_call_id"] = *update.TelephonyCallID
	}
	if update.TelephonyStatus != nil {
		doc["telephony_status"] = *update.TelephonyStatus
	}
	if update.CallerPhone != nil {
		doc["caller_phone"] = *update.CallerPhone
	}
	if update.AnsweredAt != nil {
		doc["answered_at"] = *update.AnsweredAt
	}
	if update.EndedAt != nil {
		doc["ended_at"] = *update.EndedAt
	}
	if update.DurationSeconds != nil {
		doc["duration_seconds"] = *update.DurationSeconds
	}
	if update.Costs != nil {
		doc["costs"] = *update.Costs
	}
	if update.Notes != nil {
		doc["notes"] = *update.Notes
	}
	if update.Summary != nil {
		doc["summary"] = *update.Summary
	}
	return doc
}

func (s *MongoStore) UpdateCall(ctx context.Context, id primitive.ObjectID, update *CallUpdate) error {
	doc := callUpdateDoc(update)

	err := retry.Do(ctx, s.retry, func() error {
		query := s.client.NewQuery(collCalls).Eq("_id", id)
		if update.Status != nil {
			// Status moves forward once; the filter makes the guard atomic.
			query = query.Eq("status", StatusInProgress)
		}
		result, err := query.UpdateOne(ctx, doc)
		if err != nil {
			return err
		}
		if result.MatchedCount == 0 {
			if update.Status != nil {
				if _, getErr := s.GetCall(ctx, id); getErr == nil {
					return retry.Permanent(apperrors.NewValidation("call %s is no longer in progress", id.Hex()))
				}
			}
			return retry.Permanent(apperrors.NewNotFound("call", id.Hex()))
		}
		return nil
	})
	if err != nil {
		if apperrors.IsValidation(err) || apperrors.IsNotFound(err) {
			return err
		}
		return apperrors.NewPersistence("update call", err)
	}
	return nil
}

// AppendTranscript writes a transcript entry with a single attempt. A
// retried $push can apply twice when a timed-out write actually landed,
// and a duplicated entry is worse than a dropped one.
func (s *MongoStore) AppendTranscript(ctx context.Context, id primitive.ObjectID, entry TranscriptEntry) error {
	result, err := s.client.NewQuery(collCalls).Eq("_id", id).
		PushOne(ctx, bson.M{"transcript": entry})
	if err != nil {
		return apperrors.NewPersistence("append transcript", err)
	}
	if result.MatchedCount == 0 {
		return apperrors.NewNotFound("call", id.Hex())
	}
	return nil
}

func (s *MongoStore) ListCalls(ctx context.Context, tenantID string, limit int64) ([]Call, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.client.NewQuery(collCalls).Sort("started_at", false).Limit(limit)
	if tenantID != "" {
		query = query.Eq("tenant_id", tenantID)
	}

	var calls []Call
	if err := query.Find(ctx, &calls); err != nil {
		return nil, apperrors.NewPersistence("list calls", err)
	}
	return calls, nil
}

func (s *MongoStore) CreateLead(ctx context.Context, lead *Lead) error {
	now := time.Now()
	if lead.ID.IsZero() {
		lead.ID = primitive.NewObjectID()
	}
	if lead.Status == "" {
		lead.Status = LeadStatusNew
	}
	lead.CreatedAt = now
	lead.UpdatedAt = now

	err := retry.Do(ctx, s.retry, func() error {
		_, err := s.client.NewQuery(collLeads).Insert(ctx, lead)
		return err
	})
	if err != nil {
		return apperrors.NewPersistence("create lead", err)
	}
	return nil
}

func (s *MongoStore) UpdateLead(ctx context.Context, id primitive.ObjectID, update *LeadUpdate) error {
	doc := bson.M{"updated_at": time.Now()}
	if update.Status != nil {
		doc["status"] = *update.Status
	}
	if update.CRMContactID != nil {
		doc["crm_contact_id"] = *update.CRMContactID
	}
	if update.CRMSyncedAt != nil {
		doc["crm_synced_at"] = *update.CRMSyncedAt
	}

	err := retry.Do(ctx, s.retry, func() error {
		result, err := s.client.NewQuery(collLeads).Eq("_id", id).UpdateOne(ctx, doc)
		if err != nil {
			return err
		}
		if result.MatchedCount == 0 {
			return retry.Permanent(apperrors.NewNotFound("lead", id.Hex()))
		}
		return nil
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			return err
		}
		return apperrors.NewPersistence("update lead", err)
	}
	return nil
}

func (s *MongoStore) FindRecentLeadByPhone(ctx context.Context, tenantID, phone string) (*Lead, error) {
	var lead Lead
	err := s.client.NewQuery(collLeads).
		Eq("tenant_id", tenantID).
		Eq("phone", phone).
		Sort("created_at", false).
		FindOne(ctx, &lead)
	if appmongo.IsNoDocuments(err) {
		return nil, apperrors.NewNotFound("lead", phone)
	}
	if err != nil {
		return nil, apperrors.NewPersistence("find lead by phone", err)
	}
	return &lead, nil
}

func (s *MongoStore) CreateAppointment(ctx context.Context, appt *Appointment) error {
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

	err := retry.Do(ctx, s.retry, func() error {
		_, err := s.client.NewQuery(collAppointments).Insert(ctx, appt)
		return err
	})
	if err != nil {
		return apperrors.NewPersistence("create appointment", err)
	}
	return nil
}

// AppendEvent writes an audit event with a single attempt. Events are
// best-effort telemetry; callers decide whether a failure matters.
func (s *MongoStore) AppendEvent(ctx context.Context, event *CallEvent) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	if _, err := s.client.NewQuery(collCallEvents).Insert(ctx, event); err != nil {
		s.logger.Warn("Failed to append call event",
			zap.String("call_id", event.CallID.Hex()),
			zap.String("event_type", event.EventType),
			zap.Error(err))
		return apperrors.NewPersistence("append event", err)
	}
	return nil
}
