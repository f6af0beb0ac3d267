package tools

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/voice-agent/internal/store"
	"github.com/troikatech/voice-agent/pkg/calendar"
	apperrors "github.com/troikatech/voice-agent/pkg/errors"
)

func (r *Registry) bookAppointment(ctx context.Context, args *BookAppointmentArgs) (string, error) {
	if args.CustomerName == "" || args.CustomerEmail == "" {
		return "Could I get your name and email address to book that appointment?", nil
	}

	loc := r.location()
	when, err := time.ParseInLocation("2006-01-02 15:04", args.Date+" "+args.Time, loc)
	if err != nil {
		return "I didn't quite catch the date and time. Could you tell me the day and time you'd like again?", nil
	}

	if !when.After(r.now().In(loc)) {
		return fmt.Sprintf("I'm sorry, but %s has already passed. Could we find another time that works for you?",
			formatSpokenTime(when)), nil
	}

	duration := args.DurationMinutes
	if duration <= 0 {
		duration = 30
	}

	appt := &store.Appointment{
		TenantID:        r.callCtx.TenantID,
		CallID:          objectIDPtr(r.callCtx.CallID),
		CustomerName:    args.CustomerName,
		CustomerEmail:   args.CustomerEmail,
		CustomerPhone:   firstNonEmpty(args.CustomerPhone, r.callCtx.CallerPhone),
		Purpose:         args.Purpose,
		ScheduledAt:     when,
		DurationMinutes: duration,
	}

	// Calendar first so a meeting link can ride along on the row.
	var meetingURL string
	if r.tenant != nil && r.tenant.HasCalendar() && r.calendar != nil {
		event, calErr := r.calendar.CreateEvent(ctx, &calendar.EventRequest{
			CalendarID:    r.tenant.Calendar.CalendarID,
			Title:         fmt.Sprintf("Appointment with %s", args.CustomerName),
			Description:   args.Purpose,
			StartTime:     when,
			EndTime:       when.Add(time.Duration(duration) * time.Minute),
			AttendeeName:  args.CustomerName,
			AttendeePhone: appt.CustomerPhone,
			Conferencing:  true,
		})
		if calErr != nil {
			r.logger.Warn("Calendar event creation failed, booking without link",
				zap.String("call_id", r.callCtx.CallID.Hex()),
				zap.Error(calErr))
		} else {
			meetingURL = event.MeetingURL
			appt.MeetingURL = event.MeetingURL
			appt.CalendarEventID = event.ID
		}
	}

	if err := r.store.CreateAppointment(ctx, appt); err != nil {
		r.logger.Error("Failed to persist appointment",
			zap.String("call_id", r.callCtx.CallID.Hex()),
			zap.Error(err))
		return "", apperrors.NewPersistence("book appointment", err)
	}

	outcome := store.OutcomeAppointmentBooked
	if err := r.store.UpdateCall(ctx, r.callCtx.CallID, &store.CallUpdate{Outcome: &outcome}); err != nil {
		r.logger.Warn("Failed to set call outcome",
			zap.String("call_id", r.callCtx.CallID.Hex()),
			zap.Error(err))
	}

	r.appendEvent(ctx, "appointment_booked", map[string]interface{}{
		"appointment_id": appt.ID.Hex(),
		"scheduled_at":   when.Format(time.RFC3339),
		"has_link":       meetingURL != "",
	})

	if meetingURL != "" {
		return fmt.Sprintf("Great news, %s! I've successfully booked your appointment for %s. A meeting link has been sent to %s.",
			args.CustomerName, formatSpokenTime(when), args.CustomerEmail), nil
	}
	return fmt.Sprintf("Great news, %s! I've successfully booked your appointment for %s. You'll receive a confirmation at %s shortly.",
		args.CustomerName, formatSpokenTime(when), args.CustomerEmail), nil
}
