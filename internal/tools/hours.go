package tools

import (
	"context"
	"fmt"
	"time"
)

const genericHoursReply = "We're generally open Monday through Friday during regular business hours. Is there anything else I can help you with?"

func (r *Registry) checkBusinessHours(ctx context.Context) (string, error) {
	if r.tenant == nil || len(r.tenant.WeeklyHours) == 0 {
		return genericHoursReply, nil
	}

	loc := r.location()
	now := r.now().In(loc)

	hours, ok := r.tenant.WeeklyHours[weekdayKey(now.Weekday())]
	if !ok || hours == nil {
		r.appendEvent(ctx, "business_hours_checked", map[string]interface{}{
			"open": false,
			"day":  weekdayKey(now.Weekday()),
		})
		return fmt.Sprintf("We're closed today, %s. Is there anything I can help you with in the meantime?",
			now.Format("Monday")), nil
	}

	open, err := parseClock(hours.Open, now, loc)
	if err != nil {
		return genericHoursReply, nil
	}
	closeAt, err := parseClock(hours.Close, now, loc)
	if err != nil {
		return genericHoursReply, nil
	}

	isOpen := !now.Before(open) && now.Before(closeAt)
	r.appendEvent(ctx, "business_hours_checked", map[string]interface{}{
		"open": isOpen,
		"day":  weekdayKey(now.Weekday()),
	})

	if isOpen {
		return fmt.Sprintf("Yes, we're currently open! We're here until %s today.",
			closeAt.Format("3:04 PM")), nil
	}
	return fmt.Sprintf("We're currently closed. Today's hours are %s to %s.",
		open.Format("3:04 PM"), closeAt.Format("3:04 PM")), nil
}

// parseClock anchors an HH:MM string to the given day.
func parseClock(value string, day time.Time, loc *time.Location) (time.Time, error) {
	parsed, err := time.ParseInLocation("15:04", value, loc)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, loc), nil
}
