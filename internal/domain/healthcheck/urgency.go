package healthcheck

import (
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// Urgency classifies a follow-up date against the caller's current day. It
// is derived at read time and never stored.
type Urgency string

const (
	UrgencyNone     Urgency = ""
	UrgencyOverdue  Urgency = "Overdue"
	UrgencyToday    Urgency = "Today"
	UrgencyUpcoming Urgency = "Upcoming"
)

// ClassifyFollowUp compares the calendar day of followUp with the calendar
// day of today. Each value is read in its own location, so callers pass
// today already converted to the facility's time zone.
func ClassifyFollowUp(followUp, today time.Time) Urgency {
	f, t := dayNumber(followUp), dayNumber(today)
	switch {
	case f < t:
		return UrgencyOverdue
	case f == t:
		return UrgencyToday
	default:
		return UrgencyUpcoming
	}
}

// FollowUpUrgency classifies the record's follow-up date, or UrgencyNone
// when there is none.
func (r *HealthCheckResult) FollowUpUrgency(today time.Time) Urgency {
	if r.FollowUpDate == nil {
		return UrgencyNone
	}
	return ClassifyFollowUp(*r.FollowUpDate, today)
}

// ParseUrgency accepts an urgency level in any letter case.
func ParseUrgency(s string) (Urgency, bool) {
	for _, u := range []Urgency{UrgencyOverdue, UrgencyToday, UrgencyUpcoming} {
		if strings.EqualFold(strings.TrimSpace(s), string(u)) {
			return u, true
		}
	}
	return UrgencyNone, false
}

func dayNumber(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// truncateDay keeps only the calendar day, stored at UTC midnight.
func truncateDay(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	y, m, d := t.Date()
	v := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &v
}

func formatDay(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.Format(dayLayout)
}
