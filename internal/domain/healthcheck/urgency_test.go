package healthcheck

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFollowUp(t *testing.T) {
	today := time.Date(2024, 1, 10, 23, 59, 0, 0, time.UTC)
	tests := []struct {
		followUp string
		want     Urgency
	}{
		{"2024-01-09", UrgencyOverdue},
		{"2024-01-10", UrgencyToday},
		{"2024-01-11", UrgencyUpcoming},
		{"2023-12-31", UrgencyOverdue},
		{"2025-01-01", UrgencyUpcoming},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyFollowUp(*dayPtr(tt.followUp), today), tt.followUp)
	}
}

func TestClassifyFollowUp_UsesCallerZone(t *testing.T) {
	hcm := time.FixedZone("ICT", 7*3600)
	// 20:00 UTC on the 9th is already the 10th in UTC+7.
	now := time.Date(2024, 1, 9, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, UrgencyUpcoming, ClassifyFollowUp(*dayPtr("2024-01-10"), now))
	assert.Equal(t, UrgencyToday, ClassifyFollowUp(*dayPtr("2024-01-10"), now.In(hcm)))
}

func TestFollowUpUrgency_NoDate(t *testing.T) {
	rec := recordIn(StatusNoFollowUpRequired, false)
	assert.Equal(t, UrgencyNone, rec.FollowUpUrgency(testNow))
}

func TestParseUrgency(t *testing.T) {
	u, ok := ParseUrgency("overdue")
	assert.True(t, ok)
	assert.Equal(t, UrgencyOverdue, u)
	u, ok = ParseUrgency(" TODAY ")
	assert.True(t, ok)
	assert.Equal(t, UrgencyToday, u)
	_, ok = ParseUrgency("soon")
	assert.False(t, ok)
}

func TestTruncateDay(t *testing.T) {
	in := time.Date(2024, 5, 6, 22, 15, 0, 0, time.FixedZone("X", -5*3600))
	out := truncateDay(&in)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), *out)
	assert.Nil(t, truncateDay(nil))
}
