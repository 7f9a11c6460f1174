package healthcheck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthcheck/healthcheck/internal/platform/notification"
)

type sentTemplate struct {
	id, to string
	data   map[string]string
}

type recordingSender struct{ sent []sentTemplate }

func (r *recordingSender) SendTemplate(_ context.Context, id, to string, data map[string]string) error {
	r.sent = append(r.sent, sentTemplate{id, to, data})
	return nil
}

func TestEmailNotifier_PicksTemplate(t *testing.T) {
	email := "mai@example.com"
	reason := "duplicate visit"
	rec := &HealthCheckResult{Code: "HC-20240110-ABC123", PatientName: "Mai Tran", PatientEmail: &email,
		FollowUpDate: dayPtr("2024-02-01"), CancellationReason: &reason}

	tests := []struct {
		action Action
		tpl    string
		key    string
		want   string
	}{
		{ActionApproved, notification.TemplateCheckupApproved, "follow_up", "Please come back for a follow-up visit on 2024-02-01."},
		{ActionCancelled, notification.TemplateCheckupCancelled, "reason", reason},
		{ActionCompleted, notification.TemplateCheckupCompleted, "code", rec.Code},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			s := &recordingSender{}
			require.NoError(t, NewEmailNotifier(s).NotifyTransition(context.Background(), rec, &HistoryEntry{Action: tt.action}))
			require.Len(t, s.sent, 1)
			assert.Equal(t, tt.tpl, s.sent[0].id)
			assert.Equal(t, email, s.sent[0].to)
			assert.Equal(t, tt.want, s.sent[0].data[tt.key])
		})
	}
}

func TestEmailNotifier_NoTemplateForEdit(t *testing.T) {
	s := &recordingSender{}
	err := NewEmailNotifier(s).NotifyTransition(context.Background(), &HealthCheckResult{}, &HistoryEntry{Action: ActionUpdate})
	assert.Error(t, err)
	assert.Empty(t, s.sent)
}
