package survey

import (
	"context"
	"errors"
	"fmt"

	"github.com/healthcheck/healthcheck/internal/domain/filter"
	"github.com/healthcheck/healthcheck/internal/domain/healthcheck"
	"github.com/healthcheck/healthcheck/internal/platform/notification"
)

// CreatePostVisitSurvey lets the service act as the lifecycle's survey
// collaborator for completed checkups. A stored survey whose invite failed
// is reported as healthcheck.ErrSurveyInviteFailed.
func (s *Service) CreatePostVisitSurvey(ctx context.Context, rec *healthcheck.HealthCheckResult) error {
	_, err := s.CreateForCheckup(ctx, Request{
		HealthCheckID:   rec.ID,
		HealthCheckCode: rec.Code,
		PatientID:       rec.PatientID,
		PatientName:     rec.PatientName,
		PatientEmail:    rec.PatientEmail,
	})
	if errors.Is(err, ErrInviteFailed) {
		return fmt.Errorf("%w: %v", healthcheck.ErrSurveyInviteFailed, err)
	}
	return err
}

// EmailInviter sends the survey link with the post-visit template.
type EmailInviter struct {
	sender healthcheck.TemplateSender
}

func NewEmailInviter(sender healthcheck.TemplateSender) *EmailInviter {
	return &EmailInviter{sender: sender}
}

func (i *EmailInviter) SendSurveyInvite(ctx context.Context, sv *Survey) error {
	var to string
	if sv.PatientEmail != nil {
		to = *sv.PatientEmail
	}
	return i.sender.SendTemplate(ctx, notification.TemplatePostVisitSurvey, to, map[string]string{
		"patient_name": sv.PatientName,
		"code":         sv.HealthCheckCode,
		"link":         sv.Link,
		"expires":      sv.ExpiresAt.Format(filter.DayLayout),
	})
}
