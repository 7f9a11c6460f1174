package healthcheck

import (
	"context"
	"fmt"

	"github.com/healthcheck/healthcheck/internal/domain/filter"
	"github.com/healthcheck/healthcheck/internal/platform/notification"
)

// TemplateSender delivers a rendered email template.
type TemplateSender interface {
	SendTemplate(ctx context.Context, templateID, to string, data map[string]string) error
}

// EmailNotifier implements Notifier with the patient email templates.
type EmailNotifier struct {
	sender TemplateSender
}

func NewEmailNotifier(sender TemplateSender) *EmailNotifier {
	return &EmailNotifier{sender: sender}
}

func (n *EmailNotifier) NotifyTransition(ctx context.Context, rec *HealthCheckResult, entry *HistoryEntry) error {
	data := map[string]string{
		"code":         rec.Code,
		"patient_name": rec.PatientName,
	}
	var tpl string
	switch entry.Action {
	case ActionApproved:
		tpl = notification.TemplateCheckupApproved
		data["follow_up"] = "No follow-up visit is needed."
		if rec.FollowUpDate != nil {
			data["follow_up"] = "Please come back for a follow-up visit on " + rec.FollowUpDate.Format(filter.DayLayout) + "."
		}
	case ActionCancelled:
		tpl = notification.TemplateCheckupCancelled
		data["reason"] = strVal(rec.CancellationReason)
	case ActionCompleted:
		tpl = notification.TemplateCheckupCompleted
	default:
		return fmt.Errorf("no notification template for action %s", entry.Action)
	}
	return n.sender.SendTemplate(ctx, tpl, strVal(rec.PatientEmail), data)
}
