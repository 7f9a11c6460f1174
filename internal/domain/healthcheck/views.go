package healthcheck

import (
	"fmt"
	"time"

	"github.com/healthcheck/healthcheck/internal/domain/filter"
)

// Named list views (tabs) of the console.
const (
	ViewAll                    = "all"
	ViewWaitingForApproval     = "waiting-for-approval"
	ViewFollowUpRequired       = "follow-up-required"
	ViewNoFollowUpRequired     = "no-follow-up-required"
	ViewCompleted              = "completed"
	ViewCancelledCompletely    = "cancelled-completely"
	ViewCancelledForAdjustment = "cancelled-for-adjustment"
	ViewDeleted                = "deleted"
)

// Field names usable in criteria against health check results.
const (
	GroupKeyword = "keyword"
	GroupPatient = "patient"
	GroupStaff   = "staff"

	FieldStatus    = "status"
	FieldUrgency   = "urgency"
	FieldPatientID = "patientId"
	FieldStaffID   = "staffId"

	FieldCheckupDate   = "checkupDate"
	FieldFollowUpDate  = "followUpDate"
	FieldApprovedDate  = "approvedDate"
	FieldCancelledDate = "cancelledDate"
	FieldCreatedAt     = "createdAt"

	FieldAttachment         = "attachment"
	FieldCancellationReason = "cancellationReason"
	FieldDeleted            = "deleted"
)

var viewStatuses = map[string][]Status{
	ViewAll:                    nil,
	ViewWaitingForApproval:     {StatusWaitingForApproval},
	ViewFollowUpRequired:       {StatusFollowUpRequired},
	ViewNoFollowUpRequired:     {StatusNoFollowUpRequired},
	ViewCompleted:              {StatusCompleted},
	ViewCancelledCompletely:    {StatusCancelledCompletely},
	ViewCancelledForAdjustment: {StatusCancelledForAdjustment},
	ViewDeleted:                nil,
}

// Views lists the named views in display order.
var Views = []string{
	ViewAll, ViewWaitingForApproval, ViewFollowUpRequired, ViewNoFollowUpRequired,
	ViewCompleted, ViewCancelledCompletely, ViewCancelledForAdjustment, ViewDeleted,
}

// Preset returns the criteria a named view applies before any user criteria.
// An empty name selects ViewAll.
func Preset(view string) (filter.Criteria, error) {
	if view == "" {
		view = ViewAll
	}
	statuses, ok := viewStatuses[view]
	if !ok {
		return filter.Criteria{}, invalid("view", fmt.Sprintf("unknown view %q", view))
	}
	c := filter.Criteria{Presence: []filter.Presence{filter.Has(FieldDeleted, view == ViewDeleted)}}
	if len(statuses) > 0 {
		c.Membership = []filter.Membership{filter.In(FieldStatus, statusStrings(statuses)...)}
	}
	return c, nil
}

// DefaultDateField is the date a view's range filter applies to when the
// caller does not name one.
func DefaultDateField(view string) string {
	switch view {
	case ViewFollowUpRequired:
		return FieldFollowUpDate
	case ViewCancelledCompletely, ViewCancelledForAdjustment:
		return FieldCancelledDate
	}
	return FieldCheckupDate
}

// ListView returns the field table for health check results. Urgency is
// derived from today, so build a fresh view per request. Timestamps are
// compared by their calendar day in today's location.
func ListView(today time.Time) filter.View[*HealthCheckResult] {
	loc := today.Location()
	local := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := t.In(loc)
		return &v
	}
	return filter.View[*HealthCheckResult]{
		Groups: map[string][]string{
			GroupKeyword: {"code", "patientName", "staffName", "diagnosis", "summary"},
			GroupPatient: {"patientName", "patientEmail"},
			GroupStaff:   {"staffName"},
		},
		Text: map[string]func(*HealthCheckResult) string{
			"code":         func(r *HealthCheckResult) string { return r.Code },
			"patientName":  func(r *HealthCheckResult) string { return r.PatientName },
			"patientEmail": func(r *HealthCheckResult) string { return strVal(r.PatientEmail) },
			"staffName":    func(r *HealthCheckResult) string { return r.StaffName },
			"diagnosis":    func(r *HealthCheckResult) string { return r.Diagnosis() },
			"summary":      func(r *HealthCheckResult) string { return r.Summary() },
		},
		Category: map[string]func(*HealthCheckResult) string{
			FieldStatus:    func(r *HealthCheckResult) string { return string(r.Status) },
			FieldUrgency:   func(r *HealthCheckResult) string { return string(r.FollowUpUrgency(today)) },
			FieldPatientID: func(r *HealthCheckResult) string { return r.PatientID.String() },
			FieldStaffID:   func(r *HealthCheckResult) string { return r.StaffID.String() },
		},
		Dates: map[string]func(*HealthCheckResult) *time.Time{
			FieldCheckupDate:   func(r *HealthCheckResult) *time.Time { return &r.CheckupDate },
			FieldFollowUpDate:  func(r *HealthCheckResult) *time.Time { return r.FollowUpDate },
			FieldApprovedDate:  func(r *HealthCheckResult) *time.Time { return local(r.ApprovedDate) },
			FieldCancelledDate: func(r *HealthCheckResult) *time.Time { return local(r.CancelledDate) },
			FieldCreatedAt:     func(r *HealthCheckResult) *time.Time { return local(&r.CreatedAt) },
		},
		Presence: map[string]func(*HealthCheckResult) bool{
			FieldAttachment:         func(r *HealthCheckResult) bool { return strVal(r.AttachmentURL) != "" },
			FieldFollowUpDate:       func(r *HealthCheckResult) bool { return r.FollowUpDate != nil },
			FieldCancellationReason: func(r *HealthCheckResult) bool { return strVal(r.CancellationReason) != "" },
			FieldDeleted:            func(r *HealthCheckResult) bool { return r.IsDeleted() },
		},
	}
}

func statusStrings(in []Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
