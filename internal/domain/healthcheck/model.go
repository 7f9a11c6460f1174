package healthcheck

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a health check result.
type Status string

const (
	StatusWaitingForApproval     Status = "WaitingForApproval"
	StatusApproved               Status = "Approved"
	StatusFollowUpRequired       Status = "FollowUpRequired"
	StatusNoFollowUpRequired     Status = "NoFollowUpRequired"
	StatusCompleted              Status = "Completed"
	StatusCancelledCompletely    Status = "CancelledCompletely"
	StatusCancelledForAdjustment Status = "CancelledForAdjustment"
	StatusSoftDeleted            Status = "SoftDeleted"
)

// AllStatuses lists the statuses a stored record can carry. Approved is
// transient and never stored.
var AllStatuses = []Status{
	StatusWaitingForApproval,
	StatusFollowUpRequired,
	StatusNoFollowUpRequired,
	StatusCompleted,
	StatusCancelledCompletely,
	StatusCancelledForAdjustment,
	StatusSoftDeleted,
}

// IsTerminal reports whether no further lifecycle command applies.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelledCompletely
}

// Action is the kind of a history entry.
type Action string

const (
	ActionCreated           Action = "Created"
	ActionApproved          Action = "Approved"
	ActionCancelled         Action = "Cancelled"
	ActionUpdate            Action = "Update"
	ActionCompleted         Action = "Completed"
	ActionFollowUpCancelled Action = "FollowUpCancelled"
	ActionDeleted           Action = "Deleted"
	ActionRestored          Action = "Restored"
	ActionResubmitted       Action = "Resubmitted"
)

// DetailEntry is one finding of a checkup.
type DetailEntry struct {
	Summary        string `json:"summary" validate:"nonblank"`
	Diagnosis      string `json:"diagnosis" validate:"nonblank"`
	Recommendation string `json:"recommendation" validate:"nonblank"`
}

// HealthCheckResult maps to the health_check_result table.
type HealthCheckResult struct {
	ID                 uuid.UUID     `db:"id" json:"id"`
	Code               string        `db:"code" json:"code"`
	PatientID          uuid.UUID     `db:"patient_id" json:"patient_id"`
	PatientName        string        `db:"patient_name" json:"patient_name"`
	PatientEmail       *string       `db:"patient_email" json:"patient_email,omitempty"`
	StaffID            uuid.UUID     `db:"staff_id" json:"staff_id"`
	StaffName          string        `db:"staff_name" json:"staff_name"`
	CheckupDate        time.Time     `db:"checkup_date" json:"checkup_date"`
	Details            []DetailEntry `db:"details" json:"details"`
	AttachmentURL      *string       `db:"attachment_url" json:"attachment_url,omitempty"`
	Status             Status        `db:"status" json:"status"`
	StatusBeforeDelete *Status       `db:"status_before_delete" json:"status_before_delete,omitempty"`
	FollowUpRequired   bool          `db:"follow_up_required" json:"follow_up_required"`
	FollowUpDate       *time.Time    `db:"follow_up_date" json:"follow_up_date,omitempty"`
	ApprovedDate       *time.Time    `db:"approved_date" json:"approved_date,omitempty"`
	CancelledDate      *time.Time    `db:"cancelled_date" json:"cancelled_date,omitempty"`
	CancellationReason *string       `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	DeletedAt          *time.Time    `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedBy          string        `db:"created_by" json:"created_by"`
	UpdatedBy          string        `db:"updated_by" json:"updated_by"`
	VersionID          int           `db:"version_id" json:"version_id"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// HistoryEntry maps to the health_check_history table. Entries are never
// updated once written.
type HistoryEntry struct {
	ID             uuid.UUID `db:"id" json:"id"`
	RecordID       uuid.UUID `db:"record_id" json:"record_id"`
	Action         Action    `db:"action" json:"action"`
	Timestamp      time.Time `db:"timestamp" json:"timestamp"`
	ActorID        string    `db:"actor_id" json:"actor_id"`
	PreviousStatus Status    `db:"previous_status" json:"previous_status"`
	NewStatus      Status    `db:"new_status" json:"new_status"`
	Details        string    `db:"details" json:"details"`
}

// IsDeleted reports whether the soft-delete overlay is active.
func (r *HealthCheckResult) IsDeleted() bool {
	return r.Status == StatusSoftDeleted
}

// ClinicalStatus returns the lifecycle status ignoring the soft-delete overlay.
func (r *HealthCheckResult) ClinicalStatus() Status {
	if r.IsDeleted() && r.StatusBeforeDelete != nil {
		return *r.StatusBeforeDelete
	}
	return r.Status
}

// Diagnosis joins the diagnoses of all detail entries.
func (r *HealthCheckResult) Diagnosis() string {
	return r.joinDetails(func(d DetailEntry) string { return d.Diagnosis })
}

// Summary joins the result summaries of all detail entries.
func (r *HealthCheckResult) Summary() string {
	return r.joinDetails(func(d DetailEntry) string { return d.Summary })
}

// Recommendations joins the recommendations of all detail entries.
func (r *HealthCheckResult) Recommendations() string {
	return r.joinDetails(func(d DetailEntry) string { return d.Recommendation })
}

func (r *HealthCheckResult) joinDetails(pick func(DetailEntry) string) string {
	parts := make([]string, 0, len(r.Details))
	for _, d := range r.Details {
		parts = append(parts, pick(d))
	}
	return strings.Join(parts, "; ")
}

// Clone returns a deep copy so stores and callers never share mutable state.
func (r *HealthCheckResult) Clone() *HealthCheckResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Details = append([]DetailEntry(nil), r.Details...)
	c.PatientEmail = cloneStr(r.PatientEmail)
	c.AttachmentURL = cloneStr(r.AttachmentURL)
	c.CancellationReason = cloneStr(r.CancellationReason)
	c.FollowUpDate = cloneTime(r.FollowUpDate)
	c.ApprovedDate = cloneTime(r.ApprovedDate)
	c.CancelledDate = cloneTime(r.CancelledDate)
	c.DeletedAt = cloneTime(r.DeletedAt)
	if r.StatusBeforeDelete != nil {
		s := *r.StatusBeforeDelete
		c.StatusBeforeDelete = &s
	}
	return &c
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
