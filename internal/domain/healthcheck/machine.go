package healthcheck

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CommandKind names a lifecycle command.
type CommandKind string

const (
	CommandApprove             CommandKind = "Approve"
	CommandCancelCompletely    CommandKind = "CancelCompletely"
	CommandCancelForAdjustment CommandKind = "CancelForAdjustment"
	CommandEdit                CommandKind = "Edit"
	CommandResubmit            CommandKind = "Resubmit"
	CommandComplete            CommandKind = "Complete"
	CommandCancelFollowUp      CommandKind = "CancelFollowUp"
	CommandSoftDelete          CommandKind = "SoftDelete"
	CommandRestore             CommandKind = "Restore"
)

// Actor is the staff member issuing a command.
type Actor struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles,omitempty"`
}

// Payload carries command-specific input: Reason for cancellations, the full
// detail sequence and follow-up data for Edit, nothing for the rest.
type Payload struct {
	Reason           string        `json:"reason,omitempty"`
	Details          []DetailEntry `json:"details,omitempty"`
	FollowUpRequired *bool         `json:"follow_up_required,omitempty"`
	FollowUpDate     *time.Time    `json:"follow_up_date,omitempty"`
}

// Command is one request against one record.
type Command struct {
	RecordID uuid.UUID
	Kind     CommandKind
	Actor    Actor
	Payload  Payload
}

type rule struct {
	from   []Status
	action Action
	apply  func(m *Machine, rec *HealthCheckResult, cmd Command, now time.Time) (string, error)
}

var nonTerminal = []Status{
	StatusWaitingForApproval,
	StatusFollowUpRequired,
	StatusNoFollowUpRequired,
	StatusCancelledForAdjustment,
}

var rules = map[CommandKind]rule{
	CommandApprove:             {from: []Status{StatusWaitingForApproval}, action: ActionApproved, apply: applyApprove},
	CommandCancelCompletely:    {from: []Status{StatusWaitingForApproval, StatusNoFollowUpRequired}, action: ActionCancelled, apply: applyCancelCompletely},
	CommandCancelForAdjustment: {from: []Status{StatusWaitingForApproval}, action: ActionCancelled, apply: applyCancelForAdjustment},
	CommandEdit:                {from: []Status{StatusCancelledForAdjustment}, action: ActionUpdate, apply: applyEdit},
	CommandResubmit:            {from: []Status{StatusCancelledForAdjustment}, action: ActionResubmitted, apply: applyResubmit},
	CommandComplete:            {from: []Status{StatusFollowUpRequired, StatusNoFollowUpRequired}, action: ActionCompleted, apply: applyComplete},
	CommandCancelFollowUp:      {from: []Status{StatusFollowUpRequired}, action: ActionFollowUpCancelled, apply: applyCancelFollowUp},
	CommandSoftDelete:          {from: nonTerminal, action: ActionDeleted, apply: applySoftDelete},
	CommandRestore:             {from: []Status{StatusSoftDeleted}, action: ActionRestored, apply: applyRestore},
}

// Machine applies lifecycle commands. Apply is pure: it never touches
// storage and never mutates its input.
type Machine struct {
	approverRoles map[string]bool
}

// NewMachine creates a Machine granting approval authority to the given roles.
func NewMachine(approverRoles ...string) *Machine {
	m := &Machine{}
	m.SetApproverRoles(approverRoles...)
	return m
}

// SetApproverRoles replaces the roles holding approval authority. Not safe
// for use concurrently with Apply.
func (m *Machine) SetApproverRoles(roles ...string) {
	m.approverRoles = make(map[string]bool, len(roles))
	for _, r := range roles {
		if r = strings.TrimSpace(r); r != "" {
			m.approverRoles[r] = true
		}
	}
}

// CanApprove reports whether the actor holds approval authority.
func (m *Machine) CanApprove(a Actor) bool {
	for _, r := range a.Roles {
		if m.approverRoles[r] {
			return true
		}
	}
	return false
}

// Allowed lists the commands legal from status, in a stable order.
func (m *Machine) Allowed(status Status) []CommandKind {
	order := []CommandKind{
		CommandApprove, CommandCancelCompletely, CommandCancelForAdjustment,
		CommandEdit, CommandResubmit, CommandComplete, CommandCancelFollowUp,
		CommandSoftDelete, CommandRestore,
	}
	var out []CommandKind
	for _, k := range order {
		if containsStatus(rules[k].from, status) {
			out = append(out, k)
		}
	}
	return out
}

// Apply validates cmd against rec and returns the next record state plus the
// history entry describing the transition. On error nothing is returned and
// rec is unchanged.
func (m *Machine) Apply(rec *HealthCheckResult, cmd Command, now time.Time) (*HealthCheckResult, *HistoryEntry, error) {
	r, ok := rules[cmd.Kind]
	if !ok {
		return nil, nil, invalid("command", fmt.Sprintf("unknown command %q", cmd.Kind))
	}
	if !containsStatus(r.from, rec.Status) {
		return nil, nil, &InvalidTransitionError{Current: rec.Status, Command: cmd.Kind}
	}

	next := rec.Clone()
	details, err := r.apply(m, next, cmd, now)
	if err != nil {
		return nil, nil, err
	}
	next.UpdatedAt = now
	next.UpdatedBy = cmd.Actor.ID

	if err := checkInvariants(next); err != nil {
		return nil, nil, fmt.Errorf("%s produced an inconsistent record: %w", cmd.Kind, err)
	}

	entry := &HistoryEntry{
		ID:             uuid.New(),
		RecordID:       rec.ID,
		Action:         r.action,
		Timestamp:      now,
		ActorID:        cmd.Actor.ID,
		PreviousStatus: rec.Status,
		NewStatus:      next.Status,
		Details:        details,
	}
	return next, entry, nil
}

func applyApprove(m *Machine, rec *HealthCheckResult, cmd Command, now time.Time) (string, error) {
	if !m.CanApprove(cmd.Actor) {
		return "", ErrNotAuthorized
	}
	if rec.FollowUpRequired && rec.FollowUpDate == nil {
		return "", invalid("follow_up_date", "required when follow-up is required")
	}
	approved := now
	rec.ApprovedDate = &approved
	if rec.FollowUpRequired {
		rec.Status = StatusFollowUpRequired
		return "approved; follow-up required on " + rec.FollowUpDate.Format(dayLayout), nil
	}
	rec.Status = StatusNoFollowUpRequired
	rec.FollowUpDate = nil
	return "approved; no follow-up required", nil
}

func applyCancelCompletely(_ *Machine, rec *HealthCheckResult, cmd Command, now time.Time) (string, error) {
	reason, err := requireReason(cmd.Payload.Reason)
	if err != nil {
		return "", err
	}
	setCancelled(rec, reason, now)
	rec.Status = StatusCancelledCompletely
	rec.FollowUpDate = nil
	return "cancelled completely: " + reason, nil
}

func applyCancelForAdjustment(_ *Machine, rec *HealthCheckResult, cmd Command, now time.Time) (string, error) {
	reason, err := requireReason(cmd.Payload.Reason)
	if err != nil {
		return "", err
	}
	setCancelled(rec, reason, now)
	rec.Status = StatusCancelledForAdjustment
	return "cancelled for adjustment: " + reason, nil
}

func applyEdit(_ *Machine, rec *HealthCheckResult, cmd Command, _ time.Time) (string, error) {
	p := cmd.Payload
	if err := validateDetails(p.Details); err != nil {
		return "", err
	}
	required := rec.FollowUpRequired
	if p.FollowUpRequired != nil {
		required = *p.FollowUpRequired
	}
	date := p.FollowUpDate
	if date == nil && required && p.FollowUpRequired == nil {
		date = rec.FollowUpDate
	}
	if err := validateFollowUp(required, date); err != nil {
		return "", err
	}
	date = truncateDay(date)

	changes := []string{fmt.Sprintf("details: %d -> %d entries", len(rec.Details), len(p.Details))}
	if required != rec.FollowUpRequired {
		changes = append(changes, fmt.Sprintf("follow-up required: %t -> %t", rec.FollowUpRequired, required))
	}
	if formatDay(date) != formatDay(rec.FollowUpDate) {
		changes = append(changes, fmt.Sprintf("follow-up date: %s -> %s", formatDay(rec.FollowUpDate), formatDay(date)))
	}

	rec.Details = append([]DetailEntry(nil), p.Details...)
	rec.FollowUpRequired = required
	rec.FollowUpDate = date
	return strings.Join(changes, "; "), nil
}

func applyResubmit(_ *Machine, rec *HealthCheckResult, _ Command, _ time.Time) (string, error) {
	rec.Status = StatusWaitingForApproval
	rec.CancelledDate = nil
	rec.CancellationReason = nil
	return "resubmitted for approval", nil
}

func applyComplete(_ *Machine, rec *HealthCheckResult, _ Command, _ time.Time) (string, error) {
	details := "completed"
	if rec.Status == StatusFollowUpRequired {
		details = "completed; follow-up of " + formatDay(rec.FollowUpDate) + " closed"
	}
	rec.Status = StatusCompleted
	rec.FollowUpRequired = false
	rec.FollowUpDate = nil
	return details, nil
}

func applyCancelFollowUp(_ *Machine, rec *HealthCheckResult, _ Command, _ time.Time) (string, error) {
	details := "follow-up of " + formatDay(rec.FollowUpDate) + " cancelled"
	rec.Status = StatusNoFollowUpRequired
	rec.FollowUpRequired = false
	rec.FollowUpDate = nil
	return details, nil
}

func applySoftDelete(_ *Machine, rec *HealthCheckResult, _ Command, now time.Time) (string, error) {
	prior := rec.Status
	deleted := now
	rec.StatusBeforeDelete = &prior
	rec.DeletedAt = &deleted
	rec.Status = StatusSoftDeleted
	return "deleted from status " + string(prior), nil
}

func applyRestore(_ *Machine, rec *HealthCheckResult, _ Command, _ time.Time) (string, error) {
	if rec.StatusBeforeDelete == nil {
		return "", fmt.Errorf("soft-deleted record %s has no prior status", rec.ID)
	}
	rec.Status = *rec.StatusBeforeDelete
	rec.StatusBeforeDelete = nil
	rec.DeletedAt = nil
	return "restored to status " + string(rec.Status), nil
}

func requireReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", invalid("reason", "cancellation reason is required")
	}
	return reason, nil
}

func setCancelled(rec *HealthCheckResult, reason string, now time.Time) {
	cancelled := now
	rec.CancelledDate = &cancelled
	rec.CancellationReason = &reason
}

// followUpActive reports whether a follow-up date may be carried in status.
func followUpActive(s Status) bool {
	switch s {
	case StatusWaitingForApproval, StatusCancelledForAdjustment, StatusFollowUpRequired:
		return true
	}
	return false
}

func checkInvariants(rec *HealthCheckResult) error {
	clinical := rec.ClinicalStatus()
	if !rec.FollowUpRequired && rec.FollowUpDate != nil {
		return fmt.Errorf("follow-up date set without follow-up required")
	}
	if rec.FollowUpDate != nil && !followUpActive(clinical) {
		return fmt.Errorf("follow-up date set in status %s", clinical)
	}
	if clinical == StatusFollowUpRequired && rec.FollowUpDate == nil {
		return fmt.Errorf("status %s without follow-up date", clinical)
	}
	cancelled := clinical == StatusCancelledCompletely || clinical == StatusCancelledForAdjustment
	if cancelled != (rec.CancelledDate != nil && rec.CancellationReason != nil) {
		return fmt.Errorf("cancellation fields inconsistent with status %s", clinical)
	}
	if rec.IsDeleted() != (rec.StatusBeforeDelete != nil && rec.DeletedAt != nil) {
		return fmt.Errorf("soft-delete fields inconsistent with status %s", rec.Status)
	}
	return nil
}

func containsStatus(set []Status, s Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
