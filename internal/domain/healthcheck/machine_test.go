package healthcheck

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow   = time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)
	physician = Actor{ID: "dr-lee", Roles: []string{"physician"}}
	nurse     = Actor{ID: "nurse-kim", Roles: []string{"nurse"}}
)

func dayPtr(s string) *time.Time {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func sampleDetails() []DetailEntry {
	return []DetailEntry{{Summary: "BP elevated", Diagnosis: "Hypertension stage 1", Recommendation: "Reduce salt"}}
}

// recordIn builds a consistent record in the given clinical status.
func recordIn(status Status, followUp bool) *HealthCheckResult {
	rec := &HealthCheckResult{
		ID:               uuid.New(),
		Code:             "HC-20240101-ABC123",
		PatientID:        uuid.New(),
		PatientName:      "Mai Tran",
		StaffID:          uuid.New(),
		StaffName:        "Dr. Lee",
		CheckupDate:      *dayPtr("2024-01-02"),
		Details:          sampleDetails(),
		Status:           status,
		FollowUpRequired: followUp,
		VersionID:        1,
	}
	if followUp && followUpActive(status) {
		rec.FollowUpDate = dayPtr("2024-01-20")
	}
	if status == StatusCancelledCompletely || status == StatusCancelledForAdjustment {
		reason := "wrong patient"
		rec.CancellationReason = &reason
		rec.CancelledDate = dayPtr("2024-01-05")
	}
	if status != StatusWaitingForApproval && status != StatusCancelledForAdjustment {
		rec.ApprovedDate = dayPtr("2024-01-03")
	}
	return rec
}

func cmd(rec *HealthCheckResult, kind CommandKind, actor Actor) Command {
	return Command{RecordID: rec.ID, Kind: kind, Actor: actor}
}

func TestApprove_ResolvesByFollowUpFlag(t *testing.T) {
	m := NewMachine("physician")
	for _, followUp := range []bool{true, false} {
		rec := recordIn(StatusWaitingForApproval, followUp)
		next, entry, err := m.Apply(rec, cmd(rec, CommandApprove, physician), testNow)
		require.NoError(t, err)

		want := StatusNoFollowUpRequired
		if followUp {
			want = StatusFollowUpRequired
		}
		assert.Equal(t, want, next.Status)
		assert.Equal(t, want, entry.NewStatus, "history records the resolved status")
		assert.Equal(t, ActionApproved, entry.Action)
		require.NotNil(t, next.ApprovedDate)
		assert.Equal(t, testNow, *next.ApprovedDate)
	}
}

func TestApprove_RequiresAuthority(t *testing.T) {
	m := NewMachine("physician")
	rec := recordIn(StatusWaitingForApproval, false)
	_, _, err := m.Apply(rec, cmd(rec, CommandApprove, nurse), testNow)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, StatusWaitingForApproval, rec.Status)

	m.SetApproverRoles("nurse")
	_, _, err = m.Apply(rec, cmd(rec, CommandApprove, nurse), testNow)
	assert.NoError(t, err)
}

func TestApprove_FollowUpWithoutDateRejected(t *testing.T) {
	m := NewMachine("physician")
	rec := recordIn(StatusWaitingForApproval, true)
	rec.FollowUpDate = nil
	_, _, err := m.Apply(rec, cmd(rec, CommandApprove, physician), testNow)
	assert.True(t, IsValidation(err))
}

func TestCancelForAdjustment_ReasonRequired(t *testing.T) {
	m := NewMachine()
	rec := recordIn(StatusWaitingForApproval, false)

	for _, reason := range []string{"", "   "} {
		c := cmd(rec, CommandCancelForAdjustment, nurse)
		c.Payload.Reason = reason
		_, _, err := m.Apply(rec, c, testNow)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "reason", verr.Field)
	}

	c := cmd(rec, CommandCancelForAdjustment, nurse)
	c.Payload.Reason = "  needs more tests "
	next, entry, err := m.Apply(rec, c, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelledForAdjustment, next.Status)
	assert.Equal(t, ActionCancelled, entry.Action)
	assert.Equal(t, "needs more tests", *next.CancellationReason)
	assert.Equal(t, testNow, *next.CancelledDate)
}

func TestCancelCompletely_ClearsFollowUpDate(t *testing.T) {
	m := NewMachine()
	rec := recordIn(StatusWaitingForApproval, true)
	c := cmd(rec, CommandCancelCompletely, nurse)
	c.Payload.Reason = "duplicate"
	next, _, err := m.Apply(rec, c, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelledCompletely, next.Status)
	assert.Nil(t, next.FollowUpDate)
	assert.True(t, next.Status.IsTerminal())
}

func TestEdit_RequiresCompleteDetails(t *testing.T) {
	m := NewMachine()
	rec := recordIn(StatusCancelledForAdjustment, false)

	c := cmd(rec, CommandEdit, nurse)
	_, _, err := m.Apply(rec, c, testNow)
	assert.True(t, IsValidation(err), "empty details")

	c.Payload.Details = []DetailEntry{
		{Summary: "ok", Diagnosis: "ok", Recommendation: "ok"},
		{Summary: "ok", Diagnosis: " ", Recommendation: "ok"},
	}
	_, _, err = m.Apply(rec, c, testNow)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "details[1].diagnosis", verr.Field)
	assert.Equal(t, sampleDetails(), rec.Details, "input untouched")
}

func TestEdit_UpdatesContentKeepsStatus(t *testing.T) {
	m := NewMachine()
	rec := recordIn(StatusCancelledForAdjustment, false)
	required := true
	c := cmd(rec, CommandEdit, nurse)
	c.Payload = Payload{
		Details:          append(sampleDetails(), DetailEntry{Summary: "Lipids high", Diagnosis: "Dyslipidemia", Recommendation: "Statin"}),
		FollowUpRequired: &required,
		FollowUpDate:     dayPtr("2024-02-01"),
	}
	next, entry, err := m.Apply(rec, c, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelledForAdjustment, next.Status)
	assert.Len(t, next.Details, 2)
	assert.True(t, next.FollowUpRequired)
	assert.Equal(t, "2024-02-01", next.FollowUpDate.Format(dayLayout))
	assert.Equal(t, ActionUpdate, entry.Action)
	assert.Contains(t, entry.Details, "details: 1 -> 2 entries")
	assert.Contains(t, entry.Details, "follow-up required: false -> true")
	assert.Equal(t, StatusCancelledForAdjustment, entry.PreviousStatus)
	assert.Equal(t, StatusCancelledForAdjustment, entry.NewStatus)
}

func TestEdit_FollowUpRequiresDate(t *testing.T) {
	m := NewMachine()
	rec := recordIn(StatusCancelledForAdjustment, false)
	required := true
	c := cmd(rec, CommandEdit, nurse)
	c.Payload = Payload{Details: sampleDetails(), FollowUpRequired: &required}
	_, _, err := m.Apply(rec, c, testNow)
	assert.True(t, IsValidation(err))
}

func TestResubmit_ReturnsToApprovalQueue(t *testing.T) {
	m := NewMachine()
	rec := recordIn(StatusCancelledForAdjustment, true)
	next, entry, err := m.Apply(rec, cmd(rec, CommandResubmit, nurse), testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusWaitingForApproval, next.Status)
	assert.Nil(t, next.CancelledDate)
	assert.Nil(t, next.CancellationReason)
	assert.NotNil(t, next.FollowUpDate, "follow-up plan survives resubmission")
	assert.Equal(t, ActionResubmitted, entry.Action)
}

func TestComplete_ClearsFollowUp(t *testing.T) {
	m := NewMachine()
	rec := recordIn(StatusFollowUpRequired, true)
	next, entry, err := m.Apply(rec, cmd(rec, CommandComplete, nurse), testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, next.Status)
	assert.False(t, next.FollowUpRequired)
	assert.Nil(t, next.FollowUpDate)
	assert.Equal(t, ActionCompleted, entry.Action)
}

func TestComplete_Twice(t *testing.T) {
	m := NewMachine()
	rec := recordIn(StatusNoFollowUpRequired, false)
	next, _, err := m.Apply(rec, cmd(rec, CommandComplete, nurse), testNow)
	require.NoError(t, err)

	_, _, err = m.Apply(next, cmd(next, CommandComplete, nurse), testNow)
	var terr *InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StatusCompleted, terr.Current)
	assert.Equal(t, CommandComplete, terr.Command)
	assert.Contains(t, err.Error(), "Completed")
	assert.Contains(t, err.Error(), "Complete")
}

func TestCancelFollowUp(t *testing.T) {
	m := NewMachine()
	rec := recordIn(StatusFollowUpRequired, true)
	next, entry, err := m.Apply(rec, cmd(rec, CommandCancelFollowUp, nurse), testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusNoFollowUpRequired, next.Status)
	assert.Nil(t, next.FollowUpDate)
	assert.Equal(t, ActionFollowUpCancelled, entry.Action)
}

func TestSoftDeleteRestore_RoundTrip(t *testing.T) {
	m := NewMachine()
	for _, status := range nonTerminal {
		t.Run(string(status), func(t *testing.T) {
			rec := recordIn(status, true)
			deleted, entry, err := m.Apply(rec, cmd(rec, CommandSoftDelete, nurse), testNow)
			require.NoError(t, err)
			assert.Equal(t, StatusSoftDeleted, deleted.Status)
			assert.Equal(t, status, deleted.ClinicalStatus())
			assert.Equal(t, ActionDeleted, entry.Action)

			restored, entry, err := m.Apply(deleted, cmd(deleted, CommandRestore, nurse), testNow)
			require.NoError(t, err)
			assert.Equal(t, ActionRestored, entry.Action)
			assert.Equal(t, rec.Status, restored.Status)
			assert.Equal(t, rec.FollowUpRequired, restored.FollowUpRequired)
			assert.Equal(t, rec.FollowUpDate, restored.FollowUpDate)
			assert.Nil(t, restored.StatusBeforeDelete)
			assert.Nil(t, restored.DeletedAt)
		})
	}
}

func TestSoftDeleted_AcceptsOnlyRestore(t *testing.T) {
	m := NewMachine("physician")
	rec := recordIn(StatusWaitingForApproval, false)
	deleted, _, err := m.Apply(rec, cmd(rec, CommandSoftDelete, nurse), testNow)
	require.NoError(t, err)
	assert.Equal(t, []CommandKind{CommandRestore}, m.Allowed(deleted.Status))
}

func TestInvalidTransitions_LeaveRecordUnchanged(t *testing.T) {
	m := NewMachine("physician")
	for kind, r := range rules {
		for _, status := range AllStatuses {
			if containsStatus(r.from, status) {
				continue
			}
			rec := recordIn(status, false)
			if status == StatusSoftDeleted {
				prior := StatusWaitingForApproval
				rec.StatusBeforeDelete = &prior
				rec.DeletedAt = dayPtr("2024-01-04")
			}
			before := rec.Clone()
			c := cmd(rec, kind, physician)
			c.Payload.Reason = "reason"
			c.Payload.Details = sampleDetails()

			next, entry, err := m.Apply(rec, c, testNow)
			assert.Truef(t, IsInvalidTransition(err), "%s from %s: got %v", kind, status, err)
			assert.Nil(t, next)
			assert.Nil(t, entry)
			assert.Equal(t, before, rec)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	m := NewMachine()
	rec := recordIn(StatusWaitingForApproval, false)
	_, _, err := m.Apply(rec, cmd(rec, "Archive", nurse), testNow)
	assert.True(t, IsValidation(err))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	m := NewMachine("physician")
	rec := recordIn(StatusWaitingForApproval, true)
	before := rec.Clone()
	_, _, err := m.Apply(rec, cmd(rec, CommandApprove, physician), testNow)
	require.NoError(t, err)
	assert.Equal(t, before, rec)
}

func TestApply_StampsAuditFields(t *testing.T) {
	m := NewMachine()
	rec := recordIn(StatusFollowUpRequired, true)
	next, entry, err := m.Apply(rec, cmd(rec, CommandComplete, nurse), testNow)
	require.NoError(t, err)
	assert.Equal(t, testNow, next.UpdatedAt)
	assert.Equal(t, nurse.ID, next.UpdatedBy)
	assert.Equal(t, nurse.ID, entry.ActorID)
	assert.Equal(t, rec.ID, entry.RecordID)
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, StatusFollowUpRequired, entry.PreviousStatus)
}

func TestAllowed(t *testing.T) {
	m := NewMachine()
	assert.Equal(t,
		[]CommandKind{CommandApprove, CommandCancelCompletely, CommandCancelForAdjustment, CommandSoftDelete},
		m.Allowed(StatusWaitingForApproval))
	assert.Empty(t, m.Allowed(StatusCompleted))
	assert.Empty(t, m.Allowed(StatusCancelledCompletely))
}

func TestCheckInvariants(t *testing.T) {
	rec := recordIn(StatusNoFollowUpRequired, false)
	rec.FollowUpDate = dayPtr("2024-01-20")
	assert.Error(t, checkInvariants(rec))

	rec = recordIn(StatusFollowUpRequired, true)
	rec.FollowUpDate = nil
	assert.Error(t, checkInvariants(rec))

	rec = recordIn(StatusCancelledCompletely, false)
	rec.CancellationReason = nil
	assert.Error(t, checkInvariants(rec))

	assert.NoError(t, checkInvariants(recordIn(StatusFollowUpRequired, true)))
	assert.NoError(t, checkInvariants(recordIn(StatusCompleted, false)))
}
