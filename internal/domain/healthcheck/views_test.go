package healthcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthcheck/healthcheck/internal/domain/filter"
)

func TestPreset_EveryViewValidates(t *testing.T) {
	view := ListView(testNow)
	for _, name := range Views {
		c, err := Preset(name)
		require.NoError(t, err, name)
		assert.NoError(t, view.Validate(c), name)
	}
}

func TestPreset_HidesDeletedExceptDeletedView(t *testing.T) {
	live := recordIn(StatusWaitingForApproval, false)
	gone := recordIn(StatusWaitingForApproval, false)
	prior := gone.Status
	gone.StatusBeforeDelete = &prior
	gone.DeletedAt = dayPtr("2024-01-04")
	gone.Status = StatusSoftDeleted
	view := ListView(testNow)

	all, _ := Preset(ViewAll)
	assert.Equal(t, []*HealthCheckResult{live}, filter.Filter(view, []*HealthCheckResult{live, gone}, all))

	del, _ := Preset(ViewDeleted)
	assert.Equal(t, []*HealthCheckResult{gone}, filter.Filter(view, []*HealthCheckResult{live, gone}, del))

	empty, _ := Preset("")
	assert.Equal(t, all, empty)
}

func TestPreset_Unknown(t *testing.T) {
	_, err := Preset("archived")
	assert.True(t, IsValidation(err))
}

func TestListView_UrgencyCategory(t *testing.T) {
	rec := recordIn(StatusFollowUpRequired, true) // follow-up 2024-01-20
	view := ListView(testNow)
	assert.True(t, view.Matches(rec, filter.Criteria{Membership: []filter.Membership{filter.In(FieldUrgency, string(UrgencyUpcoming))}}))
	assert.False(t, view.Matches(rec, filter.Criteria{Membership: []filter.Membership{filter.In(FieldUrgency, string(UrgencyOverdue))}}))
}

func TestListView_PatientSearchIncludesEmail(t *testing.T) {
	rec := recordIn(StatusWaitingForApproval, false)
	email := "Mai.Tran@Clinic.example"
	rec.PatientEmail = &email
	view := ListView(testNow)
	assert.True(t, view.Matches(rec, filter.Criteria{Text: []filter.TextTerm{filter.Search(GroupPatient, "clinic.example")}}))
	assert.False(t, view.Matches(rec, filter.Criteria{Text: []filter.TextTerm{filter.Search(GroupStaff, "clinic.example")}}))
}

func TestDefaultDateField(t *testing.T) {
	assert.Equal(t, FieldFollowUpDate, DefaultDateField(ViewFollowUpRequired))
	assert.Equal(t, FieldCancelledDate, DefaultDateField(ViewCancelledForAdjustment))
	assert.Equal(t, FieldCheckupDate, DefaultDateField(ViewAll))
}
