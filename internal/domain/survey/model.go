package survey

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusExpired   = "expired"
)

// Survey maps to the post_visit_survey table. One survey exists per
// completed health check.
type Survey struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	HealthCheckID   uuid.UUID  `db:"health_check_id" json:"health_check_id"`
	HealthCheckCode string     `db:"health_check_code" json:"health_check_code"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	PatientName     string     `db:"patient_name" json:"patient_name"`
	PatientEmail    *string    `db:"patient_email" json:"patient_email,omitempty"`
	Status          string     `db:"status" json:"status"`
	Link            string     `db:"link" json:"link"`
	Rating          *int       `db:"rating" json:"rating,omitempty"`
	Comment         *string    `db:"comment" json:"comment,omitempty"`
	ExpiresAt       time.Time  `db:"expires_at" json:"expires_at"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// EffectiveStatus reports expired for a pending survey past its deadline.
func (s *Survey) EffectiveStatus(now time.Time) string {
	if s.Status == StatusPending && now.After(s.ExpiresAt) {
		return StatusExpired
	}
	return s.Status
}

// Request describes the checkup a survey is created for.
type Request struct {
	HealthCheckID   uuid.UUID `validate:"required"`
	HealthCheckCode string    `validate:"required"`
	PatientID       uuid.UUID `validate:"required"`
	PatientName     string
	PatientEmail    *string `validate:"omitempty,email"`
}

// Submission is a patient's answer to a survey.
type Submission struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}
