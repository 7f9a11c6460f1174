package survey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrExpired      = errors.New("survey has expired")
	ErrInviteFailed = errors.New("survey invite failed")
)

// DefaultTTL is how long a patient may answer a post-visit survey.
const DefaultTTL = 14 * 24 * time.Hour

// Inviter delivers the survey link to the patient.
type Inviter interface {
	SendSurveyInvite(ctx context.Context, s *Survey) error
}

type Service struct {
	repo     Repository
	inviter  Inviter
	baseURL  string
	ttl      time.Duration
	now      func() time.Time
	validate *validator.Validate
}

func NewService(repo Repository, baseURL string) *Service {
	return &Service{
		repo:     repo,
		baseURL:  strings.TrimRight(baseURL, "/"),
		ttl:      DefaultTTL,
		now:      time.Now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Service) SetInviter(i Inviter)          { s.inviter = i }
func (s *Service) SetTTL(ttl time.Duration)      { s.ttl = ttl }
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// CreateForCheckup creates the post-visit survey of a completed checkup and
// invites the patient. Calling it again for the same checkup returns the
// existing survey without sending a second invite.
func (s *Service) CreateForCheckup(ctx context.Context, req Request) (*Survey, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid survey request: %w", err)
	}
	if existing, err := s.repo.GetByHealthCheck(ctx, req.HealthCheckID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := s.now()
	sv := &Survey{
		ID:              uuid.New(),
		HealthCheckID:   req.HealthCheckID,
		HealthCheckCode: req.HealthCheckCode,
		PatientID:       req.PatientID,
		PatientName:     req.PatientName,
		PatientEmail:    req.PatientEmail,
		Status:          StatusPending,
		ExpiresAt:       now.Add(s.ttl),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	sv.Link = s.baseURL + "/" + sv.ID.String()
	if err := s.repo.Create(ctx, sv); err != nil {
		return nil, fmt.Errorf("create survey: %w", err)
	}
	if s.inviter != nil && sv.PatientEmail != nil && *sv.PatientEmail != "" {
		if err := s.inviter.SendSurveyInvite(ctx, sv); err != nil {
			return sv, fmt.Errorf("survey %s created: %w: %v", sv.ID, ErrInviteFailed, err)
		}
	}
	return sv, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Survey, error) {
	sv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sv.Status = sv.EffectiveStatus(s.now())
	return sv, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Survey, int, error) {
	items, total, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	for _, sv := range items {
		sv.Status = sv.EffectiveStatus(now)
	}
	return items, total, nil
}

// Submit records the patient's answer. A survey can be answered once and
// only before it expires.
func (s *Service) Submit(ctx context.Context, id uuid.UUID, sub Submission) (*Survey, error) {
	if err := s.validate.Struct(sub); err != nil {
		return nil, fmt.Errorf("invalid submission: %w", err)
	}
	sv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	switch sv.EffectiveStatus(now) {
	case StatusCompleted:
		return nil, ErrAlreadyCompleted
	case StatusExpired:
		return nil, ErrExpired
	}
	rating := sub.Rating
	sv.Rating = &rating
	if c := strings.TrimSpace(sub.Comment); c != "" {
		sv.Comment = &c
	}
	sv.Status = StatusCompleted
	sv.CompletedAt = &now
	sv.UpdatedAt = now
	if err := s.repo.Complete(ctx, sv); err != nil {
		return nil, err
	}
	return sv, nil
}

// IsValidation reports whether err came from request validation.
func IsValidation(err error) bool {
	var v validator.ValidationErrors
	return errors.As(err, &v)
}
