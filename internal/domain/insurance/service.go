package insurance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/healthcheck/healthcheck/internal/domain/filter"
	"github.com/healthcheck/healthcheck/internal/platform/metrics"
)

// ErrInvalid wraps request errors that are not struct-tag violations.
var ErrInvalid = errors.New("invalid insurance card")

type Service struct {
	repo     Repository
	metrics  *metrics.Metrics
	now      func() time.Time
	validate *validator.Validate
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:     repo,
		now:      time.Now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Card, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	from, err := filter.ParseDay(req.ValidFrom)
	if err != nil {
		return nil, fmt.Errorf("%w: valid_from: %v", ErrInvalid, err)
	}
	to, err := filter.ParseDay(req.ValidTo)
	if err != nil {
		return nil, fmt.Errorf("%w: valid_to: %v", ErrInvalid, err)
	}
	if from == nil || to == nil {
		return nil, fmt.Errorf("%w: valid_from and valid_to are required", ErrInvalid)
	}
	if to.Before(*from) {
		return nil, fmt.Errorf("%w: valid_to precedes valid_from", ErrInvalid)
	}
	now := s.now()
	c := &Card{
		ID:           uuid.New(),
		PatientID:    req.PatientID,
		HolderName:   strings.TrimSpace(req.HolderName),
		CardNumber:   strings.ToUpper(strings.TrimSpace(req.CardNumber)),
		Provider:     strings.TrimSpace(req.Provider),
		ValidFrom:    *from,
		ValidTo:      *to,
		CardImageURL: req.CardImageURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create insurance card: %w", err)
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Card, error) {
	return s.repo.GetByID(ctx, id)
}

// Search returns the cards matching c in creation order.
func (s *Service) Search(ctx context.Context, c filter.Criteria) ([]*Card, error) {
	start := time.Now()
	view := ListView()
	if err := view.Validate(c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cards, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list insurance cards: %w", err)
	}
	out := filter.Filter(view, cards, c)
	s.metrics.ObserveQuery("insurance", time.Since(start), len(out))
	return out, nil
}

// IsValidation reports whether err was caused by the request.
func IsValidation(err error) bool {
	var v validator.ValidationErrors
	return errors.As(err, &v) || errors.Is(err, ErrInvalid)
}
