package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/healthcheck/healthcheck/internal/domain/filter"
	"github.com/healthcheck/healthcheck/internal/platform/metrics"
)

const sideEffectTimeout = 10 * time.Second

// SurveyCreator requests a post-visit survey for a completed record.
type SurveyCreator interface {
	CreatePostVisitSurvey(ctx context.Context, rec *HealthCheckResult) error
}

// Notifier informs the subject of a committed transition.
type Notifier interface {
	NotifyTransition(ctx context.Context, rec *HealthCheckResult, entry *HistoryEntry) error
}

// Result is the outcome of a committed command.
type Result struct {
	Success        bool               `json:"success"`
	NewStatus      Status             `json:"new_status"`
	HistoryEntryID uuid.UUID          `json:"history_entry_id"`
	Warnings       []Warning          `json:"warnings"`
	Record         *HealthCheckResult `json:"record,omitempty"`
}

// Query selects records for a list view.
type Query struct {
	View           string
	Criteria       filter.Criteria
	IncludeDeleted bool
	SortByFollowUp bool
}

type Service struct {
	repo     Repository
	machine  *Machine
	surveys  SurveyCreator
	notifier Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
	loc      *time.Location
}

func NewService(repo Repository, approverRoles ...string) *Service {
	return &Service{
		repo:    repo,
		machine: NewMachine(approverRoles...),
		logger:  zerolog.Nop(),
		now:     time.Now,
		loc:     time.UTC,
	}
}

func (s *Service) SetSurveyCreator(sc SurveyCreator) { s.surveys = sc }
func (s *Service) SetNotifier(n Notifier)            { s.notifier = n }
func (s *Service) SetMetrics(m *metrics.Metrics)     { s.metrics = m }
func (s *Service) SetLogger(l zerolog.Logger)        { s.logger = l }

// SetClock replaces the time source used for transitions and urgency.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetLocation sets the time zone whose calendar day counts as "today".
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

func (s *Service) SetApproverRoles(roles ...string) { s.machine.SetApproverRoles(roles...) }

// Today returns the current instant in the service's time zone.
func (s *Service) Today() time.Time { return s.now().In(s.loc) }

// Allowed lists the commands legal from the record's current status.
func (s *Service) Allowed(rec *HealthCheckResult) []CommandKind {
	return s.machine.Allowed(rec.Status)
}

// Create registers a new result in WaitingForApproval. Identity, code,
// lifecycle and audit fields of in are ignored.
func (s *Service) Create(ctx context.Context, in *HealthCheckResult, actor Actor) (*HealthCheckResult, error) {
	if err := validateNew(in); err != nil {
		return nil, err
	}
	now := s.now()
	rec := &HealthCheckResult{
		ID:               uuid.New(),
		Code:             newCode(now.In(s.loc)),
		PatientID:        in.PatientID,
		PatientName:      strings.TrimSpace(in.PatientName),
		PatientEmail:     cloneStr(in.PatientEmail),
		StaffID:          in.StaffID,
		StaffName:        strings.TrimSpace(in.StaffName),
		CheckupDate:      *truncateDay(&in.CheckupDate),
		Details:          append([]DetailEntry(nil), in.Details...),
		AttachmentURL:    cloneStr(in.AttachmentURL),
		Status:           StatusWaitingForApproval,
		FollowUpRequired: in.FollowUpRequired,
		FollowUpDate:     truncateDay(in.FollowUpDate),
		CreatedBy:        actor.ID,
		UpdatedBy:        actor.ID,
		VersionID:        1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	entry := &HistoryEntry{
		ID:        uuid.New(),
		RecordID:  rec.ID,
		Action:    ActionCreated,
		Timestamp: now,
		ActorID:   actor.ID,
		NewStatus: rec.Status,
		Details:   fmt.Sprintf("created with %d detail entries", len(rec.Details)),
	}
	if err := s.repo.Create(ctx, rec, entry); err != nil {
		return nil, fmt.Errorf("create health check result: %w", err)
	}
	s.metrics.IncTransition("Create", string(rec.Status))
	s.logger.Info().Str("record_id", rec.ID.String()).Str("code", rec.Code).Str("actor", actor.ID).Msg("health check result created")
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*HealthCheckResult, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (*HealthCheckResult, error) {
	return s.repo.GetByCode(ctx, code)
}

// History returns the transition entries of a record, oldest first.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]*HistoryEntry, error) {
	return s.repo.History(ctx, id)
}

// Execute applies cmd to its record. The guard, the mutation and the history
// append commit together or not at all. Side effects run after the commit and
// their failures come back as warnings.
func (s *Service) Execute(ctx context.Context, cmd Command) (*Result, error) {
	rec, err := s.repo.GetByID(ctx, cmd.RecordID)
	if err != nil {
		return nil, err
	}
	next, entry, err := s.machine.Apply(rec, cmd, s.now())
	if err != nil {
		s.metrics.IncRejection(string(cmd.Kind), rejectionReason(err))
		return nil, err
	}
	if err := s.repo.Commit(ctx, next, rec.VersionID, entry); err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			s.metrics.IncRejection(string(cmd.Kind), "conflict")
			return nil, err
		}
		return nil, fmt.Errorf("commit %s: %w", cmd.Kind, err)
	}

	s.metrics.IncTransition(string(cmd.Kind), string(next.Status))
	s.logger.Info().
		Str("record_id", next.ID.String()).
		Str("command", string(cmd.Kind)).
		Str("from", string(entry.PreviousStatus)).
		Str("to", string(entry.NewStatus)).
		Str("actor", cmd.Actor.ID).
		Msg("health check transition committed")

	return &Result{
		Success:        true,
		NewStatus:      next.Status,
		HistoryEntryID: entry.ID,
		Warnings:       s.runSideEffects(ctx, cmd.Kind, next, entry),
		Record:         next,
	}, nil
}

// runSideEffects dispatches the collaborators a committed command triggers.
// The request context may already be cancelled by then, so the calls get a
// detached context with their own deadline.
func (s *Service) runSideEffects(ctx context.Context, kind CommandKind, rec *HealthCheckResult, entry *HistoryEntry) []Warning {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	var (
		mu       sync.Mutex
		warnings = []Warning{}
	)
	warn := func(k WarningKind, err error) {
		mu.Lock()
		warnings = append(warnings, Warning{Kind: k, Message: err.Error()})
		mu.Unlock()
		s.logger.Warn().Err(err).Str("record_id", rec.ID.String()).Str("kind", string(k)).Msg("side effect failed")
	}

	var g errgroup.Group
	if kind == CommandComplete && s.surveys != nil {
		g.Go(func() error {
			err := s.surveys.CreatePostVisitSurvey(ctx, rec)
			switch {
			case errors.Is(err, ErrSurveyInviteFailed):
				s.metrics.IncSideEffect("survey", "ok")
				s.metrics.IncSideEffect("survey_invite", "failed")
				warn(WarningNotificationFailed, err)
				return nil
			case err != nil:
				s.metrics.IncSideEffect("survey", "failed")
				warn(WarningSurveyCreationFailed, err)
				return nil
			}
			s.metrics.IncSideEffect("survey", "ok")
			return nil
		})
	}
	if notifies(kind) && s.notifier != nil {
		g.Go(func() error {
			if strVal(rec.PatientEmail) == "" {
				s.metrics.IncSideEffect("notification", "skipped")
				return nil
			}
			if err := s.notifier.NotifyTransition(ctx, rec, entry); err != nil {
				s.metrics.IncSideEffect("notification", "failed")
				warn(WarningNotificationFailed, err)
				return nil
			}
			s.metrics.IncSideEffect("notification", "ok")
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Kind < warnings[j].Kind })
	return warnings
}

func notifies(kind CommandKind) bool {
	switch kind {
	case CommandApprove, CommandCancelCompletely, CommandCancelForAdjustment, CommandComplete:
		return true
	}
	return false
}

func rejectionReason(err error) string {
	switch {
	case IsValidation(err):
		return "validation"
	case IsInvalidTransition(err):
		return "invalid_transition"
	case errors.Is(err, ErrNotAuthorized):
		return "forbidden"
	}
	return "error"
}

// Search returns the records of a named view that also match q.Criteria, in
// creation order unless SortByFollowUp is set.
func (s *Service) Search(ctx context.Context, q Query) ([]*HealthCheckResult, error) {
	start := time.Now()
	preset, err := Preset(q.View)
	if err != nil {
		return nil, err
	}
	if q.IncludeDeleted && q.View != ViewDeleted {
		preset.Presence = nil
	}
	view := ListView(s.Today())
	criteria := preset.And(q.Criteria)
	if err := view.Validate(criteria); err != nil {
		return nil, invalid("criteria", err.Error())
	}

	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list health check results: %w", err)
	}
	out := filter.Filter(view, records, criteria)
	if q.SortByFollowUp {
		SortByFollowUp(out)
	}
	s.metrics.ObserveQuery("health_check", time.Since(start), len(out))
	return out, nil
}

// FollowUps lists records awaiting follow-up, soonest first. A non-empty
// urgency narrows the list to that class.
func (s *Service) FollowUps(ctx context.Context, urgency Urgency) ([]*HealthCheckResult, error) {
	q := Query{View: ViewFollowUpRequired, SortByFollowUp: true}
	if urgency != UrgencyNone {
		q.Criteria.Membership = []filter.Membership{filter.In(FieldUrgency, string(urgency))}
	}
	return s.Search(ctx, q)
}

// SortByFollowUp orders records by follow-up date ascending; records
// without one go last. The sort is stable.
func SortByFollowUp(recs []*HealthCheckResult) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i].FollowUpDate, recs[j].FollowUpDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Before(*b)
	})
}

func newCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "HC-" + now.Format("20060102") + "-" + suffix
}
