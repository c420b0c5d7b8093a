package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bugtracker-service/internal/metrics"
	"bugtracker-service/internal/models"
	"bugtracker-service/internal/repository"
	"bugtracker-service/internal/services/cache"
)

const (
	msgAlreadyClosed = "Bug is already marked as closed."
	msgAlreadyOpened = "Bug is already marked as opened."
)

// BugService is the bug lifecycle engine. Every operation goes through the access
// gate; mutations run inside BugStore.Mutate so the precondition check and the
// write are atomic per bug.
type BugService struct {
	bugs    repository.BugStore
	gate    *AccessGate
	cache   cache.BugCache
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
	now     func() time.Time
	newID   func() uuid.UUID
}

// Option configures a BugService.
type Option func(*BugService)

// WithCache enables read caching of bug records.
func WithCache(c cache.BugCache) Option {
	return func(s *BugService) { s.cache = c }
}

// WithMetrics records operation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *BugService) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *BugService) { s.now = now }
}

// WithIDGenerator overrides how new bug ids are made.
func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(s *BugService) { s.newID = newID }
}

// NewBugService creates the lifecycle engine.
func NewBugService(bugs repository.BugStore, gate *AccessGate, log *zap.SugaredLogger, opts ...Option) *BugService {
	s := &BugService{
		bugs:  bugs,
		gate:  gate,
		log:   log.Named("service.bugs"),
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newID: uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBug files a new open bug in projectID on behalf of actor.
func (s *BugService) CreateBug(ctx context.Context, actor, projectID uuid.UUID, in models.BugInput) (_ *models.Bug, err error) {
	defer s.observe("create", time.Now(), &err)

	if err = s.gate.Authorize(ctx, actor, projectID); err != nil {
		return nil, err
	}
	in, err = ValidateBugInput(in)
	if err != nil {
		return nil, err
	}

	at := s.now()
	bug := &models.Bug{
		ID:          s.newID(),
		ProjectID:   projectID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		CreatedByID: actor,
		CreatedAt:   at,
	}
	event := models.NewBugEvent(models.EventCreated, bug, actor, at)

	created, err := s.bugs.Create(ctx, bug, &event)
	if err != nil {
		return nil, err
	}
	s.log.Infow("bug created", "bug_id", created.ID, "project_id", projectID, "actor", actor)
	return created, nil
}

// UpdateBug overwrites the content of a bug; its open/closed state is unchanged.
func (s *BugService) UpdateBug(ctx context.Context, actor, projectID, bugID uuid.UUID, in models.BugInput) (_ *models.Bug, err error) {
	defer s.observe("update", time.Now(), &err)

	if err = s.gate.Authorize(ctx, actor, projectID); err != nil {
		return nil, err
	}
	in, err = ValidateBugInput(in)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, projectID, bugID, models.EventUpdated, func(bug *models.Bug, at time.Time) error {
		bug.ApplyContent(in, actor, at)
		return nil
	})
}

// CloseBug resolves an open bug.
func (s *BugService) CloseBug(ctx context.Context, actor, projectID, bugID uuid.UUID) (_ *models.Bug, err error) {
	defer s.observe("close", time.Now(), &err)

	if err = s.gate.Authorize(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, projectID, bugID, models.EventClosed, func(bug *models.Bug, at time.Time) error {
		if bug.IsResolved {
			return &models.InvalidStateError{Message: msgAlreadyClosed}
		}
		bug.MarkClosed(actor, at)
		return nil
	})
}

// ReopenBug unresolves a closed bug.
func (s *BugService) ReopenBug(ctx context.Context, actor, projectID, bugID uuid.UUID) (_ *models.Bug, err error) {
	defer s.observe("reopen", time.Now(), &err)

	if err = s.gate.Authorize(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, projectID, bugID, models.EventReopened, func(bug *models.Bug, at time.Time) error {
		if !bug.IsResolved {
			return &models.InvalidStateError{Message: msgAlreadyOpened}
		}
		bug.MarkReopened(actor, at)
		return nil
	})
}

// GetBug returns one bug of the project, served from the cache when possible.
func (s *BugService) GetBug(ctx context.Context, actor, projectID, bugID uuid.UUID) (_ *models.Bug, err error) {
	defer s.observe("get", time.Now(), &err)

	if err = s.gate.Authorize(ctx, actor, projectID); err != nil {
		return nil, err
	}

	if bug, ok := s.cached(ctx, bugID); ok {
		if bug.ProjectID != projectID {
			return nil, models.ErrBugNotFound
		}
		return bug, nil
	}

	bug, err := s.bugs.GetByID(ctx, bugID)
	if err != nil {
		return nil, err
	}
	if bug.ProjectID != projectID {
		return nil, models.ErrBugNotFound
	}
	s.remember(ctx, bug)
	return bug, nil
}

// ListBugs returns the project's bugs in the requested order. sort is checked
// after authorization; an empty value means newest first.
func (s *BugService) ListBugs(ctx context.Context, actor, projectID uuid.UUID, sort models.BugSort) (_ []models.Bug, err error) {
	defer s.observe("list", time.Now(), &err)

	if err = s.gate.Authorize(ctx, actor, projectID); err != nil {
		return nil, err
	}
	sort, err = models.ParseBugSort(string(sort))
	if err != nil {
		return nil, err
	}
	return s.bugs.List(ctx, projectID, sort)
}

// BugHistory returns the append-only audit log of a bug.
func (s *BugService) BugHistory(ctx context.Context, actor, projectID, bugID uuid.UUID) (_ []models.BugEvent, err error) {
	defer s.observe("history", time.Now(), &err)

	if err = s.gate.Authorize(ctx, actor, projectID); err != nil {
		return nil, err
	}
	bug, err := s.bugs.GetByID(ctx, bugID)
	if err != nil {
		return nil, err
	}
	if bug.ProjectID != projectID {
		return nil, models.ErrBugNotFound
	}
	return s.bugs.Events(ctx, bugID)
}

type transition func(bug *models.Bug, at time.Time) error

// mutate applies fn to the locked bug and appends a kind event for actor. A bug
// from another project is reported as missing. The stamp never goes back in time
// relative to the bug's own history.
func (s *BugService) mutate(ctx context.Context, actor, projectID, bugID uuid.UUID, kind models.EventKind, fn transition) (*models.Bug, error) {
	bug, err := s.bugs.Mutate(ctx, bugID, func(bug *models.Bug) (*models.BugEvent, error) {
		if bug.ProjectID != projectID {
			return nil, models.ErrBugNotFound
		}
		at := s.now()
		if last := bug.LastTouched(); at.Before(last) {
			at = last
		}
		if err := fn(bug, at); err != nil {
			return nil, err
		}
		event := models.NewBugEvent(kind, bug, actor, at)
		return &event, nil
	})
	if err != nil {
		return nil, err
	}

	s.forget(ctx, bugID)
	s.log.Infow("bug "+string(kind), "bug_id", bugID, "project_id", projectID, "actor", actor)
	return bug, nil
}

func (s *BugService) cached(ctx context.Context, id uuid.UUID) (*models.Bug, bool) {
	if s.cache == nil {
		return nil, false
	}
	bug, ok, err := s.cache.Get(ctx, id)
	if err != nil {
		s.log.Warnw("bug cache read failed", "layer", s.cache.Name(), "bug_id", id, "error", err)
		return nil, false
	}
	if ok {
		s.metrics.CacheHit()
	} else {
		s.metrics.CacheMiss()
	}
	return bug, ok
}

func (s *BugService) remember(ctx context.Context, bug *models.Bug) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Store(ctx, bug); err != nil {
		s.log.Warnw("bug cache write failed", "layer", s.cache.Name(), "bug_id", bug.ID, "error", err)
	}
}

func (s *BugService) forget(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.log.Warnw("bug cache invalidation failed", "layer", s.cache.Name(), "bug_id", id, "error", err)
	}
}

func (s *BugService) observe(operation string, start time.Time, errp *error) {
	outcome := metrics.OutcomeOK
	if err := *errp; err != nil {
		switch {
		case errors.Is(err, models.ErrValidation):
			outcome = metrics.OutcomeValidation
		case errors.Is(err, models.ErrAccessDenied):
			outcome = metrics.OutcomeDenied
		case errors.Is(err, models.ErrBugNotFound), errors.Is(err, models.ErrProjectNotFound):
			outcome = metrics.OutcomeNotFound
		case errors.Is(err, models.ErrInvalidState):
			outcome = metrics.OutcomeInvalidState
		default:
			outcome = metrics.OutcomeError
			s.log.Errorw("bug operation failed", "operation", operation, "error", err)
		}
	}
	s.metrics.ObserveOperation(operation, outcome, time.Since(start))
}
