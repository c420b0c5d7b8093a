package repository

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"bugtracker-service/internal/config"
	"bugtracker-service/internal/models"
)

func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_USER=postgres",
			"POSTGRES_DB=bugtracker",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })

	port, err := strconv.Atoi(resource.GetPort("5432/tcp"))
	require.NoError(t, err)

	cfg := &config.Config{Postgres: config.PostgresConfig{
		Host:     "localhost",
		Port:     port,
		User:     "postgres",
		Password: "postgres",
		DBName:   "bugtracker",
		SSLMode:  "disable",
	}}

	var db *gorm.DB
	require.NoError(t, pool.Retry(func() error {
		db, err = config.ConnectDatabase(cfg)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	}))
	require.NoError(t, AutoMigrate(db))
	return db
}

type fixture struct {
	alice, bob models.User
	project    models.Project
}

func seed(t *testing.T, db *gorm.DB, members *MemberRepository) fixture {
	t.Helper()
	ctx := context.Background()

	f := fixture{
		alice: models.User{ID: uuid.New(), Username: "alice"},
		bob:   models.User{ID: uuid.New(), Username: "bob"},
	}
	require.NoError(t, db.Create(&f.alice).Error)
	require.NoError(t, db.Create(&f.bob).Error)

	f.project = models.Project{ID: uuid.New(), Name: "tracker", CreatedByID: f.alice.ID}
	require.NoError(t, db.Omit("CreatedBy", "Members", "Bugs").Create(&f.project).Error)
	require.NoError(t, members.AddMember(ctx, f.project.ID, f.alice.ID))
	require.NoError(t, members.AddMember(ctx, f.project.ID, f.bob.ID))
	return f
}

func closeFn(actor uuid.UUID, at time.Time) MutateFunc {
	return func(bug *models.Bug) (*models.BugEvent, error) {
		if bug.IsResolved {
			return nil, &models.InvalidStateError{Message: "Bug is already marked as closed."}
		}
		bug.MarkClosed(actor, at)
		return models.NewBugEvent(models.EventClosed, bug, actor, at), nil
	}
}

func TestRepositoryIntegration(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	members := NewMemberRepository(db)
	bugs := NewBugRepository(db)
	f := seed(t, db, members)

	ids, err := members.MembersOf(ctx, f.project.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []uuid.UUID{f.alice.ID, f.bob.ID}, ids)

	require.NoError(t, members.AddMember(ctx, f.project.ID, f.bob.ID))
	require.NoError(t, members.RemoveMember(ctx, f.project.ID, f.bob.ID))
	ids, err = members.MembersOf(ctx, f.project.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{f.alice.ID}, ids)

	_, err = members.MembersOf(ctx, uuid.New())
	require.ErrorIs(t, err, models.ErrProjectNotFound)

	created := time.Now().UTC().Truncate(time.Microsecond)
	bug := &models.Bug{
		ID:          uuid.New(),
		ProjectID:   f.project.ID,
		Title:       "Crash",
		Description: "Crashes on save",
		Priority:    models.PriorityHigh,
		CreatedByID: f.alice.ID,
		CreatedAt:   created,
	}
	saved, err := bugs.Create(ctx, bug, models.NewBugEvent(models.EventCreated, bug, f.alice.ID, created))
	require.NoError(t, err)
	require.False(t, saved.IsResolved)
	require.NotNil(t, saved.CreatedBy)
	require.Equal(t, "alice", saved.CreatedBy.Username)
	require.Nil(t, saved.ClosedAt)

	closedAt := created.Add(time.Second)
	closed, err := bugs.Mutate(ctx, bug.ID, closeFn(f.alice.ID, closedAt))
	require.NoError(t, err)
	require.True(t, closed.IsResolved)
	require.NotNil(t, closed.ClosedBy)
	require.Equal(t, f.alice.ID, closed.ClosedBy.ID)
	require.True(t, closedAt.Equal(*closed.ClosedAt))

	_, err = bugs.Mutate(ctx, bug.ID, closeFn(f.alice.ID, closedAt))
	require.ErrorIs(t, err, models.ErrInvalidState)

	events, err := bugs.Events(ctx, bug.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, models.EventCreated, events[0].Kind)
	require.Equal(t, models.EventClosed, events[1].Kind)
	require.Equal(t, "alice", events[1].Actor.Username)

	_, err = bugs.GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, models.ErrBugNotFound)
	_, err = bugs.Mutate(ctx, uuid.New(), closeFn(f.alice.ID, closedAt))
	require.ErrorIs(t, err, models.ErrBugNotFound)
}

func TestConcurrentCloseIntegration(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	members := NewMemberRepository(db)
	bugs := NewBugRepository(db)
	f := seed(t, db, members)

	now := time.Now().UTC().Truncate(time.Microsecond)
	bug := &models.Bug{
		ID:          uuid.New(),
		ProjectID:   f.project.ID,
		Title:       "Race",
		Description: "Two closers",
		Priority:    models.PriorityLow,
		CreatedByID: f.alice.ID,
		CreatedAt:   now,
	}
	_, err := bugs.Create(ctx, bug, models.NewBugEvent(models.EventCreated, bug, f.alice.ID, now))
	require.NoError(t, err)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = bugs.Mutate(ctx, bug.ID, closeFn(f.bob.ID, now.Add(time.Second)))
		}()
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, models.ErrInvalidState):
			rejected++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, workers-1, rejected)

	events, err := bugs.Events(ctx, bug.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestListSortIntegration(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	members := NewMemberRepository(db)
	bugs := NewBugRepository(db)
	f := seed(t, db, members)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, title := range []string{"beta", "alpha", "gamma"} {
		at := base.Add(time.Duration(i) * time.Second)
		bug := &models.Bug{
			ID:          uuid.New(),
			ProjectID:   f.project.ID,
			Title:       title,
			Description: "d",
			Priority:    models.PriorityMedium,
			CreatedByID: f.alice.ID,
			CreatedAt:   at,
		}
		_, err := bugs.Create(ctx, bug, models.NewBugEvent(models.EventCreated, bug, f.alice.ID, at))
		require.NoError(t, err)
	}

	titles := func(sort models.BugSort) []string {
		list, err := bugs.List(ctx, f.project.ID, sort)
		require.NoError(t, err)
		out := make([]string, 0, len(list))
		for _, b := range list {
			out = append(out, b.Title)
		}
		return out
	}
	require.Equal(t, []string{"gamma", "alpha", "beta"}, titles(models.SortNewest))
	require.Equal(t, []string{"beta", "alpha", "gamma"}, titles(models.SortOldest))
	require.Equal(t, []string{"alpha", "beta", "gamma"}, titles(models.SortAZ))
	require.Equal(t, []string{"gamma", "beta", "alpha"}, titles(models.SortZA))
}

func TestMutateReturnsRecordItWrote(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	members := NewMemberRepository(db)
	bugs := NewBugRepository(db)
	f := seed(t, db, members)

	now := time.Now().UTC().Truncate(time.Microsecond)
	bug := &models.Bug{
		ID:          uuid.New(),
		ProjectID:   f.project.ID,
		Title:       "Flip",
		Description: "Closed and reopened at once",
		Priority:    models.PriorityLow,
		CreatedByID: f.alice.ID,
		CreatedAt:   now,
	}
	_, err := bugs.Create(ctx, bug, models.NewBugEvent(models.EventCreated, bug, f.alice.ID, now))
	require.NoError(t, err)

	const workers = 16
	wrote := make([]bool, workers)
	got := make([]*models.Bug, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			at := now.Add(time.Duration(i+1) * time.Millisecond)
			got[i], errs[i] = bugs.Mutate(ctx, bug.ID, func(b *models.Bug) (*models.BugEvent, error) {
				kind := models.EventClosed
				if b.IsResolved {
					b.MarkReopened(f.bob.ID, at)
					kind = models.EventReopened
				} else {
					b.MarkClosed(f.bob.ID, at)
				}
				wrote[i] = b.IsResolved
				return models.NewBugEvent(kind, b, f.bob.ID, at), nil
			})
		}()
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		require.Equal(t, wrote[i], got[i].IsResolved)
		if wrote[i] {
			require.NotNil(t, got[i].ClosedBy)
			require.Nil(t, got[i].ReopenedAt)
		} else {
			require.NotNil(t, got[i].ReopenedBy)
			require.Nil(t, got[i].ClosedAt)
		}
	}
}
