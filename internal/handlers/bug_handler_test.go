package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bugtracker-service/internal/middleware"
	"bugtracker-service/internal/models"
)

type lifecycleMock struct {
	mock.Mock
}

func (m *lifecycleMock) CreateBug(ctx context.Context, actor, projectID uuid.UUID, in models.BugInput) (*models.Bug, error) {
	args := m.Called(ctx, actor, projectID, in)
	bug, _ := args.Get(0).(*models.Bug)
	return bug, args.Error(1)
}

func (m *lifecycleMock) UpdateBug(ctx context.Context, actor, projectID, bugID uuid.UUID, in models.BugInput) (*models.Bug, error) {
	args := m.Called(ctx, actor, projectID, bugID, in)
	bug, _ := args.Get(0).(*models.Bug)
	return bug, args.Error(1)
}

func (m *lifecycleMock) CloseBug(ctx context.Context, actor, projectID, bugID uuid.UUID) (*models.Bug, error) {
	args := m.Called(ctx, actor, projectID, bugID)
	bug, _ := args.Get(0).(*models.Bug)
	return bug, args.Error(1)
}

func (m *lifecycleMock) ReopenBug(ctx context.Context, actor, projectID, bugID uuid.UUID) (*models.Bug, error) {
	args := m.Called(ctx, actor, projectID, bugID)
	bug, _ := args.Get(0).(*models.Bug)
	return bug, args.Error(1)
}

func (m *lifecycleMock) GetBug(ctx context.Context, actor, projectID, bugID uuid.UUID) (*models.Bug, error) {
	args := m.Called(ctx, actor, projectID, bugID)
	bug, _ := args.Get(0).(*models.Bug)
	return bug, args.Error(1)
}

func (m *lifecycleMock) ListBugs(ctx context.Context, actor, projectID uuid.UUID, sort models.BugSort) ([]models.Bug, error) {
	args := m.Called(ctx, actor, projectID, sort)
	bugs, _ := args.Get(0).([]models.Bug)
	return bugs, args.Error(1)
}

func (m *lifecycleMock) BugHistory(ctx context.Context, actor, projectID, bugID uuid.UUID) ([]models.BugEvent, error) {
	args := m.Called(ctx, actor, projectID, bugID)
	events, _ := args.Get(0).([]models.BugEvent)
	return events, args.Error(1)
}

type archiverMock struct {
	mock.Mock
}

func (m *archiverMock) ArchiveHistory(ctx context.Context, actor, projectID, bugID uuid.UUID) (*models.HistoryArchive, error) {
	args := m.Called(ctx, actor, projectID, bugID)
	a, _ := args.Get(0).(*models.HistoryArchive)
	return a, args.Error(1)
}

func newTestApp(bugs BugLifecycle, archiver HistoryArchiver) *fiber.App {
	app := fiber.New()
	api := app.Group("/api", middleware.RequireActor())
	NewBugHandler(bugs, archiver, zap.NewNop().Sugar()).Register(api)
	return app
}

func do(t *testing.T, app *fiber.App, method, path string, actor uuid.UUID, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if actor != uuid.Nil {
		req.Header.Set(middleware.HeaderUserID, actor.String())
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func sampleBug(projectID uuid.UUID) *models.Bug {
	return &models.Bug{
		ID:          uuid.New(),
		ProjectID:   projectID,
		Title:       "Crash",
		Description: "Crashes on save",
		Priority:    models.PriorityHigh,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestCreateBug(t *testing.T) {
	svc := &lifecycleMock{}
	app := newTestApp(svc, nil)
	actor, project := uuid.New(), uuid.New()
	bug := sampleBug(project)

	in := models.BugInput{Title: "Crash", Description: "Crashes on save", Priority: models.PriorityHigh}
	svc.On("CreateBug", mock.Anything, actor, project, in).Return(bug, nil).Once()

	status, body := do(t, app, http.MethodPost, "/api/projects/"+project.String()+"/bugs", actor,
		`{"title":"Crash","description":"Crashes on save","priority":"high"}`)
	require.Equal(t, fiber.StatusCreated, status)
	require.Equal(t, bug.ID.String(), body["id"])
	require.Equal(t, false, body["isResolved"])
	svc.AssertExpectations(t)
}

func TestMissingActorIsDenied(t *testing.T) {
	svc := &lifecycleMock{}
	app := newTestApp(svc, nil)

	status, body := do(t, app, http.MethodPost, "/api/projects/"+uuid.NewString()+"/bugs/"+uuid.NewString()+"/close", uuid.Nil, "")
	require.Equal(t, fiber.StatusUnauthorized, status)
	require.Equal(t, AccessDeniedMessage, body["message"])
	svc.AssertNotCalled(t, "CloseBug", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMalformedIDs(t *testing.T) {
	svc := &lifecycleMock{}
	app := newTestApp(svc, nil)
	actor := uuid.New()

	status, body := do(t, app, http.MethodPost, "/api/projects/not-a-uuid/bugs/"+uuid.NewString()+"/close", actor, "")
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, InvalidProjectIDMessage, body["message"])

	status, body = do(t, app, http.MethodPost, "/api/projects/"+uuid.NewString()+"/bugs/nope/reopen", actor, "")
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, InvalidBugIDMessage, body["message"])
}

func TestInvalidBody(t *testing.T) {
	svc := &lifecycleMock{}
	app := newTestApp(svc, nil)

	status, body := do(t, app, http.MethodPut, "/api/projects/"+uuid.NewString()+"/bugs/"+uuid.NewString(), uuid.New(), `{"title":`)
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, InvalidBodyMessage, body["message"])
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", &models.ValidationError{Field: "title", Message: "Title field must not be empty."}, fiber.StatusBadRequest, "Title field must not be empty."},
		{"denied", fmt.Errorf("%w: not a member", models.ErrAccessDenied), fiber.StatusUnauthorized, AccessDeniedMessage},
		{"bug not found", models.ErrBugNotFound, fiber.StatusBadRequest, InvalidBugIDMessage},
		{"project not found", models.ErrProjectNotFound, fiber.StatusNotFound, ProjectNotFoundMessage},
		{"already closed", &models.InvalidStateError{Message: "Bug is already marked as closed."}, fiber.StatusBadRequest, "Bug is already marked as closed."},
		{"unexpected", errors.New("connection reset"), fiber.StatusInternalServerError, InternalErrorMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &lifecycleMock{}
			app := newTestApp(svc, nil)
			actor, project, bugID := uuid.New(), uuid.New(), uuid.New()
			svc.On("CloseBug", mock.Anything, actor, project, bugID).Return(nil, tc.err).Once()

			status, body := do(t, app, http.MethodPost, "/api/projects/"+project.String()+"/bugs/"+bugID.String()+"/close", actor, "")
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.message, body["message"])
		})
	}
}

func TestCloseAndReopenReturnCreated(t *testing.T) {
	svc := &lifecycleMock{}
	app := newTestApp(svc, nil)
	actor, project := uuid.New(), uuid.New()
	bug := sampleBug(project)
	base := "/api/projects/" + project.String() + "/bugs/" + bug.ID.String()

	closed := *bug
	closed.IsResolved = true
	svc.On("CloseBug", mock.Anything, actor, project, bug.ID).Return(&closed, nil).Once()
	svc.On("ReopenBug", mock.Anything, actor, project, bug.ID).Return(bug, nil).Once()

	status, body := do(t, app, http.MethodPost, base+"/close", actor, "")
	require.Equal(t, fiber.StatusCreated, status)
	require.Equal(t, true, body["isResolved"])

	status, body = do(t, app, http.MethodPost, base+"/reopen", actor, "")
	require.Equal(t, fiber.StatusCreated, status)
	require.Equal(t, false, body["isResolved"])
	svc.AssertExpectations(t)
}

func TestUpdateAndGet(t *testing.T) {
	svc := &lifecycleMock{}
	app := newTestApp(svc, nil)
	actor, project := uuid.New(), uuid.New()
	bug := sampleBug(project)
	base := "/api/projects/" + project.String() + "/bugs/" + bug.ID.String()

	in := models.BugInput{Title: "New", Description: "Desc", Priority: models.PriorityLow}
	svc.On("UpdateBug", mock.Anything, actor, project, bug.ID, in).Return(bug, nil).Once()
	svc.On("GetBug", mock.Anything, actor, project, bug.ID).Return(bug, nil).Once()

	status, _ := do(t, app, http.MethodPut, base, actor, `{"title":"New","description":"Desc","priority":"low"}`)
	require.Equal(t, fiber.StatusOK, status)

	status, body := do(t, app, http.MethodGet, base, actor, "")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "Crash", body["title"])
	svc.AssertExpectations(t)
}

func TestListBugsSort(t *testing.T) {
	svc := &lifecycleMock{}
	app := newTestApp(svc, nil)
	actor, project := uuid.New(), uuid.New()

	svc.On("ListBugs", mock.Anything, actor, project, models.SortOldest).Return([]models.Bug{*sampleBug(project)}, nil).Once()

	status, _ := do(t, app, http.MethodGet, "/api/projects/"+project.String()+"/bugs?sort=oldest", actor, "")
	require.Equal(t, fiber.StatusOK, status)

	_, sortErr := models.ParseBugSort("sideways")
	svc.On("ListBugs", mock.Anything, actor, project, models.BugSort("sideways")).Return(nil, sortErr).Once()
	status, body := do(t, app, http.MethodGet, "/api/projects/"+project.String()+"/bugs?sort=sideways", actor, "")
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Contains(t, body["message"], "sideways")
	svc.AssertExpectations(t)
}

func TestListBugsNonMemberWithBadSortIsDenied(t *testing.T) {
	svc := &lifecycleMock{}
	app := newTestApp(svc, nil)
	actor, project := uuid.New(), uuid.New()

	svc.On("ListBugs", mock.Anything, actor, project, models.BugSort("sideways")).
		Return(nil, fmt.Errorf("%w: not a member", models.ErrAccessDenied)).Once()
	status, body := do(t, app, http.MethodGet, "/api/projects/"+project.String()+"/bugs?sort=sideways", actor, "")
	require.Equal(t, fiber.StatusUnauthorized, status)
	require.Equal(t, AccessDeniedMessage, body["message"])
	svc.AssertExpectations(t)
}

func TestArchiveHistory(t *testing.T) {
	actor, project, bugID := uuid.New(), uuid.New(), uuid.New()
	path := "/api/projects/" + project.String() + "/bugs/" + bugID.String() + "/history/archive"

	status, body := do(t, newTestApp(&lifecycleMock{}, nil), http.MethodPost, path, actor, "")
	require.Equal(t, fiber.StatusServiceUnavailable, status)
	require.Equal(t, ArchiveDisabledMessage, body["message"])

	arch := &archiverMock{}
	arch.On("ArchiveHistory", mock.Anything, actor, project, bugID).
		Return(&models.HistoryArchive{Key: "history/x.json.gz", Size: 42}, nil).Once()
	status, body = do(t, newTestApp(&lifecycleMock{}, arch), http.MethodPost, path, actor, "")
	require.Equal(t, fiber.StatusCreated, status)
	require.Equal(t, "history/x.json.gz", body["key"])
	arch.AssertExpectations(t)
}
