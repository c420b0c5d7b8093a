package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"bugtracker-service/internal/middleware"
	"bugtracker-service/internal/models"
)

// BugLifecycle is the engine behind the bug routes.
type BugLifecycle interface {
	CreateBug(ctx context.Context, actor, projectID uuid.UUID, in models.BugInput) (*models.Bug, error)
	UpdateBug(ctx context.Context, actor, projectID, bugID uuid.UUID, in models.BugInput) (*models.Bug, error)
	CloseBug(ctx context.Context, actor, projectID, bugID uuid.UUID) (*models.Bug, error)
	ReopenBug(ctx context.Context, actor, projectID, bugID uuid.UUID) (*models.Bug, error)
	GetBug(ctx context.Context, actor, projectID, bugID uuid.UUID) (*models.Bug, error)
	ListBugs(ctx context.Context, actor, projectID uuid.UUID, sort models.BugSort) ([]models.Bug, error)
	BugHistory(ctx context.Context, actor, projectID, bugID uuid.UUID) ([]models.BugEvent, error)
}

// HistoryArchiver stores snapshots of a bug's audit log.
type HistoryArchiver interface {
	ArchiveHistory(ctx context.Context, actor, projectID, bugID uuid.UUID) (*models.HistoryArchive, error)
}

// BugHandler serves the bug lifecycle routes of a project.
type BugHandler struct {
	bugs     BugLifecycle
	archiver HistoryArchiver
	log      *zap.SugaredLogger
}

// NewBugHandler creates a BugHandler. archiver may be nil when object storage is
// not configured.
func NewBugHandler(bugs BugLifecycle, archiver HistoryArchiver, log *zap.SugaredLogger) *BugHandler {
	return &BugHandler{bugs: bugs, archiver: archiver, log: log.Named("http.bugs")}
}

// Register mounts the routes on r. Callers must install middleware.RequireActor.
func (h *BugHandler) Register(r fiber.Router) {
	bugs := r.Group("/projects/:projectId/bugs")
	bugs.Get("/", h.ListBugs)
	bugs.Post("/", h.CreateBug)
	bugs.Get("/:bugId", h.GetBug)
	bugs.Put("/:bugId", h.UpdateBug)
	bugs.Post("/:bugId/close", h.CloseBug)
	bugs.Post("/:bugId/reopen", h.ReopenBug)
	bugs.Get("/:bugId/history", h.BugHistory)
	bugs.Post("/:bugId/history/archive", h.ArchiveHistory)
}

// CreateBug files a new bug.
// @Summary Create a bug
// @Description File a new open bug in a project. The caller must be a project member.
// @Tags bugs
// @Accept json
// @Produce json
// @Param X-User-ID header string true "Caller identity" Format(uuid)
// @Param projectId path string true "Project ID" Format(uuid)
// @Param bug body models.BugInput true "Bug content"
// @Success 201 {object} models.Bug "Bug created"
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 401 {object} map[string]string "Access is denied"
// @Failure 404 {object} map[string]string "Project not found"
// @Router /projects/{projectId}/bugs [post]
func (h *BugHandler) CreateBug(c *fiber.Ctx) error {
	projectID, ok := h.projectID(c)
	if !ok {
		return message(c, fiber.StatusBadRequest, InvalidProjectIDMessage)
	}
	var in models.BugInput
	if err := c.BodyParser(&in); err != nil {
		h.log.Debugw("invalid bug body", "error", err)
		return message(c, fiber.StatusBadRequest, InvalidBodyMessage)
	}

	bug, err := h.bugs.CreateBug(c.UserContext(), middleware.Actor(c), projectID, in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(bug)
}

// UpdateBug edits a bug's content.
// @Summary Update a bug
// @Description Overwrite title, description and priority. The open/closed state is unchanged.
// @Tags bugs
// @Accept json
// @Produce json
// @Param X-User-ID header string true "Caller identity" Format(uuid)
// @Param projectId path string true "Project ID" Format(uuid)
// @Param bugId path string true "Bug ID" Format(uuid)
// @Param bug body models.BugInput true "Bug content"
// @Success 200 {object} models.Bug "Updated bug"
// @Failure 400 {object} map[string]string "Validation error or invalid bug ID"
// @Failure 401 {object} map[string]string "Access is denied"
// @Router /projects/{projectId}/bugs/{bugId} [put]
func (h *BugHandler) UpdateBug(c *fiber.Ctx) error {
	projectID, bugID, status, msg := h.ids(c)
	if status != 0 {
		return message(c, status, msg)
	}
	var in models.BugInput
	if err := c.BodyParser(&in); err != nil {
		h.log.Debugw("invalid bug body", "error", err)
		return message(c, fiber.StatusBadRequest, InvalidBodyMessage)
	}

	bug, err := h.bugs.UpdateBug(c.UserContext(), middleware.Actor(c), projectID, bugID, in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(bug)
}

// CloseBug marks a bug as resolved.
// @Summary Close a bug
// @Tags bugs
// @Produce json
// @Param X-User-ID header string true "Caller identity" Format(uuid)
// @Param projectId path string true "Project ID" Format(uuid)
// @Param bugId path string true "Bug ID" Format(uuid)
// @Success 201 {object} models.Bug "Closed bug"
// @Failure 400 {object} map[string]string "Invalid bug ID or already closed"
// @Failure 401 {object} map[string]string "Access is denied"
// @Failure 404 {object} map[string]string "Project not found"
// @Router /projects/{projectId}/bugs/{bugId}/close [post]
func (h *BugHandler) CloseBug(c *fiber.Ctx) error {
	projectID, bugID, status, msg := h.ids(c)
	if status != 0 {
		return message(c, status, msg)
	}
	bug, err := h.bugs.CloseBug(c.UserContext(), middleware.Actor(c), projectID, bugID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(bug)
}

// ReopenBug marks a closed bug as open again.
// @Summary Reopen a bug
// @Tags bugs
// @Produce json
// @Param X-User-ID header string true "Caller identity" Format(uuid)
// @Param projectId path string true "Project ID" Format(uuid)
// @Param bugId path string true "Bug ID" Format(uuid)
// @Success 201 {object} models.Bug "Reopened bug"
// @Failure 400 {object} map[string]string "Invalid bug ID or already opened"
// @Failure 401 {object} map[string]string "Access is denied"
// @Failure 404 {object} map[string]string "Project not found"
// @Router /projects/{projectId}/bugs/{bugId}/reopen [post]
func (h *BugHandler) ReopenBug(c *fiber.Ctx) error {
	projectID, bugID, status, msg := h.ids(c)
	if status != 0 {
		return message(c, status, msg)
	}
	bug, err := h.bugs.ReopenBug(c.UserContext(), middleware.Actor(c), projectID, bugID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(bug)
}

// GetBug returns a single bug.
// @Summary Get a bug
// @Tags bugs
// @Produce json
// @Param X-User-ID header string true "Caller identity" Format(uuid)
// @Param projectId path string true "Project ID" Format(uuid)
// @Param bugId path string true "Bug ID" Format(uuid)
// @Success 200 {object} models.Bug "Bug"
// @Failure 400 {object} map[string]string "Invalid bug ID"
// @Failure 401 {object} map[string]string "Access is denied"
// @Router /projects/{projectId}/bugs/{bugId} [get]
func (h *BugHandler) GetBug(c *fiber.Ctx) error {
	projectID, bugID, status, msg := h.ids(c)
	if status != 0 {
		return message(c, status, msg)
	}
	bug, err := h.bugs.GetBug(c.UserContext(), middleware.Actor(c), projectID, bugID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(bug)
}

// ListBugs returns the bugs of a project.
// @Summary List bugs
// @Tags bugs
// @Produce json
// @Param X-User-ID header string true "Caller identity" Format(uuid)
// @Param projectId path string true "Project ID" Format(uuid)
// @Param sort query string false "newest, oldest, a-z, z-a, closed, reopened, updated, most-notes, least-notes"
// @Success 200 {array} models.Bug "Bugs"
// @Failure 400 {object} map[string]string "Invalid sort"
// @Failure 401 {object} map[string]string "Access is denied"
// @Failure 404 {object} map[string]string "Project not found"
// @Router /projects/{projectId}/bugs [get]
func (h *BugHandler) ListBugs(c *fiber.Ctx) error {
	projectID, ok := h.projectID(c)
	if !ok {
		return message(c, fiber.StatusBadRequest, InvalidProjectIDMessage)
	}
	bugs, err := h.bugs.ListBugs(c.UserContext(), middleware.Actor(c), projectID, models.BugSort(c.Query("sort")))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(bugs)
}

// BugHistory returns a bug's audit log.
// @Summary Bug history
// @Tags bugs
// @Produce json
// @Param X-User-ID header string true "Caller identity" Format(uuid)
// @Param projectId path string true "Project ID" Format(uuid)
// @Param bugId path string true "Bug ID" Format(uuid)
// @Success 200 {array} models.BugEvent "Events, oldest first"
// @Failure 400 {object} map[string]string "Invalid bug ID"
// @Failure 401 {object} map[string]string "Access is denied"
// @Router /projects/{projectId}/bugs/{bugId}/history [get]
func (h *BugHandler) BugHistory(c *fiber.Ctx) error {
	projectID, bugID, status, msg := h.ids(c)
	if status != 0 {
		return message(c, status, msg)
	}
	events, err := h.bugs.BugHistory(c.UserContext(), middleware.Actor(c), projectID, bugID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(events)
}

// ArchiveHistory uploads a snapshot of a bug's audit log to object storage.
// @Summary Archive bug history
// @Tags bugs
// @Produce json
// @Param X-User-ID header string true "Caller identity" Format(uuid)
// @Param projectId path string true "Project ID" Format(uuid)
// @Param bugId path string true "Bug ID" Format(uuid)
// @Success 201 {object} models.HistoryArchive "Stored archive"
// @Failure 400 {object} map[string]string "Invalid bug ID"
// @Failure 401 {object} map[string]string "Access is denied"
// @Failure 503 {object} map[string]string "Object storage not configured"
// @Router /projects/{projectId}/bugs/{bugId}/history/archive [post]
func (h *BugHandler) ArchiveHistory(c *fiber.Ctx) error {
	if h.archiver == nil {
		return message(c, fiber.StatusServiceUnavailable, ArchiveDisabledMessage)
	}
	projectID, bugID, status, msg := h.ids(c)
	if status != 0 {
		return message(c, status, msg)
	}
	archive, err := h.archiver.ArchiveHistory(c.UserContext(), middleware.Actor(c), projectID, bugID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(archive)
}

func (h *BugHandler) projectID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("projectId"))
	if err != nil {
		h.log.Debugw("invalid project UUID", "value", c.Params("projectId"), "error", err)
		return uuid.Nil, false
	}
	return id, true
}

// ids parses both path ids; a non-zero status means the request must be rejected.
func (h *BugHandler) ids(c *fiber.Ctx) (projectID, bugID uuid.UUID, status int, msg string) {
	projectID, ok := h.projectID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, fiber.StatusBadRequest, InvalidProjectIDMessage
	}
	bugID, err := uuid.Parse(c.Params("bugId"))
	if err != nil {
		h.log.Debugw("invalid bug UUID", "value", c.Params("bugId"), "error", err)
		return uuid.Nil, uuid.Nil, fiber.StatusBadRequest, InvalidBugIDMessage
	}
	return projectID, bugID, 0, ""
}
