package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"bugtracker-service/internal/models"
)

const (
	AccessDeniedMessage     = "Access is denied."
	InvalidBugIDMessage     = "Invalid bug ID."
	InvalidProjectIDMessage = "Invalid project ID."
	ProjectNotFoundMessage  = "Project not found."
	InvalidBodyMessage      = "Invalid request body."
	InternalErrorMessage    = "Something went wrong."
	ArchiveDisabledMessage  = "History archiving is not configured."
)

func message(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"message": msg})
}

// writeError maps lifecycle errors to the response contract.
func writeError(c *fiber.Ctx, log *zap.SugaredLogger, err error) error {
	var (
		verr  *models.ValidationError
		stErr *models.InvalidStateError
	)
	switch {
	case errors.As(err, &verr):
		return message(c, fiber.StatusBadRequest, verr.Message)
	case errors.Is(err, models.ErrAccessDenied):
		return message(c, fiber.StatusUnauthorized, AccessDeniedMessage)
	case errors.Is(err, models.ErrBugNotFound):
		return message(c, fiber.StatusBadRequest, InvalidBugIDMessage)
	case errors.Is(err, models.ErrProjectNotFound):
		return message(c, fiber.StatusNotFound, ProjectNotFoundMessage)
	case errors.As(err, &stErr):
		return message(c, fiber.StatusBadRequest, stErr.Message)
	default:
		log.Errorw("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return message(c, fiber.StatusInternalServerError, InternalErrorMessage)
	}
}
