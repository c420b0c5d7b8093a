package services

import (
	"strings"

	"bugtracker-service/internal/models"
)

const (
	msgEmptyTitle       = "Title field must not be empty."
	msgEmptyDescription = "Description field must not be empty."
	msgBadPriority      = "Priority can only be - low, medium or high."
)

// ValidateBugInput checks title, then description, then priority, and reports the
// first failure. The returned input has title and description trimmed.
func ValidateBugInput(in models.BugInput) (models.BugInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	switch {
	case in.Title == "":
		return in, &models.ValidationError{Field: "title", Message: msgEmptyTitle}
	case in.Description == "":
		return in, &models.ValidationError{Field: "description", Message: msgEmptyDescription}
	case !in.Priority.Valid():
		return in, &models.ValidationError{Field: "priority", Message: msgBadPriority}
	}
	return in, nil
}
