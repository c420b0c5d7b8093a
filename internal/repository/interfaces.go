// Package repository persists bugs and resolves project membership with GORM.
package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bugtracker-service/internal/models"
)

// MutateFunc applies a transition to a locked bug and returns the audit event to
// append. Returning an error aborts the transaction without writing anything.
type MutateFunc func(bug *models.Bug) (*models.BugEvent, error)

// BugStore holds bug records and their audit log.
type BugStore interface {
	Create(ctx context.Context, bug *models.Bug, event *models.BugEvent) (*models.Bug, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bug, error)
	List(ctx context.Context, projectID uuid.UUID, sort models.BugSort) ([]models.Bug, error)
	Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*models.Bug, error)
	Events(ctx context.Context, bugID uuid.UUID) ([]models.BugEvent, error)
}

// MembershipResolver returns the identities allowed to act on a project's bugs.
type MembershipResolver interface {
	MembersOf(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error)
}

// AutoMigrate creates or updates the tables backing the repositories.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.ProjectMember{},
		&models.Bug{},
		&models.Note{},
		&models.BugEvent{},
	)
}
