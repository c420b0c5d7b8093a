package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bugtracker-service/internal/models"
)

// BugRepository is the Postgres-backed BugStore.
type BugRepository struct {
	db *gorm.DB
}

// NewBugRepository creates a new BugRepository with the provided GORM connection.
func NewBugRepository(db *gorm.DB) *BugRepository {
	return &BugRepository{db: db}
}

func withAudit(db *gorm.DB) *gorm.DB {
	return db.
		Preload("CreatedBy").
		Preload("UpdatedBy").
		Preload("ClosedBy").
		Preload("ReopenedBy").
		Preload("Notes", func(db *gorm.DB) *gorm.DB { return db.Order("notes.created_at ASC, notes.id ASC") }).
		Preload("Notes.Author")
}

// Create inserts a bug together with its creation event.
func (r *BugRepository) Create(ctx context.Context, bug *models.Bug, event *models.BugEvent) (*models.Bug, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(bug).Error; err != nil {
			return errors.Wrap(err, "insert bug")
		}
		event.BugID = bug.ID
		if err := tx.Omit(clause.Associations).Create(event).Error; err != nil {
			return errors.Wrap(err, "insert bug event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, bug.ID)
}

// GetByID retrieves a bug with its actors and notes.
func (r *BugRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Bug, error) {
	return find(r.db.WithContext(ctx), id)
}

func find(db *gorm.DB, id uuid.UUID) (*models.Bug, error) {
	var bug models.Bug
	err := withAudit(db).First(&bug, "bugs.id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrBugNotFound
		}
		return nil, errors.Wrap(err, "get bug")
	}
	return &bug, nil
}

// List returns the bugs of a project in the requested order.
func (r *BugRepository) List(ctx context.Context, projectID uuid.UUID, sort models.BugSort) ([]models.Bug, error) {
	var bugs []models.Bug
	err := withAudit(r.db.WithContext(ctx)).
		Where("bugs.project_id = ?", projectID).
		Order(sort.OrderClause()).
		Find(&bugs).Error
	if err != nil {
		return nil, errors.Wrap(err, "list bugs")
	}
	return bugs, nil
}

// Mutate locks the bug row, lets fn change it and writes the row and the returned
// event in the same transaction. Concurrent mutations of one bug are serialized.
// The returned record is read back while the lock is still held.
func (r *BugRepository) Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*models.Bug, error) {
	var out *models.Bug
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bug models.Bug
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&bug, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrBugNotFound
			}
			return errors.Wrap(err, "lock bug")
		}

		event, err := fn(&bug)
		if err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Save(&bug).Error; err != nil {
			return errors.Wrap(err, "save bug")
		}
		if event != nil {
			if err := tx.Omit(clause.Associations).Create(event).Error; err != nil {
				return errors.Wrap(err, "insert bug event")
			}
		}
		out, err = find(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Events returns the audit log of a bug, oldest first.
func (r *BugRepository) Events(ctx context.Context, bugID uuid.UUID) ([]models.BugEvent, error) {
	var events []models.BugEvent
	err := r.db.WithContext(ctx).
		Preload("Actor").
		Where("bug_id = ?", bugID).
		Order("at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "list bug events")
	}
	return events, nil
}
