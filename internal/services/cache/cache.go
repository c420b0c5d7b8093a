// Package cache defines the read cache for bug records.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"bugtracker-service/internal/models"
)

// InvalidationHold is how long an invalidated key refuses new records. It must
// outlast the slowest store read that can race a mutation.
const InvalidationHold = 30 * time.Second

// BugCache is a best-effort read cache keyed by bug id.
//
// Store only fills an empty key, and Invalidate leaves a marker that blocks Store
// for InvalidationHold. A read that started before a mutation can therefore never
// put its older record back after the mutation's invalidation.
type BugCache interface {
	Name() string
	Get(ctx context.Context, id uuid.UUID) (*models.Bug, bool, error)
	Store(ctx context.Context, bug *models.Bug) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// entry keeps the actor id columns, which the public JSON shape hides.
type entry struct {
	Bug          *models.Bug `json:"bug"`
	CreatedByID  uuid.UUID   `json:"createdById"`
	UpdatedByID  *uuid.UUID  `json:"updatedById"`
	ClosedByID   *uuid.UUID  `json:"closedById"`
	ReopenedByID *uuid.UUID  `json:"reopenedById"`
}

// Encode serializes a bug for storage in a cache layer.
func Encode(bug *models.Bug) ([]byte, error) {
	return json.Marshal(entry{
		Bug:          bug,
		CreatedByID:  bug.CreatedByID,
		UpdatedByID:  bug.UpdatedByID,
		ClosedByID:   bug.ClosedByID,
		ReopenedByID: bug.ReopenedByID,
	})
}

// Decode restores a bug written by Encode.
func Decode(data []byte) (*models.Bug, error) {
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Bug == nil {
		e.Bug = &models.Bug{}
	}
	e.Bug.CreatedByID = e.CreatedByID
	e.Bug.UpdatedByID = e.UpdatedByID
	e.Bug.ClosedByID = e.ClosedByID
	e.Bug.ReopenedByID = e.ReopenedByID
	return e.Bug, nil
}
