package models

import (
	"time"

	"github.com/google/uuid"
)

// Priority is the urgency of a bug.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Bug is a trackable issue within a project. A bug is born open; the closed and
// reopened audit pairs are mutually exclusive and follow IsResolved.
type Bug struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ProjectID   uuid.UUID `json:"projectId" gorm:"type:uuid;not null;index"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description" gorm:"not null"`
	Priority    Priority  `json:"priority" gorm:"type:varchar(10);not null;default:low"`
	Notes       []Note    `json:"notes" gorm:"foreignKey:BugID"`
	IsResolved  bool      `json:"isResolved" gorm:"not null;default:false"`

	CreatedByID uuid.UUID `json:"-" gorm:"type:uuid;not null"`
	CreatedBy   *User     `json:"createdBy" gorm:"foreignKey:CreatedByID"`
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime:false;not null"`

	UpdatedByID *uuid.UUID `json:"-" gorm:"type:uuid"`
	UpdatedBy   *User      `json:"updatedBy" gorm:"foreignKey:UpdatedByID"`
	UpdatedAt   *time.Time `json:"updatedAt" gorm:"autoUpdateTime:false"`

	ClosedByID *uuid.UUID `json:"-" gorm:"type:uuid"`
	ClosedBy   *User      `json:"closedBy" gorm:"foreignKey:ClosedByID"`
	ClosedAt   *time.Time `json:"closedAt"`

	ReopenedByID *uuid.UUID `json:"-" gorm:"type:uuid"`
	ReopenedBy   *User      `json:"reopenedBy" gorm:"foreignKey:ReopenedByID"`
	ReopenedAt   *time.Time `json:"reopenedAt"`
}

// BugInput is the editable content of a bug, shared by create and update.
type BugInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
}

// LastTouched returns the newest audit timestamp on the bug.
func (b *Bug) LastTouched() time.Time {
	latest := b.CreatedAt
	for _, t := range []*time.Time{b.UpdatedAt, b.ClosedAt, b.ReopenedAt} {
		if t != nil && t.After(latest) {
			latest = *t
		}
	}
	return latest
}

// MarkClosed resolves the bug and clears the reopened pair.
func (b *Bug) MarkClosed(actor uuid.UUID, at time.Time) {
	b.IsResolved = true
	b.ClosedByID = &actor
	b.ClosedBy = nil
	b.ClosedAt = &at
	b.ReopenedByID = nil
	b.ReopenedBy = nil
	b.ReopenedAt = nil
}

// MarkReopened unresolves the bug and clears the closed pair.
func (b *Bug) MarkReopened(actor uuid.UUID, at time.Time) {
	b.IsResolved = false
	b.ReopenedByID = &actor
	b.ReopenedBy = nil
	b.ReopenedAt = &at
	b.ClosedByID = nil
	b.ClosedBy = nil
	b.ClosedAt = nil
}

// ApplyContent overwrites the editable fields and stamps the updated pair.
func (b *Bug) ApplyContent(in BugInput, actor uuid.UUID, at time.Time) {
	b.Title = in.Title
	b.Description = in.Description
	b.Priority = in.Priority
	b.UpdatedByID = &actor
	b.UpdatedBy = nil
	b.UpdatedAt = &at
}
