package models

import (
	"time"

	"github.com/google/uuid"
)

// EventKind tags an entry in the bug audit log.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventUpdated  EventKind = "updated"
	EventClosed   EventKind = "closed"
	EventReopened EventKind = "reopened"
)

// BugEvent is an append-only audit log entry. Content fields are only set for
// created and updated events.
type BugEvent struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	BugID       uuid.UUID `json:"bugId" gorm:"type:uuid;not null;index"`
	ProjectID   uuid.UUID `json:"projectId" gorm:"type:uuid;not null"`
	Kind        EventKind `json:"kind" gorm:"type:varchar(16);not null"`
	ActorID     uuid.UUID `json:"actorId" gorm:"type:uuid;not null"`
	Actor       *User     `json:"actor,omitempty" gorm:"foreignKey:ActorID"`
	At          time.Time `json:"at" gorm:"not null"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Priority    *Priority `json:"priority,omitempty" gorm:"type:varchar(10)"`
}

// NewBugEvent records kind for bug, snapshotting content for created and updated.
func NewBugEvent(kind EventKind, bug *Bug, actor uuid.UUID, at time.Time) BugEvent {
	ev := BugEvent{
		BugID:     bug.ID,
		ProjectID: bug.ProjectID,
		Kind:      kind,
		ActorID:   actor,
		At:        at,
	}
	if kind == EventCreated || kind == EventUpdated {
		title, desc, prio := bug.Title, bug.Description, bug.Priority
		ev.Title, ev.Description, ev.Priority = &title, &desc, &prio
	}
	return ev
}

// HistoryArchive describes an uploaded copy of a bug's audit log.
type HistoryArchive struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}
