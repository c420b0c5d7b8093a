package models

import (
	"time"

	"github.com/google/uuid"
)

// Note is a comment attached to a bug. Notes are read-only here.
type Note struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	BugID     uuid.UUID `json:"bugId" gorm:"type:uuid;not null;index"`
	Body      string    `json:"body" gorm:"not null"`
	AuthorID  uuid.UUID `json:"-" gorm:"type:uuid;not null"`
	Author    *User     `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}
