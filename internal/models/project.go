package models

import (
	"time"

	"github.com/google/uuid"
)

// Project groups bugs and the members allowed to act on them.
type Project struct {
	ID          uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Name        string          `json:"name" gorm:"not null"`
	CreatedByID uuid.UUID       `json:"-" gorm:"type:uuid;not null"`
	CreatedBy   *User           `json:"createdBy,omitempty" gorm:"foreignKey:CreatedByID"`
	CreatedAt   time.Time       `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `json:"updatedAt" gorm:"autoUpdateTime"`
	Members     []ProjectMember `json:"members,omitempty" gorm:"foreignKey:ProjectID"`
	Bugs        []Bug           `json:"bugs,omitempty" gorm:"foreignKey:ProjectID"`
}

// ProjectMember grants a user authority over every bug in a project.
type ProjectMember struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ProjectID uuid.UUID `json:"-" gorm:"type:uuid;not null;uniqueIndex:idx_project_member"`
	MemberID  uuid.UUID `json:"-" gorm:"type:uuid;not null;uniqueIndex:idx_project_member"`
	Member    *User     `json:"member,omitempty" gorm:"foreignKey:MemberID"`
	JoinedAt  time.Time `json:"joinedAt" gorm:"autoCreateTime"`
}
