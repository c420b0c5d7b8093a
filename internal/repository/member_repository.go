package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bugtracker-service/internal/models"
)

// MemberRepository resolves and edits project membership.
type MemberRepository struct {
	db *gorm.DB
}

// NewMemberRepository creates a new MemberRepository with the provided GORM connection.
func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// MembersOf returns the member ids of a project, or models.ErrProjectNotFound.
func (r *MemberRepository) MembersOf(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	db := r.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Project{}).Where("id = ?", projectID).Count(&count).Error; err != nil {
		return nil, errors.Wrap(err, "lookup project")
	}
	if count == 0 {
		return nil, models.ErrProjectNotFound
	}

	var ids []uuid.UUID
	err := db.Model(&models.ProjectMember{}).
		Where("project_id = ?", projectID).
		Pluck("member_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "list project members")
	}
	return ids, nil
}

// AddMember adds a user to a project; adding an existing member is a no-op.
func (r *MemberRepository) AddMember(ctx context.Context, projectID, userID uuid.UUID) error {
	m := models.ProjectMember{ProjectID: projectID, MemberID: userID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&m).Error
	return errors.Wrap(err, "add project member")
}

// RemoveMember revokes a user's membership.
func (r *MemberRepository) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND member_id = ?", projectID, userID).
		Delete(&models.ProjectMember{}).Error
	return errors.Wrap(err, "remove project member")
}

var (
	_ MembershipResolver = (*MemberRepository)(nil)
	_ BugStore           = (*BugRepository)(nil)
)
