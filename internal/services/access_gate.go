package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"bugtracker-service/internal/models"
	"bugtracker-service/internal/repository"
)

// AccessGate authorizes an actor against a project's current membership. The
// resolver is asked on every call, so a revoked member is refused on the next
// request.
type AccessGate struct {
	members repository.MembershipResolver
}

// NewAccessGate creates a gate over the given membership resolver.
func NewAccessGate(members repository.MembershipResolver) *AccessGate {
	return &AccessGate{members: members}
}

// Authorize returns nil when actor is a member of projectID, models.ErrAccessDenied
// when it is not, and the resolver's error (e.g. models.ErrProjectNotFound) otherwise.
func (g *AccessGate) Authorize(ctx context.Context, actor, projectID uuid.UUID) error {
	if actor == uuid.Nil {
		return models.ErrAccessDenied
	}
	members, err := g.members.MembersOf(ctx, projectID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m == actor {
			return nil
		}
	}
	return fmt.Errorf("%w: user %s is not a member of project %s", models.ErrAccessDenied, actor, projectID)
}
