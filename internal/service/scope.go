package service

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/idea-service/internal/domain"
	"github.com/spec-kit/idea-service/internal/repository"
	apperrors "github.com/spec-kit/idea-service/pkg/util/errorutil"
)

// visibleFilter translates the identity's scope for action into a repository
// filter. List and stats share it so both always cover the same set.
func visibleFilter(identity domain.Identity, action domain.Action) (repository.IdeaFilter, error) {
	var filter repository.IdeaFilter
	switch identity.Scope(action) {
	case domain.ScopeAll:
	case domain.ScopeOwn:
		id := identity.UserID
		filter.CustomerID = &id
	case domain.ScopeAssigned:
		id := identity.UserID
		filter.AssignedTo = &id
	default:
		return filter, apperrors.NewForbidden("not permitted")
	}
	return filter, nil
}

func notFoundOr(err error, resource string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, nil)
	}
	return err
}
