package service

import (
	"context"

	"github.com/spec-kit/idea-service/internal/domain"
	"github.com/spec-kit/idea-service/internal/repository"
	apperrors "github.com/spec-kit/idea-service/pkg/util/errorutil"
)

// DirectoryService exposes user listings to owners.
type DirectoryService struct {
	users repository.UserRepository
}

// NewDirectoryService constructs the service.
func NewDirectoryService(users repository.UserRepository) *DirectoryService {
	return &DirectoryService{users: users}
}

// ListDevelopers returns every developer, for assignment pickers.
func (s *DirectoryService) ListDevelopers(ctx context.Context, actor domain.Identity) ([]domain.Developer, error) {
	if !actor.Can(domain.ActionListDevelopers, nil) {
		return nil, apperrors.NewForbidden("only owners can list developers")
	}
	role := domain.RoleDeveloper
	users, err := s.users.List(ctx, &role)
	if err != nil {
		return nil, err
	}
	devs := make([]domain.Developer, 0, len(users))
	for _, u := range users {
		devs = append(devs, domain.Developer{ID: u.ID, Name: u.Name})
	}
	return devs, nil
}

// ListUsers returns every registered user without credentials.
func (s *DirectoryService) ListUsers(ctx context.Context, actor domain.Identity) ([]domain.Profile, error) {
	if !actor.Can(domain.ActionListUsers, nil) {
		return nil, apperrors.NewForbidden("only owners can list users")
	}
	users, err := s.users.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	profiles := make([]domain.Profile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].Profile())
	}
	return profiles, nil
}
