package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/idea-service/internal/domain"
	"github.com/spec-kit/idea-service/internal/repository"
	"github.com/spec-kit/idea-service/internal/service"
)

// UserEntry is one record of the seed file.
type UserEntry struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone,omitempty"`
	Password string  `json:"password"`
	Role     string  `json:"role"`
}

// UserCreator stores validated users. *service.AuthService satisfies it.
type UserCreator interface {
	CreateUser(ctx context.Context, input service.RegisterInput, trusted bool) (*domain.User, error)
}

// Result summarises a seeding run.
type Result struct {
	Created int
	Skipped int
}

// LoadUsers reads a JSON array of users from path.
func LoadUsers(path string) ([]UserEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var entries []UserEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return entries, nil
}

// Users creates every entry whose email is not registered yet. Entries may
// name any role, owners included.
func Users(ctx context.Context, entries []UserEntry, creator UserCreator, users repository.UserRepository, logger *zap.Logger) (Result, error) {
	var res Result
	for i, entry := range entries {
		email := strings.ToLower(strings.TrimSpace(entry.Email))
		_, err := users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			res.Skipped++
			logger.Debug("seed user exists", zap.String("email", email))
			continue
		case !errors.Is(err, pgx.ErrNoRows):
			return res, fmt.Errorf("seed entry %d: %w", i, err)
		}

		user, err := creator.CreateUser(ctx, service.RegisterInput{
			Name:     entry.Name,
			Email:    entry.Email,
			Phone:    entry.Phone,
			Password: entry.Password,
			Role:     entry.Role,
		}, true)
		if err != nil {
			return res, fmt.Errorf("seed entry %d (%s): %w", i, email, err)
		}
		res.Created++
		logger.Info("seeded user", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	}
	return res, nil
}

// FromFile loads path and seeds its users. An empty path is a no-op.
func FromFile(ctx context.Context, path string, creator UserCreator, users repository.UserRepository, logger *zap.Logger) (Result, error) {
	if path == "" {
		return Result{}, nil
	}
	entries, err := LoadUsers(path)
	if err != nil {
		return Result{}, err
	}
	res, err := Users(ctx, entries, creator, users, logger)
	if err != nil {
		return res, err
	}
	logger.Info("seed complete", zap.String("file", path), zap.Int("created", res.Created), zap.Int("skipped", res.Skipped))
	return res, nil
}
