package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/idea-service/internal/auth"
	"github.com/spec-kit/idea-service/internal/config"
	"github.com/spec-kit/idea-service/internal/domain"
	"github.com/spec-kit/idea-service/internal/repository"
	apperrors "github.com/spec-kit/idea-service/pkg/util/errorutil"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
	maxNameLength    = 100
	maxPhoneLength   = 20
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	users       repository.UserRepository
	tokenMgr    *auth.TokenManager
	bcryptCost  int
	ownerSecret string
	logger      *zap.Logger
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	TokenManager *auth.TokenManager
	Logger       *zap.Logger
}

// RegisterInput carries a self-registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Phone    *string
	Password string
	// Role defaults to customer when empty.
	Role string
	// OwnerSecret must match the configured registration secret when Role is owner.
	OwnerSecret string
}

// AuthResult is a user together with a freshly issued session token.
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	tokens := deps.TokenManager
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:       deps.UserRepo,
		tokenMgr:    tokens,
		bcryptCost:  cfg.BcryptCost,
		ownerSecret: cfg.OwnerRegistrationSecret,
		logger:      logger,
	}
}

// Register creates an account and signs the new user in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	user, err := s.CreateUser(ctx, input, false)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// CreateUser validates input and stores a user. trusted skips the owner
// secret check and is used for seeding.
func (s *AuthService) CreateUser(ctx context.Context, input RegisterInput, trusted bool) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, apperrors.NewValidationError("name is too long", map[string]any{"field": "name", "max": maxNameLength})
	}

	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}

	if len(input.Password) < minPasswordLength {
		return nil, apperrors.NewValidationError("password is too short", map[string]any{"field": "password", "min": minPasswordLength})
	}
	if len(input.Password) > maxPasswordBytes {
		return nil, apperrors.NewValidationError("password is too long", map[string]any{"field": "password", "max": maxPasswordBytes})
	}

	var phone *string
	if input.Phone != nil {
		if p := strings.TrimSpace(*input.Phone); p != "" {
			if len(p) > maxPhoneLength {
				return nil, apperrors.NewValidationError("phone is too long", map[string]any{"field": "phone", "max": maxPhoneLength})
			}
			phone = &p
		}
	}

	role := domain.RoleCustomer
	if strings.TrimSpace(input.Role) != "" {
		parsed, ok := domain.ParseRole(input.Role)
		if !ok {
			return nil, apperrors.NewValidationError("unknown role", map[string]any{"field": "role", "value": input.Role})
		}
		role = parsed
	}
	if role == domain.RoleOwner && !trusted && !s.ownerSecretMatches(input.OwnerSecret) {
		s.logger.Warn("owner registration refused", zap.String("email", email))
		return nil, apperrors.NewForbidden("owner registration is not permitted")
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		Phone:        phone,
		Role:         role,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewValidationError("email already registered", map[string]any{"field": "email"})
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Login verifies credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	invalid := apperrors.NewUnauthorized("invalid email or password")

	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, invalid
	}
	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invalid
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, invalid
	}
	return s.issue(user)
}

// CurrentUser loads the user behind identity.
func (s *AuthService) CurrentUser(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		return nil, notFoundOr(err, "user")
	}
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) ownerSecretMatches(candidate string) bool {
	if s.ownerSecret == "" || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.ownerSecret), []byte(candidate)) == 1
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", apperrors.NewValidationError("invalid email", map[string]any{"field": "email"})
	}
	return strings.ToLower(addr.Address), nil
}
