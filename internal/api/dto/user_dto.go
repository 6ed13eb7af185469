package dto

import (
	"time"

	"github.com/spec-kit/idea-service/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Phone       *string `json:"phone"`
	Password    string  `json:"password"`
	Role        string  `json:"role"`
	OwnerSecret string  `json:"owner_secret"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Phone     *string     `json:"phone,omitempty"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// DeveloperResponse is the assignment picker entry.
type DeveloperResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SessionResponse pairs a user with a fresh token.
type SessionResponse struct {
	User UserResponse `json:"user"`
	Auth AuthResponse `json:"auth"`
}
