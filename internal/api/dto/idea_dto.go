package dto

import (
	"time"

	"github.com/spec-kit/idea-service/internal/domain"
)

// CreateIdeaRequest payload.
type CreateIdeaRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UpdateIdeaRequest is the owner edit payload. An empty assigned_to clears
// the assignment; omitted fields are left alone.
type UpdateIdeaRequest struct {
	Status     *string `json:"status"`
	AssignedTo *string `json:"assigned_to"`
}

// CreateUpdateRequest payload.
type CreateUpdateRequest struct {
	Message string `json:"message"`
}

// IdeaResponse is an idea as listed.
type IdeaResponse struct {
	ID           string            `json:"id"`
	CustomerID   string            `json:"customer_id"`
	CustomerName string            `json:"customer_name"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Status       domain.IdeaStatus `json:"status"`
	AssignedTo   *string           `json:"assigned_to"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// UpdateResponse is one entry of an idea's thread.
type UpdateResponse struct {
	ID         string      `json:"id"`
	IdeaID     string      `json:"idea_id"`
	Seq        int64       `json:"seq"`
	AuthorID   string      `json:"author_id"`
	AuthorName string      `json:"author_name"`
	AuthorRole domain.Role `json:"author_role"`
	Message    string      `json:"message"`
	CreatedAt  time.Time   `json:"created_at"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID         string                `json:"id"`
	ActorID    string                `json:"actor_id"`
	ActorRole  domain.Role           `json:"actor_role"`
	ChangeType domain.IdeaChangeType `json:"change_type"`
	OldValue   *string               `json:"old_value"`
	NewValue   *string               `json:"new_value"`
	CreatedAt  time.Time             `json:"created_at"`
}

// IdeaDetailResponse provides full idea info.
type IdeaDetailResponse struct {
	IdeaResponse
	Updates []UpdateResponse  `json:"updates"`
	History []HistoryResponse `json:"history"`
}
