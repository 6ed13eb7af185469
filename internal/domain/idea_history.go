package domain

import "time"

// IdeaChangeType captures what changed in a history entry.
type IdeaChangeType string

const (
	ChangeTypeStatus   IdeaChangeType = "status"
	ChangeTypeAssignee IdeaChangeType = "assignee"
)

// IdeaChange is an immutable audit trail entry for status and assignment.
type IdeaChange struct {
	ID         string
	IdeaID     string
	ActorID    string
	ActorRole  Role
	ChangeType IdeaChangeType
	OldValue   *string
	NewValue   *string
	CreatedAt  time.Time
}
