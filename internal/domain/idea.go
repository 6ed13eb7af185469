package domain

import (
	"errors"
	"time"
)

// IdeaStatus enumerates lifecycle states for ideas.
type IdeaStatus string

const (
	IdeaStatusPending    IdeaStatus = "pending"
	IdeaStatusInProgress IdeaStatus = "in_progress"
	IdeaStatusCompleted  IdeaStatus = "completed"
)

// IdeaStatuses lists every status in workflow order.
var IdeaStatuses = []IdeaStatus{IdeaStatusPending, IdeaStatusInProgress, IdeaStatusCompleted}

// Valid reports whether s is a known status.
func (s IdeaStatus) Valid() bool {
	switch s {
	case IdeaStatusPending, IdeaStatusInProgress, IdeaStatusCompleted:
		return true
	default:
		return false
	}
}

// ErrAssignedWhilePending is returned by CheckInvariants.
var ErrAssignedWhilePending = errors.New("assigned idea cannot be pending")

// Idea is the workflow aggregate for customer submissions.
type Idea struct {
	ID          string
	CustomerID  string
	Title       string
	Description string
	Status      IdeaStatus
	AssignedTo  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// CustomerName is populated on reads.
	CustomerName string
}

// CheckInvariants validates the status/assignment relationship.
func (i *Idea) CheckInvariants() error {
	if !i.Status.Valid() {
		return errors.New("unknown idea status " + string(i.Status))
	}
	if i.AssignedTo != nil && i.Status == IdeaStatusPending {
		return ErrAssignedWhilePending
	}
	return nil
}

// IdeaDetail is an idea together with its full trail, read from one snapshot.
type IdeaDetail struct {
	Idea    Idea
	Updates []UpdateView
	History []IdeaChange
}
