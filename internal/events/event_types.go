package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/idea-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIdeaCreated       EventType = "idea_created"
	EventIdeaStatusChanged EventType = "idea_status_changed"
	EventIdeaAssigned      EventType = "idea_assigned"
	EventIdeaUnassigned    EventType = "idea_unassigned"
	EventIdeaUpdatePosted  EventType = "idea_update_posted"
)

// AllEventTypes lists every type a subscriber may want to follow.
var AllEventTypes = []EventType{
	EventIdeaCreated,
	EventIdeaStatusChanged,
	EventIdeaAssigned,
	EventIdeaUnassigned,
	EventIdeaUpdatePosted,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Audience names the users whose view of the idea the event touched: the
// creating customer and every developer assigned before or after.
type Audience struct {
	CustomerID   string   `json:"customer_id"`
	DeveloperIDs []string `json:"developer_ids,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	IdeaID    string      `json:"idea_id"`
	Actor     Actor       `json:"actor"`
	Audience  Audience    `json:"audience"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, idea *domain.Idea, actor domain.Identity, payload interface{}) Event {
	audience := Audience{CustomerID: idea.CustomerID}
	if idea.AssignedTo != nil {
		audience.DeveloperIDs = append(audience.DeveloperIDs, *idea.AssignedTo)
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		IdeaID:    idea.ID,
		Actor:     Actor{UserID: actor.UserID, Role: actor.Role},
		Audience:  audience,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// WithDeveloper adds a developer to the audience if not already present.
func (e Event) WithDeveloper(id *string) Event {
	if id == nil {
		return e
	}
	for _, existing := range e.Audience.DeveloperIDs {
		if existing == *id {
			return e
		}
	}
	e.Audience.DeveloperIDs = append(append([]string{}, e.Audience.DeveloperIDs...), *id)
	return e
}

// IdeaCreatedPayload payload.
type IdeaCreatedPayload struct {
	Title string `json:"title"`
}

// IdeaStatusChangedPayload payload.
type IdeaStatusChangedPayload struct {
	OldStatus domain.IdeaStatus `json:"old_status"`
	NewStatus domain.IdeaStatus `json:"new_status"`
}

// IdeaAssignedPayload payload.
type IdeaAssignedPayload struct {
	DeveloperID         string  `json:"developer_id"`
	PreviousDeveloperID *string `json:"previous_developer_id,omitempty"`
}

// IdeaUnassignedPayload payload.
type IdeaUnassignedPayload struct {
	PreviousDeveloperID string `json:"previous_developer_id"`
}

// IdeaUpdatePostedPayload payload.
type IdeaUpdatePostedPayload struct {
	UpdateID    string      `json:"update_id"`
	Seq         int64       `json:"seq"`
	AuthorRole  domain.Role `json:"author_role"`
	BodyPreview string      `json:"body_preview"`
}
