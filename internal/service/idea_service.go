package service

import (
	"context"
	"errors"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/idea-service/internal/domain"
	"github.com/spec-kit/idea-service/internal/events"
	"github.com/spec-kit/idea-service/internal/observability"
	"github.com/spec-kit/idea-service/internal/repository"
	"github.com/spec-kit/idea-service/internal/security"
	apperrors "github.com/spec-kit/idea-service/pkg/util/errorutil"
)

const (
	maxTitleLength  = 200
	defaultPageSize = 20
	maxPageSize     = 100
	previewLength   = 140
)

// IdeaService runs the idea workflow: creation, status changes, assignment,
// threaded updates and role-scoped reads.
type IdeaService struct {
	ideas      repository.IdeaRepository
	updates    repository.UpdateRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// IdeaDependencies bundles collaborators for the idea service.
type IdeaDependencies struct {
	IdeaRepo   repository.IdeaRepository
	UpdateRepo repository.UpdateRepository
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// Page selects a window of a list. The zero value selects everything.
// A non-nil Status keeps only ideas in that status.
type Page struct {
	Number int
	Size   int
	Status *domain.IdeaStatus
}

// IdeaPatch is a combined owner edit. Status is applied before assignment.
// An empty AssignedTo clears the assignment.
type IdeaPatch struct {
	Status     *domain.IdeaStatus
	AssignedTo *string
}

// NewIdeaService constructs the service.
func NewIdeaService(deps IdeaDependencies) *IdeaService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdeaService{
		ideas:      deps.IdeaRepo,
		updates:    deps.UpdateRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// CreateIdea records a new pending idea owned by the calling customer.
func (s *IdeaService) CreateIdea(ctx context.Context, actor domain.Identity, title, description string) (*domain.Idea, error) {
	if !actor.Can(domain.ActionCreateIdea, nil) {
		return nil, apperrors.NewForbidden("only customers can submit ideas")
	}

	title = security.CleanText(title)
	description = security.CleanText(description)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, apperrors.NewValidationError("title is too long", map[string]any{"field": "title", "max": maxTitleLength})
	}
	if description == "" {
		return nil, apperrors.NewValidationError("description is required", map[string]any{"field": "description"})
	}

	idea := &domain.Idea{
		CustomerID:  actor.UserID,
		Title:       title,
		Description: description,
		Status:      domain.IdeaStatusPending,
	}
	if err := s.ideas.Create(ctx, idea); err != nil {
		return nil, notFoundOr(err, "customer")
	}

	s.metrics.IdeaCreated()
	s.logger.Info("idea created", zap.String("idea_id", idea.ID), zap.String("customer_id", idea.CustomerID))
	s.publish(ctx, events.NewEvent(events.EventIdeaCreated, idea, actor, events.IdeaCreatedPayload{Title: idea.Title}))
	return idea, nil
}

// ListIdeas returns the ideas visible to actor, newest first.
func (s *IdeaService) ListIdeas(ctx context.Context, actor domain.Identity, page Page) ([]domain.Idea, error) {
	filter, err := visibleFilter(actor, domain.ActionViewIdea)
	if err != nil {
		return nil, err
	}
	if page.Status != nil {
		if !page.Status.Valid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{
				"field":   "status",
				"value":   string(*page.Status),
				"allowed": domain.IdeaStatuses,
			})
		}
		status := *page.Status
		filter.Status = &status
	}
	if page.Number > 0 || page.Size > 0 {
		size := page.Size
		if size <= 0 {
			size = defaultPageSize
		}
		if size > maxPageSize {
			size = maxPageSize
		}
		number := page.Number
		if number <= 0 {
			number = 1
		}
		filter.Limit = size
		filter.Offset = (number - 1) * size
	}
	return s.ideas.List(ctx, filter)
}

// GetIdeaDetail returns an idea with its update thread and history.
func (s *IdeaService) GetIdeaDetail(ctx context.Context, actor domain.Identity, ideaID string) (*domain.IdeaDetail, error) {
	detail, err := s.ideas.Detail(ctx, ideaID)
	if err != nil {
		return nil, notFoundOr(err, "idea")
	}
	if !actor.Can(domain.ActionViewIdea, &detail.Idea) {
		return nil, apperrors.NewForbidden("you cannot view this idea")
	}
	return detail, nil
}

// SetStatus moves an idea to status. Any transition is allowed, including
// reverting; setting the current status changes nothing.
func (s *IdeaService) SetStatus(ctx context.Context, actor domain.Identity, ideaID string, status domain.IdeaStatus) (*domain.Idea, error) {
	return s.UpdateIdea(ctx, actor, ideaID, IdeaPatch{Status: &status})
}

// Assign hands an idea to a developer and moves it to in_progress.
func (s *IdeaService) Assign(ctx context.Context, actor domain.Identity, ideaID, developerID string) (*domain.Idea, error) {
	if !actor.Can(domain.ActionAssignIdea, nil) {
		return nil, apperrors.NewForbidden("only owners can assign ideas")
	}
	if developerID == "" {
		return nil, apperrors.NewValidationError("developer id is required", map[string]any{"field": "assigned_to"})
	}
	return s.UpdateIdea(ctx, actor, ideaID, IdeaPatch{AssignedTo: &developerID})
}

// Unassign clears the assignment and leaves status untouched.
func (s *IdeaService) Unassign(ctx context.Context, actor domain.Identity, ideaID string) (*domain.Idea, error) {
	empty := ""
	return s.UpdateIdea(ctx, actor, ideaID, IdeaPatch{AssignedTo: &empty})
}

// UpdateIdea applies patch in one read-modify-write.
func (s *IdeaService) UpdateIdea(ctx context.Context, actor domain.Identity, ideaID string, patch IdeaPatch) (*domain.Idea, error) {
	if patch.Status == nil && patch.AssignedTo == nil {
		return nil, apperrors.NewValidationError("nothing to update", nil)
	}
	if patch.Status != nil && !actor.Can(domain.ActionChangeStatus, nil) {
		return nil, apperrors.NewForbidden("only owners can change status")
	}
	if patch.AssignedTo != nil && !actor.Can(domain.ActionAssignIdea, nil) {
		return nil, apperrors.NewForbidden("only owners can assign ideas")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{
			"field":   "status",
			"value":   string(*patch.Status),
			"allowed": domain.IdeaStatuses,
		})
	}
	if patch.AssignedTo != nil && *patch.AssignedTo != "" {
		if err := s.requireDeveloper(ctx, *patch.AssignedTo); err != nil {
			return nil, err
		}
	}

	var before domain.Idea
	updated, err := s.ideas.Mutate(ctx, ideaID, func(idea *domain.Idea) ([]domain.IdeaChange, error) {
		if patch.Status != nil && !actor.Can(domain.ActionChangeStatus, idea) {
			return nil, apperrors.NewForbidden("you cannot change this idea")
		}
		if patch.AssignedTo != nil && !actor.Can(domain.ActionAssignIdea, idea) {
			return nil, apperrors.NewForbidden("you cannot assign this idea")
		}
		before = *idea

		var changes []domain.IdeaChange
		if patch.Status != nil {
			changes = append(changes, applyStatus(actor, idea, *patch.Status)...)
		}
		if patch.AssignedTo != nil {
			if *patch.AssignedTo == "" {
				changes = append(changes, applyAssignee(actor, idea, nil)...)
			} else {
				dev := *patch.AssignedTo
				changes = append(changes, applyAssignee(actor, idea, &dev)...)
				changes = append(changes, applyStatus(actor, idea, domain.IdeaStatusInProgress)...)
			}
		}
		return changes, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAssignedWhilePending) {
			return nil, apperrors.NewInternalError(err)
		}
		return nil, notFoundOr(err, "idea")
	}

	s.announce(ctx, actor, &before, updated)
	return updated, nil
}

// PostUpdate appends a message to the idea's thread. It never changes the
// idea's status or assignment. Visibility is checked by the same statement
// that stores the message, so an unassignment racing the post wins.
func (s *IdeaService) PostUpdate(ctx context.Context, actor domain.Identity, ideaID, message string) (*domain.UpdateView, error) {
	message = security.CleanText(message)
	if message == "" {
		return nil, apperrors.NewValidationError("message is required", map[string]any{"field": "message"})
	}

	scope, err := visibleFilter(actor, domain.ActionPostUpdate)
	if err != nil {
		if _, lookupErr := s.ideas.GetByID(ctx, ideaID); lookupErr != nil {
			return nil, notFoundOr(lookupErr, "idea")
		}
		return nil, apperrors.NewForbidden("you cannot post to this idea")
	}

	update := &domain.Update{
		IdeaID:     ideaID,
		AuthorID:   actor.UserID,
		AuthorRole: actor.Role,
		Message:    message,
	}
	idea, err := s.updates.Append(ctx, update, scope)
	if errors.Is(err, repository.ErrNotVisible) {
		return nil, apperrors.NewForbidden("you cannot post to this idea")
	}
	if err != nil {
		return nil, notFoundOr(err, "idea")
	}

	s.metrics.UpdatePosted(actor.Role)
	s.publish(ctx, events.NewEvent(events.EventIdeaUpdatePosted, idea, actor, events.IdeaUpdatePostedPayload{
		UpdateID:    update.ID,
		Seq:         update.Seq,
		AuthorRole:  update.AuthorRole,
		BodyPreview: preview(message),
	}))
	return &domain.UpdateView{Update: *update, AuthorName: actor.Name}, nil
}

func (s *IdeaService) requireDeveloper(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return notFoundOr(err, "developer")
	}
	if user.Role != domain.RoleDeveloper {
		return apperrors.NewValidationError("assignee must be a developer", map[string]any{
			"field": "assigned_to",
			"role":  string(user.Role),
		})
	}
	return nil
}

// applyStatus sets idea.Status and returns the history it produced. Moving
// back to pending drops the assignment, since assigned ideas are never pending.
func applyStatus(actor domain.Identity, idea *domain.Idea, status domain.IdeaStatus) []domain.IdeaChange {
	if idea.Status == status {
		return nil
	}
	changes := []domain.IdeaChange{change(actor, domain.ChangeTypeStatus, strPtr(string(idea.Status)), strPtr(string(status)))}
	idea.Status = status
	if status == domain.IdeaStatusPending && idea.AssignedTo != nil {
		changes = append(changes, applyAssignee(actor, idea, nil)...)
	}
	return changes
}

func applyAssignee(actor domain.Identity, idea *domain.Idea, developerID *string) []domain.IdeaChange {
	if sameID(idea.AssignedTo, developerID) {
		return nil
	}
	c := change(actor, domain.ChangeTypeAssignee, idea.AssignedTo, developerID)
	idea.AssignedTo = developerID
	return []domain.IdeaChange{c}
}

func change(actor domain.Identity, kind domain.IdeaChangeType, oldValue, newValue *string) domain.IdeaChange {
	return domain.IdeaChange{
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		ChangeType: kind,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
}

// announce publishes events for whatever differs between before and after.
func (s *IdeaService) announce(ctx context.Context, actor domain.Identity, before, after *domain.Idea) {
	if before.Status != after.Status {
		s.metrics.StatusChanged(before.Status, after.Status)
		s.logger.Info("idea status changed",
			zap.String("idea_id", after.ID),
			zap.String("from", string(before.Status)),
			zap.String("to", string(after.Status)))
		s.publish(ctx, events.NewEvent(events.EventIdeaStatusChanged, after, actor, events.IdeaStatusChangedPayload{
			OldStatus: before.Status,
			NewStatus: after.Status,
		}).WithDeveloper(before.AssignedTo))
	}

	if sameID(before.AssignedTo, after.AssignedTo) {
		return
	}
	if after.AssignedTo == nil {
		s.logger.Info("idea unassigned", zap.String("idea_id", after.ID), zap.String("developer_id", *before.AssignedTo))
		s.publish(ctx, events.NewEvent(events.EventIdeaUnassigned, after, actor, events.IdeaUnassignedPayload{
			PreviousDeveloperID: *before.AssignedTo,
		}).WithDeveloper(before.AssignedTo))
		return
	}
	s.metrics.IdeaAssigned()
	s.logger.Info("idea assigned", zap.String("idea_id", after.ID), zap.String("developer_id", *after.AssignedTo))
	s.publish(ctx, events.NewEvent(events.EventIdeaAssigned, after, actor, events.IdeaAssignedPayload{
		DeveloperID:         *after.AssignedTo,
		PreviousDeveloperID: before.AssignedTo,
	}).WithDeveloper(before.AssignedTo))
}

func (s *IdeaService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(ctx, event)
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func strPtr(s string) *string {
	return &s
}

func preview(message string) string {
	if utf8.RuneCountInString(message) <= previewLength {
		return message
	}
	runes := []rune(message)
	return string(runes[:previewLength]) + "…"
}
