package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/idea-service/internal/api/dto"
	"github.com/spec-kit/idea-service/internal/auth"
	"github.com/spec-kit/idea-service/internal/domain"
	"github.com/spec-kit/idea-service/internal/service"
	apperrors "github.com/spec-kit/idea-service/pkg/util/errorutil"
)

// IdeasHandler manages idea endpoints for every role.
type IdeasHandler struct {
	service *service.IdeaService
}

// NewIdeasHandler constructs handler.
func NewIdeasHandler(ideaService *service.IdeaService) *IdeasHandler {
	return &IdeasHandler{service: ideaService}
}

// CreateIdea POST /api/ideas.
func (h *IdeasHandler) CreateIdea(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateIdeaRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	idea, err := h.service.CreateIdea(c.UserContext(), identity, req.Title, req.Description)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ideaResponse(idea)})
}

// ListIdeas GET /api/ideas.
func (h *IdeasHandler) ListIdeas(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	page := service.Page{
		Number: parseInt(c.Query("page"), 0),
		Size:   parseInt(c.Query("page_size"), 0),
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.IdeaStatus(raw)
		page.Status = &status
	}

	ideas, err := h.service.ListIdeas(c.UserContext(), identity, page)
	if err != nil {
		return err
	}
	items := make([]dto.IdeaResponse, 0, len(ideas))
	for i := range ideas {
		items = append(items, ideaResponse(&ideas[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetIdea GET /api/ideas/:id.
func (h *IdeasHandler) GetIdea(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	detail, err := h.service.GetIdeaDetail(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ideaDetailResponse(detail)})
}

// UpdateIdea PUT /api/ideas/:id.
func (h *IdeasHandler) UpdateIdea(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.UpdateIdeaRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	patch := service.IdeaPatch{AssignedTo: req.AssignedTo}
	if req.Status != nil {
		status := domain.IdeaStatus(*req.Status)
		patch.Status = &status
	}

	idea, err := h.service.UpdateIdea(c.UserContext(), identity, c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ideaResponse(idea)})
}

// Unassign DELETE /api/ideas/:id/assignee.
func (h *IdeasHandler) Unassign(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	idea, err := h.service.Unassign(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ideaResponse(idea)})
}

// PostUpdate POST /api/ideas/:id/updates.
func (h *IdeasHandler) PostUpdate(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	update, err := h.service.PostUpdate(c.UserContext(), identity, c.Params("id"), req.Message)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": updateResponse(update)})
}
