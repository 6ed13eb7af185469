package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/idea-service/internal/api/dto"
	"github.com/spec-kit/idea-service/internal/auth"
	"github.com/spec-kit/idea-service/internal/service"
)

// DirectoryHandler lists users for owners.
type DirectoryHandler struct {
	service *service.DirectoryService
}

// NewDirectoryHandler constructs handler.
func NewDirectoryHandler(directory *service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{service: directory}
}

// ListDevelopers GET /api/developers.
func (h *DirectoryHandler) ListDevelopers(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	devs, err := h.service.ListDevelopers(c.UserContext(), identity)
	if err != nil {
		return err
	}
	items := make([]dto.DeveloperResponse, 0, len(devs))
	for _, d := range devs {
		items = append(items, dto.DeveloperResponse{ID: d.ID, Name: d.Name})
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListUsers GET /api/users.
func (h *DirectoryHandler) ListUsers(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	users, err := h.service.ListUsers(c.UserContext(), identity)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, userResponse(users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
