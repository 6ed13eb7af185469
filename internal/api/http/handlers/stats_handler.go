package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/idea-service/internal/auth"
	"github.com/spec-kit/idea-service/internal/service"
)

// StatsHandler serves role-scoped idea counts.
type StatsHandler struct {
	service *service.StatsService
}

// NewStatsHandler constructs handler.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{service: stats}
}

// Stats GET /api/stats.
func (h *StatsHandler) Stats(c *fiber.Ctx) error {
	identity, err := auth.IdentityFromContext(c)
	if err != nil {
		return err
	}
	stats, err := h.service.ComputeStats(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}
