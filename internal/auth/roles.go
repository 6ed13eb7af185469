package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/idea-service/internal/domain"
	apperrors "github.com/spec-kit/idea-service/pkg/util/errorutil"
)

// RequireAction rejects callers whose role is never granted action. Scope
// checks against a specific idea stay in the service layer.
func RequireAction(action domain.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := IdentityFromContext(c)
		if err != nil {
			return err
		}
		if !identity.Can(action, nil) {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireRole ensures the caller has one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		identity, err := IdentityFromContext(c)
		if err != nil {
			return err
		}
		if _, exists := allowedSet[identity.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
