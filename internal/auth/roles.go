package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rsams/attendance-service/internal/domain"
	apperrors "github.com/rsams/attendance-service/pkg/util/errorutil"
)

// RequireRole ensures the principal has one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("Authentication required")
		}
		if _, exists := allowedSet[principal.Role()]; !exists {
			return apperrors.NewForbidden("Insufficient permissions")
		}
		return c.Next()
	}
}

// RequireAdmin is RequireRole(ADMIN).
func RequireAdmin() fiber.Handler {
	return RequireRole(domain.RoleAdmin)
}
