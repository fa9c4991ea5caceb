package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/rsams/attendance-service/internal/domain"
	apperrors "github.com/rsams/attendance-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// TokenAuthenticator resolves a bearer token to a live account.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Account, error)
}

// Principal represents the authenticated caller.
type Principal struct {
	Account *domain.Account
}

// ID returns the caller's account id.
func (p *Principal) ID() string { return p.Account.ID }

// Role returns the caller's role.
func (p *Principal) Role() domain.Role { return p.Account.Role }

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	authenticator TokenAuthenticator
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(authenticator TokenAuthenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("Access token required")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return apperrors.NewUnauthorized("Access token required")
	}

	account, err := m.authenticator.Authenticate(c.UserContext(), parts[1])
	if err != nil {
		return err
	}

	c.Locals(principalKey, &Principal{Account: account})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
