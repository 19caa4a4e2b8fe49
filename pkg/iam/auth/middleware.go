package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/veridian-id/veridian/pkg/iam/token"
)

// Middleware guards fiber routes with access token validation.
type Middleware struct {
	codec *token.Codec
}

func NewMiddleware(codec *token.Codec) *Middleware {
	return &Middleware{codec: codec}
}

// RequireAuth validates the access token from the Authorization header,
// falling back to the "access_token" cookie, and stores the resolved
// Authenticated identity in c.Locals("auth").
func (m *Middleware) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := extractToken(c)
		if raw == "" {
			return ErrUnauthorized()
		}

		validation := m.codec.Validate(raw)
		switch validation.Status {
		case token.StatusExpired:
			return token.ErrTokenExpired()
		case token.StatusInvalid:
			return token.ErrTokenInvalid().WithDetail("reason", validation.Reason)
		}

		claims := validation.Claims
		c.Locals("auth", &Authenticated{
			PrincipalID: claims.Subject,
			Tenant:      claims.Tenant,
			Email:       claims.Email,
			Role:        claims.Role,
			Permissions: claims.Permissions,
		})
		return c.Next()
	}
}

// RequirePermission gates a route on a resource:action permission. Must
// run after RequireAuth.
func (m *Middleware) RequirePermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authed := FromContext(c)
		if authed == nil {
			return ErrUnauthorized()
		}
		if !authed.HasPermission(permission) {
			return ErrAccessDenied().WithDetail("required_permission", permission)
		}
		return c.Next()
	}
}

// FromContext returns the identity stored by RequireAuth, or nil.
func FromContext(c *fiber.Ctx) *Authenticated {
	authed, ok := c.Locals("auth").(*Authenticated)
	if !ok {
		return nil
	}
	return authed
}

func extractToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
			return parts[1]
		}
	}
	return c.Cookies("access_token")
}
