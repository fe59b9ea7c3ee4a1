package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"vendingstore/internal/service"
)

// identityKey is the context key BearerAuth stores the caller's
// Identity under.
const identityKey = "identity"

// Identity is the authenticated caller as seen by handlers. It is an
// explicit value placed in the request context by BearerAuth, never
// reconstructed from raw claims downstream.
type Identity struct {
	UserID   uint64
	Username string
	Role     string
}

// IdentityFrom extracts the caller identity set by BearerAuth. The
// second return is false on routes that skipped the middleware.
func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok
}

// BearerAuth validates the `Authorization: Bearer <token>` header and
// injects the caller's Identity into the request context. Every
// failure collapses into the same 401 so callers cannot probe which
// check rejected them.
func BearerAuth(tokens *service.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			claims := tokens.ValidateToken(strings.TrimPrefix(auth, "Bearer "))
			if claims == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			c.Set(identityKey, Identity{
				UserID:   claims.UserID,
				Username: claims.Username,
				Role:     claims.Role,
			})
			// Role also goes in flat for RequireRole and the rate
			// limiter key builder.
			c.Set("user_id", claims.UserID)
			c.Set("role", claims.Role)
			return next(c)
		}
	}
}
