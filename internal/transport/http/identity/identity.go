// Package identity resolves the calling user from the X-User-Id header and
// attaches the principal to the request context. Authorization decisions stay
// in the workflow engine; this layer only establishes who is calling.
package identity

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/patelmeet1372/Secure-Purchase-Order-System/internal/workflow"
)

// HeaderUserID carries the caller's numeric user id.
const HeaderUserID = "X-User-Id"

const contextKey = "auth.principal"

// Principal identifies an authenticated caller and their workflow role.
type Principal struct {
	UserID int64
	Role   workflow.Role
}

// RoleResolver looks up the workflow role registered for a user.
type RoleResolver interface {
	Role(ctx context.Context, userID int64) (workflow.Role, error)
}

// Middleware parses the identity header and resolves the caller's role. An
// absent or unknown identity leaves the request unauthenticated; downstream
// guards reject it where authentication is required.
func Middleware(resolver RoleResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(HeaderUserID)
			if raw == "" {
				return next(c)
			}
			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				return next(c)
			}
			principal := Principal{UserID: userID}
			if role, err := resolver.Role(c.Request().Context(), userID); err == nil {
				principal.Role = role
			}
			c.Set(contextKey, principal)
			return next(c)
		}
	}
}

// From extracts the caller principal, if any, from the request context.
func From(c echo.Context) (Principal, bool) {
	principal, ok := c.Get(contextKey).(Principal)
	return principal, ok && principal.UserID > 0
}
