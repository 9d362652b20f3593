package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Role names as stored on access grants and token claims.
const (
	RoleSuperAdmin = "superadmin"
	RoleAdmin      = "Admin"
	RoleDoctor     = "Doctor"
	RoleNurse      = "Nurse"
)

// RequireRole returns middleware that rejects requests whose actor holds none
// of the given roles. The super-admin role passes every check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := ActorFromContext(c.Request().Context())
			if actor.Role == RoleSuperAdmin {
				return next(c)
			}
			for _, required := range roles {
				if actor.Role == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
