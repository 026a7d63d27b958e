package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole admits callers whose token role is one of roles. It guards
// routes only; document access is decided by ownership and grants.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	msg := "unauthorized access"
	if len(roles) == 1 && roles[0] == RoleAdmin {
		msg = "admin access required"
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := allowed[RoleFromContext(c.Request().Context())]; !ok {
				return echo.NewHTTPError(http.StatusForbidden, msg)
			}
			return next(c)
		}
	}
}
