package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/E-ugine/kyc-verification-backend/internal/domain"
	"github.com/labstack/echo/v4"
)

const (
	principalKey = "principal"
	userIDKey    = "user_id"
)

// Authorizer resolves a bearer token to an admin principal.
type Authorizer interface {
	Authorize(ctx context.Context, token string) (domain.Principal, error)
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireAdmin rejects requests without a valid admin bearer token and
// stores the principal on the context for handlers.
func RequireAdmin(authz Authorizer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			principal, err := authz.Authorize(c.Request().Context(), token)
			if err != nil {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			c.Set(principalKey, principal)
			c.Set(userIDKey, principal.Username)
			return next(c)
		}
	}
}

// PrincipalFrom returns the principal stored by RequireAdmin.
func PrincipalFrom(c echo.Context) (domain.Principal, bool) {
	p, ok := c.Get(principalKey).(domain.Principal)
	return p, ok
}
