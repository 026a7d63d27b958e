package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRoleKey  contextKey = "user_role"
	UserEmailKey contextKey = "user_email"
	ClaimsKey    contextKey = "claims"
)

// TokenHeader is the legacy header some clients send the bare token in.
const TokenHeader = "x-auth-token"

// extractToken reads the token from "Authorization: Bearer <t>" or, failing
// that, from the x-auth-token header.
func extractToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if tok := strings.TrimSpace(r.Header.Get(TokenHeader)); tok != "" {
		return tok, true
	}
	return "", false
}

// JWTMiddleware authenticates the request and stores the caller's identity on
// the request context. revoked may be nil.
func JWTMiddleware(tokens *TokenService, revoked RevocationStore, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, ok := extractToken(c.Request())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "no token, authorization denied")
			}

			claims, err := tokens.Verify(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "token is not valid")
			}

			ctx := c.Request().Context()
			if revoked != nil && claims.ID != "" {
				isRevoked, err := revoked.IsRevoked(ctx, claims.ID)
				if err != nil {
					logger.Error().Err(err).Msg("revocation lookup failed")
					return echo.NewHTTPError(http.StatusServiceUnavailable, "authentication unavailable")
				}
				if isRevoked {
					return echo.NewHTTPError(http.StatusUnauthorized, "token has been revoked")
				}
			}

			ctx = context.WithValue(ctx, UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

// CallerID parses the authenticated user id. A missing or malformed subject
// is treated as an unauthenticated request.
func CallerID(ctx context.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "token is not valid")
	}
	return id, nil
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ClaimsKey).(*Claims)
	return claims
}

// WithIdentity returns ctx carrying a caller identity, as JWTMiddleware would
// set it. Handler tests use it to skip token plumbing.
func WithIdentity(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserRoleKey, role)
}
