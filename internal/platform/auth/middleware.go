package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const actorKey contextKey = "actor"

// Actor is the authenticated identity acting on a request. Authentication
// itself is an external collaborator; this package only extracts and trusts
// the token claims.
type Actor struct {
	UID           string
	Email         string
	Name          string
	Role          string
	InstitutionID string
}

// Claims carries the actor identity inside a JWT issued by the identity
// provider.
type Claims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	InstitutionID string `json:"institution_id"`
}

type JWTConfig struct {
	Issuer     string
	SigningKey []byte
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			opts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"HS256"}),
			}
			if cfg.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(cfg.Issuer))
			}

			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.SigningKey, nil
			}, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			actor := Actor{
				UID:           claims.Subject,
				Email:         claims.Email,
				Name:          claims.Name,
				Role:          claims.Role,
				InstitutionID: claims.InstitutionID,
			}

			ctx := context.WithValue(c.Request().Context(), actorKey, actor)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development that allows
// unauthenticated requests with a super-admin actor.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := Actor{
				UID:   "dev-user",
				Email: "dev@localhost",
				Name:  "Dev User",
				Role:  RoleSuperAdmin,
			}
			if inst := c.Request().Header.Get("X-Institution-ID"); inst != "" {
				actor.InstitutionID = inst
			}
			if role := c.Request().Header.Get("X-Role"); role != "" {
				actor.Role = role
			}
			ctx := context.WithValue(c.Request().Context(), actorKey, actor)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// ActorFromContext retrieves the authenticated actor from context.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorKey).(Actor)
	return actor
}

// WithActor returns a context carrying the given actor. Used by tests and
// background jobs acting on behalf of a user.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}
