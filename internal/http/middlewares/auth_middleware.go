package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/taskhub/internal/domain/user"
	"github.com/taskhub/taskhub/internal/observability"
)

// Keep these interfaces small so tests can fake them easily.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type UserResolver interface {
	GetByUsername(ctx context.Context, username string) (user.User, error)
}

type AuthMiddleware struct {
	jwt   TokenVerifier
	users UserResolver
	prom  *observability.Prom
}

func NewAuthMiddleware(jwt TokenVerifier, users UserResolver, prom *observability.Prom) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, users: users, prom: prom}
}

// RequireAuth resolves the bearer token to a stored user record. A missing
// header, a bad token and an unknown subject all produce the same 401 so a
// caller cannot tell which step failed.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			m.reject(c)
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			m.reject(c)
			return
		}

		subject, err := m.jwt.Verify(raw)
		if err != nil {
			m.reject(c)
			return
		}

		u, err := m.users.GetByUsername(c.Request.Context(), subject)
		if err != nil {
			m.reject(c)
			return
		}

		m.prom.ObserveAuth("guard", "ok")

		// Stash the resolved identity on the context
		c.Set(ctxUserKey, u)

		c.Next()
	}
}

func (m *AuthMiddleware) reject(c *gin.Context) {
	m.prom.ObserveAuth("guard", "rejected")

	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    "unauthorized",
			"message": "Could not validate credentials",
		},
	})
}

// UserFromContext returns the user resolved by RequireAuth, so handlers
// don't need to know the magic key.
func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}
