package http

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anime-watchlist/internal/domain"
	"anime-watchlist/internal/service"
)

const identityKey = "auth_identity"

type TokenVerifier interface {
	Verify(token string) (string, error)
}

type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, userID string) (domain.Identity, error)
}

// AuthMiddleware resuelve el usuario a partir del header Authorization.
type AuthMiddleware struct {
	logger     *zap.Logger
	tokens     TokenVerifier
	identities IdentityResolver
}

func NewAuthMiddleware(logger *zap.Logger, tokens TokenVerifier, identities IdentityResolver) *AuthMiddleware {
	return &AuthMiddleware{logger: logger, tokens: tokens, identities: identities}
}

// RequireAuth corta la petición con 401 si no hay una identidad válida.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := m.resolve(c)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// OptionalAuth intenta resolver la identidad pero deja pasar a los anónimos.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := m.resolve(c)
		if err == nil {
			c.Set(identityKey, identity)
		} else if !errors.Is(err, service.ErrUnauthenticated) {
			m.logger.Warn("optional auth failed", zap.Error(err))
		}
		c.Next()
	}
}

func (m *AuthMiddleware) resolve(c *gin.Context) (domain.Identity, error) {
	token := extractToken(c.GetHeader("Authorization"))
	if token == "" {
		return domain.Identity{}, service.ErrUnauthenticated
	}
	userID, err := m.tokens.Verify(token)
	if err != nil {
		return domain.Identity{}, service.ErrUnauthenticated
	}
	return m.identities.ResolveIdentity(c.Request.Context(), userID)
}

// extractToken acepta "Bearer <token>" y también el token sin prefijo.
func extractToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) >= len("bearer ") && strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return header
}

// CurrentIdentity devuelve nil para peticiones anónimas.
func CurrentIdentity(c *gin.Context) *domain.Identity {
	val, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, ok := val.(domain.Identity)
	if !ok {
		return nil
	}
	return &identity
}
