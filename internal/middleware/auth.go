package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-portal/internal/handler"
	"github.com/jwalitptl/clinic-portal/internal/model"
	apperrors "github.com/jwalitptl/clinic-portal/pkg/errors"
)

const (
	ContextSession = "session"
	ContextToken   = "token"
	ContextUserID  = "userID"
	ContextRole    = "role"
)

var errMissingToken = apperrors.Unauthorized(nil)

// SessionResolver maps a bearer token to its live session.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*model.Session, error)
}

type AuthMiddleware struct {
	sessions SessionResolver
}

func NewAuthMiddleware(sessions SessionResolver) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// Authenticate resolves the bearer token and stores the session in context.
// Guest sessions pass; chain DenyGuest where they must not.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			handler.RespondError(c, errMissingToken)
			c.Abort()
			return
		}

		session, err := m.sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			handler.RespondError(c, err)
			c.Abort()
			return
		}

		c.Set(ContextSession, session)
		c.Set(ContextToken, token)
		c.Set(ContextUserID, session.UserID)
		c.Set(ContextRole, session.Role)
		c.Next()
	}
}

// DenyGuest rejects guest sessions.
func (m *AuthMiddleware) DenyGuest() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s := SessionFrom(c); s == nil || s.Guest {
			handler.RespondError(c, apperrors.Forbidden("Sign in to access this resource"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole admits registered users holding one of roles.
func (m *AuthMiddleware) RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := SessionFrom(c)
		if s == nil || s.Guest {
			handler.RespondError(c, apperrors.Forbidden("Sign in to access this resource"))
			c.Abort()
			return
		}
		for _, r := range roles {
			if s.Role == r {
				c.Next()
				return
			}
		}
		handler.RespondError(c, apperrors.Forbidden("Permission denied"))
		c.Abort()
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// SessionFrom returns the session set by Authenticate, or nil.
func SessionFrom(c *gin.Context) *model.Session {
	v, ok := c.Get(ContextSession)
	if !ok {
		return nil
	}
	s, _ := v.(*model.Session)
	return s
}
