package middlewares

import (
	"context"
	"errors"
	"strings"

	"github.com/geocoder89/storefront/internal/actorctx"
	"github.com/geocoder89/storefront/internal/apperr"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/gin-gonic/gin"
)

const MsgLoginRequired = "You must be logged in"

// Keep these interfaces small so tests can fake them easily.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type UserLoader interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type SessionMiddleware struct {
	tokens     TokenVerifier
	users      UserLoader
	cookieName string
}

func NewSessionMiddleware(tokens TokenVerifier, users UserLoader, cookieName string) *SessionMiddleware {
	return &SessionMiddleware{tokens: tokens, users: users, cookieName: cookieName}
}

// RequireSession authenticates the request from the session cookie (or a
// Bearer header) and attaches the loaded user. Every failure is a 401 with
// the same message.
func (m *SessionMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := m.tokenFrom(c)
		if raw == "" {
			Fail(c, apperr.New(apperr.KindUnauthenticated, MsgLoginRequired))
			return
		}

		userID, err := m.tokens.Verify(raw)
		if err != nil {
			Fail(c, apperr.Wrap(apperr.KindUnauthenticated, err, MsgLoginRequired))
			return
		}

		u, err := m.users.GetByID(c.Request.Context(), userID)
		if errors.Is(err, user.ErrNotFound) {
			// a deleted account looks exactly like a bad token
			Fail(c, apperr.Wrap(apperr.KindUnauthenticated, err, MsgLoginRequired))
			return
		}
		if err != nil {
			Fail(c, err)
			return
		}

		c.Set(CtxUser, u)
		c.Request = c.Request.WithContext(actorctx.WithUser(c.Request.Context(), u))

		c.Next()
	}
}

func (m *SessionMiddleware) tokenFrom(c *gin.Context) string {
	if raw, err := c.Cookie(m.cookieName); err == nil && raw != "" {
		return raw
	}

	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// CurrentUser returns the identity RequireSession attached, if any.
func CurrentUser(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(CtxUser)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok && u.ID != ""
}
