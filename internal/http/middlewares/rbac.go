package middlewares

import (
	"fmt"
	"slices"

	"github.com/geocoder89/storefront/internal/apperr"
	"github.com/gin-gonic/gin"
)

// RequireRoles lets a request through only when the session user's role is
// in roles. It must be mounted after RequireSession.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := slices.Clone(roles)

	return func(c *gin.Context) {
		u, ok := CurrentUser(c)

		if !ok {
			Fail(c, apperr.New(apperr.KindUnauthenticated, MsgLoginRequired))
			return
		}

		if !slices.Contains(allowed, u.Role) {
			Fail(c, apperr.New(apperr.KindForbidden,
				fmt.Sprintf("Role (%s) is not allowed to access this resource", u.Role)))
			return
		}
		c.Next()
	}
}
