package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/storefront/internal/apperr"
	"github.com/gin-gonic/gin"
)

// RequireJSON rejects write requests that carry a non-JSON body.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if c.Request.ContentLength == 0 {
				break
			}
			ct := c.GetHeader("Content-Type")
			// allow "application/json; charset=utf-8"
			if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
				Fail(c, apperr.New(apperr.KindBadRequest, "Content-Type must be application/json"))
				return
			}
		}
		c.Next()
	}
}
