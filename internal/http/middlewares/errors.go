package middlewares

import (
	"log/slog"
	"net/http"

	"github.com/geocoder89/storefront/internal/apperr"
	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Fail records err on the gin context and stops the chain. ErrorHandler
// renders it; nothing else writes error responses.
func Fail(c *gin.Context, err error) {
	if err == nil {
		err = apperr.New(apperr.KindServer, "unknown error")
	}
	_ = c.Error(err)
	c.Abort()
}

// ErrorHandler is the single translation point from error kinds to
// {success:false,message} responses. Register it before any route.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		ae := apperr.From(c.Errors.Last().Err)
		status := ae.Kind.Status()

		if status >= http.StatusInternalServerError {
			slog.Default().ErrorContext(c.Request.Context(), "request failed",
				"route", c.FullPath(),
				"kind", ae.Kind.String(),
				"err", c.Errors.Last().Err,
			)
		}

		c.JSON(status, errorBody{
			Success:   false,
			Message:   ae.Error(),
			Details:   ae.Details,
			RequestID: requestIDFrom(c),
		})
	}
}

// Recovery turns a panic into a 500 rendered like every other error.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.Default().ErrorContext(c.Request.Context(), "panic recovered", "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
			Success:   false,
			Message:   "Internal Server Error",
			RequestID: requestIDFrom(c),
		})
	})
}

func requestIDFrom(c *gin.Context) string {
	if v, ok := c.Get(CtxRequestID); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return c.GetHeader(requestIDHeader)
}
