package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-portal/internal/handler"
)

// Recovery turns panics into 500 responses. When Sentry is initialised the
// panic is reported there as well.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				stack := debug.Stack()

				log.Error().
					Interface("error", rec).
					Str("stack", string(stack)).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Str("client_ip", c.ClientIP()).
					Str("request_id", c.GetString(ContextRequestID)).
					Msg("Request panic recovered")

				if hub := sentry.CurrentHub(); hub.Client() != nil {
					hub = hub.Clone()
					hub.Scope().SetRequest(c.Request)
					hub.Scope().SetTag("request_id", c.GetString(ContextRequestID))
					hub.RecoverWithContext(c.Request.Context(), fmt.Errorf("panic: %v", rec))
				}

				c.AbortWithStatusJSON(http.StatusInternalServerError, handler.NewErrorResponse("Internal server error"))
			}
		}()
		c.Next()
	}
}
