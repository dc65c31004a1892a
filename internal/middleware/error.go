package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/clinic-portal/pkg/errors"
)

// ErrorHandler logs the errors handlers recorded with c.Error. Server-side
// failures are logged at error level with their cause; client errors at debug.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		for _, e := range c.Errors {
			level := zerolog.DebugLevel
			if code := apperrors.CodeOf(e.Err); code == apperrors.ErrInternal {
				level = zerolog.ErrorLevel
			}
			log.WithLevel(level).
				Err(e.Err).
				Str("request_id", c.GetString(ContextRequestID)).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("Request error")
		}
	}
}
