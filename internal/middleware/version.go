package middleware

import (
	"github.com/gin-gonic/gin"
)

const HeaderAPIVersion = "X-API-Version"

// Version stamps every response with the API version.
func Version(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header(HeaderAPIVersion, version)
		c.Next()
	}
}
