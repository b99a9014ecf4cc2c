package middleware

import (
	"io"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"catalogsync/internal/logger"
)

// Recovery turns a handler panic into a 500 and logs it with the request
// fields. Gin drops panics from broken client connections before handle runs.
func Recovery(logger *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered interface{}) {
		log := logger.With(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"client_ip", c.ClientIP(),
		)
		log.Error("Panic recovered: %v", recovered)
		log.Debug("Panic stack:\n%s", debug.Stack())

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	})
}
