package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"lca-companion/internal/shared/metrics"
	"lca-companion/internal/shared/server/respond"
	"lca-companion/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 error envelope. The panic is
// logged with the message action and job it was serving, when known.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			metrics.IncHTTPPanics()

			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"error":      fmt.Sprint(rec),
				"stack":      string(debug.Stack()),
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"route":      c.FullPath(),
				"principal":  PrincipalFromContext(c),
			}
			if action := c.GetString(ActionKey); action != "" {
				fields["action"] = action
			}
			if jobID := c.GetString(JobIDKey); jobID != "" {
				fields["job_id"] = jobID
			}
			telemetry.Error("http.panic", fields)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal", "Unexpected server error", nil)
		}()
		c.Next()
	}
}
