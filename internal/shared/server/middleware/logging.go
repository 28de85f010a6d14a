package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"lca-companion/internal/shared/telemetry"
)

// Context keys handlers may set to enrich the request log line.
const (
	ActionKey = "action"
	JobIDKey  = "jobId"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		jobID := c.GetString(JobIDKey)
		if jobID == "" {
			jobID = c.Param("id")
		}

		telemetry.Info("request.complete", map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"principal":   PrincipalFromContext(c),
			"action":      c.GetString(ActionKey),
			"job_id":      jobID,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		})
	}
}
