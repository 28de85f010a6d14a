package respond

import (
	"github.com/gin-gonic/gin"

	"lca-companion/internal/shared/telemetry"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error logs and sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if jobID := c.Param("id"); jobID != "" {
		fields["job_id"] = jobID
	}
	if status >= 500 {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// ValidationError sends a 400 with per-field details.
func ValidationError(c *gin.Context, message string, fields map[string]string) {
	details := make([]map[string]string, 0, len(fields))
	for field, issue := range fields {
		details = append(details, map[string]string{"field": field, "issue": issue})
	}
	Error(c, 400, "validation_error", message, details)
}
