package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS sets CORS headers and handles preflight requests. An allowed origin
// ending in "*" matches any origin with that prefix, e.g. "chrome-extension://*".
func CORS(allowedOrigins []string) gin.HandlerFunc {
	exact := make(map[string]struct{})
	var prefixes []string
	for _, o := range allowedOrigins {
		trimmed := strings.TrimSpace(o)
		switch {
		case trimmed == "":
		case strings.HasSuffix(trimmed, "*"):
			prefixes = append(prefixes, strings.TrimSuffix(trimmed, "*"))
		default:
			exact[trimmed] = struct{}{}
		}
	}
	allowed := func(origin string) bool {
		if _, ok := exact[origin]; ok {
			return true
		}
		for _, p := range prefixes {
			if strings.HasPrefix(origin, p) {
				return true
			}
		}
		return false
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && allowed(origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-LCA-Token, X-Request-Id")
			h.Set("Access-Control-Expose-Headers", "X-Request-Id")
			h.Set("Access-Control-Max-Age", "600")
		}

		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}

		c.Next()
	}
}
