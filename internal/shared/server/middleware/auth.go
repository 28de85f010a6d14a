package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lca-companion/internal/shared/server/respond"
)

const (
	principalKey = "principal"
	tokenHeader  = "X-LCA-Token"
)

// LocalAuth guards the companion API with a shared token. An empty token
// disables the check, which is the default for loopback-only setups.
// Public paths are served without a token.
func LocalAuth(token string, public ...string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(token))
	open := make(map[string]struct{}, len(public))
	for _, p := range public {
		open[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		if _, ok := open[c.Request.URL.Path]; ok || len(expected) == 0 {
			c.Set(principalKey, "local")
			c.Next()
			return
		}

		presented := strings.TrimSpace(c.GetHeader(tokenHeader))
		if presented == "" {
			authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(authHeader, "Bearer ") {
				presented = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			}
		}
		if presented == "" || subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(principalKey, "token")
		c.Next()
	}
}

// PrincipalFromContext returns who LocalAuth admitted the request as.
func PrincipalFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(principalKey)
	if p, ok := val.(string); ok {
		return p
	}
	return ""
}
