// README: Firebase bearer-token auth middleware; exposes caller uid and role to handlers.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridehail/internal/infra"
	"ridehail/internal/types"
)

const (
	callerUIDKey  = "caller_uid"
	callerRoleKey = "caller_role"
)

// Auth rejects requests without a valid "Bearer <id token>" header. The
// caller role comes from the token's custom "role" claim and defaults to rider.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil || token == nil || token.UID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		role := types.RoleRider
		if v, ok := token.Claims["role"].(string); ok && types.Role(v).Valid() {
			role = types.Role(v)
		}
		c.Set(callerUIDKey, types.ID(token.UID))
		c.Set(callerRoleKey, role)
		c.Next()
	}
}

func CallerUID(c *gin.Context) types.ID {
	if v, ok := c.Get(callerUIDKey); ok {
		if id, ok := v.(types.ID); ok {
			return id
		}
	}
	return ""
}

func CallerRole(c *gin.Context) types.Role {
	if v, ok := c.Get(callerRoleKey); ok {
		if r, ok := v.(types.Role); ok {
			return r
		}
	}
	return ""
}

// RequireRole aborts with 403 unless the caller holds one of roles.
func RequireRole(roles ...types.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := CallerRole(c)
		for _, r := range roles {
			if caller == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role not permitted"})
	}
}
