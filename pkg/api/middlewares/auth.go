package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/getship/shipd/pkg/domain/entities"
	"github.com/getship/shipd/pkg/services"
)

const (
	contextKeyRole  = "shipd-role"
	contextKeyLabel = "shipd-token-label"
)

// RequireRole authenticates the bearer token and authorizes it against the
// allowed roles. An empty roles list means any authenticated role. When the
// token store is in open mode the request is granted admin.
func RequireRole(tokens *services.TokenService, roles ...entities.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens.OpenMode() {
			c.Set(contextKeyRole, entities.RoleAdmin)
			c.Set(contextKeyLabel, "open-mode")
			c.Next()
			return
		}

		raw, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		rec, err := tokens.Authenticate(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}
		c.Set(contextKeyRole, rec.Role)
		c.Set(contextKeyLabel, rec.Label)

		if len(roles) > 0 && !roleAllowed(rec.Role, roles) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// RoleFrom returns the authenticated role attached to the request.
func RoleFrom(c *gin.Context) entities.Role {
	if v, ok := c.Get(contextKeyRole); ok {
		if role, ok := v.(entities.Role); ok {
			return role
		}
	}
	return ""
}

// CallerLabel identifies the token (or open mode) behind the request, for
// the build audit trail.
func CallerLabel(c *gin.Context) string {
	if v, ok := c.Get(contextKeyLabel); ok {
		if label, ok := v.(string); ok {
			return label
		}
	}
	return "unknown"
}

func roleAllowed(role entities.Role, allowed []entities.Role) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}
