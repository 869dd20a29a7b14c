package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jam-service/internal/identity"
)

const participantContextKey = "participant"

// AuthMiddleware resolves the Authorization bearer token to a participant
// identity through the external auth service.
func AuthMiddleware(resolver identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		participant, err := resolver.Resolve(c.Request.Context(), parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(participantContextKey, participant)
		c.Next()
	}
}

// ParticipantFromContext returns the identity resolved by AuthMiddleware.
func ParticipantFromContext(c *gin.Context) (identity.Participant, bool) {
	val, ok := c.Get(participantContextKey)
	if !ok {
		return identity.Participant{}, false
	}
	participant, ok := val.(identity.Participant)
	return participant, ok
}
