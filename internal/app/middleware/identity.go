package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/swipedeck/swipedeck/internal/app/models"
)

const userIDKey = "userID"

// Identity resolves the caller from the X-User-ID header. A missing or
// malformed header maps to the shared anonymous identity rather than an
// error, so unauthenticated browsing still gets a working feed.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := models.AnonymousUserID
		if raw := c.GetHeader("X-User-ID"); raw != "" {
			if parsed, err := uuid.Parse(raw); err == nil {
				userID = parsed
			}
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserIDFrom returns the identity set by Identity, falling back to the
// anonymous id when the middleware did not run.
func UserIDFrom(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return models.AnonymousUserID
}
