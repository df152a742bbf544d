package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agenthub/backend/internal/auth"
	"github.com/agenthub/backend/internal/util"
)

// RequireAuth validates the Bearer token and stores the authenticated user
// in the Gin context under "user" and "user_id". Inactive users are rejected
// even when their token is otherwise valid.
func RequireAuth(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			util.RespondUnauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			util.RespondUnauthorized(c, "invalid authorization header format")
			c.Abort()
			return
		}

		user, err := authService.ValidateToken(tokenString)
		if err != nil {
			util.RespondUnauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Next()
	}
}

// OptionalAuth resolves the Bearer token when one is present but lets
// anonymous requests through. Handlers that vary output by viewer (for
// example authors seeing their own pending submissions) use this on
// otherwise-public routes.
func OptionalAuth(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if tokenString, found := strings.CutPrefix(header, "Bearer "); found && tokenString != "" {
			if user, err := authService.ValidateToken(tokenString); err == nil {
				c.Set("user", user)
				c.Set("user_id", user.ID)
			}
		}
		c.Next()
	}
}
