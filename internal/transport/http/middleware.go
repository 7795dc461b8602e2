package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/cardroom-server/internal/auth"
	"github.com/vovakirdan/cardroom-server/internal/store"
)

const (
	// ContextKeyUserName is the context key for storing the user name.
	ContextKeyUserName = "user_name"
	// ContextKeyLevel is the context key for storing the store.UserLevel bits.
	ContextKeyLevel = "user_level"
	// ContextKeyIsGuest is the context key for storing guest status.
	ContextKeyIsGuest = "is_guest"
)

// AuthMiddleware creates a middleware that validates JWT tokens.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Debug().Msg("missing authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "missing authorization header"})
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			logger.Debug().Msg("invalid authorization header format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid authorization header format"})
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			return
		}

		c.Set(ContextKeyUserName, claims.UserName)
		c.Set(ContextKeyLevel, claims.Level)
		c.Set(ContextKeyIsGuest, claims.Guest())

		c.Next()
	}
}

// RequireLevel rejects requests whose token lacks the given level bit.
// It must run after AuthMiddleware.
func RequireLevel(level store.UserLevel) gin.HandlerFunc {
	return func(c *gin.Context) {
		granted, _ := c.Get(ContextKeyLevel)
		if lvl, ok := granted.(store.UserLevel); !ok || !lvl.Has(level) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "insufficient privileges"})
			return
		}
		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
