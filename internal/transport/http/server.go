package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/cardroom-server/internal/auth"
	"github.com/vovakirdan/cardroom-server/internal/config"
	"github.com/vovakirdan/cardroom-server/internal/core"
	"github.com/vovakirdan/cardroom-server/internal/store"
)

// NewServer builds the HTTP server: health check, the websocket endpoint and
// the token protected directory API.
func NewServer(srv *core.Server, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(srv, cfg, logger)))

	api := NewAPIHandlers(srv, authService, logger)
	router.POST("/api/login", api.Login)

	protected := router.Group("/api", AuthMiddleware(authService, logger))
	protected.GET("/me", api.Me)
	protected.GET("/rooms", api.ListRooms)
	protected.GET("/rooms/:id", api.GetRoom)
	protected.GET("/users/:name/games", api.GamesOfUser)

	moderation := protected.Group("", RequireLevel(store.LevelModerator))
	moderation.GET("/users", api.ListUsers)
	moderation.GET("/sessions", api.ListSessions)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
