package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/cardroom-server/internal/auth"
	"github.com/vovakirdan/cardroom-server/internal/config"
	"github.com/vovakirdan/cardroom-server/internal/core"
	"github.com/vovakirdan/cardroom-server/internal/isl"
	"github.com/vovakirdan/cardroom-server/internal/store"
	"github.com/vovakirdan/cardroom-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/cardroom-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server *stdhttp.Server
	cfg    *config.Config
	core   *core.Server
	bridge *isl.Bridge
	store  store.Store
	log    *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	authService := auth.NewService(st, JWTConfig(cfg))

	srv := core.NewServer(Settings(cfg.Server), st, authService, logger)
	for _, rc := range cfg.Rooms {
		if _, err := srv.AddRoom(roomConfig(rc)); err != nil {
			st.Close()
			return nil, fmt.Errorf("add room %d: %w", rc.ID, err)
		}
	}

	a := &App{
		server: transporthttp.NewServer(srv, authService, cfg, logger),
		cfg:    cfg,
		core:   srv,
		store:  st,
		log:    logger,
	}

	if cfg.NATSURL != "" {
		bridge, err := isl.Connect(cfg.NATSURL, cfg.Server.ID, srv, logger)
		if err != nil {
			st.Close()
			return nil, err
		}
		srv.SetForwarder(bridge)
		srv.SetGameListener(bridge)
		a.bridge = bridge
	}

	return a, nil
}

// JWTConfig builds the token settings from the configuration.
func JWTConfig(cfg *config.Config) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
}

// Settings converts the server section of the configuration.
func Settings(sc config.ServerConfig) core.Settings {
	return core.Settings{
		ServerID:                sc.ID,
		Name:                    sc.Name,
		ClientKeepAlive:         sc.ClientKeepAlive,
		MaxPlayerInactivityTime: sc.MaxPlayerInactivityTime,
		IdleClientTimeout:       sc.IdleClientTimeout,
		RateLimits: core.RateLimits{
			MessageCountingInterval:    sc.MessageCountingInterval,
			MaxMessageCountPerInterval: sc.MaxMessageCountPerInterval,
			MaxMessageSizePerInterval:  sc.MaxMessageSizePerInterval,
			CommandCountingInterval:    sc.CommandCountingInterval,
			MaxCommandCountPerInterval: sc.MaxCommandCountPerInterval,
		},
		MaxGamesPerUser:         sc.MaxGamesPerUser,
		MaxUserTotal:            sc.MaxUserTotal,
		PermitUnregisteredUsers: sc.PermitUnregisteredUsers,
		RequireClientID:         sc.RequireClientID,
		PermitCreateGameAsJudge: sc.PermitCreateGameAsJudge,
		ServerFeatures:          sc.ServerFeatures,
		RequiredFeatures:        sc.RequiredFeatures,
		MaxChatHistory:          sc.MaxChatHistory,
		LoginMessage:            sc.LoginMessage,
		OutboundQueue:           sc.OutboundQueue,
	}
}

func roomConfig(rc config.RoomConfig) core.RoomConfig {
	return core.RoomConfig{
		ID:             rc.ID,
		Name:           rc.Name,
		Description:    rc.Description,
		Permission:     rc.Permission,
		PrivilegeLevel: rc.PrivilegeLevel,
		JoinMessage:    rc.JoinMessage,
		AutoJoin:       rc.AutoJoin,
		GameTypes:      rc.GameTypes,
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	if a.bridge != nil {
		if err := a.bridge.Start(); err != nil {
			a.cleanup()
			return err
		}
	}

	clockCtx, stopClock := context.WithCancel(ctx)
	defer stopClock()
	go a.core.Run(clockCtx)

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.cfg.Addr).Int("server_id", a.cfg.Server.ID).Msg("listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		// Sessions are told first so clients see the reason before the socket closes.
		a.core.Shutdown()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the inter-server link, the database and other resources.
func (a *App) cleanup() {
	if a.bridge != nil {
		a.bridge.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
