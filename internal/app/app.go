package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/buddychat/buddychat-server/internal/auth"
	"github.com/buddychat/buddychat-server/internal/config"
	"github.com/buddychat/buddychat-server/internal/core"
	"github.com/buddychat/buddychat-server/internal/service/buddies"
	"github.com/buddychat/buddychat-server/internal/store"
	"github.com/buddychat/buddychat-server/internal/store/sqlite"
	transporthttp "github.com/buddychat/buddychat-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	buddyIndex := core.NewBuddyIndex()
	buddyService := buddies.New(st, buddyIndex)
	if err := buddyService.WarmIndex(context.Background()); err != nil {
		st.Close()
		return nil, fmt.Errorf("warm buddy index: %w", err)
	}

	hubCfg := core.DefaultHubConfig()
	hubCfg.IdleTimeout = cfg.IdleTimeout
	hubCfg.OfflineQueueAlertSize = cfg.OfflineQueueAlertSize
	hub := core.NewHub(st, buddyIndex, hubCfg, logger)

	server := transporthttp.NewServer(hub, authService, buddyService, st, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		a.hub.Run(hubCtx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup(stopHub, hubDone)
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		// Tell every live connection goodbye before tearing transport down.
		a.hub.Shutdown("server restarting")

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup(stopHub, hubDone)
			return err
		}

		a.cleanup(stopHub, hubDone)
		return <-serverErr
	}
}

// cleanup stops the hub loop and closes database resources.
func (a *App) cleanup(stopHub context.CancelFunc, hubDone <-chan struct{}) {
	stopHub()
	select {
	case <-hubDone:
	case <-time.After(a.shutdownTimeout):
		a.log.Warn().Msg("hub did not stop in time")
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
