package app

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/gridroom/gridroom-server/internal/config"
	"github.com/gridroom/gridroom-server/internal/core"
	transporthttp "github.com/gridroom/gridroom-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	registry        *core.Registry
	log             *zerolog.Logger
}

// New constructs the application with provided configuration. The registry
// lives exactly as long as the process; nothing is persisted.
func New(cfg *config.Config, logger *zerolog.Logger) *App {
	stats := core.NewStats()
	registry := core.NewRegistry(stats, logger)
	fanout := core.NewFanout(registry, stats, logger)

	server := transporthttp.NewServer(registry, fanout, stats, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		registry:        registry,
		log:             logger,
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
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
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}
