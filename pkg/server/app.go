package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"FXPulse/internal/alerts"
	drepo "FXPulse/internal/domain/repository"
	"FXPulse/internal/usecase"
	"FXPulse/pkg/config"
	xhttp "FXPulse/pkg/http"
	applogger "FXPulse/pkg/logger"
)

// App encapsulates the application lifecycle: alert engine, feed
// supervisor, HTTP server, and the optional infrastructure sinks.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    xhttp.Handler
	engine     *alerts.Engine
	supervisor *usecase.FeedSupervisor
	publisher  drepo.EventPublisher
	sink       drepo.CandleSink
	store      drepo.AlertStore

	httpServer *xhttp.Server
}

// New creates an App with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	engine *alerts.Engine,
	supervisor *usecase.FeedSupervisor,
	publisher drepo.EventPublisher,
	sink drepo.CandleSink,
	store drepo.AlertStore,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		handler:    handler,
		engine:     engine,
		supervisor: supervisor,
		publisher:  publisher,
		sink:       sink,
		store:      store,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.engine.Start(ctx); err != nil {
		return err
	}

	go a.supervisor.Run(ctx)
	a.log.Info("feed supervisor started",
		applogger.String("url", a.cfg.Tiingo.WebSocketURL))

	serverOpts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	}
	if a.cfg.Metrics.Enabled && a.cfg.Metrics.Path != "" {
		serverOpts = append(serverOpts, xhttp.WithMetricsPath(a.cfg.Metrics.Path))
	}
	a.httpServer = xhttp.NewServer(a.handler, serverOpts...)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops components in dependency order: feed first so no new
// ticks arrive, then the HTTP surface, then the queues behind them.
func (a *App) shutdown() error {
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	a.engine.Stop()

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("event publisher close error", applogger.Error(err))
		}
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.log.Warn("candle sink close error", applogger.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("alert store close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
