//go:build wireinject
// +build wireinject

package di

import (
	"FXPulse/pkg/config"
	"FXPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideCandleSink,
		ProvideAlertStore,
		ProvideEventPublisher,
		ProvideMarketStream,

		// Core engine
		ProvidePriceCache,
		ProvideAggregator,
		ProvideAlertEngine,
		ProvideHub,

		// Pipeline
		ProvideIngestor,
		ProvideSupervisor,

		// Surface
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
