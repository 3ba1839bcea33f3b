package di

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"FXPulse/internal/alerts"
	drepo "FXPulse/internal/domain/repository"
	"FXPulse/internal/handler/api"
	"FXPulse/internal/hub"
	"FXPulse/internal/market"
	internalrepo "FXPulse/internal/repository"
	"FXPulse/internal/service/tiingo"
	"FXPulse/internal/usecase"
	pkgch "FXPulse/pkg/clickhouse"
	"FXPulse/pkg/config"
	pkgkafka "FXPulse/pkg/kafka"
	applogger "FXPulse/pkg/logger"
	"FXPulse/pkg/metrics"
	"FXPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates the Prometheus recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvidePriceCache creates the in-memory quote cache.
func ProvidePriceCache() *market.PriceCache {
	return market.NewPriceCache()
}

// ProvideCandleSink creates the ClickHouse archive when enabled.
// A nil sink means closed candles are kept in memory only.
func ProvideCandleSink(cfg *config.Config, m drepo.Metrics, l *applogger.Logger) (drepo.CandleSink, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	archive, err := internalrepo.NewClickHouseCandleArchive(client, cfg.ClickHouse.Table, m, l,
		internalrepo.WithFlush(cfg.ClickHouse.FlushSize, cfg.ClickHouse.FlushEvery))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("candle archive: %w", err)
	}
	return archive, nil
}

// ProvideAggregator creates the candle aggregator.
func ProvideAggregator(cfg *config.Config, sink drepo.CandleSink) *market.Aggregator {
	tfs := make([]drepo.Timeframe, 0, len(cfg.Candles.Timeframes))
	for _, tf := range cfg.Candles.Timeframes {
		tfs = append(tfs, drepo.Timeframe(tf))
	}
	opts := []market.AggregatorOption{}
	if sink != nil {
		opts = append(opts, market.WithSink(sink))
	}
	return market.NewAggregator(tfs, cfg.Candles.SeriesCapacity, opts...)
}

// ProvideAlertStore creates the Redis alert store when enabled.
// A nil store means alerts are in-memory only.
func ProvideAlertStore(cfg *config.Config, l *applogger.Logger) drepo.AlertStore {
	if !cfg.Redis.Enabled {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return internalrepo.NewRedisAlertStore(rdb, cfg.Redis.Prefix, l)
}

// ProvideAlertEngine creates the alert engine.
func ProvideAlertEngine(cfg *config.Config, store drepo.AlertStore, m drepo.Metrics, l *applogger.Logger) *alerts.Engine {
	opts := []alerts.Option{
		alerts.WithRetry(cfg.Alerts.RetryQueue, cfg.Alerts.RetryLimit, cfg.Alerts.RetryBackoff),
	}
	if store != nil {
		opts = append(opts, alerts.WithStore(store))
	}
	return alerts.NewEngine(m, l, opts...)
}

// ProvideHub creates the websocket broadcast hub.
func ProvideHub(cfg *config.Config, cache *market.PriceCache, m drepo.Metrics, l *applogger.Logger) *hub.Hub {
	return hub.New(cache, m, l,
		hub.WithQueueSize(cfg.Hub.ClientQueueSize),
		hub.WithTimeouts(cfg.Hub.WriteTimeout, cfg.Hub.PongTimeout),
	)
}

// ProvideEventPublisher creates the Kafka publisher when enabled.
func ProvideEventPublisher(cfg *config.Config, m drepo.Metrics, l *applogger.Logger) (drepo.EventPublisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, 0, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.TickTopic, cfg.Kafka.AlertTopic, m, l), nil
}

// ProvideMarketStream creates the Tiingo websocket client.
func ProvideMarketStream(cfg *config.Config, l *applogger.Logger) drepo.MarketStream {
	return tiingo.New(
		cfg.Tiingo.APIKey,
		cfg.Tiingo.WebSocketURL,
		cfg.Tiingo.ThresholdLevel,
		cfg.Tiingo.PingInterval,
		l,
	)
}

// ProvideIngestor creates the tick ingest pipeline.
func ProvideIngestor(
	cache *market.PriceCache,
	candles *market.Aggregator,
	engine *alerts.Engine,
	h *hub.Hub,
	pub drepo.EventPublisher,
	m drepo.Metrics,
) *usecase.TickIngestor {
	return usecase.NewTickIngestor(cache, candles, engine, h, pub, m)
}

// ProvideSupervisor creates the feed supervisor.
func ProvideSupervisor(
	cfg *config.Config,
	stream drepo.MarketStream,
	ingestor *usecase.TickIngestor,
	cache *market.PriceCache,
	engine *alerts.Engine,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.FeedSupervisor {
	return usecase.NewFeedSupervisor(stream, ingestor, cache, engine, m, l,
		usecase.WithBackoff(cfg.Tiingo.Backoff.Initial, cfg.Tiingo.Backoff.Max),
		usecase.WithStaleAfter(cfg.Tiingo.StaleAfter),
	)
}

// ProvideHandler creates the HTTP handler.
func ProvideHandler(
	l *applogger.Logger,
	cache *market.PriceCache,
	candles *market.Aggregator,
	engine *alerts.Engine,
	h *hub.Hub,
	supervisor *usecase.FeedSupervisor,
) *api.ForexHandler {
	return api.NewForexHandler(l, cache, candles, engine, h, supervisor)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.ForexHandler,
	engine *alerts.Engine,
	supervisor *usecase.FeedSupervisor,
	pub drepo.EventPublisher,
	sink drepo.CandleSink,
	store drepo.AlertStore,
) *server.App {
	return server.New(cfg, l, handler, engine, supervisor, pub, sink, store)
}
