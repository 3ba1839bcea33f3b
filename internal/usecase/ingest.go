package usecase

import (
	"context"
	"fmt"
	"time"

	"FXPulse/internal/alerts"
	"FXPulse/internal/domain/models"
	drepo "FXPulse/internal/domain/repository"
	"FXPulse/internal/market"
)

// Broadcaster is the hub surface the ingest path needs.
type Broadcaster interface {
	BroadcastPrice(ps models.PriceState)
	BroadcastAlert(ta models.TriggeredAlert)
}

// TickIngestor is the tick normalizer and dispatcher. It runs on a single
// goroutine, preserving per-instrument ordering, and performs no network
// I/O: fan-out and event publishing are queue handoffs.
type TickIngestor struct {
	cache   *market.PriceCache
	candles *market.Aggregator
	alerts  *alerts.Engine
	hub     Broadcaster
	pub     drepo.EventPublisher // optional
	metrics drepo.Metrics

	lastTs map[string]time.Time // per-instrument last accepted timestamp
}

// NewTickIngestor creates the ingest pipeline stage.
func NewTickIngestor(
	cache *market.PriceCache,
	candles *market.Aggregator,
	engine *alerts.Engine,
	hub Broadcaster,
	pub drepo.EventPublisher,
	metrics drepo.Metrics,
) *TickIngestor {
	return &TickIngestor{
		cache:   cache,
		candles: candles,
		alerts:  engine,
		hub:     hub,
		pub:     pub,
		metrics: metrics,
		lastTs:  make(map[string]time.Time),
	}
}

// Process validates one raw tick and, if accepted, commits it to the cache
// first, then candles and alerts, then fans it out. The cache-first order
// guarantees alerts never fire against a price older than the cache's.
// Rejected ticks mutate nothing.
func (i *TickIngestor) Process(ctx context.Context, t models.Tick) error {
	start := time.Now()

	if err := i.validate(&t); err != nil {
		return err
	}

	i.lastTs[t.Symbol] = t.Timestamp

	ps := i.cache.Update(t)
	i.candles.Apply(t)
	fired := i.alerts.Evaluate(t)

	i.metrics.RecordTickAccepted(t.Symbol)
	i.metrics.RecordLastPrice(t.Symbol, ps.Mid)

	i.hub.BroadcastPrice(ps)
	if i.pub != nil {
		_ = i.pub.PublishTick(ctx, t)
	}

	for _, ta := range fired {
		i.hub.BroadcastAlert(ta)
		if i.pub != nil {
			_ = i.pub.PublishAlert(ctx, ta)
		}
	}

	i.metrics.RecordLatency("ingest", time.Since(start).Seconds())
	return nil
}

// validate applies the discard rules and canonicalizes the symbol.
func (i *TickIngestor) validate(t *models.Tick) error {
	if t.Symbol == "" {
		i.metrics.RecordTickRejected("empty_symbol")
		return fmt.Errorf("empty symbol")
	}
	t.Symbol = models.NormalizeSymbol(t.Symbol)

	if t.Bid <= 0 || t.Ask <= 0 {
		i.metrics.RecordTickRejected("non_positive_price")
		return fmt.Errorf("%s: non-positive price", t.Symbol)
	}
	if t.Bid > t.Ask {
		i.metrics.RecordTickRejected("crossed_quote")
		return fmt.Errorf("%s: bid %v above ask %v", t.Symbol, t.Bid, t.Ask)
	}
	if last, ok := i.lastTs[t.Symbol]; ok && t.Timestamp.Before(last) {
		i.metrics.RecordTickRejected("out_of_order")
		return fmt.Errorf("%s: out-of-order tick %s < %s", t.Symbol, t.Timestamp, last)
	}
	return nil
}
