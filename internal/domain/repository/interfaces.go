package repository

import (
	"context"

	"FXPulse/internal/domain/models"
)

// MarketStream is the upstream quote feed connection.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.Tick, <-chan error)
	Close() error
	IsConnected() bool
}

// AlertStore is the external durable store behind the persistence boundary.
// The engine stays correct when the store is down; failures degrade
// durability only.
type AlertStore interface {
	LoadArmed(ctx context.Context) ([]models.Alert, error)
	Save(ctx context.Context, a models.Alert) error
	Delete(ctx context.Context, id int64) error
	Close() error
}

// EventPublisher feeds external collaborators with accepted ticks and
// alert-trigger events.
type EventPublisher interface {
	PublishTick(ctx context.Context, t models.Tick) error
	PublishAlert(ctx context.Context, ta models.TriggeredAlert) error
	Close() error
}

// CandleSink receives closed candles for external archival. Implementations
// must not block the ingest path.
type CandleSink interface {
	Archive(c models.Candle)
	Close() error
}

// Metrics records operational counters and gauges.
type Metrics interface {
	RecordTickAccepted(symbol string)
	RecordTickRejected(reason string)
	RecordLastPrice(symbol string, price float64)
	RecordAlertFired(condition string)
	RecordDroppedMessage(kind string)
	SetConnectedClients(n int)
	SetFeedConnected(connected bool)
	RecordLatency(op string, seconds float64)
}
