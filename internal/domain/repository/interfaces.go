package repository

import (
	"context"

	"OptionPulse/internal/domain/models"
)

// SnapshotStream delivers indicator snapshots from the upstream data pipeline.
type SnapshotStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.IndicatorSnapshot, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Dispatcher receives finalized signal events. Delivery is fire-and-forget
// from the engine's point of view; retries and failures are the gateway's
// concern.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *models.SignalEvent) error
	DispatchBatch(ctx context.Context, evs []*models.SignalEvent) error
	Close() error
}

// SignalArchive persists signal events and serves the read-only history
// queries of the monitoring surface.
type SignalArchive interface {
	Init(ctx context.Context) error
	Append(ctx context.Context, ev *models.SignalEvent) error
	AppendBatch(ctx context.Context, evs []*models.SignalEvent) error
	History(ctx context.Context, key models.SignalKey, limit int) ([]*models.SignalEvent, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics records engine observability signals.
type Metrics interface {
	RecordEvent(kind, symbol string)
	RecordError(kind string)
	RecordActiveSignals(n int)
	RecordConfidence(symbol string, confidence float64)
	RecordLatency(op string, seconds float64)
}
