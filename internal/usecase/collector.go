package usecase

import (
	"context"

	"OptionPulse/internal/domain/models"
	drepo "OptionPulse/internal/domain/repository"
	mid "OptionPulse/internal/middleware"
)

// SnapshotCollector pulls indicator snapshots off the stream and feeds the
// cycle scheduler. Stream errors trigger a reconnect; snapshots are never
// processed outside the scheduler's dedupe queue.
type SnapshotCollector struct {
	stream    drepo.SnapshotStream
	scheduler *mid.CycleScheduler
	metrics   drepo.Metrics
}

func NewSnapshotCollector(stream drepo.SnapshotStream, scheduler *mid.CycleScheduler, metrics drepo.Metrics) *SnapshotCollector {
	return &SnapshotCollector{stream: stream, scheduler: scheduler, metrics: metrics}
}

// IsConnected returns true if the snapshot stream is connected.
func (c *SnapshotCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *SnapshotCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.scheduler.Start(ctx)
	snapCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, snapCh, errCh)
	return nil
}

func (c *SnapshotCollector) consume(ctx context.Context, snapCh <-chan *models.IndicatorSnapshot, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				// Read loop exited; reconnect and take the fresh channels.
				if ctx.Err() != nil {
					return
				}
				c.metrics.RecordError("stream")
				if rerr := c.stream.Reconnect(ctx); rerr != nil {
					continue // Reconnect sleeps the backoff internally
				}
				snapCh, errCh = c.stream.Read(ctx)
				continue
			}
			if err != nil {
				c.metrics.RecordError("stream")
			}
		case snap, ok := <-snapCh:
			if !ok {
				// Wait for the error branch to reconnect.
				snapCh = nil
				continue
			}
			if snap == nil {
				continue
			}
			if err := c.scheduler.Offer(*snap); err != nil {
				c.metrics.RecordError("snapshot_reject")
			}
		}
	}
}

func (c *SnapshotCollector) Stop() error { return c.stream.Close() }

// Shutdown stops the scheduler and closes the stream.
func (c *SnapshotCollector) Shutdown(ctx context.Context) error {
	c.scheduler.Stop()
	return c.stream.Close()
}
