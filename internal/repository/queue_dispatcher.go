package repository

import (
	"context"
	"errors"

	"OptionPulse/internal/domain/models"
	"OptionPulse/internal/domain/repository"
	"OptionPulse/pkg/queue"
)

// QueueDispatcher implements Dispatcher over the Redis job queue. Events are
// enqueued for the notification workers (webhook and chat senders) that run
// outside this service, with the queue's retry and dead-letter handling.
type QueueDispatcher struct {
	svc     queue.QueueService
	msgType string
}

// NewQueueDispatcher creates a queue-backed dispatcher.
func NewQueueDispatcher(svc queue.QueueService, msgType string) repository.Dispatcher {
	if msgType == "" {
		msgType = "signal_event"
	}
	return &QueueDispatcher{svc: svc, msgType: msgType}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, ev *models.SignalEvent) error {
	return d.svc.PublishMessage(ctx, d.msgType, eventPayload(ev))
}

func (d *QueueDispatcher) DispatchBatch(ctx context.Context, evs []*models.SignalEvent) error {
	var errs []error
	for _, ev := range evs {
		if err := d.Dispatch(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *QueueDispatcher) Close() error { return nil }
