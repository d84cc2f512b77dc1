package repository

import (
	"context"
	"errors"

	"OptionPulse/internal/domain/models"
	"OptionPulse/internal/domain/repository"
)

// FanoutDispatcher delivers each event to every configured sink. Sinks are
// independent: one sink failing does not stop delivery to the others, and the
// joined error reports every failure.
type FanoutDispatcher struct {
	sinks []repository.Dispatcher
}

// NewFanoutDispatcher creates a dispatcher fanning out to the given sinks.
// Nil sinks are skipped so optional integrations can be wired unconditionally.
func NewFanoutDispatcher(sinks ...repository.Dispatcher) repository.Dispatcher {
	kept := make([]repository.Dispatcher, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &FanoutDispatcher{sinks: kept}
}

func (f *FanoutDispatcher) Dispatch(ctx context.Context, ev *models.SignalEvent) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Dispatch(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FanoutDispatcher) DispatchBatch(ctx context.Context, evs []*models.SignalEvent) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.DispatchBatch(ctx, evs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FanoutDispatcher) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
