package usecase

import (
	"context"
	"fmt"
	"time"

	domrepo "OptionPulse/internal/domain/repository"
	"OptionPulse/pkg/logger"
	"OptionPulse/pkg/queue"
)

// signalAlert mirrors the payload the dispatchers enqueue per signal event.
type signalAlert struct {
	Type       string  `json:"type"`
	Symbol     string  `json:"symbol"`
	Strike     float64 `json:"strike"`
	OptionType string  `json:"option_type"`
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
	Reasons    string  `json:"reasons"`
	Reason     string  `json:"reason"`
	Ts         int64   `json:"ts"`
}

// SignalAlertJob is the in-process notification worker: it drains queued
// signal events and emits operator alert lines. Malformed payloads are
// returned as errors so the queue's retry and dead-letter handling applies.
type SignalAlertJob struct {
	msgType string
	log     *logger.Logger
	metrics domrepo.Metrics
}

func NewSignalAlertJob(msgType string, log *logger.Logger, metrics domrepo.Metrics) *SignalAlertJob {
	if msgType == "" {
		msgType = "signal_event"
	}
	return &SignalAlertJob{msgType: msgType, log: log, metrics: metrics}
}

func (j *SignalAlertJob) Name() string { return "signal_alert" }

func (j *SignalAlertJob) Type() string { return j.msgType }

func (j *SignalAlertJob) Handle(ctx context.Context, payload interface{}) error {
	alert, err := queue.ParsePayload[signalAlert](payload)
	if err != nil {
		return fmt.Errorf("signal alert payload: %w", err)
	}
	if alert.Symbol == "" || alert.Type == "" {
		return fmt.Errorf("signal alert payload missing symbol or type")
	}

	j.log.Info("signal alert",
		logger.String("summary", formatAlert(alert)),
		logger.String("type", alert.Type),
		logger.String("direction", alert.Direction),
		logger.String("reasons", alert.Reasons),
		logger.String("reason", alert.Reason))
	j.metrics.RecordEvent("notified", alert.Symbol)
	return nil
}

// formatAlert renders the one-line operator summary.
func formatAlert(a *signalAlert) string {
	return fmt.Sprintf("%s %s %s %g %s conf=%.2f at %s",
		a.Type, a.Direction, a.Symbol, a.Strike, a.OptionType, a.Confidence,
		time.UnixMilli(a.Ts).UTC().Format(time.RFC3339))
}
