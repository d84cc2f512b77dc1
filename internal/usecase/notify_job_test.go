package usecase

import (
	"context"
	"encoding/json"
	"testing"
)

func TestSignalAlertJobHandlesQueuedEvent(t *testing.T) {
	met := newFakeMetrics()
	job := NewSignalAlertJob("signal_event", testLogger(t), met)

	if job.Type() != "signal_event" {
		t.Fatalf("job type = %q", job.Type())
	}

	payload := map[string]interface{}{
		"type":        "CREATE",
		"symbol":      "NIFTY",
		"strike":      24000.0,
		"option_type": "CE",
		"direction":   "BUY_CE",
		"confidence":  0.72,
		"reasons":     "pcr bullish; rsi oversold",
		"ts":          int64(1756000000000),
	}
	if err := job.Handle(context.Background(), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if met.events["notified"] != 1 {
		t.Fatalf("expected notified metric, got %+v", met.events)
	}
}

func TestSignalAlertJobHandlesRawJSON(t *testing.T) {
	met := newFakeMetrics()
	job := NewSignalAlertJob("", testLogger(t), met)

	raw := json.RawMessage(`{"type":"EXPIRE","symbol":"BANKNIFTY","strike":51000,"option_type":"PE","direction":"BUY_PE","confidence":0.65,"reason":"cooldown_elapsed","ts":1756000000000}`)
	if err := job.Handle(context.Background(), raw); err != nil {
		t.Fatalf("handle raw json: %v", err)
	}
	if met.events["notified"] != 1 {
		t.Fatalf("expected notified metric, got %+v", met.events)
	}
}

func TestSignalAlertJobRejectsMalformedPayload(t *testing.T) {
	met := newFakeMetrics()
	job := NewSignalAlertJob("signal_event", testLogger(t), met)

	if err := job.Handle(context.Background(), 42); err == nil {
		t.Fatalf("expected error for non-object payload")
	}
	if err := job.Handle(context.Background(), map[string]interface{}{"direction": "BUY_CE"}); err == nil {
		t.Fatalf("expected error when symbol and type are missing")
	}
	if met.events["notified"] != 0 {
		t.Fatalf("malformed payloads must not count as notified")
	}
}
