package models

import "time"

// SignalState is the lifecycle state of a tracked signal.
type SignalState string

const (
	StateActive  SignalState = "ACTIVE"
	StateExpired SignalState = "EXPIRED"
)

// TrackedSignal is the only entity that survives across decision cycles.
// At most one active TrackedSignal exists per key at any instant.
type TrackedSignal struct {
	Key           SignalKey   `json:"key"`
	Direction     Direction   `json:"direction"`
	Confidence    float64     `json:"confidence"`
	State         SignalState `json:"state"`
	CreatedAt     time.Time   `json:"created_at"`
	LastRenewedAt time.Time   `json:"last_renewed_at"`
	ExpiresAt     time.Time   `json:"expires_at"`
	RenewedCount  int         `json:"renewed_count"`
	IsActive      bool        `json:"is_active"`
	// ExpireReason is set when the signal leaves ACTIVE.
	ExpireReason string `json:"expire_reason,omitempty"`
}

// EventType classifies signal lifecycle events sent to the dispatch gateway.
type EventType string

const (
	EventCreate     EventType = "CREATE"
	EventRenew      EventType = "RENEW"
	EventExpire     EventType = "EXPIRE"
	EventSuppressed EventType = "SUPPRESSED"
)

// Expire and suppression reasons.
const (
	ReasonDirectionFlip   = "direction_flip"
	ReasonCooldownElapsed = "cooldown_elapsed"
	ReasonRateLimited     = "rate_limit_exceeded"
)

// SignalEvent is one finalized lifecycle event. The gateway maps events to
// persistence and notification; the engine never calls those directly.
type SignalEvent struct {
	Type       EventType `json:"type"`
	Key        SignalKey `json:"key"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`
	Reasons    []string  `json:"reasons,omitempty"`
	// Reason carries the expiry or suppression cause where applicable.
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
