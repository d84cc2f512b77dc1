package models

// Requests for the engine query API. Defined in domain for consistency and reuse.

type ActiveSignalsRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
}

type SignalHistoryRequest struct {
	Symbol     string  `query:"symbol" json:"symbol" validate:"required"`
	Strike     float64 `query:"strike" json:"strike" validate:"gte=0"`
	OptionType string  `query:"option_type" json:"option_type" default:"CE" validate:"oneof=CE PE"`
	Limit      int     `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
	// From and To bound the event timestamps (RFC3339 or unix seconds).
	// From defaults to the start of the current trading day, To to now.
	From string `query:"from" json:"from"`
	To   string `query:"to" json:"to"`
}

type EngineStatusResponse struct {
	ActiveSignals      []TrackedSignal   `json:"active_signals"`
	ActiveCount        int               `json:"active_count"`
	RateLimitRemaining int               `json:"rate_limit_remaining"`
	ArchiveHealthy     bool              `json:"archive_healthy"`
	Config             any               `json:"config"`
	Errors             map[string]string `json:"errors,omitempty"`
}
