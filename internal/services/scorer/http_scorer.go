package scorer

import (
	"context"
	"fmt"

	"OptionPulse/internal/domain/models"
	domsvc "OptionPulse/internal/domain/service"
	"OptionPulse/pkg/config"
)

// HTTPDirectionScorer consults an external model-serving endpoint for the
// probability that an instrument moves up. It is advisory: callers fall back
// to the deterministic decision when it errors.
type HTTPDirectionScorer struct{ base *HTTPServiceBase }

func NewHTTPDirectionScorer(cfg *config.Config) *HTTPDirectionScorer {
	return &HTTPDirectionScorer{base: NewHTTPServiceBase(cfg)}
}

type scoreReq struct {
	Symbol     string             `json:"symbol"`
	Strike     float64            `json:"strike"`
	OptionType string             `json:"option_type"`
	Features   map[string]float64 `json:"features"`
}

type scoreResp struct {
	ProbaUp    float64 `json:"proba_up"`
	ModelID    string  `json:"model_id"`
	Confidence float64 `json:"confidence"`
}

func (s *HTTPDirectionScorer) Score(ctx context.Context, key models.SignalKey, features map[string]float64) (float64, error) {
	var sr scoreResp
	req := scoreReq{
		Symbol:     key.Symbol,
		Strike:     key.Strike,
		OptionType: string(key.OptionType),
		Features:   features,
	}
	if err := s.base.PostJSONWithRetry(ctx, "/score", req, &sr, 2); err != nil {
		return 0, fmt.Errorf("post score: %w", err)
	}
	if sr.ProbaUp < 0 || sr.ProbaUp > 1 {
		return 0, fmt.Errorf("scorer returned proba_up %v out of [0,1]", sr.ProbaUp)
	}
	return sr.ProbaUp, nil
}

var _ domsvc.DirectionScorer = (*HTTPDirectionScorer)(nil)
