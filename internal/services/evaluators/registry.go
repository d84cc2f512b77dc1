package evaluators

import (
	"fmt"

	domsvc "OptionPulse/internal/domain/service"
	"OptionPulse/pkg/config"
)

// Entry pairs an evaluator with its aggregation weight.
type Entry struct {
	Evaluator domsvc.Evaluator
	Weight    float64
}

// Registry holds the evaluators consulted each decision pass. The aggregator
// iterates the registry and never hardcodes evaluator identities, so new
// indicators plug in without touching aggregation logic.
type Registry struct {
	order   []string
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds an evaluator under its own name. Registering the same name
// twice is a programming error.
func (r *Registry) Register(ev domsvc.Evaluator, weight float64) error {
	name := ev.Name()
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("evaluator %q already registered", name)
	}
	r.order = append(r.order, name)
	r.entries[name] = Entry{Evaluator: ev, Weight: weight}
	return nil
}

// Names returns evaluator names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get returns the entry for name.
func (r *Registry) Get(name string) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Len returns the number of registered evaluators.
func (r *Registry) Len() int { return len(r.order) }

// NewDefaultRegistry builds the stock PCR/RSI/OI-volume registry with weights
// taken from the engine config.
func NewDefaultRegistry(cfg *config.EngineConfig) (*Registry, error) {
	r := NewRegistry()
	for _, ev := range []domsvc.Evaluator{
		NewPCREvaluator(cfg),
		NewRSIEvaluator(cfg),
		NewOIVolumeEvaluator(cfg),
	} {
		w, ok := cfg.Weights[ev.Name()]
		if !ok {
			return nil, fmt.Errorf("weights: missing evaluator %q", ev.Name())
		}
		if err := r.Register(ev, w); err != nil {
			return nil, err
		}
	}
	return r, nil
}
