package modes

import (
	"sort"
	"sync"

	"github.com/sidepot/settler/internal/domain"
)

// Key identifies a validator bundle: one settlement mode in one league.
type Key struct {
	ModeKey string
	League  domain.League
}

// Registry maps {mode, league} to its validator. It is populated once by the
// composition root at process start; there are no package-level singletons.
type Registry struct {
	mu         sync.RWMutex
	validators map[Key]Validator
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[Key]Validator)}
}

// Register adds a validator under its {mode, league} key, replacing any
// previous registration.
func (r *Registry) Register(v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[Key{ModeKey: v.ModeKey(), League: v.League()}] = v
}

// Get retrieves the validator for a mode in a league.
func (r *Registry) Get(modeKey string, league domain.League) (Validator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[Key{ModeKey: modeKey, League: league}]
	return v, ok
}

// ForLeague returns the league's validators in stable mode-key order.
func (r *Registry) ForLeague(league domain.League) []Validator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Validator
	for k, v := range r.validators {
		if k.League == league {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModeKey() < out[j].ModeKey() })
	return out
}

// Leagues returns every league with at least one registered validator,
// sorted.
func (r *Registry) Leagues() []domain.League {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[domain.League]bool)
	for k := range r.validators {
		seen[k.League] = true
	}
	out := make([]domain.League, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
