package gateway

import (
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/mohbadar/pay-connector/internal/domain/errors"
)

// Registry holds the configured providers, dispatched at runtime by the
// charge's provider name, each behind its own circuit breaker.
type Registry struct {
	providers       map[string]Provider
	circuitBreakers map[string]*gobreaker.CircuitBreaker[Result]
}

// NewRegistry creates a registry over the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{
		providers:       make(map[string]Provider),
		circuitBreakers: make(map[string]*gobreaker.CircuitBreaker[Result]),
	}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds a provider and wires a circuit breaker for it.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
	r.circuitBreakers[p.Name()] = gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
	})
}

// Get returns the provider and its circuit breaker by name.
func (r *Registry) Get(name string) (Provider, *gobreaker.CircuitBreaker[Result], error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown provider %q: %w", name, errors.ErrProviderNotFound)
	}
	return p, r.circuitBreakers[name], nil
}
