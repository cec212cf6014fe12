package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-radar/internal/core/xerrors"
	"github.com/lueurxax/signal-radar/internal/platform/observability"
)

// Registry manages reasoning providers with fallback support.
type Registry struct {
	mu              sync.RWMutex
	providers       map[ProviderName]Provider
	order           []ProviderName // Priority order (highest first)
	circuitBreakers map[ProviderName]*CircuitBreaker
	logger          *zerolog.Logger
}

// NewRegistry creates a new provider registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		providers:       make(map[ProviderName]Provider),
		order:           make([]ProviderName, 0),
		circuitBreakers: make(map[ProviderName]*CircuitBreaker),
		logger:          logger,
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider, cfg CircuitBreakerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	r.providers[name] = p
	r.order = append(r.order, name)
	r.circuitBreakers[name] = NewCircuitBreaker(cfg, r.logger)

	sort.SliceStable(r.order, func(i, j int) bool {
		return r.providers[r.order[i]].Priority() > r.providers[r.order[j]].Priority()
	})

	r.logger.Info().
		Str("provider", string(name)).
		Int("priority", p.Priority()).
		Msg("registered reasoning provider")
}

// ProviderCount returns the number of registered providers.
func (r *Registry) ProviderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.providers)
}

// Complete tries providers in priority order until one succeeds. Failures
// feed the provider's circuit breaker; an open circuit is skipped without
// an attempt. The last error is preserved so callers can still classify
// the failure with errors.Is.
func (r *Registry) Complete(ctx context.Context, req Request) (Response, error) {
	r.mu.RLock()
	order := make([]ProviderName, len(r.order))
	copy(order, r.order)
	r.mu.RUnlock()

	if len(order) == 0 {
		return Response{}, xerrors.ErrNoProvidersAvailable
	}

	var lastErr error

	var previousProvider ProviderName

	attempted := false

	for _, name := range order {
		resp, tried, err := r.tryProvider(ctx, name, req)
		if err != nil {
			lastErr = err

			if !attempted {
				previousProvider = name
			}

			attempted = true

			continue
		}

		if !tried {
			continue
		}

		if attempted && previousProvider != "" {
			observability.LLMFallbacks.WithLabelValues(
				string(previousProvider),
				string(name),
			).Inc()

			r.logger.Info().
				Str("provider", string(name)).
				Str("from_provider", string(previousProvider)).
				Str("task", req.Task).
				Msg("used fallback reasoning provider")
		}

		return resp, nil
	}

	if lastErr != nil {
		return Response{}, errors.Join(xerrors.ErrAllProvidersFailed, lastErr)
	}

	return Response{}, xerrors.ErrNoProvidersAvailable
}

// tryProvider attempts one completion on a single provider. The second
// return value reports whether an attempt was actually made.
func (r *Registry) tryProvider(ctx context.Context, name ProviderName, req Request) (Response, bool, error) {
	r.mu.RLock()
	p, exists := r.providers[name]
	cb := r.circuitBreakers[name]
	r.mu.RUnlock()

	if !exists || !p.IsAvailable() {
		return Response{}, false, nil
	}

	if !cb.CanAttempt() {
		r.logger.Debug().
			Str("provider", string(name)).
			Str("task", req.Task).
			Msg("circuit breaker open, skipping provider")

		return Response{}, false, fmt.Errorf("%w: %s", xerrors.ErrCircuitBreakerOpen, name)
	}

	start := time.Now()

	resp, err := p.Complete(ctx, req)

	duration := time.Since(start)

	observability.LLMRequestDuration.WithLabelValues(string(name), req.Model).Observe(duration.Seconds())

	if err != nil {
		cb.RecordFailure(name)

		r.logger.Warn().
			Err(err).
			Str("provider", string(name)).
			Str("model", req.Model).
			Str("task", req.Task).
			Float64("duration_seconds", duration.Seconds()).
			Msg("reasoning provider failed, trying fallback")

		return Response{}, false, err
	}

	cb.RecordSuccess()

	return resp, true, nil
}

// ProviderStatus holds status information for a provider.
type ProviderStatus struct {
	Name             ProviderName
	Priority         int
	Available        bool
	CircuitBreakerOK bool
}

// ProviderStatuses returns status information for all registered providers.
func (r *Registry) ProviderStatuses() []ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make([]ProviderStatus, 0, len(r.order))

	for _, name := range r.order {
		p := r.providers[name]
		cb := r.circuitBreakers[name]

		statuses = append(statuses, ProviderStatus{
			Name:             name,
			Priority:         p.Priority(),
			Available:        p.IsAvailable(),
			CircuitBreakerOK: cb.CanAttempt(),
		})
	}

	return statuses
}

// Ensure Registry implements Client interface.
var _ Client = (*Registry)(nil)
