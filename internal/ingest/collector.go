// Package ingest turns whatever the collectors produce into a clean,
// deduplicated stream of raw signals for the pipeline. Fetching itself
// lives behind the Collector interface; this package never talks to the
// network.
package ingest

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-radar/internal/core/domain"
)

// Collector yields the raw signals of one source. Implementations fetch
// from feeds, APIs or files; a failing source must return an error rather
// than a partial silent result.
type Collector interface {
	// Source returns the stable source identifier, used for signal
	// identity and metrics labels.
	Source() string

	// Collect fetches the source's current signals.
	Collect(ctx context.Context) ([]domain.RawSignal, error)
}

// SourceError records a per-source collection failure. One source failing
// never fails the cycle; the error list travels with the merged stream.
type SourceError struct {
	Source string
	Err    error
}

// Set is a collector registry with per-source enable flags.
type Set struct {
	collectors []Collector
	disabled   map[string]bool
	logger     *zerolog.Logger
}

// NewSet creates a collector set.
func NewSet(logger *zerolog.Logger, collectors ...Collector) *Set {
	return &Set{
		collectors: collectors,
		disabled:   make(map[string]bool),
		logger:     logger,
	}
}

// Disable switches a source off without removing its collector.
func (s *Set) Disable(source string) {
	s.disabled[source] = true
}

// Collect runs every enabled collector sequentially and merges the
// results. Per-source failures are captured, logged and returned
// alongside the signals.
func (s *Set) Collect(ctx context.Context) ([]domain.RawSignal, []SourceError) {
	var (
		signals []domain.RawSignal
		errs    []SourceError
	)

	for _, c := range s.collectors {
		if s.disabled[c.Source()] {
			continue
		}

		collected, err := c.Collect(ctx)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("source", c.Source()).
				Msg("source collection failed, continuing with remaining sources")

			errs = append(errs, SourceError{Source: c.Source(), Err: err})

			continue
		}

		signals = append(signals, collected...)
	}

	return signals, errs
}

// StaticCollector serves a fixed set of signals. Used in tests and local
// runs that feed the pipeline from a file.
type StaticCollector struct {
	source  string
	signals []domain.RawSignal
}

// NewStaticCollector creates a collector over a fixed signal slice.
func NewStaticCollector(source string, signals []domain.RawSignal) *StaticCollector {
	return &StaticCollector{source: source, signals: signals}
}

// Source implements Collector.
func (c *StaticCollector) Source() string {
	return c.source
}

// Collect implements Collector.
func (c *StaticCollector) Collect(_ context.Context) ([]domain.RawSignal, error) {
	out := make([]domain.RawSignal, len(c.signals))
	copy(out, c.signals)

	return out, nil
}

// Ensure StaticCollector implements Collector interface.
var _ Collector = (*StaticCollector)(nil)
