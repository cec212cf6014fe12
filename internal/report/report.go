// Package report is the delivery boundary. Rendering and notification
// channels live behind the Reporter interface; the pipeline only hands
// over the finished synthesis and its evidence.
package report

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-radar/internal/core/domain"
)

// Reporter delivers a finished synthesis. A delivery failure never undoes
// the cycle; persisted state is the source of truth.
type Reporter interface {
	Deliver(ctx context.Context, synthesis domain.Synthesis, analyses []domain.AnalyzedSignal) error
}

// LogReporter writes the synthesis to the structured log. The default
// delivery until a real channel is wired in.
type LogReporter struct {
	logger *zerolog.Logger
}

// NewLogReporter creates a log-backed reporter.
func NewLogReporter(logger *zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Deliver implements Reporter.
func (r *LogReporter) Deliver(_ context.Context, synthesis domain.Synthesis, analyses []domain.AnalyzedSignal) error {
	event := r.logger.Info().
		Str("mode", string(synthesis.Period.Mode)).
		Str("period", synthesis.Period.Key).
		Int("relevance", synthesis.RelevanceScore).
		Bool("mechanical", synthesis.Mechanical).
		Int("trends", len(synthesis.Trends)).
		Int("analyses", len(analyses))

	event.Str("summary", synthesis.Summary).Msg("synthesis ready")

	return nil
}

// Ensure LogReporter implements Reporter interface.
var _ Reporter = (*LogReporter)(nil)
