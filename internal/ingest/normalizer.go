package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-radar/internal/core/domain"
	"github.com/lueurxax/signal-radar/internal/platform/observability"
)

// Drop reasons for metrics.
const (
	dropReasonDuplicate = "duplicate"
	dropReasonEmpty     = "empty"
)

// Normalizer assigns identities, repairs timestamps and drops in-cycle
// duplicates before ranking sees anything.
type Normalizer struct {
	logger *zerolog.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(logger *zerolog.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Identity derives the stable signal id from source, url and title. The
// same upstream item always maps to the same id, so re-collected signals
// upsert instead of duplicating.
func Identity(sig domain.RawSignal) string {
	h := sha256.New()
	h.Write([]byte(sig.Source))
	h.Write([]byte{0})
	h.Write([]byte(sig.SourceURL))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(sig.Title)))

	return hex.EncodeToString(h.Sum(nil))
}

// Normalize cleans the merged collector output. Order is preserved for
// the signals that survive.
func (n *Normalizer) Normalize(signals []domain.RawSignal, now time.Time) []domain.RawSignal {
	seen := make(map[string]bool, len(signals))
	out := make([]domain.RawSignal, 0, len(signals))

	for _, sig := range signals {
		sig.Title = strings.TrimSpace(sig.Title)
		sig.Body = strings.TrimSpace(sig.Body)

		if sig.Title == "" && sig.Body == "" {
			observability.SignalsDropped.WithLabelValues(dropReasonEmpty).Inc()

			n.logger.Debug().
				Str("source", sig.Source).
				Str("url", sig.SourceURL).
				Msg("dropping empty signal")

			continue
		}

		if sig.ID == "" {
			sig.ID = Identity(sig)
		}

		if seen[sig.ID] {
			observability.SignalsDropped.WithLabelValues(dropReasonDuplicate).Inc()

			n.logger.Debug().
				Str("signal_id", sig.ID).
				Str("source", sig.Source).
				Msg("dropping in-cycle duplicate")

			continue
		}

		seen[sig.ID] = true

		if sig.CollectedAt.IsZero() {
			sig.CollectedAt = now
		}

		sig.PublishedAt = n.repairPublishedAt(sig)

		observability.SignalsIngested.WithLabelValues(sig.Source).Inc()

		out = append(out, sig)
	}

	return out
}

// repairPublishedAt falls back to the source-reported metadata timestamp,
// then to the collection time. Sources report dates in every format
// imaginable, hence dateparse.
func (n *Normalizer) repairPublishedAt(sig domain.RawSignal) time.Time {
	if !sig.PublishedAt.IsZero() {
		return sig.PublishedAt
	}

	if raw := sig.Metadata["published"]; raw != "" {
		parsed, err := dateparse.ParseAny(raw)
		if err == nil {
			return parsed
		}

		n.logger.Debug().
			Str("signal_id", sig.ID).
			Str("published", raw).
			Msg("unparseable published timestamp, using collection time")
	}

	return sig.CollectedAt
}
