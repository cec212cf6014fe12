// Package retrypolicy applies a declarative retry policy to
// reasoning-service and store calls. Stages declare attempts and a backoff
// schedule; one shared wrapper decides what is retryable, so no stage
// carries bespoke retry loops.
package retrypolicy

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/lueurxax/signal-radar/internal/core/xerrors"
)

// Policy describes bounded retries with an explicit backoff schedule.
// A schedule shorter than Retries reuses its last entry.
type Policy struct {
	Retries int
	Backoff []time.Duration
}

// NoRetry performs a single attempt.
var NoRetry = Policy{}

func (p Policy) backoff() retry.Backoff {
	attempt := 0

	return retry.BackoffFunc(func() (time.Duration, bool) {
		if attempt >= p.Retries || len(p.Backoff) == 0 {
			return 0, true
		}

		idx := attempt
		if idx >= len(p.Backoff) {
			idx = len(p.Backoff) - 1
		}

		attempt++

		return p.Backoff[idx], false
	})
}

// Do runs fn under the policy. Only errors wrapping xerrors.ErrTransient
// are retried; validation and fatal errors surface immediately.
func Do(ctx context.Context, p Policy, logger *zerolog.Logger, stage string, fn func(context.Context) error) error {
	attempt := 0

	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++

		err := fn(ctx)
		if err == nil {
			return nil
		}

		if xerrors.Is(err, xerrors.ErrTransient) {
			logger.Warn().
				Err(err).
				Str("stage", stage).
				Int("attempt", attempt).
				Msg("transient failure, will retry")

			return retry.RetryableError(err)
		}

		return err
	})
}
