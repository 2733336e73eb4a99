// Package gate accepts a fetched batch only when enough of its records are
// complete, re-running the whole fetch otherwise.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-hiring-tracker/internal/models"

	"go.uber.org/zap"
)

// ErrNoAttempts is returned when every attempt failed outright.
var ErrNoAttempts = errors.New("no fetch attempt succeeded")

type Options struct {
	// Threshold is the completeness ratio a batch must exceed.
	// A threshold of 1 or more demands that every record is complete.
	Threshold   float64
	MaxAttempts int
	// Backoff is the fixed wait between attempts.
	Backoff time.Duration
	// RequireLocation counts a record as complete only with a location too.
	RequireLocation bool
}

// FetchFunc performs one full fetch attempt.
type FetchFunc func(ctx context.Context) ([]models.Job, error)

// Outcome is the batch the gate settled on.
type Outcome struct {
	Jobs     []models.Job
	Attempts int
	Ratio    float64
	// Degraded is set when no attempt met the threshold and the best one
	// was returned instead.
	Degraded bool
}

// Ratio is the fraction of complete records; an empty batch scores 0.
func Ratio(jobs []models.Job, requireLocation bool) float64 {
	if len(jobs) == 0 {
		return 0
	}
	complete := 0
	for _, job := range jobs {
		if job.HasTitle() && (!requireLocation || job.HasLocation()) {
			complete++
		}
	}
	return float64(complete) / float64(len(jobs))
}

// Complete applies the acceptance rule to a batch.
func (o Options) Complete(jobs []models.Job) bool {
	if len(jobs) == 0 {
		return false
	}
	r := Ratio(jobs, o.RequireLocation)
	if o.Threshold >= 1 {
		return r == 1
	}
	return r > o.Threshold
}

// FetchWithRetry runs fetch until a batch is complete or MaxAttempts is used
// up. On exhaustion it returns the most complete successful batch (the later
// one on ties) marked Degraded. Errors from fetch are retried like incomplete
// batches; if no attempt succeeded the last error is returned.
func FetchWithRetry(ctx context.Context, fetch FetchFunc, opts Options, log *zap.Logger) (Outcome, error) {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	var (
		best    Outcome
		hasBest bool
		lastErr error
	)

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, opts.Backoff); err != nil {
				return finish(best, hasBest, attempt-1, fmt.Errorf("retry wait: %w", err))
			}
		}

		jobs, err := fetch(ctx)
		if err != nil {
			lastErr = err
			log.Warn("fetch attempt failed",
				zap.Int("attempt", attempt), zap.Int("max_attempts", opts.MaxAttempts), zap.Error(err))
			if ctx.Err() != nil {
				return finish(best, hasBest, attempt, err)
			}
			continue
		}

		ratio := Ratio(jobs, opts.RequireLocation)
		if opts.Complete(jobs) {
			log.Info("✅ fetch complete",
				zap.Int("attempt", attempt), zap.Int("jobs", len(jobs)), zap.Float64("ratio", ratio))
			return Outcome{Jobs: jobs, Attempts: attempt, Ratio: ratio}, nil
		}

		log.Warn("fetch incomplete, retrying",
			zap.Int("attempt", attempt), zap.Int("jobs", len(jobs)), zap.Float64("ratio", ratio))
		if !hasBest || ratio >= best.Ratio {
			best = Outcome{Jobs: jobs, Ratio: ratio}
			hasBest = true
		}
	}

	if !hasBest {
		return Outcome{Attempts: opts.MaxAttempts}, fmt.Errorf("%w after %d attempts: %w", ErrNoAttempts, opts.MaxAttempts, lastErr)
	}
	best.Attempts = opts.MaxAttempts
	best.Degraded = true
	log.Warn("attempts exhausted, using best batch",
		zap.Int("jobs", len(best.Jobs)), zap.Float64("ratio", best.Ratio))
	return best, nil
}

// finish ends the loop early on cancellation, still surfacing a partial best.
func finish(best Outcome, hasBest bool, attempts int, err error) (Outcome, error) {
	if !hasBest {
		return Outcome{Attempts: attempts}, err
	}
	best.Attempts = attempts
	best.Degraded = true
	return best, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
