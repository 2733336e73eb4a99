// Package tracker runs one tracked scan: fetch through the completeness
// gate, diff against the stored snapshot, commit the next snapshot.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-hiring-tracker/internal/diff"
	"go-hiring-tracker/internal/gate"
	"go-hiring-tracker/internal/lock"
	"go-hiring-tracker/internal/metrics"
	"go-hiring-tracker/internal/models"
	"go-hiring-tracker/internal/scraper"
	"go-hiring-tracker/internal/snapshot"

	"go.uber.org/zap"
)

// ErrNotRecorded is returned with a result whose snapshot commit failed.
var ErrNotRecorded = errors.New("snapshot not recorded")

// Reporter consumes finished results, e.g. a chat notifier.
type Reporter interface {
	Report(ctx context.Context, res diff.Result) error
}

type Options struct {
	Gate   gate.Options
	Policy models.Policy
	// CommitDegraded lets a batch that never met the threshold replace the
	// stored snapshot.
	CommitDegraded bool
	// RunBudget bounds one portal run end to end. Zero means unbounded.
	RunBudget time.Duration
}

type Tracker struct {
	sources   scraper.Registry
	store     snapshot.Store
	locker    lock.Locker
	opts      Options
	metrics   *metrics.Metrics
	reporters []Reporter
	log       *zap.Logger
	now       func() time.Time
}

func New(sources scraper.Registry, store snapshot.Store, locker lock.Locker, opts Options, m *metrics.Metrics, log *zap.Logger, reporters ...Reporter) *Tracker {
	if opts.Policy == "" {
		opts.Policy = models.PolicyReplace
	}
	return &Tracker{
		sources:   sources,
		store:     store,
		locker:    locker,
		opts:      opts,
		metrics:   m,
		reporters: reporters,
		log:       log,
		now:       time.Now,
	}
}

// Policy returns the commit policy runs use.
func (t *Tracker) Policy() models.Policy {
	return t.opts.Policy
}

// Run scans one portal. A failed commit still returns the computed result,
// with Recorded unset, alongside ErrNotRecorded.
func (t *Tracker) Run(ctx context.Context, portal models.Portal) (diff.Result, error) {
	key := portal.Key()
	log := t.log.With(zap.String("portal", portal.Name), zap.String("category", portal.Category))
	started := t.now()

	if t.opts.RunBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.RunBudget)
		defer cancel()
	}

	source, err := t.sources.For(portal)
	if err != nil {
		return diff.Result{}, err
	}

	log.Info("🔍 scanning", zap.String("source", source.Name()), zap.String("url", portal.URL))
	outcome, err := gate.FetchWithRetry(ctx, func(ctx context.Context) ([]models.Job, error) {
		return source.Fetch(ctx, portal)
	}, t.opts.Gate, log)
	if err != nil {
		return diff.Result{}, fmt.Errorf("fetch %s: %w", key, err)
	}

	// the lock spans read to commit so overlapping runs cannot interleave
	unlock, err := t.locker.Acquire(ctx, key.String())
	if err != nil {
		return diff.Result{}, err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.Warn("release lock failed", zap.Error(err))
		}
	}()

	previous, err := t.store.Load(ctx, key, t.opts.Policy)
	switch {
	case errors.Is(err, snapshot.ErrCorrupt):
		log.Error("stored snapshot unreadable, treating as first run", zap.Error(err))
		previous = models.Snapshot{SnapshotKey: key, Policy: t.opts.Policy}
	case err != nil:
		return diff.Result{}, fmt.Errorf("load %s: %w", key, err)
	}

	res := diff.Compute(outcome.Jobs, previous, t.opts.Policy)
	res.Portal, res.Category = key.Portal, key.Category
	res.Attempts = outcome.Attempts
	res.Degraded = outcome.Degraded

	var runErr error
	if res.Degraded && !t.opts.CommitDegraded {
		log.Warn("⚠️ degraded batch, snapshot left unchanged", zap.Float64("ratio", outcome.Ratio))
	} else {
		next := models.Snapshot{
			SnapshotKey: key,
			Policy:      t.opts.Policy,
			CommittedAt: t.now().UTC(),
			Jobs:        diff.NextSnapshot(previous.Jobs, res.Current, t.opts.Policy),
		}
		if err := t.store.Commit(ctx, next); err != nil {
			log.Error("❌ commit failed", zap.Error(err))
			res.CommitError = err.Error()
			runErr = fmt.Errorf("%w: %s: %w", ErrNotRecorded, key, err)
		} else {
			res.Recorded = true
		}
	}

	log.Info("📊 scan finished",
		zap.Int("current", len(res.Current)),
		zap.Int("new", len(res.New)),
		zap.Int("removed", len(res.Removed)),
		zap.Int("attempts", res.Attempts),
		zap.Bool("degraded", res.Degraded),
		zap.Bool("recorded", res.Recorded))

	t.metrics.Observe(res, t.now().Sub(started))
	//the outcome is reported even if the run budget ran out during commit
	reportCtx := context.WithoutCancel(ctx)
	for _, r := range t.reporters {
		if err := r.Report(reportCtx, res); err != nil {
			log.Warn("report failed", zap.Error(err))
		}
	}
	return res, runErr
}

// RunAll scans portals one after another. A failing portal does not stop
// the rest; the returned error joins every failure.
func (t *Tracker) RunAll(ctx context.Context, portals []models.Portal) ([]diff.Result, error) {
	var (
		results []diff.Result
		errs    []error
	)
	for _, p := range portals {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res, err := t.Run(ctx, p)
		if err != nil {
			t.log.Error("❌ scan failed", zap.String("portal", p.Name), zap.String("category", p.Category), zap.Error(err))
			errs = append(errs, err)
		}
		if res.Portal != "" {
			results = append(results, res)
		}
	}
	return results, errors.Join(errs...)
}

// Snapshot returns the stored snapshot for a key under the run policy.
func (t *Tracker) Snapshot(ctx context.Context, key models.SnapshotKey) (models.Snapshot, error) {
	return t.store.Load(ctx, key, t.opts.Policy)
}
