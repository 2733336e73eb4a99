package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-hiring-tracker/internal/diff"
	"go-hiring-tracker/internal/gate"
	"go-hiring-tracker/internal/lock"
	"go-hiring-tracker/internal/models"
	"go-hiring-tracker/internal/scraper"
	"go-hiring-tracker/internal/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	batches [][]models.Job
	calls   int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(context.Context, models.Portal) ([]models.Job, error) {
	b := f.batches[min(f.calls, len(f.batches)-1)]
	f.calls++
	return b, nil
}

type memStore struct {
	snaps     map[models.SnapshotKey]models.Snapshot
	loadErr     error
	commitErr   error
	commitDelay time.Duration
	commits     int
}

func newMemStore() *memStore {
	return &memStore{snaps: map[models.SnapshotKey]models.Snapshot{}}
}

func (m *memStore) Load(_ context.Context, key models.SnapshotKey, policy models.Policy) (models.Snapshot, error) {
	if m.loadErr != nil {
		return models.Snapshot{SnapshotKey: key, Policy: policy}, m.loadErr
	}
	s, ok := m.snaps[key]
	if !ok {
		return models.Snapshot{SnapshotKey: key, Policy: policy}, nil
	}
	return s, nil
}

func (m *memStore) Commit(_ context.Context, snap models.Snapshot) error {
	time.Sleep(m.commitDelay)
	if m.commitErr != nil {
		return m.commitErr
	}
	m.commits++
	m.snaps[snap.SnapshotKey] = snap
	return nil
}

type fakeLocker struct {
	held     map[string]bool
	acquired int
}

func (l *fakeLocker) Acquire(_ context.Context, key string) (lock.Unlock, error) {
	if l.held[key] {
		return nil, lock.ErrLocked
	}
	l.held[key] = true
	l.acquired++
	return func(context.Context) error {
		delete(l.held, key)
		return nil
	}, nil
}

type recorder struct{ results []diff.Result }

func (r *recorder) Report(_ context.Context, res diff.Result) error {
	r.results = append(r.results, res)
	return nil
}

// ctxRecorder keeps the context error seen at report time.
type ctxRecorder struct{ errs []error }

func (r *ctxRecorder) Report(ctx context.Context, _ diff.Result) error {
	r.errs = append(r.errs, ctx.Err())
	return ctx.Err()
}

var portal = models.Portal{Name: "tower-research", Kind: "fake", Category: "all", URL: "https://example.test"}

func jobs(ids ...string) []models.Job {
	out := make([]models.Job, len(ids))
	for i, id := range ids {
		out[i] = models.Job{ID: id, Title: "Role " + id, Location: "Singapore"}
	}
	return out
}

func newTracker(src *fakeSource, store *memStore, opts Options, reporters ...Reporter) (*Tracker, *fakeLocker) {
	if opts.Gate.MaxAttempts == 0 {
		opts.Gate = gate.Options{Threshold: 0.95, MaxAttempts: 3}
	}
	l := &fakeLocker{held: map[string]bool{}}
	return New(scraper.NewRegistry(src), store, l, opts, nil, zap.NewNop(), reporters...), l
}

func TestRun_ColdStartThenDiff(t *testing.T) {
	src := &fakeSource{batches: [][]models.Job{jobs("A", "B", "C")}}
	store := newMemStore()
	rec := &recorder{}
	tr, l := newTracker(src, store, Options{Policy: models.PolicyReplace}, rec)

	res, err := tr.Run(context.Background(), portal)
	require.NoError(t, err)
	assert.True(t, res.ColdStart)
	assert.True(t, res.Recorded)
	assert.Len(t, res.New, 3)
	assert.Equal(t, "tower-research", res.Portal)

	src.batches = [][]models.Job{jobs("B", "C", "D")}
	res, err = tr.Run(context.Background(), portal)
	require.NoError(t, err)
	assert.False(t, res.ColdStart)
	assert.Equal(t, "D", res.New[0].ID)
	assert.Equal(t, "A", res.Removed[0].ID)
	assert.Len(t, store.snaps[portal.Key()].Jobs, 3)

	assert.Len(t, rec.results, 2)
	assert.Empty(t, l.held, "lock must be released")
}

func TestRun_ReportsAfterBudgetExpires(t *testing.T) {
	src := &fakeSource{batches: [][]models.Job{jobs("A", "B")}}
	store := newMemStore()
	store.commitDelay = 100 * time.Millisecond
	rec := &ctxRecorder{}
	tr, _ := newTracker(src, store, Options{Policy: models.PolicyReplace, RunBudget: 20 * time.Millisecond}, rec)

	res, err := tr.Run(context.Background(), portal)
	require.NoError(t, err)
	assert.True(t, res.Recorded)
	require.Len(t, rec.errs, 1)
	assert.NoError(t, rec.errs[0], "reporters must not inherit the expired run budget")
}

func TestRun_AppendKeepsHistory(t *testing.T) {
	src := &fakeSource{batches: [][]models.Job{jobs("A", "B")}}
	store := newMemStore()
	tr, _ := newTracker(src, store, Options{Policy: models.PolicyAppend})

	_, err := tr.Run(context.Background(), portal)
	require.NoError(t, err)

	src.batches = [][]models.Job{jobs("C")}
	res, err := tr.Run(context.Background(), portal)
	require.NoError(t, err)
	assert.Nil(t, res.Removed)
	assert.Len(t, store.snaps[portal.Key()].Jobs, 3)
	assert.Equal(t, models.PolicyAppend, store.snaps[portal.Key()].Policy)
}

func TestRun_DegradedIsNotCommittedByDefault(t *testing.T) {
	partial := jobs("A", "B", "C", "D")
	partial[0].Title = ""
	src := &fakeSource{batches: [][]models.Job{partial}}
	store := newMemStore()
	tr, _ := newTracker(src, store, Options{Policy: models.PolicyReplace, Gate: gate.Options{Threshold: 0.95, MaxAttempts: 2}})

	res, err := tr.Run(context.Background(), portal)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.False(t, res.Recorded)
	assert.Equal(t, 2, res.Attempts)
	assert.Zero(t, store.commits)
}

func TestRun_DegradedCommittedWhenAllowed(t *testing.T) {
	partial := jobs("A", "B")
	partial[1].Title = ""
	src := &fakeSource{batches: [][]models.Job{partial}}
	store := newMemStore()
	tr, _ := newTracker(src, store, Options{Policy: models.PolicyReplace, CommitDegraded: true,
		Gate: gate.Options{Threshold: 0.95, MaxAttempts: 1}})

	res, err := tr.Run(context.Background(), portal)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.True(t, res.Recorded)
	assert.Equal(t, 1, store.commits)
}

func TestRun_CommitFailureIsSurfaced(t *testing.T) {
	src := &fakeSource{batches: [][]models.Job{jobs("A")}}
	store := newMemStore()
	store.commitErr = errors.New("disk full")
	rec := &recorder{}
	tr, l := newTracker(src, store, Options{}, rec)

	res, err := tr.Run(context.Background(), portal)
	assert.ErrorIs(t, err, ErrNotRecorded)
	assert.False(t, res.Recorded)
	assert.Equal(t, "disk full", res.CommitError)
	assert.Len(t, res.New, 1)
	require.Len(t, rec.results, 1)
	assert.Empty(t, l.held)
}

func TestRun_CorruptSnapshotIsColdStart(t *testing.T) {
	src := &fakeSource{batches: [][]models.Job{jobs("A")}}
	store := newMemStore()
	store.loadErr = snapshot.ErrCorrupt
	tr, _ := newTracker(src, store, Options{})

	res, err := tr.Run(context.Background(), portal)
	require.NoError(t, err)
	assert.True(t, res.ColdStart)
	assert.True(t, res.Recorded)
}

func TestRun_PolicyMismatchFails(t *testing.T) {
	src := &fakeSource{batches: [][]models.Job{jobs("A")}}
	store := newMemStore()
	store.loadErr = snapshot.ErrPolicyMismatch
	tr, _ := newTracker(src, store, Options{})

	_, err := tr.Run(context.Background(), portal)
	assert.ErrorIs(t, err, snapshot.ErrPolicyMismatch)
	assert.Zero(t, store.commits)
}

func TestRun_LockedKeyFails(t *testing.T) {
	src := &fakeSource{batches: [][]models.Job{jobs("A")}}
	store := newMemStore()
	tr, l := newTracker(src, store, Options{})
	l.held[portal.Key().String()] = true

	_, err := tr.Run(context.Background(), portal)
	assert.ErrorIs(t, err, lock.ErrLocked)
	assert.Zero(t, store.commits)
}

func TestRun_UnknownKind(t *testing.T) {
	tr, _ := newTracker(&fakeSource{batches: [][]models.Job{nil}}, newMemStore(), Options{})

	_, err := tr.Run(context.Background(), models.Portal{Name: "x", Kind: "nope"})
	assert.ErrorIs(t, err, scraper.ErrUnknownKind)
}

func TestRunAll_ContinuesPastFailures(t *testing.T) {
	src := &fakeSource{batches: [][]models.Job{jobs("A")}}
	store := newMemStore()
	tr, _ := newTracker(src, store, Options{})

	bad := models.Portal{Name: "bad", Kind: "nope", Category: "c"}
	other := portal
	other.Category = "second"

	results, err := tr.RunAll(context.Background(), []models.Portal{portal, bad, other})
	assert.ErrorIs(t, err, scraper.ErrUnknownKind)
	require.Len(t, results, 2)
	assert.Equal(t, "second", results[1].Category)
}
