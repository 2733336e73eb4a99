// Package diff compares a live listing set with the previous snapshot and
// derives the snapshot to commit next.
package diff

import (
	"go-hiring-tracker/internal/models"
)

// Result is the outcome of one tracked run for a portal/category.
// Removed is nil under the append policy, where removals are not tracked.
type Result struct {
	Portal    string        `json:"portal"`
	Category  string        `json:"category"`
	Policy    models.Policy `json:"policy"`
	Current   []models.Job  `json:"current"`
	New       []models.Job  `json:"new"`
	Removed   []models.Job  `json:"removed"`
	ColdStart bool          `json:"cold_start"`
	// Degraded marks a batch that never met the completeness threshold.
	Degraded bool `json:"degraded"`
	Attempts int  `json:"attempts"`
	// Recorded is false when the next snapshot was not durably committed.
	Recorded    bool   `json:"recorded"`
	CommitError string `json:"commit_error,omitempty"`
}

// Key returns the snapshot key the result belongs to.
func (r Result) Key() models.SnapshotKey {
	return models.SnapshotKey{Portal: r.Portal, Category: r.Category}
}

// Compute diffs live against previous. live is deduplicated first; on a
// cold start (empty previous) every live record is new and nothing is removed.
func Compute(live []models.Job, previous models.Snapshot, policy models.Policy) Result {
	current := models.Dedup(live)
	res := Result{
		Portal:    previous.Portal,
		Category:  previous.Category,
		Policy:    policy,
		Current:   current,
		New:       []models.Job{},
		ColdStart: previous.Empty(),
	}
	if policy.TracksRemovals() {
		res.Removed = []models.Job{}
	}

	prevIDs := models.IDSet(previous.Jobs)
	for _, job := range current {
		if _, ok := prevIDs[job.ID]; !ok {
			res.New = append(res.New, job)
		}
	}

	if policy.TracksRemovals() {
		liveIDs := models.IDSet(current)
		for _, job := range previous.Jobs {
			if _, ok := liveIDs[job.ID]; !ok {
				res.Removed = append(res.Removed, job)
			}
		}
	}
	return res
}

// NextSnapshot returns the job set to persist after a run.
// Replace: the current set. Append: previous ∪ current keyed by id, keeping
// previous order and letting the current record replace a stale one.
func NextSnapshot(previous []models.Job, current []models.Job, policy models.Policy) []models.Job {
	current = models.Dedup(current)
	if policy.TracksRemovals() {
		return current
	}

	byID := make(map[string]models.Job, len(current))
	for _, job := range current {
		byID[job.ID] = job
	}

	next := make([]models.Job, 0, len(previous)+len(current))
	kept := make(map[string]struct{}, len(previous))
	for _, job := range previous {
		if _, dup := kept[job.ID]; dup {
			continue
		}
		kept[job.ID] = struct{}{}
		if fresh, ok := byID[job.ID]; ok {
			job = fresh
		}
		next = append(next, job)
	}
	for _, job := range current {
		if _, ok := kept[job.ID]; !ok {
			next = append(next, job)
		}
	}
	return next
}
