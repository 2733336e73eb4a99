// Package snapshot persists the committed listing set per portal/category.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go-hiring-tracker/internal/models"
)

var (
	// ErrCorrupt means the stored snapshot could not be read back. Callers
	// treat it as an empty previous snapshot.
	ErrCorrupt = errors.New("snapshot corrupt")
	// ErrPolicyMismatch means the stored snapshot was committed under a
	// different policy than the one requested.
	ErrPolicyMismatch = errors.New("snapshot committed under a different policy")
)

// Store loads and commits snapshots. Commit replaces the stored snapshot
// for snap's key as a whole: after a failed Commit the previous snapshot is
// still the one Load returns.
type Store interface {
	Load(ctx context.Context, key models.SnapshotKey, policy models.Policy) (models.Snapshot, error)
	Commit(ctx context.Context, snap models.Snapshot) error
}

// checkPolicy rejects loading a snapshot stamped with another policy.
// An unstamped snapshot is accepted.
func checkPolicy(stored, requested models.Policy) error {
	if stored == "" || stored == requested {
		return nil
	}
	return fmt.Errorf("%w: stored %q, requested %q", ErrPolicyMismatch, stored, requested)
}

// Dump renders a snapshot as indented JSON.
func Dump(snap models.Snapshot) ([]byte, error) {
	if snap.Jobs == nil {
		snap.Jobs = []models.Job{}
	}
	return json.MarshalIndent(snap, "", "  ")
}
