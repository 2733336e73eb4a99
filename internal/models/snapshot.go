package models

import (
	"fmt"
	"strings"
	"time"
)

// Policy decides how the next snapshot is derived from the previous one.
type Policy string

const (
	// PolicyReplace makes the live set the whole next snapshot; removals are tracked.
	PolicyReplace Policy = "replace"
	// PolicyAppend keeps the union of everything ever seen; removals are not tracked.
	PolicyAppend Policy = "append"
)

// ParsePolicy validates a policy name from configuration.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyReplace:
		return PolicyReplace, nil
	case PolicyAppend:
		return PolicyAppend, nil
	}
	return "", fmt.Errorf("unknown commit policy %q (want %q or %q)", s, PolicyReplace, PolicyAppend)
}

// TracksRemovals is true only for PolicyReplace.
func (p Policy) TracksRemovals() bool {
	return p == PolicyReplace
}

// Portal is one tracked listing source. A company site with several
// sections is configured as several portals sharing a Name.
type Portal struct {
	Name     string `yaml:"name" json:"name"`
	Kind     string `yaml:"kind" json:"kind"`
	Category string `yaml:"category" json:"category"`
	URL      string `yaml:"url" json:"url"`
}

// Key returns the snapshot key for this portal.
func (p Portal) Key() SnapshotKey {
	return SnapshotKey{Portal: p.Name, Category: p.Category}
}

// SnapshotKey identifies one snapshot: a (portal, category) pair.
type SnapshotKey struct {
	Portal   string `json:"portal"`
	Category string `json:"category"`
}

func (k SnapshotKey) String() string {
	return k.Portal + "/" + k.Category
}

// Snapshot is the committed listing set for a key at the end of a run.
// A zero CommittedAt means nothing was ever committed.
type Snapshot struct {
	SnapshotKey
	Policy      Policy    `json:"policy"`
	CommittedAt time.Time `json:"committed_at"`
	Jobs        []Job     `json:"jobs"`
}

// Empty reports whether the snapshot holds no jobs.
func (s Snapshot) Empty() bool {
	return len(s.Jobs) == 0
}
