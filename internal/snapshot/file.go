package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-hiring-tracker/internal/models"

	"go.uber.org/zap"
)

// FileStore keeps one JSON document per snapshot key in a directory.
// Commits go to a temp file in the same directory that is renamed over the
// old document, so a crash never leaves a half-written snapshot behind.
type FileStore struct {
	dir string
	log *zap.Logger
	now func() time.Time
}

func NewFileStore(dir string, log *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileStore{dir: dir, log: log, now: time.Now}, nil
}

// Path returns the file holding the snapshot for key. Distinct keys always
// map to distinct paths.
func (s *FileStore) Path(key models.SnapshotKey) string {
	return filepath.Join(s.dir, FileName(key.Portal)+"__"+FileName(key.Category)+".json")
}

// FileName escapes s for use as one part of a snapshot file name. ASCII
// letters, digits, '-' and '.' are kept; every other byte, '_' included,
// becomes %XX so the "__" separator cannot occur inside a part.
func FileName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9', c == '-', c == '.':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func (s *FileStore) Load(ctx context.Context, key models.SnapshotKey, policy models.Policy) (models.Snapshot, error) {
	empty := models.Snapshot{SnapshotKey: key, Policy: policy}
	if err := ctx.Err(); err != nil {
		return empty, err
	}

	path := s.Path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return empty, nil
		}
		return empty, fmt.Errorf("%w: read %s: %v", ErrCorrupt, path, err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return empty, fmt.Errorf("%w: parse %s: %v", ErrCorrupt, path, err)
	}
	if snap.Portal != key.Portal || snap.Category != key.Category {
		return empty, fmt.Errorf("%w: %s holds %s", ErrCorrupt, path, snap.SnapshotKey)
	}
	if err := checkPolicy(snap.Policy, policy); err != nil {
		return empty, err
	}

	snap.Policy = policy
	s.log.Debug("💾 snapshot loaded", zap.String("key", key.String()), zap.Int("jobs", len(snap.Jobs)))
	return snap, nil
}

func (s *FileStore) Commit(ctx context.Context, snap models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.CommittedAt.IsZero() {
		snap.CommittedAt = s.now().UTC()
	}
	if snap.Jobs == nil {
		snap.Jobs = []models.Job{}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	path := s.Path(snap.SnapshotKey)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	committed = true

	s.log.Info("💾 snapshot committed",
		zap.String("key", snap.SnapshotKey.String()), zap.Int("jobs", len(snap.Jobs)), zap.String("path", path))
	return nil
}
