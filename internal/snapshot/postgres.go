package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-hiring-tracker/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS tracker_snapshots (
	portal       TEXT        NOT NULL,
	category     TEXT        NOT NULL,
	policy       TEXT        NOT NULL,
	committed_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (portal, category)
);

CREATE TABLE IF NOT EXISTS tracker_snapshot_jobs (
	portal     TEXT    NOT NULL,
	category   TEXT    NOT NULL,
	position   INTEGER NOT NULL,
	job_id     TEXT    NOT NULL,
	title      TEXT    NOT NULL DEFAULT '',
	location   TEXT    NOT NULL DEFAULT '',
	url        TEXT    NOT NULL DEFAULT '',
	department TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (portal, category, job_id),
	FOREIGN KEY (portal, category) REFERENCES tracker_snapshots (portal, category) ON DELETE CASCADE
);
`

// PostgresStore keeps snapshots in two tables. Each Commit rewrites the
// job rows for its key inside one transaction.
type PostgresStore struct {
	db  *pgxpool.Pool
	log *zap.Logger
	now func() time.Time
}

func ConnectPostgres(ctx context.Context, connString string, log *zap.Logger) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour

	// poolers in transaction mode do not keep prepared statements
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	return &PostgresStore{db: pool, log: log, now: time.Now}, nil
}

// Migrate creates the snapshot tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate snapshot schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *PostgresStore) Load(ctx context.Context, key models.SnapshotKey, policy models.Policy) (models.Snapshot, error) {
	empty := models.Snapshot{SnapshotKey: key, Policy: policy}

	var stored string
	var committedAt time.Time
	err := s.db.QueryRow(ctx,
		"SELECT policy, committed_at FROM tracker_snapshots WHERE portal = $1 AND category = $2",
		key.Portal, key.Category).Scan(&stored, &committedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return empty, nil
	}
	if err != nil {
		return empty, fmt.Errorf("failed to load snapshot %s: %w", key, err)
	}
	if err := checkPolicy(models.Policy(stored), policy); err != nil {
		return empty, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT job_id, title, location, url, department
		FROM tracker_snapshot_jobs
		WHERE portal = $1 AND category = $2
		ORDER BY position`, key.Portal, key.Category)
	if err != nil {
		return empty, fmt.Errorf("failed to load snapshot jobs %s: %w", key, err)
	}
	jobs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Job, error) {
		var j models.Job
		err := row.Scan(&j.ID, &j.Title, &j.Location, &j.URL, &j.Department)
		return j, err
	})
	if err != nil {
		return empty, fmt.Errorf("%w: scan %s: %v", ErrCorrupt, key, err)
	}

	return models.Snapshot{SnapshotKey: key, Policy: policy, CommittedAt: committedAt, Jobs: jobs}, nil
}

func (s *PostgresStore) Commit(ctx context.Context, snap models.Snapshot) error {
	if snap.CommittedAt.IsZero() {
		snap.CommittedAt = s.now().UTC()
	}
	key := snap.SnapshotKey

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		// serialize concurrent commits for the same key
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key.String()); err != nil {
			return fmt.Errorf("advisory lock: %w", err)
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO tracker_snapshots (portal, category, policy, committed_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (portal, category)
			DO UPDATE SET policy = EXCLUDED.policy, committed_at = EXCLUDED.committed_at`,
			key.Portal, key.Category, string(snap.Policy), snap.CommittedAt)
		if err != nil {
			return fmt.Errorf("upsert snapshot: %w", err)
		}

		if _, err := tx.Exec(ctx,
			"DELETE FROM tracker_snapshot_jobs WHERE portal = $1 AND category = $2",
			key.Portal, key.Category); err != nil {
			return fmt.Errorf("clear snapshot jobs: %w", err)
		}

		batch := &pgx.Batch{}
		for i, j := range models.Dedup(snap.Jobs) {
			batch.Queue(`
				INSERT INTO tracker_snapshot_jobs (portal, category, position, job_id, title, location, url, department)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				key.Portal, key.Category, i, j.ID, j.Title, j.Location, j.URL, j.Department)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert snapshot jobs: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit snapshot %s: %w", key, err)
	}

	s.log.Info("💾 snapshot committed", zap.String("key", key.String()), zap.Int("jobs", len(snap.Jobs)), zap.String("store", "postgres"))
	return nil
}
