package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS clean_runs (
	id          UUID PRIMARY KEY,
	batch_id    UUID NOT NULL,
	file_name   TEXT NOT NULL,
	format      TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	code        TEXT NOT NULL DEFAULT '',
	rows        INTEGER NOT NULL DEFAULT 0,
	columns     INTEGER NOT NULL DEFAULT 0,
	imputed     BOOLEAN NOT NULL DEFAULT FALSE,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	client_ip   TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS clean_runs_created_at_idx ON clean_runs (created_at DESC);
`

const insertRunSQL = `
INSERT INTO clean_runs (id, batch_id, file_name, format, status, code, rows, columns, imputed, duration_ms, client_ip, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const recentRunsSQL = `
SELECT id, batch_id, file_name, format, status, code, rows, columns, imputed, duration_ms, client_ip, created_at
FROM clean_runs
ORDER BY created_at DESC
LIMIT $1`

const purgeRunsSQL = `DELETE FROM clean_runs WHERE created_at < $1`

// DefaultRecentLimit is used when Recent is called with a non-positive limit.
const DefaultRecentLimit = 50

// Store is a PostgreSQL backed Recorder.
type Store struct {
	db  DBTX
	now func() time.Time
}

// NewStore returns a Store using db.
func NewStore(db DBTX) *Store {
	return &Store{db: db, now: time.Now}
}

// EnsureSchema creates the history table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create clean_runs: %w", err)
	}
	return nil
}

// Record inserts a run. Missing ids and timestamps are filled in.
func (s *Store) Record(ctx context.Context, run Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now().UTC()
	}

	_, err := s.db.Exec(ctx, insertRunSQL,
		run.ID, run.BatchID, run.FileName, run.Format, run.Status, run.Code,
		run.Rows, run.Columns, run.Imputed, run.DurationMS, run.ClientIP, run.UserAgent,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.FileName, err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := s.db.Query(ctx, recentRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Run, error) {
		var r Run
		err := row.Scan(&r.ID, &r.BatchID, &r.FileName, &r.Format, &r.Status, &r.Code,
			&r.Rows, &r.Columns, &r.Imputed, &r.DurationMS, &r.ClientIP, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan runs: %w", err)
	}
	return runs, nil
}

// Purge deletes runs older than retention and returns the number removed.
func (s *Store) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention).UTC()
	tag, err := s.db.Exec(ctx, purgeRunsSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// StartPurgeScheduler deletes expired runs immediately and then every
// interval until ctx is cancelled.
func (s *Store) StartPurgeScheduler(ctx context.Context, retention, interval time.Duration) {
	slog.Info("history purge scheduler started",
		"retention", retention.String(),
		"interval", interval.String(),
	)

	s.runPurge(ctx, retention)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history purge scheduler stopped")
			return
		case <-ticker.C:
			s.runPurge(ctx, retention)
		}
	}
}

func (s *Store) runPurge(ctx context.Context, retention time.Duration) {
	start := time.Now()
	purged, err := s.Purge(ctx, retention)
	if err != nil {
		slog.Error("history purge failed", "error", err)
		return
	}
	slog.Info("purged history entries",
		"entries_purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
