// Package postgres implements an optional durable Mirror for the Job
// Registry: an asynchronous, best-effort write-behind of each job snapshot
// to a Postgres table, keyed by job ID. The in-memory registry remains the
// single source of truth; a Mirror write failure is logged and otherwise
// has no effect on request handling (spec §4.7).
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/lookatitude/videogen/o11y"
	"github.com/lookatitude/videogen/registry"
)

// Config holds the connection parameters for the durable mirror.
type Config struct {
	// ConnectionString is a standard postgres:// DSN.
	ConnectionString string

	// TableName is the table snapshots are upserted into. Defaults to
	// "videogen_jobs" if empty.
	TableName string
}

// Mirror persists job snapshots to Postgres as JSON documents, one row per
// job ID, upserted on every write.
type Mirror struct {
	db        *sql.DB
	tableName string
	logger    *o11y.Logger
}

// New opens a connection pool and ensures the target table exists.
func New(ctx context.Context, cfg Config) (*Mirror, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("postgres: connection_string is required")
	}
	tableName := cfg.TableName
	if tableName == "" {
		tableName = "videogen_jobs"
	}

	db, err := sql.Open("postgres", cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	m := &Mirror{db: db, tableName: tableName, logger: o11y.FromContext(ctx)}
	if err := m.ensureTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func (m *Mirror) ensureTable(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		job_id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		snapshot JSONB NOT NULL
	)`, m.tableName)
	_, err := m.db.ExecContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("postgres: create table: %w", err)
	}
	return nil
}

// Persist upserts job's JSON snapshot. It never returns an error to the
// caller: inmemory.Registry's mirrorAsync fires this on its own goroutine and
// treats the durable store as best-effort, so failures are logged only.
func (m *Mirror) Persist(ctx context.Context, job *registry.Job) {
	body, err := json.Marshal(job)
	if err != nil {
		m.logger.Error(ctx, "registry postgres mirror: marshal failed", "job_id", job.ID, "error", err)
		return
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (job_id, state, updated_at, snapshot)
		VALUES ($1, $2, now(), $3)
		ON CONFLICT (job_id) DO UPDATE SET state = $2, updated_at = now(), snapshot = $3`, m.tableName)
	if _, err := m.db.ExecContext(ctx, stmt, job.ID, string(job.State), body); err != nil {
		m.logger.Error(ctx, "registry postgres mirror: write failed", "job_id", job.ID, "error", err)
	}
}

// Close releases the underlying connection pool.
func (m *Mirror) Close() error {
	return m.db.Close()
}

var _ interface {
	Persist(ctx context.Context, job *registry.Job)
} = (*Mirror)(nil)
