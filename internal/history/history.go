// Package history keeps a log of cleaned files.
//
// Only metadata is stored: the file name, format, outcome and table shape.
// Cell values never reach the database. When no database is configured the
// service uses Nop and the history endpoint returns an empty list.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Run describes one processed file.
type Run struct {
	ID         uuid.UUID `json:"id"`
	BatchID    uuid.UUID `json:"batch_id"`
	FileName   string    `json:"file_name"`
	Format     string    `json:"format"`
	Status     string    `json:"status"`
	Code       string    `json:"code,omitempty"`
	Rows       int       `json:"rows"`
	Columns    int       `json:"columns"`
	Imputed    bool      `json:"imputed"`
	DurationMS int64     `json:"duration_ms"`
	ClientIP   string    `json:"client_ip,omitempty"`
	UserAgent  string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Recorder stores and lists runs.
type Recorder interface {
	Record(ctx context.Context, run Run) error
	Recent(ctx context.Context, limit int) ([]Run, error)
}

// Nop is a Recorder that stores nothing.
type Nop struct{}

func (Nop) Record(context.Context, Run) error { return nil }

func (Nop) Recent(context.Context, int) ([]Run, error) { return []Run{}, nil }
