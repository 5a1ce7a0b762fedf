package core

import (
	"errors"
	"time"

	"github.com/JonMunkholm/cleaner/internal/format"
	"github.com/JonMunkholm/cleaner/internal/table"
)

// Request-level errors. These fail a whole request rather than one file.
var (
	ErrNoFiles       = errors.New("no file provided")
	ErrTooManyFiles  = errors.New("too many files in request")
	ErrFileTooLarge  = errors.New("file too large")
	ErrUploadExpired = errors.New("upload not found or expired")

	// ErrInvalidOptions wraps option validation failures.
	ErrInvalidOptions = errors.New("invalid cleaning options")
)

// Status is the outcome of cleaning one file.
type Status string

const (
	StatusOK      Status = "ok"      // artifact produced
	StatusWarning Status = "warning" // table cleaned, no artifact
	StatusError   Status = "error"   // file skipped
)

// Options control how a single file is cleaned.
type Options struct {
	Impute  bool     `json:"impute"`
	Columns []string `json:"columns,omitempty" validate:"omitempty,dive,required"`
}

// FileRequest is one uploaded file and its options.
type FileRequest struct {
	Name    string `validate:"required"`
	Data    []byte
	Options Options
}

// ColumnSummary describes one column of a parsed table.
type ColumnSummary struct {
	Name    string     `json:"name"`
	Kind    table.Kind `json:"kind"`
	Missing int        `json:"missing"`
}

// Preview is the first rows of a table and a summary of its columns.
type Preview struct {
	FileName string          `json:"file_name"`
	Format   format.Format   `json:"format"`
	Columns  []ColumnSummary `json:"columns"`
	Rows     int             `json:"rows"`
	Head     [][]string      `json:"head"`
}

// ArtifactRef points at a stored artifact without carrying its bytes.
type ArtifactRef struct {
	ID           string    `json:"id"`
	DownloadName string    `json:"download_name"`
	MIMEType     string    `json:"mime_type"`
	Size         int       `json:"size"`
	ExpiresAt    time.Time `json:"expires_at"`
	URL          string    `json:"url,omitempty"` // set by the HTTP layer
}

// FileResult is the outcome of cleaning one file.
type FileResult struct {
	FileName string              `json:"file_name"`
	Format   format.Format       `json:"format,omitempty"`
	Status   Status              `json:"status"`
	Message  *UserMessage        `json:"message,omitempty"`
	Detail   string              `json:"detail,omitempty"`
	Preview  *Preview            `json:"preview,omitempty"`
	Imputed  *table.ImputeReport `json:"imputed,omitempty"`
	Artifact *ArtifactRef        `json:"artifact,omitempty"`
	Duration time.Duration       `json:"-"`

	// err is the error behind Message, kept for logging.
	err error
}

// Err returns the error that made the file fail or warn.
func (r FileResult) Err() error {
	return r.err
}

// BatchResult holds the results of a batch in upload order.
type BatchResult struct {
	BatchID   string       `json:"batch_id"`
	Files     []FileResult `json:"files"`
	Succeeded int          `json:"succeeded"`
	Warnings  int          `json:"warnings"`
	Failed    int          `json:"failed"`
}

func (b *BatchResult) tally() {
	b.Succeeded, b.Warnings, b.Failed = 0, 0, 0
	for _, f := range b.Files {
		switch f.Status {
		case StatusOK:
			b.Succeeded++
		case StatusWarning:
			b.Warnings++
		default:
			b.Failed++
		}
	}
}
