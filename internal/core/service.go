package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/cleaner/internal/format"
	"github.com/JonMunkholm/cleaner/internal/history"
	"github.com/JonMunkholm/cleaner/internal/logging"
	"github.com/JonMunkholm/cleaner/internal/table"
	"github.com/JonMunkholm/cleaner/internal/telemetry"
)

var tracer = otel.Tracer("github.com/JonMunkholm/cleaner/internal/core")

// Defaults for zero Config fields.
const (
	DefaultPreviewRows = 5
	DefaultWorkers     = 2
)

// Config holds the service settings.
type Config struct {
	PreviewRows   int           // rows shown in a preview
	Workers       int           // files of one batch cleaned in parallel
	MaxConcurrent int           // requests cleaned at once
	MaxWait       time.Duration // how long a request waits for a slot
	ArtifactTTL   time.Duration // how long a cleaned file stays downloadable
}

// Service runs the cleaning pipeline.
type Service struct {
	cfg        Config
	serializer *format.Serializer
	limiter    *Limiter
	artifacts  *ArtifactStore
	uploads    *ArtifactStore
	recorder   history.Recorder
	metrics    *telemetry.Metrics
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithRecorder stores a history entry for every cleaned file.
func WithRecorder(r history.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithMetrics records per-file metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service that encodes output with serializer.
func NewService(cfg Config, serializer *format.Serializer, opts ...Option) *Service {
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = DefaultPreviewRows
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	s := &Service{
		cfg:        cfg,
		serializer: serializer,
		limiter:    NewLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		artifacts:  NewArtifactStore(cfg.ArtifactTTL),
		uploads:    NewArtifactStore(cfg.ArtifactTTL),
		recorder:   history.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capabilities reports which output formats are available.
func (s *Service) Capabilities() format.Capabilities {
	return s.serializer.Capabilities()
}

// Limiter returns the request limiter.
func (s *Service) Limiter() *Limiter {
	return s.limiter
}

// Artifacts returns the store holding cleaned files.
func (s *Service) Artifacts() *ArtifactStore {
	return s.artifacts
}

// Uploads returns the store holding staged uploads.
func (s *Service) Uploads() *ArtifactStore {
	return s.uploads
}

// Stage keeps an uploaded file so that a later request can clean it by id,
// after the user has chosen its options. Staged files expire like artifacts
// and are never offered for download.
func (s *Service) Stage(name string, data []byte) string {
	return s.uploads.Put(name, "application/octet-stream", data).ID
}

// Staged returns the file kept under id, with empty options.
func (s *Service) Staged(id string) (FileRequest, error) {
	a, err := s.uploads.Get(id)
	if err != nil {
		return FileRequest{}, fmt.Errorf("%w: %s", ErrUploadExpired, id)
	}
	return FileRequest{Name: a.Name, Data: a.Data}, nil
}

// Download returns a stored cleaned file.
func (s *Service) Download(id string) (Artifact, error) {
	return s.artifacts.Get(id)
}

// History lists the latest cleaned files, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]history.Run, error) {
	return s.recorder.Recent(ctx, limit)
}

// Clean runs the pipeline for a single file. The returned error is set only
// for request-level failures; problems with the file itself are reported in
// the FileResult.
func (s *Service) Clean(ctx context.Context, req FileRequest) (FileResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return FileResult{}, err
	}
	defer s.limiter.Release()

	return s.cleanFile(ctx, uuid.New(), req), nil
}

// CleanBatch cleans every file independently. Results keep upload order and
// a failing file never affects the others. Up to Config.Workers files are
// processed at once.
func (s *Service) CleanBatch(ctx context.Context, reqs []FileRequest) (*BatchResult, error) {
	if len(reqs) == 0 {
		return nil, ErrNoFiles
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	batchID := uuid.New()
	results := make([]FileResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = s.cleanFile(ctx, batchID, req)
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchResult{BatchID: batchID.String(), Files: results}
	batch.tally()

	logging.FromContext(ctx).Info("batch cleaned",
		"batch_id", batch.BatchID,
		"files", len(results),
		"succeeded", batch.Succeeded,
		"warnings", batch.Warnings,
		"failed", batch.Failed,
	)
	return batch, nil
}

// Inspect parses a file and summarises it without cleaning.
func (s *Service) Inspect(ctx context.Context, name string, data []byte) (*Preview, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, span := tracer.Start(ctx, "clean.inspect", trace.WithAttributes(attribute.String("file.name", name)))
	defer span.End()

	tbl, f, err := format.Parse(name, bytes.NewReader(data))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return newPreview(name, f, tbl, s.cfg.PreviewRows), nil
}

// cleanFile runs one file through the pipeline and records the outcome.
func (s *Service) cleanFile(ctx context.Context, batchID uuid.UUID, req FileRequest) FileResult {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "clean.file", trace.WithAttributes(
		attribute.String("file.name", req.Name),
		attribute.Int("file.size", len(req.Data)),
		attribute.Bool("clean.impute", req.Options.Impute),
	))
	defer span.End()

	res, shape := s.runPipeline(ctx, req)
	res.Duration = time.Since(start)

	span.SetAttributes(
		attribute.String("clean.status", string(res.Status)),
		attribute.Int("table.rows", shape.rows),
		attribute.Int("table.columns", shape.cols),
	)
	if res.err != nil {
		span.RecordError(res.err)
		if res.Status == StatusError {
			span.SetStatus(codes.Error, res.err.Error())
		}
	}

	s.metrics.RecordFile(ctx, string(res.Format), string(res.Status), res.Duration, shape.rows, res.Imputed.Filled())
	s.record(ctx, batchID, req, res, shape)
	s.logResult(ctx, batchID, res, shape)
	return res
}

type tableShape struct {
	rows, cols int
}

func (s *Service) runPipeline(ctx context.Context, req FileRequest) (FileResult, tableShape) {
	res := FileResult{FileName: req.Name}
	var shape tableShape

	if err := ctx.Err(); err != nil {
		return failed(res, StatusError, err), shape
	}

	f, err := format.Detect(req.Name)
	if err != nil {
		return failed(res, StatusError, err), shape
	}
	res.Format = f

	tbl, err := s.parse(ctx, req, f)
	if err != nil {
		return failed(res, StatusError, err), shape
	}
	shape = tableShape{rows: tbl.NumRows(), cols: tbl.NumCols()}

	if req.Options.Impute {
		report := s.impute(ctx, tbl)
		res.Imputed = &report
	}

	projected, err := s.project(ctx, tbl, req.Options.Columns)
	if err != nil {
		return failed(res, StatusError, err), shape
	}
	res.Preview = newPreview(req.Name, f, projected, s.cfg.PreviewRows)

	data, err := s.serialize(ctx, projected, f)
	if errors.Is(err, format.ErrSpreadsheetUnavailable) {
		return failed(res, StatusWarning, err), shape
	}
	if err != nil {
		return failed(res, StatusError, err), shape
	}

	a := s.artifacts.Put(format.DownloadName(req.Name), f.MIMEType(), data)
	res.Status = StatusOK
	res.Artifact = &ArtifactRef{
		ID:           a.ID,
		DownloadName: a.Name,
		MIMEType:     a.MIMEType,
		Size:         len(a.Data),
		ExpiresAt:    a.ExpiresAt,
	}
	return res, shape
}

func (s *Service) parse(ctx context.Context, req FileRequest, f format.Format) (*table.Table, error) {
	_, span := tracer.Start(ctx, "clean.parse", trace.WithAttributes(attribute.String("file.format", string(f))))
	defer span.End()

	var (
		tbl *table.Table
		err error
	)
	switch f {
	case format.CSV:
		tbl, err = format.ParseCSV(bytes.NewReader(req.Data))
	case format.XLSX:
		tbl, err = format.ParseXLSX(bytes.NewReader(req.Data))
	default:
		err = fmt.Errorf("%w: %s", format.ErrUnsupportedFormat, f)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return tbl, err
}

func (s *Service) impute(ctx context.Context, tbl *table.Table) table.ImputeReport {
	_, span := tracer.Start(ctx, "clean.impute")
	defer span.End()

	report := table.Impute(tbl)
	span.SetAttributes(attribute.Int("cells.filled", report.Filled()))
	return report
}

func (s *Service) project(ctx context.Context, tbl *table.Table, columns []string) (*table.Table, error) {
	_, span := tracer.Start(ctx, "clean.project", trace.WithAttributes(attribute.Int("columns.requested", len(columns))))
	defer span.End()

	out, err := table.Project(tbl, columns)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (s *Service) serialize(ctx context.Context, tbl *table.Table, f format.Format) ([]byte, error) {
	_, span := tracer.Start(ctx, "clean.serialize", trace.WithAttributes(attribute.String("file.format", string(f))))
	defer span.End()

	data, err := s.serializer.Encode(tbl, f)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("output.size", len(data)))
	return data, nil
}

// failed marks res with status and the user message for err.
func failed(res FileResult, status Status, err error) FileResult {
	msg := MapError(err)
	res.Status = status
	res.Message = &msg
	res.err = err
	if IsUserFacing(err) {
		res.Detail = err.Error()
	}
	return res
}

func (s *Service) record(ctx context.Context, batchID uuid.UUID, req FileRequest, res FileResult, shape tableShape) {
	run := history.Run{
		ID:         uuid.New(),
		BatchID:    batchID,
		FileName:   req.Name,
		Format:     string(res.Format),
		Status:     string(res.Status),
		Rows:       shape.rows,
		Columns:    shape.cols,
		Imputed:    res.Imputed != nil,
		DurationMS: res.Duration.Milliseconds(),
		ClientIP:   ClientIPFromContext(ctx),
		UserAgent:  UserAgentFromContext(ctx),
	}
	if res.Message != nil {
		run.Code = res.Message.Code
	}

	// The request may already be cancelled; history is written regardless.
	if err := s.recorder.Record(context.WithoutCancel(ctx), run); err != nil {
		logging.FromContext(ctx).Warn("failed to record history", "file", req.Name, "error", err)
	}
}

func (s *Service) logResult(ctx context.Context, batchID uuid.UUID, res FileResult, shape tableShape) {
	logger := logging.WithFields(ctx,
		"batch_id", batchID.String(),
		"file", res.FileName,
		"format", string(res.Format),
	)

	attrs := []any{
		"status", string(res.Status),
		"rows", shape.rows,
		"columns", shape.cols,
		"duration_ms", res.Duration.Milliseconds(),
	}

	switch res.Status {
	case StatusOK:
		logger.Info("file cleaned", append(attrs, "imputed_cells", res.Imputed.Filled())...)
	case StatusWarning:
		logger.Warn("file cleaned without output", append(attrs, "code", res.Message.Code, "error", res.err)...)
	default:
		level := slog.LevelWarn
		if !IsUserFacing(res.err) {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "file failed", append(attrs, "code", res.Message.Code, "error", res.err)...)
	}
}

func newPreview(name string, f format.Format, tbl *table.Table, rows int) *Preview {
	p := &Preview{
		FileName: name,
		Format:   f,
		Columns:  make([]ColumnSummary, tbl.NumCols()),
		Rows:     tbl.NumRows(),
		Head:     tbl.Head(rows),
	}
	for i, col := range tbl.Columns {
		p.Columns[i] = ColumnSummary{Name: col.Name, Kind: col.Kind, Missing: col.MissingCount()}
	}
	return p
}
