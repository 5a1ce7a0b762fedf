package telemetry

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the service instruments. A nil *Metrics records nothing.
type Metrics struct {
	filesTotal   metric.Int64Counter
	fileDuration metric.Float64Histogram
	rowsTotal    metric.Int64Counter
	imputedTotal metric.Int64Counter

	httpRequests metric.Int64Counter
	httpDuration metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.filesTotal, err = meter.Int64Counter(
		"cleaner_files_total",
		metric.WithDescription("Files processed, by format and outcome"),
	); err != nil {
		return nil, err
	}
	if m.fileDuration, err = meter.Float64Histogram(
		"cleaner_file_duration_seconds",
		metric.WithDescription("Time spent cleaning a single file"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.rowsTotal, err = meter.Int64Counter(
		"cleaner_rows_total",
		metric.WithDescription("Data rows parsed from uploaded files"),
	); err != nil {
		return nil, err
	}
	if m.imputedTotal, err = meter.Int64Counter(
		"cleaner_cells_imputed_total",
		metric.WithDescription("Missing cells filled with a column mean"),
	); err != nil {
		return nil, err
	}
	if m.httpRequests, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.httpDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordFile records the outcome of cleaning one file.
func (m *Metrics) RecordFile(ctx context.Context, format, status string, d time.Duration, rows, imputed int) {
	if m == nil {
		return
	}
	if format == "" {
		format = "unknown"
	}
	attrs := metric.WithAttributes(
		attribute.String("format", format),
		attribute.String("status", status),
	)
	m.filesTotal.Add(ctx, 1, attrs)
	m.fileDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("format", format)))
	if rows > 0 {
		m.rowsTotal.Add(ctx, int64(rows))
	}
	if imputed > 0 {
		m.imputedTotal.Add(ctx, int64(imputed))
	}
}

// RecordRequest records one served HTTP request.
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status_code", strconv.Itoa(status)),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, d.Seconds(), attrs)
}
