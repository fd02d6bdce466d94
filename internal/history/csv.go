// Package history appends probe outcomes to a single RFC 4180 CSV file,
// bootstrapping the header exactly once and flushing after every write so
// records survive a crash immediately after they're appended.
package history

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"github.com/healthwatch/healthwatch/internal/model"
)

var header = []string{
	"timestamp", "service_name", "status", "latency_ms",
	"http_status_code", "failure_reason", "correlation_id",
}

// Writer appends HealthCheckResults to a single append-only CSV file.
type Writer struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *csv.Writer
}

// Open opens (creating if necessary) the history file at path, writing
// the header line exactly once — only when the file did not already
// exist.
func Open(path string) (*Writer, error) {
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}

	w := &Writer{path: path, file: f, w: csv.NewWriter(f)}

	if isNew {
		if err := w.w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write history header: %w", err)
		}
		w.w.Flush()
		if err := w.w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("flush history header: %w", err)
		}
	}

	return w, nil
}

// Append writes a single record and flushes before returning, so the
// record is durable at crash granularity.
func (w *Writer) Append(result model.HealthCheckResult) error {
	return w.AppendBatch([]model.HealthCheckResult{result})
}

// AppendBatch writes several records as one flushed unit.
func (w *Writer) AppendBatch(results []model.HealthCheckResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, r := range results {
		if err := w.w.Write(row(r)); err != nil {
			return fmt.Errorf("write history record: %w", err)
		}
	}
	w.w.Flush()
	return w.w.Error()
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// row projects a result onto its persisted CSV form. PENDING never
// reaches here in practice (the orchestrator only persists terminal
// verdicts), but is coerced to FAIL as a defensive fallback.
func row(r model.HealthCheckResult) []string {
	status := r.Status
	if !status.Persistable() {
		status = model.StatusFail
	}

	return []string{
		r.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		r.ServiceName,
		string(status),
		fmt.Sprintf("%d", r.LatencyMs),
		fmt.Sprintf("%d", r.HTTPStatusCode),
		r.FailureReason,
		r.CorrelationID,
	}
}
