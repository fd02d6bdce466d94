// Package snapshot serializes the current per-service status table to a
// JSON document consumed by the page renderer, publishing it atomically
// via write-temp-then-rename.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/healthwatch/healthwatch/internal/model"
)

// Record is one service's projected snapshot entry.
type Record struct {
	Name           string   `json:"name"`
	Status         string   `json:"status"`
	LatencyMs      *int64   `json:"latency_ms"`
	LastCheckTime  *string  `json:"last_check_time"`
	Tags           []string `json:"tags"`
	HTTPStatusCode *int     `json:"http_status_code"`
	FailureReason  string   `json:"failure_reason"`
}

// Entry pairs a service's static definition with its current runtime
// state, the input Build projects into a Record.
type Entry struct {
	Definition model.ServiceDefinition
	Runtime    *model.ServiceRuntime
}

// Build projects entries into their snapshot records, applying the
// PENDING null-projection and the FAIL<DEGRADED<PASS<PENDING sort
// order, stable within a status bucket.
func Build(entries []Entry) []Record {
	records := make([]Record, len(entries))
	for i, e := range entries {
		records[i] = project(e)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return model.Status(records[i].Status).Less(model.Status(records[j].Status))
	})

	return records
}

func project(e Entry) Record {
	r := e.Runtime
	rec := Record{
		Name:          e.Definition.Name,
		Status:        string(displayStatus(r)),
		Tags:          e.Definition.Tags,
		FailureReason: r.LastFailureReason,
	}

	if r.CurrentStatus == model.StatusPending {
		return rec
	}

	rec.LatencyMs = r.LastLatencyMs
	if r.LastCheckTime != nil {
		s := r.LastCheckTime.UTC().Format("2006-01-02T15:04:05.000Z")
		rec.LastCheckTime = &s
	}
	rec.HTTPStatusCode = r.LastHTTPStatus

	return rec
}

// displayStatus applies the flap-suppression rule: a single FAIL
// verdict is not enough to surface the DOWN visual, so it is displayed
// as DEGRADED until a second consecutive FAIL confirms it. CurrentStatus
// itself always reflects the latest probe verdict; only the published
// snapshot softens it.
func displayStatus(r *model.ServiceRuntime) model.Status {
	if r.CurrentStatus == model.StatusFail && !r.Down() {
		return model.StatusDegraded
	}
	return r.CurrentStatus
}

// Write atomically publishes the snapshot for entries to path: it
// serializes to a temp file in the same directory, then renames it over
// path so readers never observe a partially-written file.
func Write(path string, entries []Entry) error {
	records := Build(entries)

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp snapshot: %w", err)
	}

	return nil
}
