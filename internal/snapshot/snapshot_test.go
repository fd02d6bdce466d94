package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthwatch/healthwatch/internal/model"
)

func runtimeWith(status model.Status, latency int64, httpStatus int, checkTime time.Time) *model.ServiceRuntime {
	r := &model.ServiceRuntime{
		CurrentStatus:  status,
		LastLatencyMs:  &latency,
		LastHTTPStatus: &httpStatus,
		LastCheckTime:  &checkTime,
	}
	// FAIL runtimes default to the confirmed-DOWN case so existing
	// callers keep exercising the post-suppression FAIL display; tests
	// of the suppression rule itself build their own ServiceRuntime.
	if status == model.StatusFail {
		r.ConsecutiveFailures = 2
	}
	return r
}

func TestBuildSortOrderAndStability(t *testing.T) {
	now := time.Now()
	entries := []Entry{
		{Definition: model.ServiceDefinition{Name: "pass-1"}, Runtime: runtimeWith(model.StatusPass, 1, 200, now)},
		{Definition: model.ServiceDefinition{Name: "fail-1"}, Runtime: runtimeWith(model.StatusFail, 2, 500, now)},
		{Definition: model.ServiceDefinition{Name: "pending-1"}, Runtime: model.NewServiceRuntime()},
		{Definition: model.ServiceDefinition{Name: "degraded-1"}, Runtime: runtimeWith(model.StatusDegraded, 3, 200, now)},
		{Definition: model.ServiceDefinition{Name: "fail-2"}, Runtime: runtimeWith(model.StatusFail, 4, 500, now)},
	}

	records := Build(entries)
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Name
	}

	assert.Equal(t, []string{"fail-1", "fail-2", "degraded-1", "pass-1", "pending-1"}, names)
}

func TestBuildNullProjectsPending(t *testing.T) {
	entries := []Entry{
		{Definition: model.ServiceDefinition{Name: "svc"}, Runtime: model.NewServiceRuntime()},
	}

	records := Build(entries)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].LatencyMs)
	assert.Nil(t, records[0].LastCheckTime)
	assert.Nil(t, records[0].HTTPStatusCode)
}

func TestBuildExposesIntegersForNonPending(t *testing.T) {
	now := time.Now()
	entries := []Entry{
		{Definition: model.ServiceDefinition{Name: "svc"}, Runtime: runtimeWith(model.StatusPass, 10, 200, now)},
	}

	records := Build(entries)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].LatencyMs)
	assert.Equal(t, int64(10), *records[0].LatencyMs)
	require.NotNil(t, records[0].HTTPStatusCode)
	assert.Equal(t, 200, *records[0].HTTPStatusCode)
	require.NotNil(t, records[0].LastCheckTime)
}

func TestProjectSuppressesFirstConsecutiveFailure(t *testing.T) {
	now := time.Now()
	latency := int64(9)
	httpStatus := 500

	oneFailure := &model.ServiceRuntime{
		CurrentStatus:       model.StatusFail,
		ConsecutiveFailures: 1,
		LastLatencyMs:       &latency,
		LastHTTPStatus:      &httpStatus,
		LastCheckTime:       &now,
	}
	rec := project(Entry{Definition: model.ServiceDefinition{Name: "flapper"}, Runtime: oneFailure})
	assert.Equal(t, string(model.StatusDegraded), rec.Status, "a single FAIL must not show the DOWN visual")

	twoFailures := &model.ServiceRuntime{
		CurrentStatus:       model.StatusFail,
		ConsecutiveFailures: 2,
		LastLatencyMs:       &latency,
		LastHTTPStatus:      &httpStatus,
		LastCheckTime:       &now,
	}
	rec = project(Entry{Definition: model.ServiceDefinition{Name: "flapper"}, Runtime: twoFailures})
	assert.Equal(t, string(model.StatusFail), rec.Status, "a second consecutive FAIL must show the DOWN visual")
}

func TestWriteIsAtomicAndReadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")

	entries := []Entry{
		{Definition: model.ServiceDefinition{Name: "svc", Tags: []string{"web"}}, Runtime: runtimeWith(model.StatusPass, 5, 200, time.Now())},
	}

	require.NoError(t, Write(path, entries))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var records []Record
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "svc", records[0].Name)
	assert.Equal(t, []string{"web"}, records[0].Tags)

	entries2 := entries
	require.NoError(t, Write(path, entries2))

	matches, err := filepath.Glob(filepath.Join(dir, ".snapshot-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "no leftover temp files after rename")
}
