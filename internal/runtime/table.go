// Package runtime holds the mutex-guarded ServiceRuntime map the
// Orchestrator owns. A mutex is used instead of a single-goroutine actor
// because the Orchestrator already serializes every mutation through its
// own result-receive loop; the lock exists only so a reader outside that
// loop (the snapshot publisher, the `snapshot` CLI subcommand) can take a
// consistent copy without routing through it.
package runtime

import (
	"sync"

	"github.com/healthwatch/healthwatch/internal/model"
)

// Row pairs a service's name with a point-in-time copy of its runtime
// state.
type Row struct {
	Name    string
	Runtime *model.ServiceRuntime
}

// Table is the single owner of every service's mutable ServiceRuntime.
// Rows are created in PENDING at construction and live for the process
// lifetime; Table never deletes a row.
type Table struct {
	mu    sync.Mutex
	order []string
	rows  map[string]*model.ServiceRuntime
}

// NewTable creates a Table with one PENDING row per name, preserving
// configuration order for the snapshot's stable-within-bucket sort.
func NewTable(names []string) *Table {
	t := &Table{
		order: append([]string(nil), names...),
		rows:  make(map[string]*model.ServiceRuntime, len(names)),
	}
	for _, n := range names {
		t.rows[n] = model.NewServiceRuntime()
	}
	return t
}

// Get returns a copy of name's current runtime state, or nil if name is
// not a known service.
func (t *Table) Get(name string) *model.ServiceRuntime {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rows[name]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

// Apply mutates name's runtime row under lock. fn receives the live row,
// not a copy, so it may update any field. A no-op if name is unknown.
func (t *Table) Apply(name string, fn func(*model.ServiceRuntime)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rows[name]
	if !ok {
		return
	}
	fn(r)
}

// Snapshot returns a consistent copy of every row, in the configuration's
// original insertion order.
func (t *Table) Snapshot() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Row, 0, len(t.order))
	for _, name := range t.order {
		r := t.rows[name]
		cp := *r
		out = append(out, Row{Name: name, Runtime: &cp})
	}
	return out
}

// FailingCount reports how many services are currently visually DOWN
// under the flap-suppression rule.
func (t *Table) FailingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, r := range t.rows {
		if r.Down() {
			n++
		}
	}
	return n
}
