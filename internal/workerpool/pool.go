// Package workerpool provides a bounded-concurrency executor for probe
// jobs: a counting semaphore limiting simultaneous in-flight work.
package workerpool

import (
	"context"
	"runtime"
)

// defaultMaxWorkers caps the platform-derived default pool size.
const defaultMaxWorkers = 16

// Job is one unit of work submitted to the pool.
type Job func(ctx context.Context)

// Pool manages concurrent job execution with a fixed upper bound on
// simultaneous in-flight jobs.
//
// Example:
//
//	p := workerpool.New(8)
//	defer p.Drain(ctx)
//	for _, svc := range services {
//	    p.Submit(ctx, func(ctx context.Context) { probe(ctx, svc) })
//	}
type Pool struct {
	slots chan struct{}
}

// DefaultSize returns the platform-derived worker pool size: the number
// of logical CPUs, capped at 16.
func DefaultSize() int {
	n := runtime.NumCPU()
	if n > defaultMaxWorkers {
		n = defaultMaxWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// New constructs a Pool with the given maximum concurrency. size<=0
// selects DefaultSize().
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize()
	}
	return &Pool{
		slots: make(chan struct{}, size),
	}
}

// Submit blocks until a worker slot is available (providing backpressure
// on a saturated pool) or ctx is done, then runs job in a new goroutine.
// Submit returns ctx.Err() without starting job if the context is
// cancelled before a slot frees up.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	go func() {
		defer func() { <-p.slots }()
		job(ctx)
	}()

	return nil
}

// Len reports the pool's configured concurrency limit.
func (p *Pool) Len() int {
	return cap(p.slots)
}

// Drain blocks until every currently acquired slot has been released —
// i.e. all submitted jobs have returned — or ctx is done first. It does
// not prevent new Submit calls from racing with it; callers stop
// submitting before calling Drain.
func (p *Pool) Drain(ctx context.Context) error {
	for i := 0; i < cap(p.slots); i++ {
		select {
		case p.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for i := 0; i < cap(p.slots); i++ {
		<-p.slots
	}
	return nil
}
