package worker

import (
	"context"
	"log"
	"runtime"
	"sync"
)

// Pool is a fixed-size worker pool with a 1-slot input queue (strict back-pressure).
// Capture, OCR and save jobs run here so the event loop never blocks on them.
type Pool struct {
	jobs   chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

type job struct {
	ctx  context.Context
	name string
	run  func(ctx context.Context)
}

// New creates a worker pool. Size defaults to NumCPU when size<=0. Queue is 1 slot.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				log.Printf("Worker: starting %s", j.name)
				p.run(j)
				log.Printf("Worker: finished %s", j.name)
			}
		}()
	}
}

func (p *Pool) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC in worker job %s: %v", j.name, r)
		}
	}()
	j.run(j.ctx)
}

// Submit enqueues fn if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, name string, fn func(ctx context.Context)) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job{ctx: ctx, name: name, run: fn}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// Go submits fn and hands its result to cb on the worker goroutine. When ctx
// ends first, cb receives ctx.Err() and fn's eventual result is discarded.
// cb should post back into the event loop rather than touch its state.
func Go[T any](p *Pool, ctx context.Context, name string, fn func(ctx context.Context) (T, error), cb func(T, error)) bool {
	return p.Submit(ctx, name, func(ctx context.Context) {
		cb(withContext(ctx, fn))
	})
}

// withContext runs fn in a sub-goroutine and stops waiting when ctx is done.
func withContext[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	if _, ok := ctx.Deadline(); !ok && ctx.Done() == nil {
		return fn(ctx)
	}
	type outcome struct {
		v   T
		err error
	}
	resCh := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		resCh <- outcome{v, err}
	}()
	select {
	case r := <-resCh:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
