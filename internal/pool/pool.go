// Package pool provides a bounded-concurrency task runner: at most N tasks
// run at once, excess submissions queue in FIFO order and are admitted as
// running tasks finish. Task outcomes are independent; a failing task never
// cancels its siblings.
package pool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// New creates a pool admitting at most limit concurrent tasks. limit must
// be >= 1.
func New(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit))}
}

// Go submits fn, blocking until a slot is free. Slots are granted in
// submission order. It returns the context error if ctx is cancelled while
// waiting for admission; once admitted, fn always runs.
func (p *Pool) Go(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	p.wg.Add(1)
	go func() {
		defer p.sem.Release(1)
		defer p.wg.Done()
		fn()
	}()

	return nil
}

// Wait blocks until every admitted task has settled.
func (p *Pool) Wait() {
	p.wg.Wait()
}
