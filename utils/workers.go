// Package utils contains goroutine and cleanup helpers shared by lexicam packages.
package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// Workers is a group of goroutines sharing one context. Once cancelled, it accepts no more work.
type Workers struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	active sync.WaitGroup
}

// NewWorkers returns an empty, running group.
func NewWorkers() *Workers {
	ctx, cancel := context.WithCancel(context.Background())
	return &Workers{ctx: ctx, cancel: cancel}
}

// Go runs f on a goroutine that recovers and logs panics. It reports false, without running f,
// if the group was already cancelled.
func (w *Workers) Go(f func(context.Context)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx.Err() != nil {
		return false
	}
	w.active.Add(1)
	goutils.PanicCapturingGo(func() {
		defer w.active.Done()
		f(w.ctx)
	})
	return true
}

// Cancel cancels the shared context without waiting for the goroutines to return.
func (w *Workers) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancel()
}

// Stop cancels the shared context and waits for every goroutine to return.
func (w *Workers) Stop() {
	w.Cancel()
	w.active.Wait()
}
