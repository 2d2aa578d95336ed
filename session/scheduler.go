package session

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/lexicam/lexicam/logging"
	"github.com/lexicam/lexicam/utils"
)

// Scheduler runs at most one job at a time, no more often than a fixed interval. Offers that
// arrive while a job is in flight or too soon after the last dispatch are dropped; nothing is
// queued. The busy flag spans Stop and Start, so a job that ignores cancellation holds off every
// later dispatch until it returns.
type Scheduler struct {
	logger  logging.Logger
	clk     clock.Clock
	limiter *rate.Limiter
	metrics *Metrics
	busy    atomic.Bool

	mu      sync.Mutex
	workers *utils.Workers

	inflight sync.WaitGroup
}

// NewScheduler returns a stopped scheduler. An interval of zero disables throttling. A nil clock
// means the wall clock and nil metrics record nothing.
func NewScheduler(interval time.Duration, clk clock.Clock, metrics *Metrics, logger logging.Logger) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Scheduler{
		logger:  logger,
		clk:     clk,
		limiter: rate.NewLimiter(limit, 1),
		metrics: metrics,
	}
}

// Start begins accepting offers. Starting a started scheduler does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workers != nil {
		return
	}
	s.workers = utils.NewWorkers()
}

// Offer dispatches job on a worker goroutine unless the scheduler is stopped, a job is in flight,
// or the minimum interval has not elapsed. It never blocks and reports whether job was
// dispatched. job receives a context that is cancelled by Stop.
func (s *Scheduler) Offer(ctx context.Context, job func(context.Context)) bool {
	s.metrics.frameOffered()

	s.mu.Lock()
	workers := s.workers
	s.mu.Unlock()
	if workers == nil || ctx.Err() != nil {
		s.drop(DropStopped)
		return false
	}
	if !s.busy.CompareAndSwap(false, true) {
		s.drop(DropBusy)
		return false
	}
	if !s.limiter.AllowN(s.clk.Now(), 1) {
		s.busy.Store(false)
		s.drop(DropThrottled)
		return false
	}

	s.inflight.Add(1)
	dispatched := workers.Go(func(workerCtx context.Context) {
		defer s.inflight.Done()
		defer s.busy.Store(false)
		job(workerCtx)
	})
	if !dispatched {
		// stopped between the nil check and here
		s.inflight.Done()
		s.busy.Store(false)
		s.drop(DropStopped)
		return false
	}
	return true
}

func (s *Scheduler) drop(reason string) {
	s.metrics.frameDropped(reason)
	s.logger.Debugw("frame dropped", "reason", reason)
}

// Busy reports whether a job is in flight, including one left over from before a Stop.
func (s *Scheduler) Busy() bool {
	return s.busy.Load()
}

// Stop cancels the context of in-flight jobs and stops accepting offers. It does not wait for
// jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workers == nil {
		return
	}
	s.workers.Cancel()
	s.workers = nil
}

// Close stops the scheduler and waits for every dispatched job to return.
func (s *Scheduler) Close() {
	s.mu.Lock()
	workers := s.workers
	s.workers = nil
	s.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	s.inflight.Wait()
}

// Wait blocks until every dispatched job has returned.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}
