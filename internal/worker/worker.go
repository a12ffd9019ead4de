// Package worker runs the cache's background jobs: revalidations scheduled
// after a mutation and any other work that must not block a view.
package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// ErrShutdownTimeout is returned when running jobs did not finish within the
// shutdown deadline.
var ErrShutdownTimeout = errors.New("worker: shutdown timed out")

// Job is a unit of background work. It captures everything it needs in its
// closure and must honour ctx, which carries the per-job timeout.
type Job func(ctx context.Context)

// Strategy decides how submitted jobs are scheduled onto goroutines.
type Strategy interface {
	Submit(job Job) bool
	Shutdown(timeout time.Duration) error
}

// Manager hands jobs to the configured strategy.
type Manager struct {
	strategy Strategy
	logger   log.Logger
	stopped  atomic.Bool
}

// NewManager creates a manager for strategyType ("pool" or "all"). Unknown
// strategies fall back to "pool". jobTimeout bounds every job's context.
func NewManager(strategyType string, logger log.Logger, poolSize int, queueSize int, jobTimeout time.Duration) (*Manager, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Second
	}

	var strategy Strategy
	switch strategyType {
	case "all":
		strategy = NewAllStrategy(logger, jobTimeout)
	case "pool":
		strategy = NewPoolStrategy(logger, poolSize, queueSize, jobTimeout)
	default:
		level.Info(logger).Log("msg", "unknown worker strategy, using pool", "strategy", strategyType)
		strategy = NewPoolStrategy(logger, poolSize, queueSize, jobTimeout)
	}

	return &Manager{strategy: strategy, logger: logger}, nil
}

// Submit schedules job. It reports false when the job was not accepted,
// either because the queue is full or because the manager is shut down.
func (m *Manager) Submit(job Job) bool {
	if m.stopped.Load() {
		level.Warn(m.logger).Log("msg", "job submitted after shutdown, ignoring")
		return false
	}
	return m.strategy.Submit(job)
}

// Shutdown stops accepting jobs and waits up to timeout for accepted jobs to
// finish.
func (m *Manager) Shutdown(timeout time.Duration) error {
	if !m.stopped.CompareAndSwap(false, true) {
		return nil
	}
	level.Info(m.logger).Log("msg", "shutting down worker manager")
	if err := m.strategy.Shutdown(timeout); err != nil {
		level.Error(m.logger).Log("msg", "worker shutdown failed", "err", err)
		return err
	}
	level.Info(m.logger).Log("msg", "worker manager stopped")
	return nil
}

// waitTimeout closes over wait and reports ErrShutdownTimeout if it does not
// return within timeout.
func waitTimeout(logger log.Logger, name string, wait func(), timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		level.Error(logger).Log("msg", "shutdown timed out", "strategy", name, "timeout", timeout)
		return ErrShutdownTimeout
	}
}
