package worker

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/log"
)

// AllStrategy starts a goroutine per job. Nothing is ever dropped.
type AllStrategy struct {
	logger  log.Logger
	timeout time.Duration
	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
}

var _ Strategy = (*AllStrategy)(nil)

func NewAllStrategy(logger log.Logger, timeout time.Duration) *AllStrategy {
	return &AllStrategy{logger: logger, timeout: timeout}
}

// Submit starts job immediately.
func (s *AllStrategy) Submit(job Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		job(ctx)
	}()
	return true
}

// Shutdown waits for running jobs.
func (s *AllStrategy) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return waitTimeout(s.logger, "all", s.wg.Wait, timeout)
}
