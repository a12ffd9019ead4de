package worker

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// PoolStrategy runs jobs on a fixed number of goroutines fed by a bounded
// queue. Jobs submitted while the queue is full are dropped.
type PoolStrategy struct {
	logger   log.Logger
	timeout  time.Duration
	poolSize int
	jobs     chan Job
	wg       sync.WaitGroup
	once     sync.Once
}

var _ Strategy = (*PoolStrategy)(nil)

// NewPoolStrategy starts poolSize workers. Non-positive sizes fall back to
// 10 workers and a queue of 100.
func NewPoolStrategy(logger log.Logger, poolSize int, queueSize int, timeout time.Duration) *PoolStrategy {
	if poolSize <= 0 {
		poolSize = 10
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	p := &PoolStrategy{
		logger:   logger,
		poolSize: poolSize,
		timeout:  timeout,
		jobs:     make(chan Job, queueSize),
	}
	p.start()
	return p
}

func (p *PoolStrategy) start() {
	p.wg.Add(p.poolSize)
	for i := 0; i < p.poolSize; i++ {
		go func(id int) {
			defer p.wg.Done()
			logger := log.With(p.logger, "worker_id", id)
			level.Debug(logger).Log("msg", "worker started")

			// Drains the queue until it is closed by Shutdown.
			for job := range p.jobs {
				p.run(job)
			}
			level.Debug(logger).Log("msg", "worker stopped")
		}(i)
	}
}

func (p *PoolStrategy) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	job(ctx)
}

// Submit enqueues job without blocking.
func (p *PoolStrategy) Submit(job Job) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		level.Warn(p.logger).Log("msg", "worker queue is full, dropping job", "queue_size", cap(p.jobs))
		return false
	}
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *PoolStrategy) Shutdown(timeout time.Duration) error {
	p.once.Do(func() { close(p.jobs) })
	return waitTimeout(p.logger, "pool", p.wg.Wait, timeout)
}
