// Package jobs provides the worker pool that executes research pipelines in
// the background. Submission is non-blocking: the HTTP handler registers the
// task, hands the job to the runner and returns immediately.
package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrRunnerClosed = errors.New("job runner is closed")
	ErrRunnerFull   = errors.New("job queue is full")
)

// Job is one background pipeline run.
type Job func(ctx context.Context)

// Config configures the runner.
type Config struct {
	// MaxWorkers bounds concurrently running pipelines.
	MaxWorkers int `yaml:"max_workers" env:"JOBS_MAX_WORKERS"`

	// QueueSize bounds accepted-but-not-started jobs.
	QueueSize int `yaml:"queue_size" env:"JOBS_QUEUE_SIZE"`

	// IdleTimeout is how long a spare worker lingers before exiting.
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"JOBS_IDLE_TIMEOUT"`
}

// DefaultConfig returns sensible runner defaults.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:  32,
		QueueSize:   256,
		IdleTimeout: 60 * time.Second,
	}
}

// Runner executes jobs on a bounded worker pool. Jobs run on a context
// detached from the submitting request, so a client disconnect does not
// cancel a pipeline already underway.
type Runner struct {
	cfg         Config
	queue       chan Job
	workerCount atomic.Int32
	activeCount atomic.Int32
	wg          sync.WaitGroup
	logger      *zap.Logger

	// closeMu serializes Submit against Close so a send never races the
	// channel close.
	closeMu sync.RWMutex
	closed  bool

	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panicked  atomic.Int64
}

// NewRunner creates a runner with defaults applied.
func NewRunner(cfg Config, logger *zap.Logger) *Runner {
	def := DefaultConfig()
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = def.MaxWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	return &Runner{
		cfg:    cfg,
		queue:  make(chan Job, cfg.QueueSize),
		logger: logger.With(zap.String("component", "job_runner")),
	}
}

// Submit enqueues a job without blocking. The job later runs on a fresh
// background context.
func (r *Runner) Submit(job Job) error {
	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	if r.closed {
		return ErrRunnerClosed
	}

	r.submitted.Add(1)

	select {
	case r.queue <- job:
		r.ensureWorker()
		return nil
	default:
		if r.trySpawnWorker() {
			select {
			case r.queue <- job:
				return nil
			default:
			}
		}
		r.rejected.Add(1)
		return ErrRunnerFull
	}
}

func (r *Runner) ensureWorker() {
	if r.workerCount.Load() < int32(r.cfg.MaxWorkers) {
		r.trySpawnWorker()
	}
}

func (r *Runner) trySpawnWorker() bool {
	for {
		current := r.workerCount.Load()
		if current >= int32(r.cfg.MaxWorkers) {
			return false
		}
		if r.workerCount.CompareAndSwap(current, current+1) {
			r.wg.Add(1)
			go r.worker()
			return true
		}
	}
}

func (r *Runner) worker() {
	defer r.wg.Done()
	defer r.workerCount.Add(-1)

	timer := time.NewTimer(r.cfg.IdleTimeout)
	defer timer.Stop()

	for {
		select {
		case job, ok := <-r.queue:
			if !ok {
				return
			}

			r.activeCount.Add(1)
			r.run(job)
			r.activeCount.Add(-1)
			r.completed.Add(1)

			timer.Reset(r.cfg.IdleTimeout)

		case <-timer.C:
			if r.workerCount.Load() > 1 {
				return
			}
			timer.Reset(r.cfg.IdleTimeout)
		}
	}
}

// run executes one job on a detached context. The orchestrator already
// absorbs pipeline faults; the recover here only guards the pool itself.
func (r *Runner) run(job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			r.panicked.Add(1)
			r.logger.Error("job panicked", zap.Any("panic", rec))
		}
	}()
	job(context.Background())
}

// Close stops accepting jobs and waits for running ones to finish.
func (r *Runner) Close() {
	r.closeMu.Lock()
	if r.closed {
		r.closeMu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.closeMu.Unlock()

	r.wg.Wait()
}

// Stats reports runner counters.
type Stats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Rejected  int64 `json:"rejected"`
	Panicked  int64 `json:"panicked"`
}

// Stats returns a snapshot of the runner counters.
func (r *Runner) Stats() Stats {
	return Stats{
		Workers:   int(r.workerCount.Load()),
		Active:    int(r.activeCount.Load()),
		Queued:    len(r.queue),
		Submitted: r.submitted.Load(),
		Completed: r.completed.Load(),
		Rejected:  r.rejected.Load(),
		Panicked:  r.panicked.Load(),
	}
}
