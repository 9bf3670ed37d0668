package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/joseph-ayodele/pdf-filer/internal/core"
	"github.com/joseph-ayodele/pdf-filer/internal/entity"
)

// Job asks for one run over the inbox. Reason is the path that triggered it, if any.
type Job struct {
	Reason      string
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Runner is satisfied by *core.Processor.
type Runner interface {
	Run(ctx context.Context, opts core.RunOptions) (*entity.Run, error)
}

// RunQueue serializes runs on a single worker. At most one run waits behind the
// running one; further triggers are folded into it, since a run always
// picks up everything in the inbox.
type RunQueue struct {
	runner  Runner
	logger  *slog.Logger
	opts    core.RunOptions
	timeout time.Duration
	onDone  func(*entity.Run, error)

	ch     chan Job
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

type Option func(*RunQueue)

func WithRunOptions(o core.RunOptions) Option {
	return func(q *RunQueue) { q.opts = o }
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *RunQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithOnDone registers a callback invoked after every run, on the worker goroutine.
func WithOnDone(fn func(*entity.Run, error)) Option {
	return func(q *RunQueue) { q.onDone = fn }
}

func NewRunQueue(runner Runner, logger *slog.Logger, opts ...Option) *RunQueue {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &RunQueue{
		runner:  runner,
		logger:  logger,
		timeout: 30 * time.Minute,
		ch:      make(chan Job, 1),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, o := range opts {
		o(q)
	}
	go q.work()
	return q
}

func (q *RunQueue) work() {
	defer close(q.done)
	q.logger.Info("queue.worker.started")
	for job := range q.ch {
		ctx, cancel := context.WithTimeout(q.ctx, q.timeout)
		start := time.Now()
		run, err := q.runner.Run(ctx, q.opts)
		cancel()

		if err != nil {
			q.logger.Error("queue.run.failed", "reason", job.Reason, "trace_id", job.TraceID, "error", err)
		} else {
			q.logger.Info("queue.run.done",
				"run_id", run.ID,
				"reason", job.Reason,
				"total", run.Total,
				"queued_ms", start.Sub(job.SubmittedAt).Milliseconds(),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		}
		if q.onDone != nil {
			q.onDone(run, err)
		}
	}
	q.logger.Info("queue.worker.stopped")
}

// Enqueue never blocks. A trigger arriving while another one is pending is dropped.
func (q *RunQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "reason", job.Reason)
		return nil
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queue.enqueued", "reason", job.Reason)
	default:
		q.logger.Debug("queue.coalesced", "reason", job.Reason)
	}
	return nil
}

// Shutdown stops accepting jobs and waits for the pending run. When ctx ends first,
// the running run is cancelled; it stops before its next document.
func (q *RunQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	select {
	case <-q.done:
		q.logger.Info("queue.shutdown.drained")
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
		q.cancel()
		<-q.done
	}
	q.cancel()
}
