// Package async runs pipeline jobs on a bounded worker pool and records
// their outcomes.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dealdocs/contractocr/internal/extract"
	"github.com/dealdocs/contractocr/internal/pipeline"
	"github.com/dealdocs/contractocr/internal/store"
)

// Job is the smallest useful unit: one document to process.
type Job struct {
	Path        string
	SubmittedAt time.Time
}

// Processor is satisfied by pipeline.Pipeline.
type Processor interface {
	ProcessDocument(ctx context.Context, pdfPath string) (extract.Record, error)
}

type ProcessorQueue struct {
	proc    Processor
	runs    *store.RunStore // nil disables outcome recording
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc Processor, runs *store.RunStore, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		runs:    runs,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.process(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) process(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	runID := uuid.New()
	start := time.Now()
	rec, err := q.proc.ProcessDocument(ctx, job.Path)
	dur := time.Since(start)

	if err != nil {
		stage := ""
		var se *pipeline.StageError
		if errors.As(err, &se) {
			stage = string(se.Stage)
		}
		q.logger.Error("processing failed",
			"worker_id", workerID, "document", job.Path, "stage", stage, "error", err)
		if q.runs != nil {
			if rerr := q.runs.RecordFailure(ctx, runID, job.Path, stage, err.Error(), dur); rerr != nil {
				q.logger.Warn("recording failure outcome failed", "document", job.Path, "error", rerr)
			}
		}
		return
	}

	q.logger.Info("processed document",
		"worker_id", workerID, "document", job.Path,
		"buyer", rec.BuyerName, "price", rec.OfferPrice,
		"duration_ms", dur.Milliseconds())
	if q.runs != nil {
		if rerr := q.runs.RecordSuccess(ctx, runID, job.Path, rec, dur); rerr != nil {
			q.logger.Warn("recording success outcome failed", "document", job.Path, "error", rerr)
		}
	}
}

func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "document", job.Path)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued document for processing", "document", job.Path)
	default:
		q.logger.Warn("queue full, applying backpressure", "document", job.Path)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
