package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

// ErrQueueStopped is returned for batches submitted to a stopped queue.
var ErrQueueStopped = errors.New("pipeline queue stopped")

// DepthRecorder receives the number of waiting batches.
type DepthRecorder interface {
	SetQueueDepth(n int)
	IncBatches(source string)
}

// QueueConfig holds queue configuration.
type QueueConfig struct {
	// Batches that may wait for the worker
	Capacity int

	Metrics DepthRecorder
}

// Queue feeds batches to one worker goroutine. Batches run one after another
// and items within a batch strictly in order, so the renderer surface is only
// ever touched by that worker.
type Queue struct {
	pipeline *Pipeline
	jobs     chan *job
	metrics  DepthRecorder
	logger   *logger.Logger

	waiting atomic.Int64
	done    chan struct{}
	start   sync.Once

	// processed and failed item counts since start
	processed atomic.Int64
	failed    atomic.Int64
}

type job struct {
	origin   string
	sources  []Source
	opts     Options
	progress ProgressFunc
	reply    chan []Result
}

// BatchOption customizes one batch.
type BatchOption func(*job)

// WithProgress sets a progress callback. It runs on the worker goroutine.
func WithProgress(fn ProgressFunc) BatchOption {
	return func(j *job) { j.progress = fn }
}

// WithOrigin labels the batch for metrics and logs (e.g. "api", "queue").
func WithOrigin(origin string) BatchOption {
	return func(j *job) { j.origin = origin }
}

// NewQueue creates a new queue around p. Call Start to run the worker.
func NewQueue(p *Pipeline, cfg QueueConfig, log *logger.Logger) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 16
	}
	return &Queue{
		pipeline: p,
		jobs:     make(chan *job, cfg.Capacity),
		metrics:  cfg.Metrics,
		logger:   log.WithField("component", "pipeline-queue"),
		done:     make(chan struct{}),
	}
}

// Start runs the worker until ctx is cancelled. A batch in progress when ctx
// is cancelled still runs to the end.
func (q *Queue) Start(ctx context.Context) {
	q.start.Do(func() {
		go q.run(ctx)
	})
}

// Done is closed once the worker has exited.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Depth returns the number of batches waiting for the worker.
func (q *Queue) Depth() int {
	return int(q.waiting.Load())
}

// Stats returns the processed and failed item counts since start.
func (q *Queue) Stats() (processed, failed int64) {
	return q.processed.Load(), q.failed.Load()
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	q.logger.Info("pipeline worker started")

	// Batches never observe cancellation once started.
	batchCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			q.drain()
			q.logger.Info("pipeline worker stopped")
			return

		case j := <-q.jobs:
			q.setDepth(q.waiting.Add(-1))

			q.logger.WithFields(map[string]interface{}{
				"origin": j.origin,
				"items":  len(j.sources),
			}).Debug("batch started")

			results := q.pipeline.Batch(batchCtx, j.sources, j.opts, j.progress)
			q.processed.Add(int64(len(results)))
			q.failed.Add(int64(len(j.sources) - len(results)))

			j.reply <- results
		}
	}
}

// drain releases waiting batches after the worker has stopped.
func (q *Queue) drain() {
	for {
		select {
		case j := <-q.jobs:
			q.setDepth(q.waiting.Add(-1))
			close(j.reply)
		default:
			return
		}
	}
}

// ProcessBatch submits sources and waits for the results. Failed items are
// absent from the returned slice and order is preserved. If ctx ends first the
// batch keeps running and ctx's error is returned.
func (q *Queue) ProcessBatch(ctx context.Context, sources []Source, opts Options, options ...BatchOption) ([]Result, error) {
	j := &job{
		origin:  "api",
		sources: sources,
		opts:    opts,
		reply:   make(chan []Result, 1),
	}
	for _, o := range options {
		o(j)
	}

	if q.metrics != nil {
		q.metrics.IncBatches(j.origin)
	}

	select {
	case <-q.done:
		return nil, ErrQueueStopped
	default:
	}

	q.setDepth(q.waiting.Add(1))
	select {
	case q.jobs <- j:
	case <-q.done:
		q.setDepth(q.waiting.Add(-1))
		return nil, ErrQueueStopped
	case <-ctx.Done():
		q.setDepth(q.waiting.Add(-1))
		return nil, ctx.Err()
	}

	select {
	case results, ok := <-j.reply:
		if !ok {
			return nil, ErrQueueStopped
		}
		return results, nil
	case <-q.done:
		// The worker may have replied just before exiting.
		select {
		case results, ok := <-j.reply:
			if ok {
				return results, nil
			}
		default:
		}
		return nil, ErrQueueStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Queue) setDepth(n int64) {
	if q.metrics != nil {
		q.metrics.SetQueueDepth(int(n))
	}
}
