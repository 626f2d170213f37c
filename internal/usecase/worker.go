package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrWorkerStopped   = errors.New("worker stopped")
	ErrWorkerQueueFull = errors.New("worker queue full")
)

type job struct {
	name string
	run  func(ctx context.Context)
}

// Worker runs jobs one at a time in arrival order. Everything that touches
// the broker session or the correlation store goes through it.
type Worker struct {
	logger *zap.Logger
	jobs   chan job

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewWorker(queueSize int, logger *zap.Logger) *Worker {
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Worker{
		logger: logger,
		jobs:   make(chan job, queueSize),
		done:   make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting signal worker")
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			case j := <-w.jobs:
				w.runJob(ctx, j)
			}
		}
	}()
}

func (w *Worker) runJob(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Worker job panicked", zap.String("job", j.name), zap.Any("panic", r))
		}
	}()
	j.run(ctx)
}

// Submit enqueues fn without waiting for it to run.
func (w *Worker) Submit(name string, fn func(ctx context.Context)) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrWorkerStopped
	}
	select {
	case w.jobs <- job{name: name, run: fn}:
		return nil
	default:
		w.logger.Error("Worker queue full, job dropped", zap.String("job", name))
		return ErrWorkerQueueFull
	}
}

// Call enqueues fn and waits for its result or for ctx to end.
func (w *Worker) Call(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	_, err := CallValue(ctx, w, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

type callResult[T any] struct {
	val T
	err error
}

// CallValue is Call for jobs that produce a value. The value is handed over
// on the job's channel; a caller that gives up on ctx never sees it.
func CallValue[T any](ctx context.Context, w *Worker, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	result := make(chan callResult[T], 1)
	err := w.Submit(name, func(jobCtx context.Context) {
		v, err := fn(jobCtx)
		result <- callResult[T]{val: v, err: err}
	})
	if err != nil {
		return zero, err
	}
	select {
	case r := <-result:
		return r.val, r.err
	case <-ctx.Done():
		return zero, fmt.Errorf("%s: %w", name, ctx.Err())
	}
}

// Stop rejects new jobs and waits for the running one to finish. Queued jobs
// are discarded.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.done)
	w.mu.Unlock()
	w.wg.Wait()
	w.logger.Info("Signal worker stopped")
}
