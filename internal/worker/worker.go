// Package worker runs background jobs from an in-process queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/streamtosite/internal/metrics"
)

var (
	// ErrQueueFull is returned by Enqueue when the queue is at capacity.
	ErrQueueFull = errors.New("job queue is full")

	// ErrStopped is returned by Enqueue after Stop.
	ErrStopped = errors.New("worker is stopped")
)

// Worker manages background job processing with concurrent workers.
type Worker struct {
	handlers map[string]JobHandler
	config   Config
	logger   *slog.Logger
	queue    chan Job

	// mu guards stopped and timers. Delayed and retried jobs wait on timers.
	mu      sync.RWMutex
	stopped bool
	timers  map[uuid.UUID]*time.Timer

	// Synchronization
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a new Worker with the given configuration.
// The worker must be started with Start() and stopped with Stop().
func New(config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		handlers: make(map[string]JobHandler),
		config:   config,
		logger:   logger,
		queue:    make(chan Job, config.QueueSize),
		timers:   make(map[uuid.UUID]*time.Timer),
		stopCh:   make(chan struct{}),
	}, nil
}

// Register adds a job handler to the worker.
// The handler's Type() must be unique. Call this before Start().
func (w *Worker) Register(handler JobHandler) {
	jobType := handler.Type()
	if _, exists := w.handlers[jobType]; exists {
		w.logger.Warn("Overwriting existing handler", "job_type", jobType)
	}
	w.handlers[jobType] = handler
	w.logger.Debug("Registered job handler", "job_type", jobType)
}

// Enqueue adds a job to the queue. It never blocks: a full queue fails
// with ErrQueueFull.
func (w *Worker) Enqueue(ctx context.Context, jobType string, payload any, opts ...EnqueueOption) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}

	job, err := newJob(jobType, payload, w.config.MaxAttempts, opts...)
	if err != nil {
		return Job{}, err
	}

	if job.delay > 0 {
		err = w.schedule(job, job.delay)
	} else {
		err = w.push(job)
	}
	if err != nil {
		return Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	w.logger.Debug("Job enqueued", "job_id", job.ID, "job_type", job.Type)
	return job, nil
}

// Pending returns the number of jobs waiting in the queue.
func (w *Worker) Pending() int {
	return len(w.queue)
}

func (w *Worker) push(job Job) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (w *Worker) schedule(job Job, delay time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrStopped
	}

	job.delay = 0
	w.timers[job.ID] = time.AfterFunc(delay, func() {
		w.mu.Lock()
		delete(w.timers, job.ID)
		w.mu.Unlock()

		if err := w.push(job); err != nil {
			w.logger.Warn("Dropped delayed job", "job_id", job.ID, "job_type", job.Type, "error", err)
		}
	})
	return nil
}

// Start begins processing jobs with the configured number of concurrent
// workers. Workers exit when ctx is done or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i+1)
	}

	w.logger.Info("Worker started", "concurrency", w.config.Concurrency, "queue_size", w.config.QueueSize)
}

// Stop signals all workers to stop and waits for running jobs to finish.
// It respects the configured ShutdownTimeout. Queued and delayed jobs that
// have not started are dropped. Stop is safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")

		w.mu.Lock()
		w.stopped = true
		for id, t := range w.timers {
			t.Stop()
			delete(w.timers, id)
		}
		w.mu.Unlock()
		close(w.stopCh)

		// Wait for workers with timeout
		done := make(chan struct{})
		go func() {
			w.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			w.logger.Info("Worker stopped gracefully", "dropped", len(w.queue))
		case <-time.After(w.config.ShutdownTimeout):
			w.logger.Warn("Worker shutdown timeout exceeded, some jobs may still be running")
		}
	})
}

// runWorker is the main loop for a worker goroutine.
func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger := w.logger.With("worker_id", workerID)
	logger.Debug("Worker started")

	for {
		select {
		case <-w.stopCh:
			logger.Debug("Worker stopping")
			return
		case <-ctx.Done():
			logger.Debug("Worker context done")
			return
		case job := <-w.queue:
			w.process(ctx, job, logger)
		}
	}
}

// process runs one attempt of job and reschedules it on a retryable failure.
func (w *Worker) process(ctx context.Context, job Job, logger *slog.Logger) {
	job.Attempts++
	logger = logger.With("job_id", job.ID, "job_type", job.Type, "attempt", job.Attempts)
	logger.Info("Processing job")

	timer := metrics.StartJob(job.Type)

	err := w.executeJob(ctx, job)
	if err == nil {
		logger.Info("Job completed", "duration", timer.Done(metrics.JobStatusCompleted))
		return
	}

	if IsPermanent(err) {
		timer.Done(metrics.JobStatusFailed)
		logger.Warn("Job failed with permanent error, will not retry", "error", err)
		return
	}
	if job.Attempts >= job.MaxAttempts {
		timer.Done(metrics.JobStatusFailed)
		logger.Error("Job failed, attempts exhausted", "error", err, "max_attempts", job.MaxAttempts)
		return
	}

	timer.Done(metrics.JobStatusRetried)
	delay := w.config.RetryDelay * time.Duration(job.Attempts)
	logger.Warn("Job failed, will retry", "error", err, "retry_in", delay)

	if delay > 0 {
		err = w.schedule(job, delay)
	} else {
		err = w.push(job)
	}
	if err != nil {
		logger.Warn("Failed to reschedule job", "error", err)
	}
}

// executeJob runs the appropriate handler for the job with a timeout context.
func (w *Worker) executeJob(ctx context.Context, job Job) (err error) {
	handler, ok := w.handlers[job.Type]
	if !ok {
		// No handler registered - this is a permanent error
		return Permanentf("no handler registered for job type: %s", job.Type)
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = Permanentf("job handler panicked: %v", r)
		}
	}()

	return handler.Handle(jobCtx, job.Payload)
}
