package worker

import (
	"fmt"
	"time"
)

// Config holds the configuration for the background job worker.
type Config struct {
	// Concurrency is the number of worker goroutines to run in parallel.
	// Default: 2
	Concurrency int

	// QueueSize is the capacity of the in-process job queue. Enqueue fails
	// with ErrQueueFull once it is reached.
	// Default: 100
	QueueSize int

	// MaxAttempts is how many times a job runs before it is given up on.
	// Individual jobs can override it with WithMaxAttempts.
	// Default: 3
	MaxAttempts int

	// RetryDelay is the base delay before a failed job is retried. The
	// n-th retry waits n times this long.
	// Default: 10 seconds
	RetryDelay time.Duration

	// JobTimeout is the maximum time a single job is allowed to run.
	// If a job exceeds this timeout, its context is canceled.
	// Default: 2 minutes
	JobTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for running jobs to complete.
	// Default: 30 seconds
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Concurrency:     2,
		QueueSize:       100,
		MaxAttempts:     3,
		RetryDelay:      10 * time.Second,
		JobTimeout:      2 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Concurrency > 100 {
		return fmt.Errorf("concurrency too high (max 100), got %d", c.Concurrency)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1, got %d", c.QueueSize)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative, got %v", c.RetryDelay)
	}
	if c.JobTimeout < 1*time.Second {
		return fmt.Errorf("job timeout must be at least 1 second, got %v", c.JobTimeout)
	}
	if c.ShutdownTimeout < 1*time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	return nil
}
