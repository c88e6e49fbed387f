package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypeSyncSources = "sync_sources"
)

// Job is a unit of background work waiting in the queue.
type Job struct {
	ID          uuid.UUID
	Type        string
	Payload     []byte
	Attempts    int
	MaxAttempts int
	EnqueuedAt  time.Time

	delay time.Duration
}

// SyncSourcesPayload is the payload for source sync jobs.
type SyncSourcesPayload struct {
	SiteID uuid.UUID `json:"site_id"`
}

// Enqueuer accepts jobs. *Worker implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any, opts ...EnqueueOption) (Job, error)
}

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*Job)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(attempts int) EnqueueOption {
	return func(j *Job) {
		j.MaxAttempts = attempts
	}
}

// WithDelay holds the job back for delay before it enters the queue.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(j *Job) {
		j.delay = delay
	}
}

// newJob marshals payload and applies opts on top of the worker defaults.
func newJob(jobType string, payload any, maxAttempts int, opts ...EnqueueOption) (Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	job := Job{
		ID:          uuid.New(),
		Type:        jobType,
		Payload:     payloadJSON,
		MaxAttempts: maxAttempts,
		EnqueuedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(&job)
	}
	if job.MaxAttempts < 1 {
		job.MaxAttempts = 1
	}
	return job, nil
}

// EnqueueSyncSources enqueues a job to refresh the channel metadata of a
// site's sources.
func EnqueueSyncSources(ctx context.Context, q Enqueuer, siteID uuid.UUID, opts ...EnqueueOption) (Job, error) {
	return q.Enqueue(ctx, JobTypeSyncSources, SyncSourcesPayload{SiteID: siteID}, opts...)
}
