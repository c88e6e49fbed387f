package metrics

import "time"

// Job attempt outcomes, used as the status label of jobs_total.
const (
	JobStatusCompleted = "completed"
	JobStatusRetried   = "retried"
	JobStatusFailed    = "failed"
)

// JobTimer measures one attempt of a job.
type JobTimer struct {
	jobType string
	start   time.Time
}

// StartJob marks an attempt as in flight. Every timer must be finished
// with Done exactly once.
func StartJob(jobType string) JobTimer {
	JobsInFlight.Inc()
	return JobTimer{jobType: jobType, start: time.Now()}
}

// Done records the attempt's outcome and returns how long it ran.
func (t JobTimer) Done(status string) time.Duration {
	elapsed := time.Since(t.start)
	JobsInFlight.Dec()
	JobsTotal.WithLabelValues(t.jobType, status).Inc()
	JobDuration.WithLabelValues(t.jobType).Observe(elapsed.Seconds())
	if status == JobStatusRetried {
		JobRetriesTotal.WithLabelValues(t.jobType).Inc()
	}
	return elapsed
}
