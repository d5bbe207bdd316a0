package domain

import "time"

// JobStatus is the lifecycle state of a FetchJob. A job transitions from
// pending through running to exactly one terminal state and is never
// reopened.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status is completed or failed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// FetchJob records one aggregation attempt for one region. The job ledger
// answers "is a run in progress" and "when did this region last succeed".
type FetchJob struct {
	ID           string
	RegionID     int32
	Status       JobStatus
	ItemsCount   int
	ErrorMessage string
	StartedAt    time.Time
	CompletedAt  *time.Time
}
