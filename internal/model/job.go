package model

import "time"

// JobStatus represents the state of a consolidation job.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job tracks one asynchronous consolidation run.
type Job struct {
	ID        string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	Fetched   int       `json:"fetched"`
	Clusters  int       `json:"clusters"`
	Golden    int       `json:"golden"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunResult summarizes one pass of the consolidation pipeline.
type RunResult struct {
	JobID               string         `json:"job_id"`
	Fetched             int            `json:"fetched"`
	Records             int            `json:"records"`
	Edges               int            `json:"edges"`
	EdgesAboveThreshold int            `json:"edges_above_threshold"`
	Clusters            int            `json:"clusters"`
	DuplicateClusters   int            `json:"duplicate_clusters"`
	Golden              []GoldenRecord `json:"golden"`
	Persisted           int64          `json:"persisted"`
	Duration            time.Duration  `json:"duration"`
}

// Empty reports whether the run found nothing to consolidate.
func (r *RunResult) Empty() bool {
	return r == nil || r.Fetched == 0
}
