package domain

import "time"

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Outstanding reports whether the job still needs polling.
func (s JobStatus) Outstanding() bool {
	return s == JobStatusPending || s == JobStatusProcessing
}

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func statusRank(s JobStatus) int {
	switch s {
	case JobStatusPending:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	default:
		return -1
	}
}

// ForwardTransition reports whether moving from prev to next is a legal
// forward move. Status never regresses: a stale backend response that would
// move a job backwards is a data error and the last-known status is retained.
func ForwardTransition(prev, next JobStatus) bool {
	if prev == next {
		return false
	}
	if prev.Terminal() {
		return false
	}
	return statusRank(next) > statusRank(prev)
}

// Job is one server-side redaction task tied to a document and a frozen
// configuration snapshot. Reprocessing creates a new Job, it never mutates
// an existing one.
type Job struct {
	ID             int64
	DocumentCode   string
	ConfigSnapshot RedactionConfig
	Status         JobStatus
	ErrorMessage   string
	SubmittedAt    time.Time
	UpdatedAt      time.Time
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (j Job) Clone() Job {
	clone := j
	clone.ConfigSnapshot = j.ConfigSnapshot.Clone()
	return clone
}
