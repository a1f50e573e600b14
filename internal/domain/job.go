package domain

import "time"

// JobKind enumerates supported generation job categories.
type JobKind string

const (
	JobKindImageGeneration     JobKind = "image_generation"
	JobKindVideoGeneration     JobKind = "video_generation"
	JobKindVoiceoverGeneration JobKind = "voiceover_generation"
	JobKindBatchGeneration     JobKind = "batch_generation"
	JobKindDirectorPlan        JobKind = "director_plan"
)

// Valid reports whether the kind is one of the known job categories.
func (k JobKind) Valid() bool {
	switch k {
	case JobKindImageGeneration, JobKindVideoGeneration, JobKindVoiceoverGeneration,
		JobKindBatchGeneration, JobKindDirectorPlan:
		return true
	}
	return false
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// allowedTransitions is the job state machine. Terminal states have no
// outgoing edges; processing -> pending is the retry path.
var allowedTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusProcessing},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed, JobStatusPending},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to JobStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job encapsulates one unit of asynchronous generation work.
type Job struct {
	ID            string
	Kind          JobKind
	Status        JobStatus
	Priority      int
	BatchID       string
	Payload       JobPayload
	Progress      int
	Result        map[string]any
	ErrorMessage  string
	RetryCount    int
	MaxRetries    int
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// Transition validates and applies a status change. It never regresses a
// terminal state.
func (j *Job) Transition(to JobStatus, now time.Time) error {
	if !CanTransition(j.Status, to) {
		return ErrInvalidTransition
	}
	j.Status = to
	j.UpdatedAt = now
	switch to {
	case JobStatusProcessing:
		started := now
		j.StartedAt = &started
	case JobStatusCompleted:
		j.Progress = 100
		completed := now
		j.CompletedAt = &completed
	case JobStatusFailed:
		completed := now
		j.CompletedAt = &completed
	}
	return nil
}

// BatchStatus is the derived view over a batch's child jobs: the batch is
// terminal only when every child is terminal, it has no state machine of
// its own.
type BatchStatus struct {
	BatchID    string `json:"batch_id"`
	Total      int    `json:"total"`
	Pending    int    `json:"pending"`
	Processing int    `json:"processing"`
	Completed  int    `json:"completed"`
	Failed     int    `json:"failed"`
}

// Terminal reports whether every job in the batch reached a terminal state.
func (b BatchStatus) Terminal() bool {
	return b.Total > 0 && b.Completed+b.Failed == b.Total
}

// QueueStats aggregates job counts by status.
type QueueStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}
