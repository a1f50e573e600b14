package domain

import "time"

// ScheduleStatus enumerates schedule entry states. Posted and failed are
// terminal from the scheduler's perspective: a failed entry requires an
// explicit re-schedule.
type ScheduleStatus string

const (
	ScheduleStatusScheduled ScheduleStatus = "scheduled"
	// Posting marks an entry claimed by a scheduler instance for the
	// duration of the publish call, so concurrent instances sharing
	// storage never post the same entry twice.
	ScheduleStatusPosting ScheduleStatus = "posting"
	ScheduleStatusPosted  ScheduleStatus = "posted"
	ScheduleStatusFailed  ScheduleStatus = "failed"
)

// ScheduleEntry is a date-bound intent to publish, distinct from a
// generation job.
type ScheduleEntry struct {
	ID         string         `json:"id"`
	Date       time.Time      `json:"date"` // day granularity
	Title      string         `json:"title"`
	Status     ScheduleStatus `json:"status"`
	ExternalID string         `json:"external_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
