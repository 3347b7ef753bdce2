package domain

import "time"

// JobStatus enumerates job lifecycle states shared by remix and photobook jobs.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further processing is expected.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IsStale reports whether a processing job has stopped heartbeating.
func IsStale(status JobStatus, updatedAt time.Time, staleBefore time.Time) bool {
	if status != JobStatusProcessing || staleBefore.IsZero() {
		return false
	}
	return updatedAt.Before(staleBefore)
}

func timePtr(t time.Time) *time.Time { return &t }

func stringPtr(s string) *string { return &s }

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return timePtr(*t)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	return stringPtr(*s)
}
