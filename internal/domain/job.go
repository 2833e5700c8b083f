package domain

import "time"

// JobState enumerates video job lifecycle states.
type JobState string

const (
	JobStateQueued     JobState = "queued"
	JobStateGenerating JobState = "generating"
	JobStateReady      JobState = "ready"
	JobStateFailed     JobState = "failed"
)

// Job tracks the lifecycle of a single video-generation request. Exactly one
// of Error/VideoURL is populated at a time: Error only while failed, VideoURL
// only while ready.
type Job struct {
	ID        string    `json:"id"`
	Status    JobState  `json:"status"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	VideoURL  string    `json:"videoUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Terminal reports whether the state accepts no further transitions.
func (s JobState) Terminal() bool {
	return s == JobStateReady || s == JobStateFailed
}

// CanTransition reports whether moving from s to next is a legal forward
// step. States only move queued -> generating -> ready|failed; repeating the
// generating state is allowed for progress updates. A queued job may fail
// directly: if the generating write is lost to a storage error, the render
// outcome still has to land on the record.
func (s JobState) CanTransition(next JobState) bool {
	switch s {
	case JobStateQueued:
		return next == JobStateGenerating || next == JobStateFailed
	case JobStateGenerating:
		return next == JobStateGenerating || next == JobStateReady || next == JobStateFailed
	default:
		return false
	}
}
