package model

import (
	"encoding/json"
	"time"
)

// JobUpdate is one asynchronous status push for a job, as delivered by the
// runner's webhook. Updates are ephemeral: they live in the in-memory event
// store and are garbage-collected a fixed duration after the job goes
// terminal.
type JobUpdate struct {
	JobID      string          `json:"job_id"`
	Status     string          `json:"status"`
	Step       string          `json:"step,omitempty"`
	Progress   *float64        `json:"progress,omitempty"`
	Stage      string          `json:"stage,omitempty"`
	Error      string          `json:"error,omitempty"`
	Results    json.RawMessage `json:"results,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Terminal reports whether this update should start the retention clock.
func (u JobUpdate) Terminal() bool {
	return u.Status == string(JobStatusCompleted) || u.Status == string(JobStatusFailed)
}
