package models

import "time"

// JobState is the escrow lifecycle state of a job.
type JobState string

const (
	JobCreated   JobState = "created"
	JobAccepted  JobState = "accepted"
	JobSubmitted JobState = "submitted"
	JobApproved  JobState = "approved"
	JobSlashed   JobState = "slashed"
	JobCancelled JobState = "cancelled"
)

// IsTerminal reports whether no further transition leaves s.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobApproved, JobSlashed, JobCancelled:
		return true
	default:
		return false
	}
}

// Job is a priced work agreement between a master and a worker.
type Job struct {
	ID            uint64    `json:"id"`
	Master        Address   `json:"master"`
	Worker        Address   `json:"worker"`
	Price         int64     `json:"price"`
	State         JobState  `json:"state"`
	Commitment    Hash      `json:"commitment"`
	Reference     string    `json:"reference,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Deadline      time.Time `json:"deadline"`
	FundsReleased bool      `json:"funds_released"`
}
