package models

import "time"

// EventKind names an audit event. Values are stable: they are persisted and delivered to webhooks.
type EventKind string

const (
	EventIdentityRegistered   EventKind = "identity_registered"
	EventProfileUpdated       EventKind = "profile_updated"
	EventStakeDeposited       EventKind = "stake_deposited"
	EventStakeWithdrawn       EventKind = "stake_withdrawn"
	EventIdentityDeactivated  EventKind = "identity_deactivated"
	EventForfeitSwept         EventKind = "forfeit_swept"
	EventAuthorizationGranted EventKind = "authorization_granted"
	EventAuthorizationRevoked EventKind = "authorization_revoked"

	EventJobCreated          EventKind = "job_created"
	EventJobAccepted         EventKind = "job_accepted"
	EventResultSubmitted     EventKind = "result_submitted"
	EventJobApproved         EventKind = "job_approved"
	EventJobSlashed          EventKind = "job_slashed"
	EventJobCancelled        EventKind = "job_cancelled"
	EventFeeRecipientChanged EventKind = "fee_recipient_changed"

	EventReputationUpdated EventKind = "reputation_updated"
	EventJobCompleted      EventKind = "job_completed"
	EventJobFailed         EventKind = "job_failed"
	EventStakeSlashed      EventKind = "stake_slashed"

	EventFundsMinted      EventKind = "funds_minted"
	EventFundsTransferred EventKind = "funds_transferred"
)

// Event is an append-only audit signal. ID, Seq and At are assigned when the call commits.
type Event struct {
	ID           string    `json:"id"`
	Seq          uint64    `json:"seq"`
	Kind         EventKind `json:"kind"`
	At           time.Time `json:"at"`
	Subject      Address   `json:"subject"`
	Counterparty Address   `json:"counterparty,omitzero"`
	JobID        uint64    `json:"job_id,omitempty"`
	Amount       int64     `json:"amount,omitempty"`
	Detail       string    `json:"detail,omitempty"`
}
