package model

import (
	"time"

	appErr "azsnap/pkg/errors"
)

// Status is the lifecycle state of a snapshot record.
type Status string

const (
	// StatusPending means creation has been requested but not confirmed.
	StatusPending Status = "pending"

	// StatusActive means the snapshot exists and is waiting out its TTL.
	StatusActive Status = "active"

	// StatusDeleting means the TTL elapsed and deletion is in flight.
	StatusDeleting Status = "deleting"

	// StatusDeleted means the snapshot was removed. Terminal.
	StatusDeleted Status = "deleted"

	// StatusFailed means creation or deletion failed. Terminal.
	StatusFailed Status = "failed"
)

// validTransitions encodes pending → active → deleting → {deleted, failed}.
// Creation failures may also go pending → failed directly.
var validTransitions = map[Status][]Status{
	StatusPending:  {StatusActive, StatusFailed},
	StatusActive:   {StatusDeleting},
	StatusDeleting: {StatusDeleted, StatusFailed},
}

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusDeleted || s == StatusFailed
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SnapshotRecord tracks one self-destructing snapshot.
// Only the scheduler mutates Status once the record is stored.
type SnapshotRecord struct {
	SnapshotID     string    `json:"snapshot_id"`
	SnapshotName   string    `json:"snapshot_name"`
	VMID           string    `json:"vm_id"`
	VMName         string    `json:"vm_name"`
	SubscriptionID string    `json:"subscription_id"`
	CreatedBy      string    `json:"created_by"`
	ChangeNumber   string    `json:"change_number"`
	CreatedAt      time.Time `json:"created_at"`
	TTLSeconds     int64     `json:"ttl_seconds"`
	ExpiresAt      time.Time `json:"expires_at"`
	Status         Status    `json:"status"`
	FailureReason  string    `json:"failure_reason,omitempty"`
}

// Expired reports whether the record's TTL has elapsed at now.
// The expiry boundary is inclusive: a record expires exactly at ExpiresAt.
func (r *SnapshotRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Transition moves the record to the next status, enforcing the state machine.
func (r *SnapshotRecord) Transition(next Status) error {
	if !r.Status.CanTransitionTo(next) {
		return appErr.Newf(appErr.InvalidStatusTransition, "cannot transition %s from %s to %s", r.SnapshotID, r.Status, next)
	}
	r.Status = next
	return nil
}
