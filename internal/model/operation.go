package model

import (
	"fmt"
	"time"
)

// OperationStatus is one step in an operation's lifecycle. Transitions are
// monotonic in the declared order; the only way back to idle is the timed
// reset after a terminal status.
type OperationStatus string

const (
	// StatusIdle means no operation is in flight for the key.
	StatusIdle OperationStatus = "idle"
	// StatusCreating means the unsigned transaction is being built.
	StatusCreating OperationStatus = "creating"
	// StatusAwaitingSignature means the wallet holds the group for approval.
	StatusAwaitingSignature OperationStatus = "awaiting_signature"
	// StatusPending means the payload was handed to the node and is being
	// watched for confirmation.
	StatusPending OperationStatus = "pending"
	// StatusConfirmed means the ledger included the transaction(s).
	StatusConfirmed OperationStatus = "confirmed"
	// StatusFailed means the operation ended without confirmation.
	StatusFailed OperationStatus = "failed"
)

// Terminal reports whether the status ends an operation's lifecycle.
func (s OperationStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Step returns the position of the status in the lifecycle order, used to
// enforce forward-only transitions. Terminal statuses share the last step.
func (s OperationStatus) Step() int {
	switch s {
	case StatusIdle:
		return 0
	case StatusCreating:
		return 1
	case StatusAwaitingSignature:
		return 2
	case StatusPending:
		return 3
	case StatusConfirmed, StatusFailed:
		return 4
	default:
		return -1
	}
}

// OperationKind classifies what a tracked operation does.
type OperationKind string

const (
	// OpDonation is the fixed-receiver native-asset payment.
	OpDonation OperationKind = "donation"
	// OpOptIn registers an account's ability to hold an asset.
	OpOptIn OperationKind = "opt-in"
	// OpSwap is the two-party atomic asset swap.
	OpSwap OperationKind = "swap"
)

// OperationKey identifies one tracked operation slot. Donation and swap
// reuse a single slot each; opt-ins get one slot per asset id.
type OperationKey string

const (
	// KeyDonation is the single slot shared by all donation invocations.
	KeyDonation OperationKey = "donation"
	// KeySwap is the single slot shared by all swap invocations.
	KeySwap OperationKey = "swap"
)

// OptInKey returns the per-asset slot key for an opt-in operation.
func OptInKey(assetID uint64) OperationKey {
	return OperationKey(fmt.Sprintf("opt-in/%d", assetID))
}

// OperationRecord is the tracked state of one operation slot.
type OperationRecord struct {
	StartedAt time.Time
	UpdatedAt time.Time
	Key       OperationKey
	Kind      OperationKind
	Status    OperationStatus
	TxID      string
	Err       string // human-readable failure message, set iff failed
	AssetID   uint64 // zero for donation and swap
}
