// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/the-ledger-must-settle/internal/model"
)

// NodeClient is the boundary to a ledger node's RPC surface. One client is
// bound to one network endpoint.
type NodeClient interface {
	// SuggestedParams fetches a fresh network-parameter snapshot. Results
	// are time-bounded and must not be cached across builds.
	SuggestedParams(ctx context.Context) (model.SuggestedParams, error)
	// SendRawTransaction submits signed bytes and returns the transaction
	// id, or fails immediately on node rejection.
	SendRawTransaction(ctx context.Context, blob []byte) (string, error)
	// PendingTransactionInfo reports the inclusion status of a submitted
	// transaction.
	PendingTransactionInfo(ctx context.Context, txID string) (PendingInfo, error)
}

// PendingInfo is a node's view of a submitted, not-yet-final transaction.
type PendingInfo struct {
	// PoolError is non-empty when the node evicted the transaction.
	PoolError string
	// ConfirmedRound is non-zero once the transaction is included.
	ConfirmedRound uint64
}

// Signer is the opaque boundary to an external wallet session. Session
// lifecycle and key custody live entirely on the other side; signing may
// suspend indefinitely awaiting out-of-band user approval.
type Signer interface {
	// Connect establishes a session and returns the wallet's addresses.
	Connect(ctx context.Context) ([]string, error)
	// Reconnect resumes a previously established session.
	Reconnect(ctx context.Context) ([]string, error)
	// Disconnect tears the session down.
	Disconnect() error
	// SignGroup asks the wallet to sign every transaction in the group
	// authorized by the listed signer addresses. One opaque call per group.
	SignGroup(ctx context.Context, group *model.TransactionGroup, signers []string) (model.SignedPayload, error)
	// DisconnectEvents yields one value each time the session drops from
	// the wallet side. The channel is owned by the signer and closed on
	// teardown.
	DisconnectEvents() <-chan struct{}
}

// AssetDirectory is the read-only boundary to the external verified-asset
// catalog.
type AssetDirectory interface {
	// FetchVerified returns the catalog entries whose verification tier
	// permits surfacing. The slice is always non-nil; a non-nil error
	// alongside an empty slice means the fetch failed rather than the
	// catalog being empty.
	FetchVerified(ctx context.Context) ([]model.VerifiedAsset, error)
}

// OperationFilter defines filtering options for history queries.
type OperationFilter struct {
	Since *time.Time
	Kind  model.OperationKind // empty matches all kinds
	Limit int
}

// HistoryStore defines the contract for the operation-history ledger.
type HistoryStore interface {
	SaveOperation(ctx context.Context, record *model.OperationRecord) error
	GetOperations(ctx context.Context, filter OperationFilter) ([]model.OperationRecord, error)
	GetOperationByTxID(ctx context.Context, txID string) (*model.OperationRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
