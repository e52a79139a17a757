// Package pipeline submits signed payloads and watches for confirmation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-ledger-must-settle/internal/common"
	"github.com/Veraticus/the-ledger-must-settle/internal/model"
	"github.com/Veraticus/the-ledger-must-settle/internal/service"
)

const (
	// DefaultMaxRounds bounds confirmation polling.
	DefaultMaxRounds = 4
	// DefaultPollInterval approximates one ledger round.
	DefaultPollInterval = 2800 * time.Millisecond
)

// ConfirmationResult is the terminal report for one submitted payload.
type ConfirmationResult struct {
	TxID           string
	ConfirmedRound uint64
}

// Pipeline drives the two submission phases: raw submission, which fails
// immediately on node rejection, and bounded confirmation polling. It
// reports outcomes to its caller only; status fan-out belongs to the
// tracker.
type Pipeline struct {
	node         service.NodeClient
	logger       *slog.Logger
	maxRounds    int
	pollInterval time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxRounds overrides the confirmation-poll bound.
func WithMaxRounds(rounds int) Option {
	return func(p *Pipeline) {
		p.maxRounds = rounds
	}
}

// WithPollInterval overrides the wait between confirmation polls.
func WithPollInterval(d time.Duration) Option {
	return func(p *Pipeline) {
		p.pollInterval = d
	}
}

// New creates a pipeline bound to one node client.
func New(node service.NodeClient, opts ...Option) *Pipeline {
	p := &Pipeline{
		node:         node,
		maxRounds:    DefaultMaxRounds,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit performs the raw submission. A node rejection (malformed group,
// insufficient balance, stale parameters) surfaces immediately; a stale-
// parameter rejection means the caller must rebuild from fresh parameters
// and run the whole build, sign, submit cycle again; it is never retried
// here.
func (p *Pipeline) Submit(ctx context.Context, payload model.SignedPayload) (string, error) {
	if len(payload.Blob) == 0 {
		return "", fmt.Errorf("empty signed payload")
	}

	txID, err := p.node.SendRawTransaction(ctx, payload.Blob)
	if err != nil {
		return "", err
	}

	p.logger.Debug("Raw submission accepted", "tx_id", txID, "group_id", payload.GroupID)
	return txID, nil
}

// WaitForConfirmation polls the node for inclusion of txID, one poll per
// round, up to the configured bound. Exhausting the bound yields
// ErrConfirmationTimeout: the outcome is unknown, the transaction may
// still confirm later, which is semantically distinct from a known node
// rejection, and the message says so. The txID remains usable for
// external lookup either way.
func (p *Pipeline) WaitForConfirmation(ctx context.Context, txID string) (ConfirmationResult, error) {
	for round := 1; round <= p.maxRounds; round++ {
		info, err := p.node.PendingTransactionInfo(ctx, txID)
		switch {
		case err != nil:
			// A single failed poll consumes the round but does not decide
			// the outcome.
			p.logger.Warn("Confirmation poll failed", "tx_id", txID, "round", round, "error", err)
		case info.PoolError != "":
			return ConfirmationResult{TxID: txID}, fmt.Errorf("%w: %s", common.ErrNodeRejected, info.PoolError)
		case info.ConfirmedRound > 0:
			p.logger.Debug("Transaction confirmed", "tx_id", txID, "round", info.ConfirmedRound)
			return ConfirmationResult{TxID: txID, ConfirmedRound: info.ConfirmedRound}, nil
		}

		if round == p.maxRounds {
			break
		}

		select {
		case <-ctx.Done():
			return ConfirmationResult{TxID: txID}, ctx.Err()
		case <-time.After(p.pollInterval):
		}
	}

	return ConfirmationResult{TxID: txID}, fmt.Errorf(
		"%w: transaction %s not confirmed within %d rounds; it may still settle, check it externally",
		common.ErrConfirmationTimeout, txID, p.maxRounds)
}

// SubmitAndWait runs both phases in sequence.
func (p *Pipeline) SubmitAndWait(ctx context.Context, payload model.SignedPayload) (ConfirmationResult, error) {
	txID, err := p.Submit(ctx, payload)
	if err != nil {
		return ConfirmationResult{}, err
	}
	return p.WaitForConfirmation(ctx, txID)
}
