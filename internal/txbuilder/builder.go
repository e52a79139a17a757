// Package txbuilder constructs unsigned transactions and atomic groups
// from user intent and fresh network parameters.
package txbuilder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-ledger-must-settle/internal/common"
	"github.com/Veraticus/the-ledger-must-settle/internal/model"
	"github.com/Veraticus/the-ledger-must-settle/internal/service"
)

// Builder produces unsigned transactions against parameters fetched at
// build time. Each build fetches its own snapshot; parameters are never
// reused across builds because their validity window expires.
type Builder struct {
	node   service.NodeClient
	logger *slog.Logger
}

// SwapParams describes a two-party atomic asset swap: the sender gives
// amountA of assetA and receives amountB of assetB from the counterparty.
type SwapParams struct {
	Sender       string
	Counterparty string
	AssetA       uint64
	AssetB       uint64
	AmountA      uint64
	AmountB      uint64
}

// Validate rejects malformed swap intent before any network call.
func (p *SwapParams) Validate() error {
	if !model.ValidAddress(p.Sender) {
		return fmt.Errorf("%w: sender %q", common.ErrInvalidAddress, p.Sender)
	}
	if !model.ValidAddress(p.Counterparty) {
		return fmt.Errorf("%w: counterparty %q", common.ErrInvalidAddress, p.Counterparty)
	}
	if p.AssetA == 0 {
		return fmt.Errorf("%w: asset A", common.ErrInvalidAsset)
	}
	if p.AssetB == 0 {
		return fmt.Errorf("%w: asset B", common.ErrInvalidAsset)
	}
	if p.AmountA == 0 {
		return fmt.Errorf("%w: amount A must be positive", common.ErrInvalidAmount)
	}
	if p.AmountB == 0 {
		return fmt.Errorf("%w: amount B must be positive", common.ErrInvalidAmount)
	}
	return nil
}

// New creates a builder that fetches parameters from the given node.
func New(node service.NodeClient) *Builder {
	return &Builder{
		node:   node,
		logger: slog.Default().With("component", "txbuilder"),
	}
}

// BuildDonation builds the fixed-receiver, fixed-amount native payment.
func (b *Builder) BuildDonation(ctx context.Context, sender string) (model.UnsignedTransaction, error) {
	if !model.ValidAddress(sender) {
		return model.UnsignedTransaction{}, fmt.Errorf("%w: sender %q", common.ErrInvalidAddress, sender)
	}

	params, err := b.node.SuggestedParams(ctx)
	if err != nil {
		return model.UnsignedTransaction{}, fmt.Errorf("failed to fetch network parameters: %w", err)
	}

	b.logger.Debug("Building donation payment", "sender", sender, "first_valid", params.FirstValid)

	return model.UnsignedTransaction{
		Type:     model.TxTypePayment,
		Sender:   sender,
		Receiver: DonationReceiver,
		Amount:   DonationAmount,
		Params:   params,
	}, nil
}

// BuildOptIn builds the zero-amount self-transfer that registers the
// owner's ability to hold the asset.
func (b *Builder) BuildOptIn(ctx context.Context, owner string, assetID uint64) (model.UnsignedTransaction, error) {
	if assetID == 0 {
		return model.UnsignedTransaction{}, fmt.Errorf("%w: asset id must be a positive integer", common.ErrInvalidAsset)
	}
	if !model.ValidAddress(owner) {
		return model.UnsignedTransaction{}, fmt.Errorf("%w: owner %q", common.ErrInvalidAddress, owner)
	}

	params, err := b.node.SuggestedParams(ctx)
	if err != nil {
		return model.UnsignedTransaction{}, fmt.Errorf("failed to fetch network parameters: %w", err)
	}

	b.logger.Debug("Building asset opt-in", "owner", owner, "asset_id", assetID)

	return model.UnsignedTransaction{
		Type:     model.TxTypeAssetTransfer,
		Sender:   owner,
		Receiver: owner,
		Amount:   0,
		AssetID:  assetID,
		Params:   params,
	}, nil
}

// BuildAtomicSwap builds both swap legs against one shared parameter
// snapshot and seals them into an atomic group: leg 1 moves assetA from
// sender to counterparty, leg 2 moves assetB back. Leg order is part of
// the group identity; the same logical swap always yields the same group
// id.
func (b *Builder) BuildAtomicSwap(ctx context.Context, swap SwapParams) (*model.TransactionGroup, error) {
	if err := swap.Validate(); err != nil {
		return nil, err
	}

	// One snapshot for both legs: the legs must share a validity window
	// or the group can never settle atomically.
	params, err := b.node.SuggestedParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch network parameters: %w", err)
	}

	legA := model.UnsignedTransaction{
		Type:     model.TxTypeAssetTransfer,
		Sender:   swap.Sender,
		Receiver: swap.Counterparty,
		Amount:   swap.AmountA,
		AssetID:  swap.AssetA,
		Params:   params,
	}
	legB := model.UnsignedTransaction{
		Type:     model.TxTypeAssetTransfer,
		Sender:   swap.Counterparty,
		Receiver: swap.Sender,
		Amount:   swap.AmountB,
		AssetID:  swap.AssetB,
		Params:   params,
	}

	group, err := model.NewGroup([]model.UnsignedTransaction{legA, legB})
	if err != nil {
		return nil, fmt.Errorf("failed to form atomic group: %w", err)
	}

	b.logger.Debug("Built atomic swap group",
		"group_id", group.ID,
		"asset_a", swap.AssetA,
		"asset_b", swap.AssetB)

	return group, nil
}
