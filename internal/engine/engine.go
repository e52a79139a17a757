// Package engine orchestrates wallet operations end to end: build, sign,
// submit, confirm, with every step reflected in the operation tracker.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Veraticus/the-ledger-must-settle/internal/algod"
	"github.com/Veraticus/the-ledger-must-settle/internal/common"
	"github.com/Veraticus/the-ledger-must-settle/internal/directory"
	"github.com/Veraticus/the-ledger-must-settle/internal/model"
	"github.com/Veraticus/the-ledger-must-settle/internal/network"
	"github.com/Veraticus/the-ledger-must-settle/internal/pipeline"
	"github.com/Veraticus/the-ledger-must-settle/internal/service"
	"github.com/Veraticus/the-ledger-must-settle/internal/tracker"
	"github.com/Veraticus/the-ledger-must-settle/internal/txbuilder"
	"github.com/Veraticus/the-ledger-must-settle/internal/wallet"
)

// Config holds configuration options for the engine.
type Config struct {
	Network      network.Network
	PipelineOpts []pipeline.Option
	TrackerOpts  []tracker.Option
}

// Dependencies are the collaborators the engine drives. Node and
// Directory default to live clients for the configured network when nil;
// History is optional.
type Dependencies struct {
	Signer    service.Signer
	Node      service.NodeClient
	Directory service.AssetDirectory
	History   service.HistoryStore
}

// Engine ties the session, builder, pipeline, and tracker into one
// operation surface. Operations for different keys run concurrently;
// within one operation the steps are strictly sequential.
type Engine struct {
	session   *wallet.Session
	tracker   *tracker.Tracker
	builder   *txbuilder.Builder
	pipe      *pipeline.Pipeline
	directory service.AssetDirectory
	history   service.HistoryStore
	logger    *slog.Logger

	cfg       Config
	deps      Dependencies
	opCancels map[model.OperationKey]context.CancelFunc
	mu        sync.Mutex
}

// New creates an engine for the configured network.
func New(cfg Config, deps Dependencies) (*Engine, error) {
	if !cfg.Network.Valid() {
		return nil, fmt.Errorf("%w: network %q", common.ErrInvalidConfig, cfg.Network)
	}
	if deps.Signer == nil {
		return nil, fmt.Errorf("%w: signer is required", common.ErrInvalidConfig)
	}

	e := &Engine{
		session:   wallet.NewSession(deps.Signer),
		tracker:   tracker.New(cfg.TrackerOpts...),
		cfg:       cfg,
		deps:      deps,
		opCancels: make(map[model.OperationKey]context.CancelFunc),
		logger:    slog.Default().With("component", "engine"),
	}
	e.wireNetwork(cfg.Network)

	// A dropped session invalidates everything in flight.
	e.session.OnDisconnect(func() {
		e.cancelAllOperations()
		e.tracker.ResetAll()
	})

	return e, nil
}

// wireNetwork builds the network-bound collaborators. The builder and
// pipeline are cheap to rebuild, so a network switch simply replaces them.
func (e *Engine) wireNetwork(net network.Network) {
	e.mu.Lock()
	defer e.mu.Unlock()

	node := e.deps.Node
	if node == nil {
		node = algod.NewClient(net)
	}
	dir := e.deps.Directory
	if dir == nil {
		dir = directory.NewClient(net)
	}

	e.cfg.Network = net
	e.builder = txbuilder.New(node)
	e.pipe = pipeline.New(node, e.cfg.PipelineOpts...)
	e.directory = dir
	e.history = e.deps.History
}

// Network returns the currently configured network.
func (e *Engine) Network() network.Network {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Network
}

// SwitchNetwork tears down the wallet session, resets all tracked state,
// and rewires the engine against the new network. A stale session must
// never sign for the wrong network.
func (e *Engine) SwitchNetwork(net network.Network) error {
	if !net.Valid() {
		return fmt.Errorf("%w: network %q", common.ErrInvalidConfig, net)
	}
	if net == e.Network() {
		return nil
	}

	e.logger.Info("Switching network", "from", e.Network(), "to", net)

	if err := e.session.Disconnect(); err != nil {
		e.logger.Warn("Wallet disconnect during network switch failed", "error", err)
	}
	e.cancelAllOperations()
	e.tracker.ResetAll()
	e.wireNetwork(net)
	return nil
}

// Connect establishes the wallet session.
func (e *Engine) Connect(ctx context.Context) ([]string, error) {
	return e.session.Connect(ctx)
}

// Reconnect resumes a previously established wallet session.
func (e *Engine) Reconnect(ctx context.Context) ([]string, error) {
	return e.session.Reconnect(ctx)
}

// Disconnect tears the wallet session down and resets tracked state.
func (e *Engine) Disconnect() error {
	return e.session.Disconnect()
}

// Connected reports whether a wallet session is live.
func (e *Engine) Connected() bool {
	return e.session.Connected()
}

// Addresses returns the connected wallet's addresses.
func (e *Engine) Addresses() []string {
	return e.session.Addresses()
}

// Tracker exposes the operation tracker for presentation-layer consumers.
func (e *Engine) Tracker() *tracker.Tracker {
	return e.tracker
}

// VerifiedAssets fetches opt-in candidates from the asset directory. A
// directory failure degrades to an empty list; the error is advisory.
func (e *Engine) VerifiedAssets(ctx context.Context) ([]model.VerifiedAsset, error) {
	e.mu.Lock()
	dir := e.directory
	e.mu.Unlock()
	return dir.FetchVerified(ctx)
}

// Donate runs the fixed donation payment through the single payment slot.
// A duplicate trigger while one is in flight is ignored, matching the
// reference behavior; the tracker already shows the in-flight state.
func (e *Engine) Donate(ctx context.Context) error {
	sender, err := e.session.PrimaryAddress()
	if err != nil {
		return err
	}

	claimed, err := e.claim(model.KeyDonation, model.OpDonation, 0)
	if err != nil || !claimed {
		return err
	}

	return e.run(ctx, model.KeyDonation, func(ctx context.Context) (*model.TransactionGroup, error) {
		txn, err := e.builder.BuildDonation(ctx, sender)
		if err != nil {
			return nil, err
		}
		return model.Single(txn), nil
	})
}

// OptIn registers the wallet's ability to hold the asset. Each asset id
// has its own slot: a duplicate trigger for a pending asset is rejected,
// while opt-ins for different assets proceed independently.
func (e *Engine) OptIn(ctx context.Context, assetID uint64) error {
	sender, err := e.session.PrimaryAddress()
	if err != nil {
		return err
	}

	key := model.OptInKey(assetID)
	if err := e.tracker.Begin(key, model.OpOptIn, assetID); err != nil {
		return err
	}

	return e.run(ctx, key, func(ctx context.Context) (*model.TransactionGroup, error) {
		txn, err := e.builder.BuildOptIn(ctx, sender, assetID)
		if err != nil {
			return nil, err
		}
		return model.Single(txn), nil
	})
}

// Swap runs a two-party atomic swap through the single swap slot. Like
// Donate, a duplicate trigger is ignored while one is in flight.
func (e *Engine) Swap(ctx context.Context, params txbuilder.SwapParams) error {
	if !e.session.Connected() {
		return common.ErrNotConnected
	}

	claimed, err := e.claim(model.KeySwap, model.OpSwap, 0)
	if err != nil || !claimed {
		return err
	}

	return e.run(ctx, model.KeySwap, func(ctx context.Context) (*model.TransactionGroup, error) {
		return e.builder.BuildAtomicSwap(ctx, params)
	})
}

// claim takes the slot for a single-slot operation. An in-flight
// duplicate reports claimed=false with no error.
func (e *Engine) claim(key model.OperationKey, kind model.OperationKind, assetID uint64) (bool, error) {
	err := e.tracker.Begin(key, kind, assetID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, common.ErrAlreadyInFlight) {
		e.logger.Debug("Ignoring duplicate trigger", "key", key)
		return false, nil
	}
	return false, err
}

// run drives one claimed operation through sign, submit, and confirm.
// Every failure lands as a tracked failed state with a readable message;
// nothing escapes the operation boundary unrecorded.
func (e *Engine) run(ctx context.Context, key model.OperationKey, build func(context.Context) (*model.TransactionGroup, error)) error {
	opCtx, cancel := context.WithCancel(ctx)
	e.registerCancel(key, cancel)
	defer e.unregisterCancel(key)

	e.mu.Lock()
	pipe := e.pipe
	e.mu.Unlock()

	group, err := build(opCtx)
	if err != nil {
		return e.fail(key, fmt.Errorf("failed to build transaction: %w", err))
	}

	if err := e.tracker.Advance(key, model.StatusAwaitingSignature); err != nil {
		return e.fail(key, err)
	}

	payload, err := e.session.Sign(opCtx, group)
	if err != nil {
		return e.fail(key, fmt.Errorf("signature not obtained: %w", err))
	}

	if err := e.tracker.Advance(key, model.StatusPending); err != nil {
		return e.fail(key, err)
	}

	txID, err := pipe.Submit(opCtx, payload)
	if err != nil {
		return e.fail(key, fmt.Errorf("submission rejected: %w", err))
	}
	e.tracker.SetTxID(key, txID)

	if _, err := pipe.WaitForConfirmation(opCtx, txID); err != nil {
		return e.fail(key, err)
	}

	e.tracker.Confirm(key)
	e.recordHistory(key)
	return nil
}

// fail marks the operation failed and records it. The returned error lets
// synchronous callers see the message; the tracker remains the primary
// status channel.
func (e *Engine) fail(key model.OperationKey, err error) error {
	e.tracker.Fail(key, err)
	e.recordHistory(key)
	e.logger.Debug("Operation failed", "key", key, "error", err)
	return err
}

// recordHistory snapshots the terminal record into the history ledger.
// Best effort: history must never fail an operation.
func (e *Engine) recordHistory(key model.OperationKey) {
	e.mu.Lock()
	history := e.history
	e.mu.Unlock()
	if history == nil {
		return
	}

	record, ok := e.tracker.Get(key)
	if !ok {
		return
	}

	if err := history.SaveOperation(context.Background(), &record); err != nil {
		e.logger.Warn("Failed to record operation history", "key", key, "error", err)
	}
}

func (e *Engine) registerCancel(key model.OperationKey, cancel context.CancelFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opCancels[key] = cancel
}

func (e *Engine) unregisterCancel(key model.OperationKey) {
	e.mu.Lock()
	cancel, ok := e.opCancels[key]
	delete(e.opCancels, key)
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

// cancelAllOperations aborts every in-flight operation chain. A
// submission already accepted by the node is not revocable; only the
// waits abort.
func (e *Engine) cancelAllOperations() {
	e.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(e.opCancels))
	for _, cancel := range e.opCancels {
		cancels = append(cancels, cancel)
	}
	e.opCancels = make(map[model.OperationKey]context.CancelFunc)
	e.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Close releases the tracker and disconnects the wallet.
func (e *Engine) Close() error {
	err := e.session.Disconnect()
	e.tracker.Close()
	return err
}
