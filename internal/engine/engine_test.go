package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/the-ledger-must-settle/internal/common"
	"github.com/Veraticus/the-ledger-must-settle/internal/model"
	"github.com/Veraticus/the-ledger-must-settle/internal/network"
	"github.com/Veraticus/the-ledger-must-settle/internal/pipeline"
	"github.com/Veraticus/the-ledger-must-settle/internal/tracker"
	"github.com/Veraticus/the-ledger-must-settle/internal/txbuilder"
	"github.com/Veraticus/the-ledger-must-settle/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	addrA = "SALT6ZOHQU6NCIPLUXWCGSBPCVJEIFSB4IFDWTZ7E6XZABJ3IOWRFN6BSM"
	addrB = "LYDULBXKOFJZVF6GUS43ZEQXSL3DW7OPAFO5QPLLBZZMHQJVLHIDSDX7QU"
)

type testHarness struct {
	engine  *Engine
	signer  *wallet.MockSigner
	node    *MockNode
	history *MockHistory
}

func newHarness(t *testing.T, displayWindow time.Duration) *testHarness {
	t.Helper()

	signer := wallet.NewMockSigner(addrA)
	node := NewMockNode()
	history := &MockHistory{}

	eng, err := New(Config{
		Network:      network.Testnet,
		PipelineOpts: []pipeline.Option{pipeline.WithPollInterval(time.Millisecond)},
		TrackerOpts:  []tracker.Option{tracker.WithDisplayWindow(displayWindow)},
	}, Dependencies{
		Signer:    signer,
		Node:      node,
		Directory: &MockDirectory{},
		History:   history,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	return &testHarness{engine: eng, signer: signer, node: node, history: history}
}

func (h *testHarness) connect(t *testing.T) {
	t.Helper()
	_, err := h.engine.Connect(context.Background())
	require.NoError(t, err)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Network: network.Network("devnet")}, Dependencies{Signer: wallet.NewMockSigner(addrA)})
	require.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = New(Config{Network: network.Testnet}, Dependencies{})
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestOptIn_EndToEnd(t *testing.T) {
	h := newHarness(t, 50*time.Millisecond)
	h.connect(t)

	// The first submission confirms on the first poll.
	h.node.PendingRounds["TX1"] = 1

	require.NoError(t, h.engine.OptIn(context.Background(), 777))

	// The tracker holds the confirmed record inside the display window.
	record, ok := h.engine.Tracker().Get(model.OptInKey(777))
	require.True(t, ok)
	assert.Equal(t, model.StatusConfirmed, record.Status)
	assert.Equal(t, "TX1", record.TxID)
	assert.Equal(t, uint64(777), record.AssetID)

	// The history ledger saw the terminal record.
	saved, err := h.history.GetOperationByTxID(context.Background(), "TX1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, saved.Status)

	// After the display window the slot is cleared.
	assert.Eventually(t, func() bool {
		_, ok := h.engine.Tracker().Get(model.OptInKey(777))
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestOptIn_RequiresConnection(t *testing.T) {
	h := newHarness(t, time.Minute)

	err := h.engine.OptIn(context.Background(), 777)
	require.ErrorIs(t, err, common.ErrNotConnected)
}

func TestOptIn_DuplicateAssetRejected(t *testing.T) {
	h := newHarness(t, time.Minute)
	h.connect(t)

	h.signer.SignDelay = time.Minute // park the first opt-in at the wallet

	firstDone := make(chan error, 1)
	go func() { firstDone <- h.engine.OptIn(context.Background(), 10) }()

	// Wait for the first opt-in to claim its slot.
	require.Eventually(t, func() bool {
		return h.engine.Tracker().Status(model.OptInKey(10)) != model.StatusIdle
	}, time.Second, time.Millisecond)

	err := h.engine.OptIn(context.Background(), 10)
	require.ErrorIs(t, err, common.ErrAlreadyInFlight)

	require.NoError(t, h.engine.Disconnect())
	<-firstDone
}

func TestConcurrentOptIns_IndependentOutcomes(t *testing.T) {
	h := newHarness(t, time.Minute)
	h.connect(t)

	// First submission (asset 10) never confirms and times out; second
	// (asset 20) confirms immediately.
	h.node.PendingRounds["TX2"] = 1

	errFirst := make(chan error, 1)
	go func() { errFirst <- h.engine.OptIn(context.Background(), 10) }()

	// Order the submissions so TX1 belongs to asset 10.
	require.Eventually(t, func() bool {
		return len(h.node.Submissions()) == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, h.engine.OptIn(context.Background(), 20))
	require.Error(t, <-errFirst)

	// Asset 10 failed, asset 20 confirmed; neither outcome clobbered the
	// other.
	statuses := h.engine.Tracker().OptIns()
	assert.Equal(t, model.StatusFailed, statuses[10])
	assert.Equal(t, model.StatusConfirmed, statuses[20])

	// The timed-out operation still exposes its tx id for external lookup.
	record, ok := h.engine.Tracker().Get(model.OptInKey(10))
	require.True(t, ok)
	assert.Equal(t, "TX1", record.TxID)
	assert.Contains(t, record.Err, "may still settle")
}

func TestDonate_DuplicateIgnored(t *testing.T) {
	h := newHarness(t, time.Minute)
	h.connect(t)

	h.signer.SignDelay = time.Minute

	firstDone := make(chan error, 1)
	go func() { firstDone <- h.engine.Donate(context.Background()) }()

	require.Eventually(t, func() bool {
		return h.engine.Tracker().Status(model.KeyDonation) != model.StatusIdle
	}, time.Second, time.Millisecond)

	// The duplicate trigger is silently ignored: no error, no second
	// build, no second signature request.
	require.NoError(t, h.engine.Donate(context.Background()))
	assert.Empty(t, h.node.Submissions())

	require.NoError(t, h.engine.Disconnect())
	<-firstDone
}

func TestDonate_SignerRejection(t *testing.T) {
	h := newHarness(t, time.Minute)
	h.connect(t)

	h.signer.SignErr = common.ErrSignerRejected

	err := h.engine.Donate(context.Background())
	require.ErrorIs(t, err, common.ErrSignerRejected)

	record, ok := h.engine.Tracker().Get(model.KeyDonation)
	require.True(t, ok)
	assert.Equal(t, model.StatusFailed, record.Status)
	assert.Contains(t, record.Err, "signature not obtained")

	// No submission ever happened.
	assert.Empty(t, h.node.Submissions())
}

func TestDonate_NodeRejection(t *testing.T) {
	h := newHarness(t, time.Minute)
	h.connect(t)

	h.node.SubmitErr = errors.Join(common.ErrNodeRejected, errors.New("overspend"))

	err := h.engine.Donate(context.Background())
	require.ErrorIs(t, err, common.ErrNodeRejected)

	record, ok := h.engine.Tracker().Get(model.KeyDonation)
	require.True(t, ok)
	assert.Equal(t, model.StatusFailed, record.Status)
}

func TestSwap_EndToEnd(t *testing.T) {
	h := newHarness(t, time.Minute)
	h.connect(t)

	h.node.PendingRounds["TX1"] = 1

	err := h.engine.Swap(context.Background(), txbuilder.SwapParams{
		Sender:       addrA,
		Counterparty: addrB,
		AssetA:       10,
		AssetB:       20,
		AmountA:      100,
		AmountB:      250,
	})
	require.NoError(t, err)

	record, ok := h.engine.Tracker().Get(model.KeySwap)
	require.True(t, ok)
	assert.Equal(t, model.StatusConfirmed, record.Status)

	// The signed payload covered a real atomic group.
	groups := h.signer.SignedGroups()
	require.Len(t, groups, 1)
	assert.NotEmpty(t, groups[0])
}

func TestSwap_ValidationFailureTracked(t *testing.T) {
	h := newHarness(t, time.Minute)
	h.connect(t)

	err := h.engine.Swap(context.Background(), txbuilder.SwapParams{
		Sender:       addrA,
		Counterparty: addrB,
		AssetA:       10,
		AssetB:       20,
		AmountA:      0, // invalid
		AmountB:      250,
	})
	require.ErrorIs(t, err, common.ErrInvalidAmount)

	record, ok := h.engine.Tracker().Get(model.KeySwap)
	require.True(t, ok)
	assert.Equal(t, model.StatusFailed, record.Status)
}

func TestWalletDisconnect_ResetsEverything(t *testing.T) {
	h := newHarness(t, time.Minute)
	h.connect(t)

	h.signer.SignDelay = time.Minute

	done := make(chan error, 1)
	go func() { done <- h.engine.Donate(context.Background()) }()

	require.Eventually(t, func() bool {
		return h.engine.Tracker().Status(model.KeyDonation) != model.StatusIdle
	}, time.Second, time.Millisecond)

	// The wallet drops the session out of band.
	h.signer.FireDisconnect()

	err := <-done
	require.Error(t, err)

	assert.Eventually(t, func() bool {
		return !h.engine.Connected() && len(h.engine.Tracker().Snapshot()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestSwitchNetwork(t *testing.T) {
	h := newHarness(t, time.Minute)
	h.connect(t)

	require.NoError(t, h.engine.SwitchNetwork(network.Mainnet))

	assert.Equal(t, network.Mainnet, h.engine.Network())
	// Switching networks while connected must tear the session down.
	assert.False(t, h.engine.Connected())
	assert.Empty(t, h.engine.Tracker().Snapshot())

	// Switching to the current network is a no-op.
	require.NoError(t, h.engine.SwitchNetwork(network.Mainnet))
	require.Error(t, h.engine.SwitchNetwork(network.Network("devnet")))
}

func TestVerifiedAssets(t *testing.T) {
	signer := wallet.NewMockSigner(addrA)
	dir := &MockDirectory{Assets: []model.VerifiedAsset{
		{ID: 31566704, Name: "USDC", UnitName: "USDC", Tier: model.TierTrusted},
	}}

	eng, err := New(Config{Network: network.Testnet}, Dependencies{
		Signer:    signer,
		Node:      NewMockNode(),
		Directory: dir,
	})
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()

	assets, err := eng.VerifiedAssets(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "USDC", assets[0].Name)

	// Directory failure degrades to an empty list plus an advisory error.
	dir.Err = common.ErrDirectoryUnavailable
	assets, err = eng.VerifiedAssets(context.Background())
	require.Error(t, err)
	assert.Empty(t, assets)
}
