package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/the-ledger-must-settle/internal/common"
	"github.com/Veraticus/the-ledger-must-settle/internal/model"
	"github.com/Veraticus/the-ledger-must-settle/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode scripts submission and per-poll pending responses.
type fakeNode struct {
	submitErr error
	txID      string
	pending   []pendingStep
	polls     int
}

type pendingStep struct {
	err  error
	info service.PendingInfo
}

func (f *fakeNode) SuggestedParams(_ context.Context) (model.SuggestedParams, error) {
	return model.SuggestedParams{}, errors.New("not implemented")
}

func (f *fakeNode) SendRawTransaction(_ context.Context, _ []byte) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.txID, nil
}

func (f *fakeNode) PendingTransactionInfo(_ context.Context, _ string) (service.PendingInfo, error) {
	step := f.pending[len(f.pending)-1]
	if f.polls < len(f.pending) {
		step = f.pending[f.polls]
	}
	f.polls++
	return step.info, step.err
}

func fastPipeline(node service.NodeClient) *Pipeline {
	return New(node, WithPollInterval(time.Millisecond))
}

func payload() model.SignedPayload {
	return model.SignedPayload{GroupID: "GROUP", Blob: []byte{0x01}}
}

func TestSubmit(t *testing.T) {
	node := &fakeNode{txID: "ABC"}
	txID, err := fastPipeline(node).Submit(context.Background(), payload())
	require.NoError(t, err)
	assert.Equal(t, "ABC", txID)
}

func TestSubmit_EmptyPayload(t *testing.T) {
	node := &fakeNode{txID: "ABC"}
	_, err := fastPipeline(node).Submit(context.Background(), model.SignedPayload{})
	require.Error(t, err)
}

func TestSubmit_NodeRejection(t *testing.T) {
	node := &fakeNode{submitErr: fmt.Errorf("%w: below min balance", common.ErrNodeRejected)}
	_, err := fastPipeline(node).Submit(context.Background(), payload())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNodeRejected)
}

func TestWaitForConfirmation_ConfirmedWithinRounds(t *testing.T) {
	node := &fakeNode{pending: []pendingStep{
		{info: service.PendingInfo{}},
		{info: service.PendingInfo{}},
		{info: service.PendingInfo{ConfirmedRound: 35000004}},
	}}

	result, err := fastPipeline(node).WaitForConfirmation(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, "ABC", result.TxID)
	assert.Equal(t, uint64(35000004), result.ConfirmedRound)
	assert.Equal(t, 3, node.polls)
}

func TestWaitForConfirmation_Timeout(t *testing.T) {
	node := &fakeNode{pending: []pendingStep{
		{info: service.PendingInfo{}},
	}}

	result, err := fastPipeline(node).WaitForConfirmation(context.Background(), "ABC")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConfirmationTimeout)
	// Bounded at the default four rounds.
	assert.Equal(t, DefaultMaxRounds, node.polls)
	// The message preserves the unknown-outcome semantics and the txid
	// stays retrievable for external lookup.
	assert.Contains(t, err.Error(), "may still settle")
	assert.Equal(t, "ABC", result.TxID)
}

func TestWaitForConfirmation_PoolError(t *testing.T) {
	node := &fakeNode{pending: []pendingStep{
		{info: service.PendingInfo{PoolError: "overspend"}},
	}}

	_, err := fastPipeline(node).WaitForConfirmation(context.Background(), "ABC")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNodeRejected)
	assert.NotErrorIs(t, err, common.ErrConfirmationTimeout,
		"a known rejection is not a timeout")
	assert.Equal(t, 1, node.polls, "pool eviction ends polling immediately")
}

func TestWaitForConfirmation_TransientPollErrors(t *testing.T) {
	node := &fakeNode{pending: []pendingStep{
		{err: errors.New("connection reset")},
		{info: service.PendingInfo{ConfirmedRound: 12}},
	}}

	result, err := fastPipeline(node).WaitForConfirmation(context.Background(), "ABC")
	require.NoError(t, err, "one failed poll must not decide the outcome")
	assert.Equal(t, uint64(12), result.ConfirmedRound)
}

func TestWaitForConfirmation_ContextCanceled(t *testing.T) {
	node := &fakeNode{pending: []pendingStep{
		{info: service.PendingInfo{}},
	}}
	p := New(node, WithPollInterval(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := p.WaitForConfirmation(ctx, "ABC")
	require.ErrorIs(t, err, context.Canceled)
}

func TestSubmitAndWait(t *testing.T) {
	node := &fakeNode{
		txID: "ABC",
		pending: []pendingStep{
			{info: service.PendingInfo{ConfirmedRound: 7}},
		},
	}

	result, err := fastPipeline(node).SubmitAndWait(context.Background(), payload())
	require.NoError(t, err)
	assert.Equal(t, "ABC", result.TxID)
	assert.Equal(t, uint64(7), result.ConfirmedRound)
}
