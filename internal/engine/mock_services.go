package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/Veraticus/the-ledger-must-settle/internal/common"
	"github.com/Veraticus/the-ledger-must-settle/internal/model"
	"github.com/Veraticus/the-ledger-must-settle/internal/service"
)

// MockNode is a test implementation of the NodeClient interface with
// scriptable behavior per phase.
type MockNode struct {
	ParamsErr  error
	SubmitErr  error
	PendingErr error

	// PendingRounds maps a tx id to the poll count after which it reports
	// as confirmed; a missing entry never confirms.
	PendingRounds map[string]int
	Params        model.SuggestedParams

	polls       map[string]int
	submissions [][]byte
	nextTxID    int
	mu          sync.Mutex
}

// NewMockNode creates a mock node with sane default parameters.
func NewMockNode() *MockNode {
	return &MockNode{
		Params: model.SuggestedParams{
			GenesisID:   "testnet-v1.0",
			GenesisHash: "SGO1GKSzyE7IEPItTxCByw9x8FmnrCDexi9/cOUJOiI=",
			Fee:         1000,
			MinFee:      1000,
			FirstValid:  1000,
			LastValid:   2000,
		},
		PendingRounds: make(map[string]int),
		polls:         make(map[string]int),
	}
}

// SuggestedParams returns the scripted parameter snapshot.
func (m *MockNode) SuggestedParams(_ context.Context) (model.SuggestedParams, error) {
	if m.ParamsErr != nil {
		return model.SuggestedParams{}, m.ParamsErr
	}
	return m.Params, nil
}

// SendRawTransaction accepts the blob and mints a sequential tx id. Seed
// PendingRounds with "TX1", "TX2", ... to control confirmation.
func (m *MockNode) SendRawTransaction(_ context.Context, blob []byte) (string, error) {
	if m.SubmitErr != nil {
		return "", m.SubmitErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTxID++
	m.submissions = append(m.submissions, blob)
	return fmt.Sprintf("TX%d", m.nextTxID), nil
}

// PendingTransactionInfo confirms a transaction once it has been polled
// the scripted number of times.
func (m *MockNode) PendingTransactionInfo(_ context.Context, txID string) (service.PendingInfo, error) {
	if m.PendingErr != nil {
		return service.PendingInfo{}, m.PendingErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls[txID]++

	after, ok := m.PendingRounds[txID]
	if !ok || m.polls[txID] < after {
		return service.PendingInfo{}, nil
	}
	return service.PendingInfo{ConfirmedRound: 5000}, nil
}

// Submissions returns the raw blobs submitted so far.
func (m *MockNode) Submissions() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.submissions...)
}

// MockDirectory is a test implementation of the AssetDirectory interface.
type MockDirectory struct {
	Err    error
	Assets []model.VerifiedAsset
}

// FetchVerified returns the scripted catalog.
func (m *MockDirectory) FetchVerified(_ context.Context) ([]model.VerifiedAsset, error) {
	if m.Err != nil {
		return []model.VerifiedAsset{}, m.Err
	}
	return append([]model.VerifiedAsset(nil), m.Assets...), nil
}

// MockHistory is an in-memory test implementation of the HistoryStore
// interface.
type MockHistory struct {
	SaveErr error
	records []model.OperationRecord
	mu      sync.Mutex
}

// SaveOperation appends the record.
func (m *MockHistory) SaveOperation(_ context.Context, record *model.OperationRecord) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *record)
	return nil
}

// GetOperations returns saved records, newest last.
func (m *MockHistory) GetOperations(_ context.Context, filter service.OperationFilter) ([]model.OperationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.OperationRecord, 0, len(m.records))
	for _, r := range m.records {
		if filter.Kind != "" && r.Kind != filter.Kind {
			continue
		}
		out = append(out, r)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}

// GetOperationByTxID finds a saved record by transaction id.
func (m *MockHistory) GetOperationByTxID(_ context.Context, txID string) (*model.OperationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].TxID == txID {
			record := m.records[i]
			return &record, nil
		}
	}
	return nil, common.ErrNotFound
}

// Migrate is a no-op.
func (m *MockHistory) Migrate(_ context.Context) error { return nil }

// Close is a no-op.
func (m *MockHistory) Close() error { return nil }

// Ensure the mocks implement their interfaces.
var (
	_ service.NodeClient     = (*MockNode)(nil)
	_ service.AssetDirectory = (*MockDirectory)(nil)
	_ service.HistoryStore   = (*MockHistory)(nil)
)
