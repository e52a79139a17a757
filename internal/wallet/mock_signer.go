package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/Veraticus/the-ledger-must-settle/internal/model"
	"github.com/Veraticus/the-ledger-must-settle/internal/service"
)

// MockSigner is a test implementation of the Signer interface. It signs
// deterministically and lets tests script rejections, delays, and
// wallet-side disconnects.
type MockSigner struct {
	ConnectErr error
	SignErr    error
	SignDelay  time.Duration

	events       chan struct{}
	addresses    []string
	signedGroups []string
	mu           sync.Mutex
	disconnects  int
}

// NewMockSigner creates a mock wallet holding the given addresses.
func NewMockSigner(addresses ...string) *MockSigner {
	return &MockSigner{
		addresses: addresses,
		events:    make(chan struct{}, 1),
	}
}

// Connect returns the scripted addresses.
func (m *MockSigner) Connect(_ context.Context) ([]string, error) {
	if m.ConnectErr != nil {
		return nil, m.ConnectErr
	}
	return append([]string(nil), m.addresses...), nil
}

// Reconnect behaves exactly like Connect.
func (m *MockSigner) Reconnect(ctx context.Context) ([]string, error) {
	return m.Connect(ctx)
}

// Disconnect records the teardown.
func (m *MockSigner) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects++
	return nil
}

// SignGroup produces an opaque deterministic payload for the group after
// any scripted delay.
func (m *MockSigner) SignGroup(ctx context.Context, group *model.TransactionGroup, _ []string) (model.SignedPayload, error) {
	if m.SignDelay > 0 {
		select {
		case <-ctx.Done():
			return model.SignedPayload{}, ctx.Err()
		case <-time.After(m.SignDelay):
		}
	}
	if m.SignErr != nil {
		return model.SignedPayload{}, m.SignErr
	}

	m.mu.Lock()
	m.signedGroups = append(m.signedGroups, group.ID)
	m.mu.Unlock()

	return model.SignedPayload{
		GroupID: group.ID,
		Blob:    []byte("signed:" + group.ID),
	}, nil
}

// DisconnectEvents yields the scripted wallet-side disconnects.
func (m *MockSigner) DisconnectEvents() <-chan struct{} {
	return m.events
}

// FireDisconnect simulates the wallet dropping the session.
func (m *MockSigner) FireDisconnect() {
	m.events <- struct{}{}
}

// Disconnects reports how many times Disconnect was called.
func (m *MockSigner) Disconnects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnects
}

// SignedGroups returns the group ids signed so far.
func (m *MockSigner) SignedGroups() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.signedGroups...)
}

// Ensure MockSigner implements the Signer interface.
var _ service.Signer = (*MockSigner)(nil)
