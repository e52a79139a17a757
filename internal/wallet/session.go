// Package wallet owns the boundary to the external wallet signer: session
// lifecycle, signer addresses, and the disconnect-event subscription.
package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Veraticus/the-ledger-must-settle/internal/common"
	"github.com/Veraticus/the-ledger-must-settle/internal/model"
	"github.com/Veraticus/the-ledger-must-settle/internal/service"
)

// Session wraps an injected service.Signer with explicit lifecycle state.
// The session owns the disconnect-event subscription for as long as it is
// connected and releases it on teardown. Signing may suspend indefinitely
// awaiting out-of-band user approval; a wallet-side disconnect
// invalidates any in-flight signature request immediately.
type Session struct {
	signer       service.Signer
	logger       *slog.Logger
	sessCtx      context.Context
	sessCancel   context.CancelFunc
	watcherStop  chan struct{}
	onDisconnect []func()
	addresses    []string
	mu           sync.Mutex
	connected    bool
}

// NewSession creates a session manager around the given signer.
func NewSession(signer service.Signer) *Session {
	return &Session{
		signer: signer,
		logger: slog.Default().With("component", "wallet"),
	}
}

// Connect establishes the wallet session and starts watching for
// wallet-side disconnects.
func (s *Session) Connect(ctx context.Context) ([]string, error) {
	return s.establish(ctx, s.signer.Connect)
}

// Reconnect resumes a previously established session.
func (s *Session) Reconnect(ctx context.Context) ([]string, error) {
	return s.establish(ctx, s.signer.Reconnect)
}

func (s *Session) establish(ctx context.Context, dial func(context.Context) ([]string, error)) ([]string, error) {
	addresses, err := dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to establish wallet session: %w", err)
	}
	if len(addresses) == 0 {
		return nil, fmt.Errorf("wallet session returned no addresses")
	}

	s.mu.Lock()
	s.teardownLocked()
	s.connected = true
	s.addresses = append([]string(nil), addresses...)
	s.sessCtx, s.sessCancel = context.WithCancel(context.Background())
	s.watcherStop = make(chan struct{})
	go s.watchDisconnect(s.signer.DisconnectEvents(), s.watcherStop)
	s.mu.Unlock()

	s.logger.Info("Wallet session established", "addresses", len(addresses))
	return addresses, nil
}

// Disconnect tears the session down from this side.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	wasConnected := s.connected
	s.teardownLocked()
	callbacks := append([]func(){}, s.onDisconnect...)
	s.mu.Unlock()

	if !wasConnected {
		return nil
	}

	for _, fn := range callbacks {
		fn()
	}

	if err := s.signer.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect wallet: %w", err)
	}
	s.logger.Info("Wallet session disconnected")
	return nil
}

// teardownLocked clears session state and releases the watcher. Callers
// hold s.mu.
func (s *Session) teardownLocked() {
	if s.sessCancel != nil {
		s.sessCancel()
		s.sessCancel = nil
	}
	if s.watcherStop != nil {
		close(s.watcherStop)
		s.watcherStop = nil
	}
	s.connected = false
	s.addresses = nil
}

// watchDisconnect turns wallet-side disconnect events into local teardown
// plus registered callbacks.
func (s *Session) watchDisconnect(events <-chan struct{}, stop <-chan struct{}) {
	select {
	case <-stop:
		return
	case _, ok := <-events:
		if !ok {
			return
		}
	}

	s.logger.Warn("Wallet session dropped by wallet")

	s.mu.Lock()
	s.teardownLocked()
	callbacks := append([]func(){}, s.onDisconnect...)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// OnDisconnect registers a callback invoked whenever the session ends,
// from either side. Callbacks run outside the session lock.
func (s *Session) OnDisconnect(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnect = append(s.onDisconnect, fn)
}

// Connected reports whether a session is live.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Addresses returns the connected wallet's addresses.
func (s *Session) Addresses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.addresses...)
}

// PrimaryAddress returns the first wallet address.
func (s *Session) PrimaryAddress() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected || len(s.addresses) == 0 {
		return "", common.ErrNotConnected
	}
	return s.addresses[0], nil
}

// Sign hands the group to the wallet for approval. The required signers
// are the distinct senders of the group's members. The call suspends
// until the wallet answers, the caller's context is canceled, or the
// session ends; a mid-sign disconnect surfaces as ErrSessionLost.
func (s *Session) Sign(ctx context.Context, group *model.TransactionGroup) (model.SignedPayload, error) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return model.SignedPayload{}, common.ErrNotConnected
	}
	sessCtx := s.sessCtx
	s.mu.Unlock()

	signers := requiredSigners(group)

	type signResult struct {
		err     error
		payload model.SignedPayload
	}
	done := make(chan signResult, 1)

	signCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		payload, err := s.signer.SignGroup(signCtx, group, signers)
		done <- signResult{payload: payload, err: err}
	}()

	select {
	case <-sessCtx.Done():
		cancel()
		return model.SignedPayload{}, common.ErrSessionLost
	case <-ctx.Done():
		return model.SignedPayload{}, ctx.Err()
	case result := <-done:
		if result.err != nil {
			return model.SignedPayload{}, result.err
		}
		return result.payload, nil
	}
}

// requiredSigners collects the distinct sender addresses of the group in
// member order.
func requiredSigners(group *model.TransactionGroup) []string {
	seen := make(map[string]bool, len(group.Txns))
	signers := make([]string, 0, len(group.Txns))
	for i := range group.Txns {
		sender := group.Txns[i].Sender
		if !seen[sender] {
			seen[sender] = true
			signers = append(signers, sender)
		}
	}
	return signers
}
