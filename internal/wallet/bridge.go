package wallet

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Veraticus/the-ledger-must-settle/internal/common"
	"github.com/Veraticus/the-ledger-must-settle/internal/model"
	"github.com/Veraticus/the-ledger-must-settle/internal/service"
)

// BridgeSigner talks to a local wallet bridge daemon over HTTP. The
// bridge holds the actual wallet link and key custody; this client only
// relays session and signing requests. It implements service.Signer.
type BridgeSigner struct {
	httpClient *http.Client
	signClient *http.Client
	logger     *slog.Logger
	endpoint   string

	events    chan struct{}
	watchStop chan struct{}
	sessionID string
	mu        sync.Mutex
}

// Bridge RPC request and response types.
type sessionResponse struct {
	SessionID string   `json:"session_id"`
	Addresses []string `json:"addresses"`
}

type bridgeTxn struct {
	Type     string `json:"type"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Note     string `json:"note,omitempty"`
	Amount   uint64 `json:"amount"`
	AssetID  uint64 `json:"asset_id,omitempty"`

	Fee         uint64 `json:"fee"`
	FirstValid  uint64 `json:"first_valid"`
	LastValid   uint64 `json:"last_valid"`
	GenesisID   string `json:"genesis_id"`
	GenesisHash string `json:"genesis_hash"`
}

type signRequest struct {
	GroupID      string      `json:"group_id,omitempty"`
	Signers      []string    `json:"signers"`
	Transactions []bridgeTxn `json:"transactions"`
}

type signResponse struct {
	Blob string `json:"blob"`
}

type bridgeError struct {
	Message string `json:"message"`
}

// NewBridgeSigner creates a signer client against a wallet bridge URL.
func NewBridgeSigner(endpoint string) *BridgeSigner {
	return &BridgeSigner{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// Signing suspends until the user approves in the wallet, so no
		// client-side timeout; the request context bounds it instead.
		signClient: &http.Client{},
		logger:     slog.Default().With("component", "wallet-bridge"),
		events:     make(chan struct{}, 1),
	}
}

// Connect establishes a fresh session and returns the wallet's addresses.
func (b *BridgeSigner) Connect(ctx context.Context) ([]string, error) {
	return b.establish(ctx, b.endpoint+"/v1/sessions")
}

// Reconnect resumes the bridge's previously established session.
func (b *BridgeSigner) Reconnect(ctx context.Context) ([]string, error) {
	return b.establish(ctx, b.endpoint+"/v1/sessions/resume")
}

func (b *BridgeSigner) establish(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach wallet bridge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bridge returned %d establishing session: %s", resp.StatusCode, readBridgeError(resp.Body))
	}

	var session sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if session.SessionID == "" {
		return nil, fmt.Errorf("bridge returned an empty session id")
	}

	b.mu.Lock()
	b.sessionID = session.SessionID
	if b.watchStop == nil {
		b.watchStop = make(chan struct{})
		go b.watchEvents(session.SessionID, b.watchStop)
	}
	b.mu.Unlock()

	b.logger.Info("Wallet session established", "addresses", len(session.Addresses))

	return session.Addresses, nil
}

// Disconnect tears the session down on the bridge and closes the event
// channel.
func (b *BridgeSigner) Disconnect() error {
	b.mu.Lock()
	sessionID := b.sessionID
	b.sessionID = ""
	stop := b.watchStop
	b.watchStop = nil
	b.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if sessionID == "" {
		return nil
	}

	url := fmt.Sprintf("%s/v1/sessions/%s", b.endpoint, sessionID)
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach wallet bridge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("bridge returned %d tearing down session", resp.StatusCode)
	}
	return nil
}

// SignGroup relays the group to the wallet for approval and returns the
// signed payload. The call suspends until the user acts or ctx ends.
func (b *BridgeSigner) SignGroup(ctx context.Context, group *model.TransactionGroup, signers []string) (model.SignedPayload, error) {
	b.mu.Lock()
	sessionID := b.sessionID
	b.mu.Unlock()
	if sessionID == "" {
		return model.SignedPayload{}, common.ErrNotConnected
	}

	payload := signRequest{
		GroupID: group.ID,
		Signers: signers,
	}
	for _, txn := range group.Txns {
		payload.Transactions = append(payload.Transactions, bridgeTxn{
			Type:        string(txn.Type),
			Sender:      txn.Sender,
			Receiver:    txn.Receiver,
			Note:        txn.Note,
			Amount:      txn.Amount,
			AssetID:     txn.AssetID,
			Fee:         txn.Params.Fee,
			FirstValid:  txn.Params.FirstValid,
			LastValid:   txn.Params.LastValid,
			GenesisID:   txn.Params.GenesisID,
			GenesisHash: txn.Params.GenesisHash,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return model.SignedPayload{}, fmt.Errorf("failed to encode sign request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/sessions/%s/sign", b.endpoint, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return model.SignedPayload{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.signClient.Do(req)
	if err != nil {
		return model.SignedPayload{}, fmt.Errorf("failed to reach wallet bridge: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return model.SignedPayload{}, fmt.Errorf("%w: %s", common.ErrSignerRejected, readBridgeError(resp.Body))
	case http.StatusGone:
		return model.SignedPayload{}, fmt.Errorf("%w: %s", common.ErrSessionLost, readBridgeError(resp.Body))
	default:
		return model.SignedPayload{}, fmt.Errorf("bridge returned %d signing group: %s", resp.StatusCode, readBridgeError(resp.Body))
	}

	var signed signResponse
	if err := json.NewDecoder(resp.Body).Decode(&signed); err != nil {
		return model.SignedPayload{}, fmt.Errorf("failed to decode signed payload: %w", err)
	}

	blob, err := base64.StdEncoding.DecodeString(signed.Blob)
	if err != nil {
		return model.SignedPayload{}, fmt.Errorf("failed to decode signed blob: %w", err)
	}
	if len(blob) == 0 {
		return model.SignedPayload{}, fmt.Errorf("bridge returned an empty signed blob")
	}

	return model.SignedPayload{GroupID: group.ID, Blob: blob}, nil
}

// DisconnectEvents yields one value each time the wallet drops the
// session from its side.
func (b *BridgeSigner) DisconnectEvents() <-chan struct{} {
	return b.events
}

// watchEvents long-polls the bridge's event stream. A "disconnected"
// event is forwarded once; polling errors back off and retry since a
// dead bridge looks the same as a quiet one.
func (b *BridgeSigner) watchEvents(sessionID string, stop <-chan struct{}) {
	url := fmt.Sprintf("%s/v1/sessions/%s/events", b.endpoint, sessionID)

	for {
		select {
		case <-stop:
			return
		default:
		}

		disconnected, err := b.pollEvent(url, stop)
		if err != nil {
			b.logger.Debug("Event poll failed, backing off", "error", err)
			select {
			case <-stop:
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		if disconnected {
			select {
			case b.events <- struct{}{}:
			default:
			}
			return
		}
	}
}

func (b *BridgeSigner) pollEvent(url string, stop <-chan struct{}) (bool, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := b.signClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	// 204 means the poll window elapsed with nothing to report.
	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("bridge returned %d polling events", resp.StatusCode)
	}

	var event struct {
		Event string `json:"event"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&event); err != nil {
		return false, err
	}
	return event.Event == "disconnected", nil
}

func readBridgeError(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 1024))
	if err != nil || len(raw) == 0 {
		return "no error detail"
	}

	var bridgeErr bridgeError
	if err := json.Unmarshal(raw, &bridgeErr); err == nil && bridgeErr.Message != "" {
		return bridgeErr.Message
	}
	return string(raw)
}

// Ensure BridgeSigner implements the Signer interface.
var _ service.Signer = (*BridgeSigner)(nil)
