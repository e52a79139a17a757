// Package algod provides a minimal client for the node RPC surface the
// application needs: suggested parameters, raw submission, and pending
// transaction status.
package algod

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/the-ledger-must-settle/internal/common"
	"github.com/Veraticus/the-ledger-must-settle/internal/model"
	"github.com/Veraticus/the-ledger-must-settle/internal/network"
	"github.com/Veraticus/the-ledger-must-settle/internal/service"
)

// validityWindow is how many rounds past the current one a built
// transaction remains valid.
const validityWindow = 1000

// Client talks to one node endpoint. It implements service.NodeClient.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
}

// Node RPC response types.
type paramsResponse struct {
	GenesisID   string `json:"genesis-id"`
	GenesisHash string `json:"genesis-hash"`
	Fee         uint64 `json:"fee"`
	MinFee      uint64 `json:"min-fee"`
	LastRound   uint64 `json:"last-round"`
}

type submitResponse struct {
	TxID string `json:"txId"`
}

type pendingResponse struct {
	PoolError      string `json:"pool-error"`
	ConfirmedRound uint64 `json:"confirmed-round"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// NewClient creates a node client for the given network.
func NewClient(net network.Network) *Client {
	return NewClientWithEndpoint(net.AlgodEndpoint())
}

// NewClientWithEndpoint creates a node client against an explicit URL.
func NewClientWithEndpoint(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default().With("component", "algod"),
	}
}

// SuggestedParams fetches a fresh network-parameter snapshot. The
// validity window starts at the node's current round, so callers must use
// the snapshot promptly and never cache it across builds.
func (c *Client) SuggestedParams(ctx context.Context) (model.SuggestedParams, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/v2/transactions/params", nil)
	if err != nil {
		return model.SuggestedParams{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.SuggestedParams{}, fmt.Errorf("failed to fetch suggested params: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.SuggestedParams{}, fmt.Errorf("node returned %d fetching params: %s", resp.StatusCode, readErrorMessage(resp.Body))
	}

	var params paramsResponse
	if err := json.NewDecoder(resp.Body).Decode(&params); err != nil {
		return model.SuggestedParams{}, fmt.Errorf("failed to decode params: %w", err)
	}

	fee := params.Fee
	if fee < params.MinFee {
		fee = params.MinFee
	}

	return model.SuggestedParams{
		GenesisID:   params.GenesisID,
		GenesisHash: params.GenesisHash,
		Fee:         fee,
		MinFee:      params.MinFee,
		FirstValid:  params.LastRound,
		LastValid:   params.LastRound + validityWindow,
	}, nil
}

// SendRawTransaction submits signed bytes. A non-2xx response is a known
// node rejection (malformed group, insufficient balance, stale
// parameters) and fails immediately; it is never retried here.
func (c *Client) SendRawTransaction(ctx context.Context, blob []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v2/transactions", bytes.NewReader(blob))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-binary")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to submit transaction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s", common.ErrNodeRejected, readErrorMessage(resp.Body))
	}

	var submitted submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		return "", fmt.Errorf("failed to decode submission response: %w", err)
	}
	if submitted.TxID == "" {
		return "", fmt.Errorf("node accepted submission but returned no transaction id")
	}

	c.logger.Debug("Submitted raw transaction", "tx_id", submitted.TxID)

	return submitted.TxID, nil
}

// PendingTransactionInfo reports the inclusion status of a submitted
// transaction.
func (c *Client) PendingTransactionInfo(ctx context.Context, txID string) (service.PendingInfo, error) {
	url := fmt.Sprintf("%s/v2/transactions/pending/%s?format=json", c.endpoint, txID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return service.PendingInfo{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return service.PendingInfo{}, fmt.Errorf("failed to fetch pending info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return service.PendingInfo{}, fmt.Errorf("node returned %d for pending info: %s", resp.StatusCode, readErrorMessage(resp.Body))
	}

	var pending pendingResponse
	if err := json.NewDecoder(resp.Body).Decode(&pending); err != nil {
		return service.PendingInfo{}, fmt.Errorf("failed to decode pending info: %w", err)
	}

	return service.PendingInfo{
		ConfirmedRound: pending.ConfirmedRound,
		PoolError:      pending.PoolError,
	}, nil
}

// readErrorMessage extracts the node's error message from a failure body,
// falling back to the raw body when it is not the expected JSON shape.
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 1024))
	if err != nil || len(raw) == 0 {
		return "no error detail"
	}

	var nodeErr errorResponse
	if err := json.Unmarshal(raw, &nodeErr); err == nil && nodeErr.Message != "" {
		return nodeErr.Message
	}
	return string(raw)
}

// Ensure Client implements the NodeClient interface.
var _ service.NodeClient = (*Client)(nil)
