// Package directory provides a client for the external verified-asset
// catalog.
package directory

import (
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

// Client fetches the verified-asset catalog over HTTP and filters it by
// verification tier. Tier filtering happens here and nowhere else: no
// asset outside {trusted, verified} ever crosses this boundary.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	retryOpts  service.RetryOptions
}

// Catalog response types.
type assetList struct {
	Results []assetEntry `json:"results"`
}

type assetEntry struct {
	Name     string                 `json:"name"`
	UnitName string                 `json:"unit_name"`
	Tier     model.VerificationTier `json:"verification_tier"`
	AssetID  uint64                 `json:"asset_id"`
}

// NewClient creates a directory client for the given network.
func NewClient(net network.Network) *Client {
	return NewClientWithEndpoint(net.DirectoryEndpoint())
}

// NewClientWithEndpoint creates a directory client against an explicit
// catalog URL.
func NewClientWithEndpoint(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default().With("component", "directory"),
		retryOpts: service.RetryOptions{
			MaxAttempts:  2,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// FetchVerified performs one catalog read and returns only assets whose
// tier permits surfacing, preserving the catalog's relative order.
//
// Directory unavailability must never block wallet or payment
// functionality, so every failure mode (transport error, non-2xx,
// malformed payload, missing result list) degrades to an empty slice. The
// returned error is the side channel that lets callers distinguish "none
// verified" from "fetch failed"; it is always safe to ignore.
func (c *Client) FetchVerified(ctx context.Context) ([]model.VerifiedAsset, error) {
	var list assetList

	retryErr := common.WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &common.RetryableError{Err: fmt.Errorf("failed to fetch catalog: %w", err), Retryable: true}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("catalog returned %d: %s", resp.StatusCode, string(body))
			// Server-side trouble may clear up; client errors will not.
			if resp.StatusCode >= 500 {
				return &common.RetryableError{Err: err, Retryable: true}
			}
			return err
		}

		if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
			return fmt.Errorf("failed to decode catalog: %w", err)
		}
		return nil
	}, c.retryOpts)

	if retryErr != nil {
		c.logger.Warn("Asset directory unavailable, continuing without catalog", "error", retryErr)
		return []model.VerifiedAsset{}, fmt.Errorf("%w: %v", common.ErrDirectoryUnavailable, retryErr)
	}

	if list.Results == nil {
		c.logger.Warn("Asset directory response missing result list")
		return []model.VerifiedAsset{}, fmt.Errorf("%w: response missing result list", common.ErrDirectoryUnavailable)
	}

	assets := make([]model.VerifiedAsset, 0, len(list.Results))
	for _, entry := range list.Results {
		if !entry.Tier.Surfaceable() {
			continue
		}
		assets = append(assets, model.VerifiedAsset{
			ID:       entry.AssetID,
			Name:     entry.Name,
			UnitName: entry.UnitName,
			Tier:     entry.Tier,
		})
	}

	c.logger.Debug("Fetched verified assets",
		"total", len(list.Results),
		"surfaceable", len(assets))

	return assets, nil
}

// Ensure Client implements the AssetDirectory interface.
var _ service.AssetDirectory = (*Client)(nil)
