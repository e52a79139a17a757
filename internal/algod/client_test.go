package algod

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Veraticus/the-ledger-must-settle/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestedParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/transactions/params", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"genesis-id": "testnet-v1.0",
			"genesis-hash": "SGO1GKSzyE7IEPItTxCByw9x8FmnrCDexi9/cOUJOiI=",
			"fee": 0,
			"min-fee": 1000,
			"last-round": 35000000
		}`))
	}))
	defer server.Close()

	client := NewClientWithEndpoint(server.URL)
	params, err := client.SuggestedParams(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "testnet-v1.0", params.GenesisID)
	assert.Equal(t, uint64(1000), params.Fee, "fee below min-fee is raised to min-fee")
	assert.Equal(t, uint64(35000000), params.FirstValid)
	assert.Equal(t, uint64(35000000+validityWindow), params.LastValid)
}

func TestSendRawTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/transactions", r.URL.Path)
		assert.Equal(t, "application/x-binary", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"txId":"ABCDEF"}`))
	}))
	defer server.Close()

	client := NewClientWithEndpoint(server.URL)
	txID, err := client.SendRawTransaction(context.Background(), []byte{0x01, 0x02})
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF", txID)
}

func TestSendRawTransaction_NodeRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"TransactionPool.Remember: txn dead"}`))
	}))
	defer server.Close()

	client := NewClientWithEndpoint(server.URL)
	_, err := client.SendRawTransaction(context.Background(), []byte{0x01})

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNodeRejected)
	assert.Contains(t, err.Error(), "txn dead")
}

func TestPendingTransactionInfo(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantRound     uint64
		wantPoolError string
	}{
		{
			name:      "confirmed",
			body:      `{"confirmed-round": 35000004, "pool-error": ""}`,
			wantRound: 35000004,
		},
		{
			name: "still pending",
			body: `{"confirmed-round": 0, "pool-error": ""}`,
		},
		{
			name:          "evicted",
			body:          `{"confirmed-round": 0, "pool-error": "overspend"}`,
			wantPoolError: "overspend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v2/transactions/pending/TX123", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClientWithEndpoint(server.URL)
			info, err := client.PendingTransactionInfo(context.Background(), "TX123")
			require.NoError(t, err)
			assert.Equal(t, tt.wantRound, info.ConfirmedRound)
			assert.Equal(t, tt.wantPoolError, info.PoolError)
		})
	}
}
