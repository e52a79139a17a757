package wallet

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-ledger-must-settle/internal/common"
	"github.com/Veraticus/the-ledger-must-settle/internal/model"
)

const bridgeAddr = "SALT6ZOHQU6NCIPLUXWCGSBPCVJEIFSB4IFDWTZ7E6XZABJ3IOWRFN6BSM"

func singlePayment() *model.TransactionGroup {
	return model.Single(model.UnsignedTransaction{
		Type:     model.TxTypePayment,
		Sender:   bridgeAddr,
		Receiver: bridgeAddr,
		Amount:   1000,
	})
}

func TestBridgeSigner_ConnectAndSign(t *testing.T) {
	var signedReq signRequest

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(sessionResponse{
			SessionID: "sess-1",
			Addresses: []string{bridgeAddr},
		})
	})
	mux.HandleFunc("POST /v1/sessions/sess-1/sign", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&signedReq))
		_ = json.NewEncoder(w).Encode(signResponse{
			Blob: base64.StdEncoding.EncodeToString([]byte("signed-bytes")),
		})
	})
	mux.HandleFunc("GET /v1/sessions/sess-1/events", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("DELETE /v1/sessions/sess-1", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	signer := NewBridgeSigner(server.URL)
	addrs, err := signer.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{bridgeAddr}, addrs)

	payload, err := signer.SignGroup(context.Background(), singlePayment(), []string{bridgeAddr})
	require.NoError(t, err)
	assert.Equal(t, []byte("signed-bytes"), payload.Blob)

	// The relayed request carried the signers and the flattened params.
	assert.Equal(t, []string{bridgeAddr}, signedReq.Signers)
	require.Len(t, signedReq.Transactions, 1)
	assert.Equal(t, "pay", signedReq.Transactions[0].Type)

	require.NoError(t, signer.Disconnect())
}

func TestBridgeSigner_SignWithoutSession(t *testing.T) {
	signer := NewBridgeSigner("http://127.0.0.1:1")

	_, err := signer.SignGroup(context.Background(), singlePayment(), []string{bridgeAddr})
	require.ErrorIs(t, err, common.ErrNotConnected)
}

func TestBridgeSigner_UserRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(sessionResponse{SessionID: "sess-1", Addresses: []string{bridgeAddr}})
	})
	mux.HandleFunc("POST /v1/sessions/sess-1/sign", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(bridgeError{Message: "user declined"})
	})
	mux.HandleFunc("GET /v1/sessions/sess-1/events", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	signer := NewBridgeSigner(server.URL)
	_, err := signer.Connect(context.Background())
	require.NoError(t, err)
	defer func() { _ = signer.Disconnect() }()

	_, err = signer.SignGroup(context.Background(), singlePayment(), []string{bridgeAddr})
	require.ErrorIs(t, err, common.ErrSignerRejected)
	assert.Contains(t, err.Error(), "user declined")
}

func TestBridgeSigner_SessionGone(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions/resume", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(sessionResponse{SessionID: "sess-2", Addresses: []string{bridgeAddr}})
	})
	mux.HandleFunc("POST /v1/sessions/sess-2/sign", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	mux.HandleFunc("GET /v1/sessions/sess-2/events", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	signer := NewBridgeSigner(server.URL)
	_, err := signer.Reconnect(context.Background())
	require.NoError(t, err)
	defer func() { _ = signer.Disconnect() }()

	_, err = signer.SignGroup(context.Background(), singlePayment(), []string{bridgeAddr})
	require.ErrorIs(t, err, common.ErrSessionLost)
}

func TestBridgeSigner_DisconnectEvent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(sessionResponse{SessionID: "sess-3", Addresses: []string{bridgeAddr}})
	})
	mux.HandleFunc("GET /v1/sessions/sess-3/events", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"event": "disconnected"})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	signer := NewBridgeSigner(server.URL)
	_, err := signer.Connect(context.Background())
	require.NoError(t, err)

	select {
	case <-signer.DisconnectEvents():
	case <-time.After(2 * time.Second):
		t.Fatal("no disconnect event observed")
	}
}

func TestBridgeSigner_ConnectFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	signer := NewBridgeSigner(server.URL)
	_, err := signer.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
