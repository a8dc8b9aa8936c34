package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestTransaction_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, CheckoutPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "buyer123", body["account"])
		assert.NotContains(t, body, "signedTransaction")

		json.NewEncoder(w).Encode(map[string]string{"transaction": "AQID", "message": "Pay 1 USDC"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	resp, err := client.RequestTransaction(context.Background(), "buyer123")
	require.NoError(t, err)
	assert.Equal(t, "AQID", resp.Transaction)
	assert.Equal(t, "Pay 1 USDC", resp.Message)
}

func TestRelayTransaction_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "signed-b64", body["signedTransaction"])

		json.NewEncoder(w).Encode(map[string]string{"fullySignedTransaction": "signed-b64", "message": "ok"})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL+"/", nil, nil).RelayTransaction(context.Background(), "buyer123", "signed-b64")
	require.NoError(t, err)
	assert.Equal(t, "signed-b64", resp.FullySignedTransaction)
}

func TestRelayTransaction_EmptyPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil, nil).RelayTransaction(context.Background(), "buyer123", "x")
	assert.Error(t, err)
}

func TestRequestTransaction_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid account"})
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil, nil).RequestTransaction(context.Background(), "bad")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid account", apiErr.Message)
	assert.Equal(t, "invalid account", errorMessage(err))
}

func TestParseErrorResponse_NonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil, nil).CheckoutInfo(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestCheckoutInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		json.NewEncoder(w).Encode(CheckoutInfo{Label: "NFT Pass", Icon: "https://x/icon.png"})
	}))
	defer server.Close()

	info, err := NewClient(server.URL, nil, nil).CheckoutInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "NFT Pass", info.Label)
}

func TestGetPurchase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/nft-pass/purchases/sig123", r.URL.Path)
		json.NewEncoder(w).Encode(Purchase{Signature: "sig123", Status: "confirmed"})
	}))
	defer server.Close()

	p, err := NewClient(server.URL, nil, nil).GetPurchase(context.Background(), "sig123")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", p.Status)
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	assert.NoError(t, NewClient(server.URL, nil, nil).Health(context.Background()))
}

func TestDecodeTransaction_Invalid(t *testing.T) {
	_, err := DecodeTransaction("%%%")
	assert.Error(t, err)

	_, err = DecodeTransaction("/wE=")
	assert.Error(t, err)
}
