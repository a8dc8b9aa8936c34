package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/nftpass/client"
)

func TestQRCommand_LocalEndpoint(t *testing.T) {
	png := filepath.Join(t.TempDir(), "pay.png")

	out, err := runApp(t, "qr", "--endpoint", "https://shop.example.com/api/nft-pass/checkout", "--output", png)
	require.NoError(t, err)
	assert.Contains(t, out, "solana:https%3A%2F%2Fshop.example.com%2Fapi%2Fnft-pass%2Fcheckout")

	data, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}

func TestQRCommand_FromServer(t *testing.T) {
	link := client.PaymentRequestURL("https://shop.example.com/api/nft-pass/checkout")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/nft-pass/payment-request", r.URL.Path)
		json.NewEncoder(w).Encode(client.PaymentRequest{URL: link, QRCodeData: "aGVsbG8="})
	}))
	defer server.Close()

	out, err := runApp(t, "--server-url", server.URL, "--json", "qr")
	require.NoError(t, err)

	var got client.PaymentRequest
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, link, got.URL)
	assert.Equal(t, "aGVsbG8=", got.QRCodeData)
}

func testTransaction(t *testing.T) (string, solana.PublicKey) {
	t.Helper()
	payer := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(5_000, payer, to).Build()},
		solana.MustHashFromBase58("EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"),
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)

	encoded, err := client.EncodeTransaction(tx)
	require.NoError(t, err)
	return encoded, payer
}

func TestInspectCommand(t *testing.T) {
	encoded, payer := testTransaction(t)

	out, err := runApp(t, "inspect", encoded)
	require.NoError(t, err)
	assert.Contains(t, out, "Fee payer: "+payer.String())
	assert.Contains(t, out, "SLOT")
	assert.Contains(t, out, "false")

	out, err = runApp(t, "--json", "inspect", encoded)
	require.NoError(t, err)

	var summary struct {
		FeePayer string `json:"fee_payer"`
		Signers  []struct {
			Signed bool `json:"signed"`
		} `json:"signers"`
		Instructions []json.RawMessage `json:"instructions"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, payer.String(), summary.FeePayer)
	require.Len(t, summary.Signers, 1)
	assert.False(t, summary.Signers[0].Signed)
	assert.Len(t, summary.Instructions, 1)
}

func TestInspectCommand_FromServer(t *testing.T) {
	encoded, payer := testTransaction(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, payer.String(), req["account"])
		json.NewEncoder(w).Encode(client.CheckoutResponse{Transaction: encoded, Message: "Pay 1 USDC to mint your NFT pass"})
	}))
	defer server.Close()

	out, err := runApp(t, "--server-url", server.URL, "inspect", "--account", payer.String())
	require.NoError(t, err)
	assert.Contains(t, out, payer.String())
}

func TestInspectCommand_RequiresInput(t *testing.T) {
	_, err := runApp(t, "inspect")
	assert.Error(t, err)

	_, err = runApp(t, "inspect", "not-base64!")
	assert.Error(t, err)
}
