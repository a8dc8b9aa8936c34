package client

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentRequestURL(t *testing.T) {
	endpoint := "https://shop.example.com/api/nft-pass/checkout"
	link := PaymentRequestURL(endpoint)

	assert.Equal(t, "solana:https%3A%2F%2Fshop.example.com%2Fapi%2Fnft-pass%2Fcheckout", link)

	got, err := CheckoutEndpoint(link)
	require.NoError(t, err)
	assert.Equal(t, endpoint, got)
}

func TestCheckoutEndpoint_Invalid(t *testing.T) {
	tests := []string{
		"https://shop.example.com",
		"solana:%zz",
		"solana:9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
	}
	for _, link := range tests {
		t.Run(link, func(t *testing.T) {
			_, err := CheckoutEndpoint(link)
			assert.Error(t, err)
		})
	}
}

func TestQRCodeBase64(t *testing.T) {
	data, err := QRCodeBase64(PaymentRequestURL("https://shop.example.com/api/nft-pass/checkout"))
	require.NoError(t, err)

	png, err := base64.StdEncoding.DecodeString(data)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestQRCodeTerminal(t *testing.T) {
	out, err := QRCodeTerminal("solana:https%3A%2F%2Fx")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
