package client

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// PaymentRequestURL builds a Solana Pay transaction request link for the checkout endpoint.
// Format: solana:{url-encoded https endpoint}
func PaymentRequestURL(checkoutEndpoint string) string {
	return "solana:" + url.QueryEscape(checkoutEndpoint)
}

// CheckoutEndpoint recovers the checkout endpoint from a transaction request link.
func CheckoutEndpoint(paymentURL string) (string, error) {
	rest, ok := strings.CutPrefix(paymentURL, "solana:")
	if !ok {
		return "", fmt.Errorf("not a solana pay link: %q", paymentURL)
	}
	endpoint, err := url.QueryUnescape(rest)
	if err != nil {
		return "", fmt.Errorf("invalid solana pay link: %w", err)
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("solana pay link does not carry an endpoint URL: %q", endpoint)
	}
	return endpoint, nil
}

// QRCodeBase64 renders data as a 256px PNG QR code, base64-encoded for JSON embedding.
func QRCodeBase64(data string) (string, error) {
	qr, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code as PNG: %w", err)
	}

	return base64.StdEncoding.EncodeToString(png), nil
}

// QRCodeTerminal renders data as a QR code made of block characters.
func QRCodeTerminal(data string) (string, error) {
	qr, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}
	return qr.ToSmallString(false), nil
}
