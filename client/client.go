package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// CheckoutPath is the server route of the checkout exchange.
const CheckoutPath = "/api/nft-pass/checkout"

// CheckoutInfo is the static description served to wallets by GET CheckoutPath.
type CheckoutInfo struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

// CheckoutResponse is the success body of either checkout step.
type CheckoutResponse struct {
	Transaction            string `json:"transaction,omitempty"`
	FullySignedTransaction string `json:"fullySignedTransaction,omitempty"`
	Message                string `json:"message"`
}

// PaymentRequest is the scan-to-pay link served by the server.
type PaymentRequest struct {
	URL        string `json:"url"`
	QRCodeData string `json:"qr_code_data"`
}

// Purchase is a purchase journal entry as returned by the server.
type Purchase struct {
	Signature string    `json:"signature"`
	Buyer     string    `json:"buyer"`
	Mint      string    `json:"mint"`
	Seller    string    `json:"seller"`
	Amount    int64     `json:"amount"`
	Decimals  int16     `json:"decimals"`
	Status    string    `json:"status"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// Client is the HTTP client for the nftpass checkout service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new checkout service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// CheckoutInfo fetches the label and icon wallets show before a checkout.
func (c *Client) CheckoutInfo(ctx context.Context) (*CheckoutInfo, error) {
	var info CheckoutInfo
	if err := c.do(ctx, http.MethodGet, CheckoutPath, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// RequestTransaction asks the server for a new pre-signed checkout transaction.
func (c *Client) RequestTransaction(ctx context.Context, account string) (*CheckoutResponse, error) {
	var resp CheckoutResponse
	body := map[string]string{"account": account}
	if err := c.do(ctx, http.MethodPost, CheckoutPath, body, &resp); err != nil {
		return nil, err
	}
	if resp.Transaction == "" {
		return nil, fmt.Errorf("server returned no transaction")
	}

	c.logger.Debug("checkout transaction received", "account", account)
	return &resp, nil
}

// RelayTransaction submits the buyer-signed transaction and returns the fully signed one.
func (c *Client) RelayTransaction(ctx context.Context, account, signed string) (*CheckoutResponse, error) {
	var resp CheckoutResponse
	body := map[string]string{"account": account, "signedTransaction": signed}
	if err := c.do(ctx, http.MethodPost, CheckoutPath, body, &resp); err != nil {
		return nil, err
	}
	if resp.FullySignedTransaction == "" {
		return nil, fmt.Errorf("server returned no signed transaction")
	}

	c.logger.Debug("checkout transaction relayed", "account", account)
	return &resp, nil
}

// PaymentRequest fetches the server's scan-to-pay link and QR code.
func (c *Client) PaymentRequest(ctx context.Context) (*PaymentRequest, error) {
	var pr PaymentRequest
	if err := c.do(ctx, http.MethodGet, "/api/nft-pass/payment-request", nil, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// GetPurchase fetches the journal entry for a purchase signature.
func (c *Client) GetPurchase(ctx context.Context, signature string) (*Purchase, error) {
	var p Purchase
	path := "/api/nft-pass/purchases/" + url.PathEscape(signature)
	if err := c.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Health checks the server health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}

// DecodeTransaction parses a base64 wire transaction.
func DecodeTransaction(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 transaction: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	return tx, nil
}

// EncodeTransaction serializes tx to base64 with every signature slot present.
func EncodeTransaction(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// errorMessage extracts the single user-visible string for err.
func errorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
