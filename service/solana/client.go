package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/nftpass/service/metrics"
	"github.com/cenkalti/backoff/v5"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// RPCClient is the subset of Solana JSON-RPC the service uses.
// It lets tests substitute the RPC layer without hitting real Solana nodes.
type RPCClient interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error)
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*rpc.SimulateTransactionResponse, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	IsBlockhashValid(ctx context.Context, hash solana.Hash, commitment rpc.CommitmentType) (*rpc.IsValidBlockhashResult, error)
}

// Client wraps an RPCClient with domain-specific reads, retries and metrics.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g. "mainnet" or the RPC host)

	maxTries uint
	backOff  func() backoff.BackOff
}

// NewClient creates a new Solana client.
// If m is nil, no metrics are recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
		maxTries: 3,
		backOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 4 * time.Second
			return b
		},
	}
}

// WithRetryPolicy overrides the retry policy for transient RPC errors.
// Tests use a zero backoff to keep retries instant.
func (c *Client) WithRetryPolicy(maxTries uint, newBackOff func() backoff.BackOff) *Client {
	c.maxTries = maxTries
	c.backOff = newBackOff
	return c
}

// call runs one RPC method with retries on transient failures, recording
// one metric sample per attempt.
func call[T any](ctx context.Context, c *Client, method string, op func(context.Context) (T, error)) (T, error) {
	attempt := func() (T, error) {
		start := time.Now()
		out, err := op(ctx)
		status := "success"
		if err != nil {
			status = "error"
		}
		if c.metrics != nil {
			c.metrics.RecordRPCCall(method, status, c.endpoint, time.Since(start).Seconds())
		}
		if err == nil {
			return out, nil
		}
		if !isTransient(err) {
			return out, backoff.Permanent(err)
		}
		if isRateLimited(err) && c.metrics != nil {
			c.metrics.RecordRateLimitHit(c.endpoint)
		}
		return out, err
	}

	notify := func(err error, d time.Duration) {
		c.logger.WarnContext(ctx, "retrying rpc call",
			"method", method,
			"error", err,
			"backoff", d,
		)
		if c.metrics != nil {
			reason := "transient"
			if isRateLimited(err) {
				reason = "rate_limit"
			}
			c.metrics.RecordRPCRetry(method, reason)
		}
	}

	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(c.backOff()),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(notify),
	)
}

// isTransient reports whether an RPC error is worth retrying.
// Not-found results and JSON-RPC application errors are final.
func isTransient(err error) bool {
	if errors.Is(err, rpc.ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return false
	}
	return true
}

func isRateLimited(err error) bool {
	return strings.Contains(err.Error(), "429")
}

// AccountExists reports whether an account is present on chain.
func (c *Client) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	_, err := c.accountData(ctx, account)
	if errors.Is(err, ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetMintDecimals reads the decimals field of an SPL token mint.
func (c *Client) GetMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	data, err := c.accountData(ctx, mint)
	if err != nil {
		return 0, fmt.Errorf("fetch mint %s: %w", mint, err)
	}

	var m token.Mint
	if err := bin.NewBinDecoder(data).Decode(&m); err != nil {
		return 0, fmt.Errorf("decode mint %s: %w", mint, err)
	}
	return m.Decimals, nil
}

// GetTokenAccount fetches and decodes an SPL token account.
// Returns ErrAccountNotFound if the account does not exist.
func (c *Client) GetTokenAccount(ctx context.Context, address solana.PublicKey) (*TokenAccount, error) {
	data, err := c.accountData(ctx, address)
	if err != nil {
		return nil, err
	}

	var acct token.Account
	if err := bin.NewBinDecoder(data).Decode(&acct); err != nil {
		return nil, fmt.Errorf("decode token account %s: %w", address, err)
	}

	return &TokenAccount{
		Address: address,
		Mint:    acct.Mint,
		Owner:   acct.Owner,
		Amount:  acct.Amount,
	}, nil
}

func (c *Client) accountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	out, err := call(ctx, c, "GetAccountInfo", func(ctx context.Context) (*rpc.GetAccountInfoResult, error) {
		return c.rpc.GetAccountInfo(ctx, account)
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if out == nil || out.Value == nil {
		return nil, ErrAccountNotFound
	}
	return out.Value.Data.GetBinary(), nil
}

// LatestBlockhash returns a finalized recent blockhash.
func (c *Client) LatestBlockhash(ctx context.Context) (Blockhash, error) {
	out, err := call(ctx, c, "GetLatestBlockhash", func(ctx context.Context) (*rpc.GetLatestBlockhashResult, error) {
		return c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	})
	if err != nil {
		return Blockhash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return Blockhash{}, fmt.Errorf("get latest blockhash: empty response")
	}
	return Blockhash{
		Hash:                 out.Value.Blockhash,
		LastValidBlockHeight: out.Value.LastValidBlockHeight,
	}, nil
}

// MinimumBalanceForRentExemption returns the lamports required for an account of size bytes.
func (c *Client) MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	out, err := call(ctx, c, "GetMinimumBalanceForRentExemption", func(ctx context.Context) (uint64, error) {
		return c.rpc.GetMinimumBalanceForRentExemption(ctx, size, rpc.CommitmentFinalized)
	})
	if err != nil {
		return 0, fmt.Errorf("get rent exemption for %d bytes: %w", size, err)
	}
	return out, nil
}

// Simulate runs simulateTransaction without signature verification.
// A failed execution is reported in the result, not as an error.
func (c *Client) Simulate(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error) {
	out, err := call(ctx, c, "SimulateTransaction", func(ctx context.Context) (*rpc.SimulateTransactionResponse, error) {
		return c.rpc.SimulateTransaction(ctx, tx)
	})
	if err != nil {
		return nil, fmt.Errorf("simulate transaction: %w", err)
	}
	if out == nil || out.Value == nil {
		return nil, fmt.Errorf("simulate transaction: empty response")
	}

	res := &SimulationResult{
		Err:  out.Value.Err,
		Logs: out.Value.Logs,
	}
	if out.Value.UnitsConsumed != nil {
		res.UnitsConsumed = *out.Value.UnitsConsumed
	}
	return res, nil
}

// SendTransaction submits a fully signed transaction with preflight checks.
// Sends are not retried: the caller decides whether resubmitting is safe.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	start := time.Now()
	sig, err := c.rpc.SendTransaction(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("SendTransaction", status, c.endpoint, time.Since(start).Seconds())
	}
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}

	c.logger.InfoContext(ctx, "transaction submitted", "signature", sig.String())
	return sig, nil
}

// SignatureStatus returns the current status of a transaction signature.
func (c *Client) SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error) {
	out, err := call(ctx, c, "GetSignatureStatuses", func(ctx context.Context) (*rpc.GetSignatureStatusesResult, error) {
		return c.rpc.GetSignatureStatuses(ctx, sig)
	})
	if err != nil {
		return nil, fmt.Errorf("get signature status: %w", err)
	}

	status := &SignatureStatus{Signature: sig, Status: StatusUnknown}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return status, nil
	}

	v := out.Value[0]
	status.Slot = v.Slot
	if v.Err != nil {
		msg := fmt.Sprintf("%v", v.Err)
		status.Err = &msg
		status.Status = StatusFailed
		return status, nil
	}

	switch v.ConfirmationStatus {
	case rpc.ConfirmationStatusProcessed:
		status.Status = StatusProcessed
	case rpc.ConfirmationStatusConfirmed:
		status.Status = StatusConfirmed
	case rpc.ConfirmationStatusFinalized:
		status.Status = StatusFinalized
	}
	return status, nil
}

// BlockhashValid reports whether transactions referencing hash can still land.
func (c *Client) BlockhashValid(ctx context.Context, hash solana.Hash) (bool, error) {
	out, err := call(ctx, c, "IsBlockhashValid", func(ctx context.Context) (*rpc.IsValidBlockhashResult, error) {
		return c.rpc.IsBlockhashValid(ctx, hash, rpc.CommitmentConfirmed)
	})
	if err != nil {
		return false, fmt.Errorf("check blockhash validity: %w", err)
	}
	if out == nil {
		return false, nil
	}
	return out.Value, nil
}
