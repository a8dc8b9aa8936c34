package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
)

var (
	// ErrTransactionFailed means the transaction landed but its execution failed.
	ErrTransactionFailed = errors.New("transaction failed on chain")

	// ErrBlockhashExpired means the signature was never seen and its blockhash can no longer land.
	ErrBlockhashExpired = errors.New("transaction expired before confirmation")

	// ErrConfirmationTimeout means polling gave up while the transaction was still pending.
	ErrConfirmationTimeout = errors.New("timed out waiting for confirmation")

	errPending = errors.New("transaction pending")
)

// Confirmation outcomes reported by Confirmer.Check.
const (
	OutcomePending   = "pending"
	OutcomeConfirmed = "confirmed"
	OutcomeFailed    = "failed"
	OutcomeExpired   = "expired"
)

// Confirmation is a single observation of a submitted transaction.
type Confirmation struct {
	Outcome string
	Status  *SignatureStatus
}

// Confirmer tracks a submitted transaction until it lands, fails or expires.
type Confirmer struct {
	client   *Client
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// NewConfirmer creates a Confirmer polling every interval for at most timeout.
func NewConfirmer(client *Client, interval, timeout time.Duration, logger *slog.Logger) *Confirmer {
	return &Confirmer{
		client:   client,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Check observes the signature once. The blockhash is only consulted when
// the cluster has not seen the signature; a zero hash skips the expiry check.
func (c *Confirmer) Check(ctx context.Context, sig solana.Signature, blockhash solana.Hash) (*Confirmation, error) {
	status, err := c.client.SignatureStatus(ctx, sig)
	if err != nil {
		return nil, err
	}

	if c.client.metrics != nil {
		c.client.metrics.RecordSignaturePoll(status.Status)
	}

	switch {
	case status.Status == StatusFailed:
		return &Confirmation{Outcome: OutcomeFailed, Status: status}, nil
	case status.Landed():
		return &Confirmation{Outcome: OutcomeConfirmed, Status: status}, nil
	}

	if status.Status == StatusUnknown && !blockhash.IsZero() {
		valid, err := c.client.BlockhashValid(ctx, blockhash)
		if err != nil {
			return nil, err
		}
		if !valid {
			return &Confirmation{Outcome: OutcomeExpired, Status: status}, nil
		}
	}

	return &Confirmation{Outcome: OutcomePending, Status: status}, nil
}

// Wait polls until the transaction reaches confirmed commitment.
// It returns ErrTransactionFailed, ErrBlockhashExpired or ErrConfirmationTimeout
// when the transaction does not land.
func (c *Confirmer) Wait(ctx context.Context, sig solana.Signature, blockhash solana.Hash) (*SignatureStatus, error) {
	op := func() (*SignatureStatus, error) {
		conf, err := c.Check(ctx, sig, blockhash)
		if err != nil {
			return nil, err
		}

		switch conf.Outcome {
		case OutcomeConfirmed:
			return conf.Status, nil
		case OutcomeFailed:
			reason := "unknown error"
			if conf.Status.Err != nil {
				reason = *conf.Status.Err
			}
			return conf.Status, backoff.Permanent(fmt.Errorf("%w: %s", ErrTransactionFailed, reason))
		case OutcomeExpired:
			return conf.Status, backoff.Permanent(ErrBlockhashExpired)
		}

		c.logger.DebugContext(ctx, "transaction not yet confirmed",
			"signature", sig.String(),
			"status", conf.Status.Status,
		)
		return conf.Status, errPending
	}

	status, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.interval)),
		backoff.WithMaxElapsedTime(c.timeout),
	)
	if errors.Is(err, errPending) {
		return status, ErrConfirmationTimeout
	}
	if err != nil {
		return status, err
	}

	c.logger.InfoContext(ctx, "transaction confirmed",
		"signature", sig.String(),
		"status", status.Status,
		"slot", status.Slot,
	)
	return status, nil
}
