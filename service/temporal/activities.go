package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	temporalsdk "go.temporal.io/sdk/temporal"

	"github.com/brojonat/nftpass/service/db"
	"github.com/brojonat/nftpass/service/metrics"
	natspkg "github.com/brojonat/nftpass/service/nats"
	solanasvc "github.com/brojonat/nftpass/service/solana"
)

// CheckPurchaseStatusInput contains parameters for the CheckPurchaseStatus activity.
type CheckPurchaseStatusInput struct {
	Signature string `json:"signature"`
	Blockhash string `json:"blockhash"`
}

// CheckPurchaseStatusResult is one observation of the purchase transaction.
type CheckPurchaseStatusResult struct {
	// One of pending, confirmed, failed, expired.
	Outcome string  `json:"outcome"`
	Status  string  `json:"status"`
	Slot    uint64  `json:"slot"`
	Error   *string `json:"error,omitempty"`
}

// RecordPurchaseOutcomeInput contains parameters for the RecordPurchaseOutcome activity.
type RecordPurchaseOutcomeInput struct {
	Signature string  `json:"signature"`
	Status    string  `json:"status"`
	Error     *string `json:"error,omitempty"`
}

// PublishPurchaseEventInput contains parameters for the PublishPurchaseEvent activity.
type PublishPurchaseEventInput struct {
	Signature string  `json:"signature"`
	Buyer     string  `json:"buyer"`
	Mint      string  `json:"mint"`
	Seller    string  `json:"seller"`
	Amount    int64   `json:"amount"`
	Decimals  int16   `json:"decimals"`
	Status    string  `json:"status"`
	Error     *string `json:"error,omitempty"`
}

// StoreInterface defines the journal operations needed by activities.
type StoreInterface interface {
	UpdateStatus(ctx context.Context, signature, status string, txErr *string) (*db.Purchase, error)
}

// StatusChecker observes a submitted transaction once.
type StatusChecker interface {
	Check(ctx context.Context, sig solanago.Signature, blockhash solanago.Hash) (*solanasvc.Confirmation, error)
}

// PublisherInterface defines the NATS publishing operations needed by activities.
type PublisherInterface interface {
	PublishPurchase(ctx context.Context, event *natspkg.PurchaseEvent) error
}

// Activities holds the dependencies needed by Temporal activities.
// Store and publisher are optional; the corresponding activities become no-ops when nil.
type Activities struct {
	store     StoreInterface
	checker   StatusChecker
	publisher PublisherInterface
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(
	store StoreInterface,
	checker StatusChecker,
	publisher PublisherInterface,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		store:     store,
		checker:   checker,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

func (a *Activities) timeActivity(name string) func() {
	start := time.Now()
	return func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration(name, time.Since(start).Seconds())
		}
	}
}

// CheckPurchaseStatus polls the signature status once and, if the cluster has
// never seen it, whether its blockhash can still land.
func (a *Activities) CheckPurchaseStatus(ctx context.Context, input CheckPurchaseStatusInput) (*CheckPurchaseStatusResult, error) {
	defer a.timeActivity("CheckPurchaseStatus")()

	sig, err := solanago.SignatureFromBase58(input.Signature)
	if err != nil {
		return nil, temporalsdk.NewNonRetryableApplicationError(
			fmt.Sprintf("invalid signature %q", input.Signature), "InvalidSignature", err)
	}

	var blockhash solanago.Hash
	if input.Blockhash != "" {
		blockhash, err = solanago.HashFromBase58(input.Blockhash)
		if err != nil {
			return nil, temporalsdk.NewNonRetryableApplicationError(
				fmt.Sprintf("invalid blockhash %q", input.Blockhash), "InvalidBlockhash", err)
		}
	}

	conf, err := a.checker.Check(ctx, sig, blockhash)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to check purchase status",
			"signature", input.Signature,
			"error", err,
		)
		return nil, fmt.Errorf("failed to check purchase status: %w", err)
	}

	result := &CheckPurchaseStatusResult{Outcome: conf.Outcome}
	if conf.Status != nil {
		result.Status = conf.Status.Status
		result.Slot = conf.Status.Slot
		result.Error = conf.Status.Err
	}

	a.logger.DebugContext(ctx, "checked purchase status",
		"signature", input.Signature,
		"outcome", result.Outcome,
		"status", result.Status,
	)
	return result, nil
}

// RecordPurchaseOutcome writes the terminal status to the purchase journal.
func (a *Activities) RecordPurchaseOutcome(ctx context.Context, input RecordPurchaseOutcomeInput) error {
	defer a.timeActivity("RecordPurchaseOutcome")()

	if a.store == nil {
		a.logger.DebugContext(ctx, "purchase journal disabled, skipping outcome", "signature", input.Signature)
		return nil
	}

	_, err := a.store.UpdateStatus(ctx, input.Signature, input.Status, input.Error)
	if errors.Is(err, db.ErrPurchaseNotFound) {
		// The relay-time insert is best-effort, so the row may be missing.
		a.logger.WarnContext(ctx, "purchase not in journal, outcome not recorded",
			"signature", input.Signature,
			"status", input.Status,
		)
		return nil
	}
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to record purchase outcome",
			"signature", input.Signature,
			"error", err,
		)
		return fmt.Errorf("failed to record purchase outcome: %w", err)
	}

	a.logger.InfoContext(ctx, "recorded purchase outcome",
		"signature", input.Signature,
		"status", input.Status,
	)
	return nil
}

// PublishPurchaseEvent publishes the terminal status to NATS.
func (a *Activities) PublishPurchaseEvent(ctx context.Context, input PublishPurchaseEventInput) error {
	defer a.timeActivity("PublishPurchaseEvent")()

	if a.publisher == nil {
		a.logger.DebugContext(ctx, "NATS publisher disabled, skipping event", "signature", input.Signature)
		return nil
	}

	event := natspkg.FromPurchase(&db.Purchase{
		Signature: input.Signature,
		Buyer:     input.Buyer,
		Mint:      input.Mint,
		Seller:    input.Seller,
		Amount:    input.Amount,
		Decimals:  input.Decimals,
		Status:    input.Status,
		Error:     input.Error,
	})

	if err := a.publisher.PublishPurchase(ctx, event); err != nil {
		a.logger.ErrorContext(ctx, "failed to publish purchase event",
			"signature", input.Signature,
			"error", err,
		)
		return fmt.Errorf("failed to publish purchase event: %w", err)
	}
	return nil
}
