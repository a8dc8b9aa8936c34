package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/brojonat/nftpass/service/db"
	solanasvc "github.com/brojonat/nftpass/service/solana"
)

var a *Activities // for type-safe activity invocation

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxPolls     = 60
)

// PurchaseConfirmationInput identifies a relayed purchase transaction.
type PurchaseConfirmationInput struct {
	Signature string `json:"signature"`
	Buyer     string `json:"buyer"`
	Mint      string `json:"mint"`
	Seller    string `json:"seller"`
	Amount    int64  `json:"amount"`
	Decimals  int16  `json:"decimals"`
	Blockhash string `json:"blockhash"`

	PollInterval time.Duration `json:"poll_interval"`
	MaxPolls     int           `json:"max_polls"`
}

// PurchaseConfirmationResult is the terminal state of a purchase.
type PurchaseConfirmationResult struct {
	Signature string  `json:"signature"`
	Status    string  `json:"status"`
	Slot      uint64  `json:"slot,omitempty"`
	Polls     int     `json:"polls"`
	Error     *string `json:"error,omitempty"`
}

// PurchaseConfirmationWorkflow follows a relayed purchase until it is confirmed,
// fails on chain, or expires, then records and publishes the outcome.
//
// The buyer broadcasts the transaction, not the server, so the first polls
// usually see nothing. Expiry is declared only once the blockhash is no longer
// valid and the signature is still unseen.
func PurchaseConfirmationWorkflow(ctx workflow.Context, input PurchaseConfirmationInput) (*PurchaseConfirmationResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("PurchaseConfirmationWorkflow started", "signature", input.Signature, "buyer", input.Buyer)

	interval := input.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxPolls := input.MaxPolls
	if maxPolls <= 0 {
		maxPolls = defaultMaxPolls
	}

	result := &PurchaseConfirmationResult{Signature: input.Signature}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var check *CheckPurchaseStatusResult
	for result.Polls < maxPolls {
		result.Polls++
		err := workflow.ExecuteActivity(ctx, a.CheckPurchaseStatus, CheckPurchaseStatusInput{
			Signature: input.Signature,
			Blockhash: input.Blockhash,
		}).Get(ctx, &check)
		if err != nil {
			errMsg := fmt.Sprintf("failed to check purchase status: %v", err)
			result.Error = &errMsg
			return result, fmt.Errorf("failed to check purchase status: %w", err)
		}

		if check.Outcome != solanasvc.OutcomePending {
			break
		}

		if err := workflow.Sleep(ctx, interval); err != nil {
			return result, err
		}
	}

	result.Slot = check.Slot
	result.Error = check.Error
	switch check.Outcome {
	case solanasvc.OutcomeConfirmed:
		result.Status = db.StatusConfirmed
	case solanasvc.OutcomeFailed:
		result.Status = db.StatusFailed
	case solanasvc.OutcomeExpired:
		result.Status = db.StatusExpired
	default:
		result.Status = db.StatusExpired
		errMsg := fmt.Sprintf("still %s after %d polls", check.Status, result.Polls)
		result.Error = &errMsg
	}

	logger.Info("purchase reached terminal status",
		"signature", input.Signature,
		"status", result.Status,
		"polls", result.Polls,
	)

	err := workflow.ExecuteActivity(ctx, a.RecordPurchaseOutcome, RecordPurchaseOutcomeInput{
		Signature: input.Signature,
		Status:    result.Status,
		Error:     result.Error,
	}).Get(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to record purchase outcome: %w", err)
	}

	err = workflow.ExecuteActivity(ctx, a.PublishPurchaseEvent, PublishPurchaseEventInput{
		Signature: input.Signature,
		Buyer:     input.Buyer,
		Mint:      input.Mint,
		Seller:    input.Seller,
		Amount:    input.Amount,
		Decimals:  input.Decimals,
		Status:    result.Status,
		Error:     result.Error,
	}).Get(ctx, nil)
	if err != nil {
		// Events are best-effort once the outcome is journaled.
		logger.Warn("failed to publish purchase event", "signature", input.Signature, "error", err)
	}

	return result, nil
}

// WorkflowID returns the deterministic workflow ID for a purchase signature.
func WorkflowID(signature string) string {
	return "purchase-confirmation-" + signature
}
