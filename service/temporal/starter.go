package temporal

import "context"

// Starter starts confirmation tracking for relayed purchases.
type Starter interface {
	// StartPurchaseConfirmation starts PurchaseConfirmationWorkflow for the purchase.
	// Starting twice for the same signature attaches to the running workflow.
	StartPurchaseConfirmation(ctx context.Context, input PurchaseConfirmationInput) (string, error)
}
