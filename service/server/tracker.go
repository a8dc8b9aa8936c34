package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/nftpass/service/checkout"
	"github.com/brojonat/nftpass/service/db"
	natspkg "github.com/brojonat/nftpass/service/nats"
	"github.com/brojonat/nftpass/service/temporal"
)

// JournalWriter records relayed purchases.
type JournalWriter interface {
	RecordRelayed(ctx context.Context, params db.RecordRelayedParams) (*db.Purchase, error)
}

// PurchaseTracker adapts the optional journal, event stream and confirmation
// workflow to checkout.Tracker. Each collaborator may be nil.
type PurchaseTracker struct {
	journal      JournalWriter
	publisher    natspkg.Publisher
	starter      temporal.Starter
	pollInterval time.Duration
	maxPolls     int
	logger       *slog.Logger
}

// TrackerConfig lists the collaborators of a PurchaseTracker.
type TrackerConfig struct {
	Journal      JournalWriter
	Publisher    natspkg.Publisher
	Starter      temporal.Starter
	PollInterval time.Duration
	MaxPolls     int
	Logger       *slog.Logger
}

// NewPurchaseTracker creates a tracker. It returns nil when no collaborator is configured.
func NewPurchaseTracker(cfg TrackerConfig) *PurchaseTracker {
	if cfg.Journal == nil && cfg.Publisher == nil && cfg.Starter == nil {
		return nil
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &PurchaseTracker{
		journal:      cfg.Journal,
		publisher:    cfg.Publisher,
		starter:      cfg.Starter,
		pollInterval: cfg.PollInterval,
		maxPolls:     cfg.MaxPolls,
		logger:       cfg.Logger,
	}
}

// PurchaseRelayed journals the purchase, announces it and starts confirmation tracking.
// Every step runs even if an earlier one fails; the errors are joined.
func (t *PurchaseTracker) PurchaseRelayed(ctx context.Context, p checkout.Purchase) error {
	row := db.Purchase{
		Signature: p.Signature.String(),
		Buyer:     p.Buyer.String(),
		Mint:      p.Mint.String(),
		Seller:    p.Seller.String(),
		Amount:    int64(p.Amount),
		Decimals:  int16(p.Decimals),
		Status:    db.StatusRelayed,
	}

	var errs []error

	if t.journal != nil {
		_, err := t.journal.RecordRelayed(ctx, db.RecordRelayedParams{
			Signature: row.Signature,
			Buyer:     row.Buyer,
			Mint:      row.Mint,
			Seller:    row.Seller,
			Amount:    row.Amount,
			Decimals:  row.Decimals,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("journal: %w", err))
		}
	}

	if t.publisher != nil {
		if err := t.publisher.PublishPurchase(ctx, natspkg.FromPurchase(&row)); err != nil {
			errs = append(errs, fmt.Errorf("publish: %w", err))
		}
	}

	if t.starter != nil {
		id, err := t.starter.StartPurchaseConfirmation(ctx, temporal.PurchaseConfirmationInput{
			Signature:    row.Signature,
			Buyer:        row.Buyer,
			Mint:         row.Mint,
			Seller:       row.Seller,
			Amount:       row.Amount,
			Decimals:     row.Decimals,
			Blockhash:    p.Blockhash.String(),
			PollInterval: t.pollInterval,
			MaxPolls:     t.maxPolls,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("confirmation workflow: %w", err))
		} else {
			t.logger.DebugContext(ctx, "confirmation tracking started", "signature", row.Signature, "workflow_id", id)
		}
	}

	return errors.Join(errs...)
}
