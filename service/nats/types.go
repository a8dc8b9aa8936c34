package nats

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brojonat/nftpass/service/db"
)

// PurchaseEvent is published whenever a purchase changes status.
// Events land on the subject "purchases.{buyer}" in JetStream.
type PurchaseEvent struct {
	ID string `json:"id"`

	Signature string `json:"signature"`
	Buyer     string `json:"buyer"`
	Mint      string `json:"mint"`
	Seller    string `json:"seller"`

	Amount   int64 `json:"amount"`
	Decimals int16 `json:"decimals"`

	// One of relayed, confirmed, failed, expired.
	Status string  `json:"status"`
	Error  *string `json:"error,omitempty"`

	PublishedAt time.Time `json:"published_at"`
}

// Subject returns the JetStream subject the event is published to.
func (e *PurchaseEvent) Subject() string {
	return SubjectForBuyer(e.Buyer)
}

// SubjectForBuyer returns the subject carrying events for one buyer.
func SubjectForBuyer(buyer string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, buyer)
}

// FromPurchase converts a journal row to a PurchaseEvent for publishing.
func FromPurchase(p *db.Purchase) *PurchaseEvent {
	return &PurchaseEvent{
		ID:          uuid.NewString(),
		Signature:   p.Signature,
		Buyer:       p.Buyer,
		Mint:        p.Mint,
		Seller:      p.Seller,
		Amount:      p.Amount,
		Decimals:    p.Decimals,
		Status:      p.Status,
		Error:       p.Error,
		PublishedAt: time.Now().UTC(),
	}
}
