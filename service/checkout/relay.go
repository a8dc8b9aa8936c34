package checkout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"

	"github.com/brojonat/nftpass/service/metrics"
	solanasvc "github.com/brojonat/nftpass/service/solana"
)

// Relayed is a validated, fully signed checkout transaction.
type Relayed struct {
	Transaction string
	Tx          *solana.Transaction
	FeePayer    solana.PublicKey
	// Signature is the first signature, which identifies the transaction on chain.
	Signature solana.Signature
}

// Relay checks that the buyer has signed a pre-signed checkout transaction.
// It never adds or verifies signatures; the cluster verifies them on submit.
type Relay struct {
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRelay creates a Relay.
func NewRelay(m *metrics.Metrics, logger *slog.Logger) *Relay {
	return &Relay{metrics: m, logger: logger}
}

// Relay validates encoded and returns it re-serialized. If account is not
// empty it must equal the transaction's fee payer.
func (r *Relay) Relay(ctx context.Context, encoded, account string) (out *Relayed, err error) {
	defer func() {
		if r.metrics != nil {
			result := "ok"
			if err != nil {
				result = KindOf(err).String()
			}
			r.metrics.RecordCheckoutRelay(result)
		}
	}()

	if encoded == "" {
		return nil, newError(KindInput, ErrInvalidTransaction, "signedTransaction is required")
	}
	tx, err := DecodeTransaction(encoded)
	if err != nil {
		return nil, &Error{Kind: KindInput, Err: fmt.Errorf("%w: %v", ErrInvalidTransaction, err)}
	}
	if len(tx.Message.AccountKeys) == 0 {
		return nil, &Error{Kind: KindInput, Err: fmt.Errorf("%w: no account keys", ErrInvalidTransaction)}
	}

	feePayer := tx.Message.AccountKeys[0]
	idx := signerIndex(tx, feePayer)
	if idx < 0 {
		return nil, &Error{Kind: KindBusiness, Err: ErrFeePayerNotSigner}
	}
	if idx >= len(tx.Signatures) || tx.Signatures[idx].IsZero() {
		return nil, &Error{Kind: KindBusiness, Err: ErrMissingBuyerSignature}
	}

	if account != "" {
		claimed, err := solana.PublicKeyFromBase58(account)
		if err != nil {
			return nil, &Error{Kind: KindInput, Err: fmt.Errorf("%w %q: %v", ErrInvalidAccount, account, err)}
		}
		if !claimed.Equals(feePayer) {
			return nil, &Error{Kind: KindInput, Err: ErrAccountMismatch}
		}
	}

	reencoded, err := EncodeTransaction(tx)
	if err != nil {
		return nil, newError(KindInternal, err, "re-encode transaction")
	}

	r.logger.InfoContext(ctx, "relayed signed checkout transaction",
		"fee_payer", feePayer.String(),
		"signature", tx.Signatures[0].String(),
		"filled_slots", FilledSlots(tx),
		"required_slots", tx.Message.Header.NumRequiredSignatures,
	)

	return &Relayed{
		Transaction: reencoded,
		Tx:          tx,
		FeePayer:    feePayer,
		Signature:   tx.Signatures[0],
	}, nil
}

// PurchaseDetails extracts the payment and mint of a checkout transaction
// from its decoded instructions. Missing fields are left zero.
func PurchaseDetails(tx *solana.Transaction) (Purchase, error) {
	summary, err := solanasvc.Summarize(tx)
	if err != nil {
		return Purchase{}, err
	}

	p := Purchase{
		Buyer:     tx.Message.AccountKeys[0],
		Blockhash: tx.Message.RecentBlockhash,
	}
	if len(tx.Signatures) > 0 {
		p.Signature = tx.Signatures[0]
	}
	for _, ix := range summary.Instructions {
		switch ix.Kind {
		case "transferChecked":
			if ix.Amount != nil {
				p.Amount = *ix.Amount
			}
			if ix.Decimals != nil {
				p.Decimals = *ix.Decimals
			}
		case "mintTo":
			if mint, err := solana.PublicKeyFromBase58(ix.Mint); err == nil {
				p.Mint = mint
			}
			if seller, err := solana.PublicKeyFromBase58(ix.Authority); err == nil {
				p.Seller = seller
			}
		}
	}
	return p, nil
}

// Purchase identifies one relayed checkout for tracking.
type Purchase struct {
	Signature solana.Signature
	Buyer     solana.PublicKey
	Seller    solana.PublicKey
	Mint      solana.PublicKey
	Amount    uint64
	Decimals  uint8
	Blockhash solana.Hash
}

// AmountString formats Amount in whole units.
func (p Purchase) AmountString() string {
	return formatUnits(p.Amount, p.Decimals)
}
