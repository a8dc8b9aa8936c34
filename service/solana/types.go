package solana

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

// ErrAccountNotFound is returned when an account does not exist on chain.
var ErrAccountNotFound = errors.New("account not found")

// Blockhash is a recent blockhash with the last block height at which a
// transaction referencing it is still accepted.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// TokenAccount is the subset of an SPL token account we care about.
type TokenAccount struct {
	Address solana.PublicKey
	Mint    solana.PublicKey
	Owner   solana.PublicKey
	Amount  uint64
}

// SimulationResult is the outcome of simulateTransaction.
// Err is nil when the simulated execution succeeded.
type SimulationResult struct {
	Err           any
	Logs          []string
	UnitsConsumed uint64
}

// Failed reports whether the simulated execution returned an error.
func (s *SimulationResult) Failed() bool {
	return s != nil && s.Err != nil
}

// Commitment levels reported by getSignatureStatuses.
const (
	StatusUnknown   = "unknown"
	StatusProcessed = "processed"
	StatusConfirmed = "confirmed"
	StatusFinalized = "finalized"
	StatusFailed    = "failed"
)

// SignatureStatus is the observed state of a submitted transaction.
// Status is StatusUnknown when the cluster has not seen the signature.
type SignatureStatus struct {
	Signature solana.Signature
	Slot      uint64
	Status    string
	Err       *string
}

// Landed reports whether the transaction reached confirmed or finalized commitment.
func (s *SignatureStatus) Landed() bool {
	return s.Status == StatusConfirmed || s.Status == StatusFinalized
}
