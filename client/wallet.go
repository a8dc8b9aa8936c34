package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ErrNotASigner is returned when the wallet key is not a required signer of the transaction.
var ErrNotASigner = errors.New("wallet is not a signer of this transaction")

// Wallet holds the buyer's key and signs checkout transactions.
// Implementations fill only their own signature slot.
type Wallet interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// KeypairWallet is a Wallet backed by an in-memory private key.
type KeypairWallet struct {
	key solana.PrivateKey
}

// NewKeypairWallet wraps key.
func NewKeypairWallet(key solana.PrivateKey) *KeypairWallet {
	return &KeypairWallet{key: key}
}

// LoadKeypairWallet reads a solana-keygen JSON keypair file.
func LoadKeypairWallet(path string) (*KeypairWallet, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", path, err)
	}
	return NewKeypairWallet(key), nil
}

// PublicKey returns the wallet address.
func (w *KeypairWallet) PublicKey() solana.PublicKey {
	return w.key.PublicKey()
}

// SignTransaction signs the message and writes the signature into the wallet's slot.
func (w *KeypairWallet) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	pub := w.key.PublicKey()
	required := int(tx.Message.Header.NumRequiredSignatures)

	idx := -1
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(pub) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotASigner
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}
	sig, err := w.key.Sign(msg)
	if err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}

	for len(tx.Signatures) < required {
		tx.Signatures = append(tx.Signatures, solana.Signature{})
	}
	tx.Signatures[idx] = sig
	return nil
}
