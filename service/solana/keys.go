package solana

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrInvalidSecretKey is returned for secret keys that are not 64-byte base58 ed25519 keypairs.
// The offending value is never included in the error.
var ErrInvalidSecretKey = errors.New("invalid secret key")

// ParseSecretKey decodes a base58 64-byte secret key (seed || public key).
func ParseSecretKey(encoded string) (solana.PrivateKey, error) {
	raw, err := base58.Decode(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: not base58", ErrInvalidSecretKey)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSecretKey, ed25519.PrivateKeySize, len(raw))
	}

	// The trailing 32 bytes must be the public key of the leading seed.
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidSecretKey)
	}

	return solana.PrivateKey(raw), nil
}

// ParsePublicKey validates a base58 account address.
func ParsePublicKey(encoded string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(encoded))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid public key %q: %w", encoded, err)
	}
	return pk, nil
}
