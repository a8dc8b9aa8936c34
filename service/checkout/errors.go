package checkout

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Kind classifies checkout errors for transport mapping.
type Kind int

const (
	// KindInternal covers RPC failures and anything unexpected.
	KindInternal Kind = iota
	// KindConfig is a server misconfiguration, such as a missing shop key.
	KindConfig
	// KindInput is a malformed request.
	KindInput
	// KindBusiness is a violated checkout rule, such as insufficient funds.
	KindBusiness
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindInput:
		return "input"
	case KindBusiness:
		return "business"
	default:
		return "internal"
	}
}

// Sentinel errors. Callers match them with errors.Is.
var (
	ErrMissingServerKey      = errors.New("shop signing key is not configured")
	ErrMissingAccount        = errors.New("account is required")
	ErrInvalidAccount        = errors.New("invalid account")
	ErrNoTokenAccount        = errors.New("No USDC token account found for this wallet. Add USDC to the wallet and try again")
	ErrPassAlreadyMinted     = errors.New("an NFT pass has already been minted for this account")
	ErrSimulationFailed      = errors.New("transaction simulation failed")
	ErrInvalidTransaction    = errors.New("invalid transaction")
	ErrFeePayerNotSigner     = errors.New("fee payer is not a required signer of the transaction")
	ErrMissingBuyerSignature = errors.New("buyer signature is missing")
	ErrAccountMismatch       = errors.New("account does not match the transaction fee payer")
)

// Error is a classified checkout error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err != nil:
		return e.Err.Error()
	case e.Err == nil:
		return e.Msg
	default:
		return e.Msg + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err, or KindInternal if err is not a checkout error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var funds *InsufficientFundsError
	if errors.As(err, &funds) {
		return KindBusiness
	}
	return KindInternal
}

// UserMessage is the text safe to show to the buyer. Configuration errors
// collapse to a generic message so key material never reaches a client.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if KindOf(err) == KindConfig {
		return "server configuration error"
	}
	return err.Error()
}

// InsufficientFundsError reports a stablecoin balance below the price.
// Amounts are in base units.
type InsufficientFundsError struct {
	Required  uint64
	Available uint64
	Decimals  uint8
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("Insufficient USDC balance: required %s, available %s",
		formatUnits(e.Required, e.Decimals),
		formatUnits(e.Available, e.Decimals),
	)
}

func formatUnits(amount uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals)).String()
}
