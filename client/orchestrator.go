package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"

	solanasvc "github.com/brojonat/nftpass/service/solana"
)

// State is a step of the checkout exchange as seen by the buyer.
type State int

const (
	Idle State = iota
	RequestingUnsigned
	AwaitingWalletSignature
	RequestingRelay
	Broadcasting
	Success
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RequestingUnsigned:
		return "requesting_unsigned"
	case AwaitingWalletSignature:
		return "awaiting_wallet_signature"
	case RequestingRelay:
		return "requesting_relay"
	case Broadcasting:
		return "broadcasting"
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further progress is possible without a Reset.
func (s State) Terminal() bool {
	return s == Success || s == Failed
}

// Event drives a transition between states.
type Event int

const (
	EventStart Event = iota
	EventUnsignedReceived
	EventWalletSigned
	EventRelayed
	EventConfirmed
	EventFail
	EventReset
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventUnsignedReceived:
		return "unsigned_received"
	case EventWalletSigned:
		return "wallet_signed"
	case EventRelayed:
		return "relayed"
	case EventConfirmed:
		return "confirmed"
	case EventFail:
		return "fail"
	case EventReset:
		return "reset"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// ErrInvalidTransition is returned by Transition for an edge the machine does not have.
var ErrInvalidTransition = errors.New("invalid state transition")

// Transition returns the state reached from s on e.
// Failure is reachable from every in-flight state; terminal states only accept Reset.
func Transition(s State, e Event) (State, error) {
	switch {
	case s == Idle && e == EventStart:
		return RequestingUnsigned, nil
	case s == RequestingUnsigned && e == EventUnsignedReceived:
		return AwaitingWalletSignature, nil
	case s == AwaitingWalletSignature && e == EventWalletSigned:
		return RequestingRelay, nil
	case s == RequestingRelay && e == EventRelayed:
		return Broadcasting, nil
	case s == Broadcasting && e == EventConfirmed:
		return Success, nil
	case e == EventFail && s != Idle && !s.Terminal():
		return Failed, nil
	case e == EventReset && s.Terminal():
		return Idle, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, s, e)
}

// CheckoutAPI is the server side of the exchange.
type CheckoutAPI interface {
	RequestTransaction(ctx context.Context, account string) (*CheckoutResponse, error)
	RelayTransaction(ctx context.Context, account, signed string) (*CheckoutResponse, error)
}

// Broadcaster submits a fully signed transaction to the cluster.
type Broadcaster interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// ConfirmationWaiter blocks until a submitted transaction lands, fails or expires.
type ConfirmationWaiter interface {
	Wait(ctx context.Context, sig solana.Signature, blockhash solana.Hash) (*solanasvc.SignatureStatus, error)
}

// Outcome is the result of one run of the exchange.
type Outcome struct {
	State     State  `json:"state"`
	Signature string `json:"signature,omitempty"`
	// Message is the server's description of the purchase.
	Message string `json:"message,omitempty"`
	// Error is the single user-visible failure string; empty on success.
	Error string `json:"error,omitempty"`
}

// Orchestrator drives fetch, wallet signature, relay, broadcast and confirmation.
// It never retries a step; a failed run is re-invoked from Idle by the caller.
type Orchestrator struct {
	api         CheckoutAPI
	wallet      Wallet
	broadcaster Broadcaster
	confirmer   ConfirmationWaiter
	logger      *slog.Logger

	state    State
	onChange func(from, to State)
}

// NewOrchestrator creates an Orchestrator in the Idle state.
func NewOrchestrator(api CheckoutAPI, wallet Wallet, broadcaster Broadcaster, confirmer ConfirmationWaiter, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		api:         api,
		wallet:      wallet,
		broadcaster: broadcaster,
		confirmer:   confirmer,
		logger:      logger,
		state:       Idle,
	}
}

// OnStateChange registers a callback invoked after every transition.
func (o *Orchestrator) OnStateChange(fn func(from, to State)) {
	o.onChange = fn
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) fire(e Event) error {
	next, err := Transition(o.state, e)
	if err != nil {
		return err
	}
	prev := o.state
	o.state = next
	o.logger.Debug("checkout state changed", "from", prev.String(), "to", next.String(), "event", e.String())
	if o.onChange != nil {
		o.onChange(prev, next)
	}
	return nil
}

func (o *Orchestrator) fail(out Outcome, msg string) Outcome {
	if err := o.fire(EventFail); err != nil {
		o.logger.Error("could not enter failed state", "error", err)
	}
	out.State = o.state
	out.Error = msg
	o.logger.Warn("checkout failed", "error", msg)
	return out
}

// Run performs one full exchange. A terminal orchestrator is reset to Idle first.
func (o *Orchestrator) Run(ctx context.Context) Outcome {
	if o.state.Terminal() {
		_ = o.fire(EventReset)
	}
	if err := o.fire(EventStart); err != nil {
		return Outcome{State: o.state, Error: err.Error()}
	}

	var out Outcome
	account := o.wallet.PublicKey()

	unsigned, err := o.api.RequestTransaction(ctx, account.String())
	if err != nil {
		return o.fail(out, errorMessage(err))
	}
	out.Message = unsigned.Message

	tx, err := DecodeTransaction(unsigned.Transaction)
	if err != nil {
		return o.fail(out, "Server returned an unreadable transaction")
	}
	if len(tx.Message.AccountKeys) == 0 || !tx.Message.AccountKeys[0].Equals(account) {
		return o.fail(out, "Server returned a transaction for a different account")
	}
	if err := o.fire(EventUnsignedReceived); err != nil {
		return o.fail(out, err.Error())
	}

	if err := o.wallet.SignTransaction(ctx, tx); err != nil {
		return o.fail(out, fmt.Sprintf("Wallet did not sign the transaction: %v", err))
	}
	signed, err := EncodeTransaction(tx)
	if err != nil {
		return o.fail(out, err.Error())
	}
	if err := o.fire(EventWalletSigned); err != nil {
		return o.fail(out, err.Error())
	}

	relayed, err := o.api.RelayTransaction(ctx, account.String(), signed)
	if err != nil {
		return o.fail(out, errorMessage(err))
	}
	final, err := DecodeTransaction(relayed.FullySignedTransaction)
	if err != nil {
		return o.fail(out, "Server returned an unreadable transaction")
	}
	if err := o.fire(EventRelayed); err != nil {
		return o.fail(out, err.Error())
	}

	sig, err := o.broadcaster.SendTransaction(ctx, final)
	if err != nil {
		return o.fail(out, fmt.Sprintf("Failed to submit transaction: %v", err))
	}
	out.Signature = sig.String()

	if _, err := o.confirmer.Wait(ctx, sig, final.Message.RecentBlockhash); err != nil {
		return o.fail(out, confirmationMessage(err))
	}
	if err := o.fire(EventConfirmed); err != nil {
		return o.fail(out, err.Error())
	}

	out.State = o.state
	o.logger.Info("checkout succeeded", "signature", out.Signature)
	return out
}

func confirmationMessage(err error) string {
	switch {
	case errors.Is(err, solanasvc.ErrTransactionFailed):
		return fmt.Sprintf("Purchase did not complete: %v", err)
	case errors.Is(err, solanasvc.ErrBlockhashExpired):
		return "Transaction expired before it was confirmed. Please try again"
	case errors.Is(err, solanasvc.ErrConfirmationTimeout), errors.Is(err, context.DeadlineExceeded):
		return "Timed out waiting for confirmation. Check the signature before retrying"
	default:
		return fmt.Sprintf("Could not confirm transaction: %v", err)
	}
}
