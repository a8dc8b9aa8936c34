package checkout

import (
	"context"
	"fmt"
	"log/slog"
)

// Request is the body of POST /api/nft-pass/checkout. A request without
// SignedTransaction asks for a new transaction; one with it asks for a relay.
type Request struct {
	Account           string `json:"account"`
	SignedTransaction string `json:"signedTransaction,omitempty"`
}

// Response is the success body of POST /api/nft-pass/checkout.
type Response struct {
	Transaction            string `json:"transaction,omitempty"`
	FullySignedTransaction string `json:"fullySignedTransaction,omitempty"`
	Message                string `json:"message"`
}

// Tracker is notified of every relayed purchase. It must not block the
// exchange; its errors are logged and otherwise ignored.
type Tracker interface {
	PurchaseRelayed(ctx context.Context, p Purchase) error
}

// Service runs both steps of the checkout exchange.
type Service struct {
	builder *Builder
	relay   *Relay
	tracker Tracker
	logger  *slog.Logger
}

// NewService creates a Service. tracker may be nil.
func NewService(builder *Builder, relay *Relay, tracker Tracker, logger *slog.Logger) *Service {
	return &Service{
		builder: builder,
		relay:   relay,
		tracker: tracker,
		logger:  logger,
	}
}

// Builder returns the underlying transaction builder.
func (s *Service) Builder() *Builder { return s.builder }

// Handle dispatches req to the builder or the relay.
func (s *Service) Handle(ctx context.Context, req Request) Result[Response] {
	if req.Account == "" {
		return Err[Response](&Error{Kind: KindInput, Err: ErrMissingAccount})
	}
	if req.SignedTransaction == "" {
		return s.start(ctx, req.Account)
	}
	return s.complete(ctx, req.Account, req.SignedTransaction)
}

func (s *Service) start(ctx context.Context, account string) Result[Response] {
	co, err := s.builder.Build(ctx, account)
	if err != nil {
		s.logger.WarnContext(ctx, "checkout build failed",
			"account", account,
			"kind", KindOf(err).String(),
			"error", UserMessage(err),
		)
		return Err[Response](err)
	}
	return Ok(Response{
		Transaction: co.Transaction,
		Message:     fmt.Sprintf("Pay %s USDC to mint your NFT pass", s.builder.Price().String()),
	})
}

func (s *Service) complete(ctx context.Context, account, signed string) Result[Response] {
	relayed, err := s.relay.Relay(ctx, signed, account)
	if err != nil {
		s.logger.WarnContext(ctx, "checkout relay failed",
			"account", account,
			"kind", KindOf(err).String(),
			"error", err,
		)
		return Err[Response](err)
	}

	if s.tracker != nil {
		purchase, err := PurchaseDetails(relayed.Tx)
		if err != nil {
			s.logger.WarnContext(ctx, "could not summarize relayed transaction", "error", err)
		} else if err := s.tracker.PurchaseRelayed(ctx, purchase); err != nil {
			s.logger.WarnContext(ctx, "purchase tracking failed",
				"signature", relayed.Signature.String(),
				"error", err,
			)
		}
	}

	return Ok(Response{
		FullySignedTransaction: relayed.Transaction,
		Message:                "Transaction fully signed. Submit it to complete your purchase",
	})
}
