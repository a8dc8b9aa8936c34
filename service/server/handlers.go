package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/brojonat/nftpass/client"
	"github.com/brojonat/nftpass/service/checkout"
	"github.com/brojonat/nftpass/service/config"
	"github.com/brojonat/nftpass/service/db"
)

// A checkout body carries at most one base64 transaction (under 2KB).
const maxRequestBodySize = 64 << 10

// PurchaseReader looks up journal entries.
type PurchaseReader interface {
	GetPurchase(ctx context.Context, signature string) (*db.Purchase, error)
}

// handleCheckoutInfo returns the static label and icon wallets display.
// GET /api/nft-pass/checkout
func handleCheckoutInfo(cfg *config.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{
			"label": cfg.CheckoutLabel,
			"icon":  cfg.CheckoutIcon,
		}, http.StatusOK)
	})
}

// handleCheckout runs one step of the checkout exchange.
// POST /api/nft-pass/checkout
//
//	{account}                    -> {transaction, message}
//	{account, signedTransaction} -> {fullySignedTransaction, message}
func handleCheckout(svc *checkout.Service, timeout time.Duration, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req checkout.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode checkout request", "error", err)
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, "request body too large", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		res := svc.Handle(ctx, req)
		if !res.IsOk() {
			err := res.Err()
			status := statusForError(err)
			if status == http.StatusInternalServerError && checkout.KindOf(err) == checkout.KindInternal {
				logger.Error("checkout failed",
					"request_id", r.Header.Get("X-Request-ID"),
					"account", req.Account,
					"relay", req.SignedTransaction != "",
					"error", err,
				)
			}
			writeError(w, checkout.UserMessage(err), status)
			return
		}

		writeJSON(w, res.Value(), http.StatusOK)
	})
}

// statusForError maps a checkout error to its HTTP status.
// Only malformed input is a 400; rule violations stay 500 like every other failure.
func statusForError(err error) int {
	if checkout.KindOf(err) == checkout.KindInput {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// handlePaymentRequest returns a scan-to-pay link for the checkout endpoint.
// GET /api/nft-pass/payment-request
func handlePaymentRequest(checkoutURL string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		link := client.PaymentRequestURL(checkoutURL)

		qrCodeData, err := client.QRCodeBase64(link)
		if err != nil {
			// The link alone is still usable.
			logger.Warn("failed to generate QR code", "error", err)
			qrCodeData = ""
		}

		writeJSON(w, map[string]string{
			"url":          link,
			"qr_code_data": qrCodeData,
		}, http.StatusOK)
	})
}

// handleGetPurchase returns a purchase journal entry.
// GET /api/nft-pass/purchases/{signature}
func handleGetPurchase(purchases PurchaseReader, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature := r.PathValue("signature")
		if _, err := solanago.SignatureFromBase58(signature); err != nil {
			writeError(w, "invalid signature", http.StatusBadRequest)
			return
		}

		if purchases == nil {
			writeError(w, "purchase not found", http.StatusNotFound)
			return
		}

		p, err := purchases.GetPurchase(r.Context(), signature)
		if errors.Is(err, db.ErrPurchaseNotFound) {
			writeError(w, "purchase not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("failed to get purchase", "signature", signature, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, p, http.StatusOK)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
