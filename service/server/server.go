package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brojonat/nftpass/service/checkout"
	"github.com/brojonat/nftpass/service/config"
	"github.com/brojonat/nftpass/service/metrics"
)

// Server represents the HTTP server for the checkout service.
type Server struct {
	cfg       *config.Config
	service   *checkout.Service
	purchases PurchaseReader
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server
}

// New creates a new HTTP server with the given dependencies.
// purchases is optional - if nil, the purchase lookup endpoint responds 404.
// metrics is optional - if nil, the metrics endpoint won't be available.
func New(cfg *config.Config, service *checkout.Service, purchases PurchaseReader, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		service:   service,
		purchases: purchases,
		metrics:   m,
		logger:    logger,
	}
}

// Handler builds the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Checkout exchange
	mux.Handle("GET /api/nft-pass/checkout", s.instrument("checkout_info", handleCheckoutInfo(s.cfg)))
	mux.Handle("POST /api/nft-pass/checkout", s.instrument("checkout", handleCheckout(s.service, s.cfg.RequestTimeout, s.logger)))
	mux.Handle("GET /api/nft-pass/payment-request", s.instrument("payment_request", handlePaymentRequest(s.cfg.CheckoutURL(), s.logger)))

	// Purchase journal
	mux.Handle("GET /api/nft-pass/purchases/{signature}", s.instrument("get_purchase", handleGetPurchase(s.purchases, s.logger)))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return requestIDMiddleware(corsMiddleware(mux))
}

func (s *Server) instrument(name string, h http.Handler) http.Handler {
	return metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.ServerAddr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.cfg.ServerAddr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
// Wallets fetch the checkout endpoint cross-origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware echoes X-Request-ID, generating one when the caller did not send it.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}
