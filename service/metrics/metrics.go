package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// It is passed explicitly to every component that records metrics; a nil
// *Metrics means metrics are disabled and callers skip recording.
type Metrics struct {
	// Solana RPC
	solanaRPCCallsTotal    *prometheus.CounterVec
	solanaRPCCallDuration  *prometheus.HistogramVec
	solanaRPCRateLimitHits *prometheus.CounterVec
	solanaRPCRetries       *prometheus.CounterVec

	// Checkout exchange
	checkoutBuildsTotal   *prometheus.CounterVec
	checkoutBuildDuration *prometheus.HistogramVec
	checkoutRelaysTotal   *prometheus.CounterVec
	simulationsTotal      *prometheus.CounterVec
	sellerATACreatesTotal prometheus.Counter

	// Purchase confirmation workflow
	confirmWorkflowDuration    *prometheus.HistogramVec
	confirmWorkflowOutcomes    *prometheus.CounterVec
	confirmActivityDuration    *prometheus.HistogramVec
	confirmSignaturePollsTotal *prometheus.CounterVec

	// Database
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),
		solanaRPCRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retries_total",
				Help: "Total number of Solana RPC retry attempts",
			},
			[]string{"method", "reason"},
		),

		checkoutBuildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nftpass_checkout_builds_total",
				Help: "Total number of checkout transactions built, by result kind",
			},
			[]string{"result"},
		),
		checkoutBuildDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nftpass_checkout_build_duration_seconds",
				Help:    "Duration of checkout transaction assembly in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"result"},
		),
		checkoutRelaysTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nftpass_checkout_relays_total",
				Help: "Total number of signature relay requests, by result",
			},
			[]string{"result"},
		),
		simulationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nftpass_checkout_simulations_total",
				Help: "Total number of pre-flight simulations, by policy and result",
			},
			[]string{"policy", "result"},
		),
		sellerATACreatesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nftpass_seller_ata_creates_total",
				Help: "Number of checkout transactions that include the seller ATA create instruction",
			},
		),

		confirmWorkflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nftpass_confirm_workflow_duration_seconds",
				Help:    "Duration of purchase confirmation workflows in seconds",
				Buckets: []float64{5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		confirmWorkflowOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nftpass_confirm_workflow_outcomes_total",
				Help: "Total number of purchase confirmation workflow outcomes",
			},
			[]string{"status"},
		),
		confirmActivityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nftpass_confirm_activity_duration_seconds",
				Help:    "Duration of purchase confirmation activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"activity"},
		),
		confirmSignaturePollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nftpass_confirm_signature_polls_total",
				Help: "Total number of signature status polls, by observed status",
			},
			[]string{"status"},
		),

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.solanaRPCRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordRPCRetry records a retry attempt.
func (m *Metrics) RecordRPCRetry(method, reason string) {
	m.solanaRPCRetries.WithLabelValues(method, reason).Inc()
}

// Checkout metric helpers

// RecordCheckoutBuild records one Build call. result is "ok" or an error kind.
func (m *Metrics) RecordCheckoutBuild(result string, duration float64) {
	m.checkoutBuildsTotal.WithLabelValues(result).Inc()
	m.checkoutBuildDuration.WithLabelValues(result).Observe(duration)
}

// RecordCheckoutRelay records one Relay call.
func (m *Metrics) RecordCheckoutRelay(result string) {
	m.checkoutRelaysTotal.WithLabelValues(result).Inc()
}

// RecordSimulation records a pre-flight simulation outcome.
func (m *Metrics) RecordSimulation(policy, result string) {
	m.simulationsTotal.WithLabelValues(policy, result).Inc()
}

// RecordSellerATACreate counts a transaction that had to create the seller ATA.
func (m *Metrics) RecordSellerATACreate() {
	m.sellerATACreatesTotal.Inc()
}

// Workflow metric helpers

// RecordWorkflowOutcome records a finished confirmation workflow.
func (m *Metrics) RecordWorkflowOutcome(status string, duration float64) {
	m.confirmWorkflowDuration.WithLabelValues(status).Observe(duration)
	m.confirmWorkflowOutcomes.WithLabelValues(status).Inc()
}

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity string, duration float64) {
	m.confirmActivityDuration.WithLabelValues(activity).Observe(duration)
}

// RecordSignaturePoll records one observed signature status.
func (m *Metrics) RecordSignaturePoll(status string) {
	m.confirmSignaturePollsTotal.WithLabelValues(status).Inc()
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
