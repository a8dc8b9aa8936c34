package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brojonat/nftpass/service/metrics"
)

//go:embed schema.sql
var schema string

// Purchase statuses. A row starts as relayed and moves to exactly one terminal status.
const (
	StatusRelayed   = "relayed"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
	StatusExpired   = "expired"
)

// ErrPurchaseNotFound is returned when no purchase row matches the signature.
var ErrPurchaseNotFound = errors.New("purchase not found")

// Store provides database operations for the purchase journal.
// The journal is an audit log: the checkout exchange never reads from it.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithMetrics attaches query metrics to the store.
func (s *Store) WithMetrics(m *metrics.Metrics) *Store {
	s.metrics = m
	return s
}

// Purchase is one relayed checkout transaction and its observed outcome.
type Purchase struct {
	Signature string    `json:"signature"`
	Buyer     string    `json:"buyer"`
	Mint      string    `json:"mint"`
	Seller    string    `json:"seller"`
	Amount    int64     `json:"amount"`
	Decimals  int16     `json:"decimals"`
	Status    string    `json:"status"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordRelayedParams contains the parameters for journaling a relayed transaction.
type RecordRelayedParams struct {
	Signature string
	Buyer     string
	Mint      string
	Seller    string
	Amount    int64
	Decimals  int16
}

// ListPurchasesParams filters and paginates purchases. Empty filters match everything.
type ListPurchasesParams struct {
	Buyer  string
	Status string
	Limit  int32
	Offset int32
}

const purchaseColumns = `signature, buyer, mint, seller, amount, decimals, status, error, created_at, updated_at`

// Migrate creates the purchases table and its indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// RecordRelayed inserts a purchase in the relayed state.
// Relaying the same signature twice refreshes updated_at and leaves any terminal status untouched.
func (s *Store) RecordRelayed(ctx context.Context, params RecordRelayedParams) (p *Purchase, err error) {
	defer s.observe("insert", time.Now(), &err)

	row := s.pool.QueryRow(ctx, `
		INSERT INTO purchases (signature, buyer, mint, seller, amount, decimals, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'relayed')
		ON CONFLICT (signature) DO UPDATE SET updated_at = NOW()
		RETURNING `+purchaseColumns,
		params.Signature, params.Buyer, params.Mint, params.Seller, params.Amount, params.Decimals,
	)
	return scanPurchase(row)
}

// UpdateStatus moves a purchase to the given status, recording the on-chain error if any.
func (s *Store) UpdateStatus(ctx context.Context, signature, status string, txErr *string) (p *Purchase, err error) {
	defer s.observe("update", time.Now(), &err)

	if !ValidStatus(status) {
		return nil, fmt.Errorf("invalid purchase status %q", status)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE purchases SET status = $2, error = $3, updated_at = NOW()
		WHERE signature = $1
		RETURNING `+purchaseColumns,
		signature, status, pgtextFromStringPtr(txErr),
	)
	return scanPurchase(row)
}

// GetPurchase retrieves a purchase by its transaction signature.
func (s *Store) GetPurchase(ctx context.Context, signature string) (p *Purchase, err error) {
	defer s.observe("select", time.Now(), &err)

	row := s.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE signature = $1`, signature)
	return scanPurchase(row)
}

// ListPurchases returns purchases ordered by most recent first.
func (s *Store) ListPurchases(ctx context.Context, params ListPurchasesParams) (ps []*Purchase, err error) {
	defer s.observe("select", time.Now(), &err)

	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+purchaseColumns+` FROM purchases
		WHERE ($1 = '' OR buyer = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		params.Buyer, params.Status, limit, params.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return ps, rows.Err()
}

// CountPurchasesByStatus returns the number of purchases per status.
func (s *Store) CountPurchasesByStatus(ctx context.Context) (counts map[string]int64, err error) {
	defer s.observe("select", time.Now(), &err)

	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM purchases GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts = make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ValidStatus reports whether status is a known purchase status.
func ValidStatus(status string) bool {
	switch status {
	case StatusRelayed, StatusConfirmed, StatusFailed, StatusExpired:
		return true
	}
	return false
}

func (s *Store) observe(operation string, start time.Time, err *error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordDBQuery(operation, "purchases", time.Since(start).Seconds(), *err)
}

func scanPurchase(row pgx.Row) (*Purchase, error) {
	var p Purchase
	var txErr pgtype.Text
	var createdAt, updatedAt pgtype.Timestamptz

	err := row.Scan(&p.Signature, &p.Buyer, &p.Mint, &p.Seller, &p.Amount, &p.Decimals,
		&p.Status, &txErr, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPurchaseNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Error = stringPtrFromPgtext(txErr)
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	return &p, nil
}

// Helper functions for converting between pgtype and Go types

func pgtextFromStringPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func stringPtrFromPgtext(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}
