package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

// DecisionStore implements domain.DecisionStore using PostgreSQL.
type DecisionStore struct {
	pool *pgxpool.Pool
}

// NewDecisionStore creates a new DecisionStore backed by the given pool.
func NewDecisionStore(pool *pgxpool.Pool) *DecisionStore {
	return &DecisionStore{pool: pool}
}

// Insert writes a decision row. A missing ID is generated.
func (s *DecisionStore) Insert(ctx context.Context, rec domain.DecisionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO decisions (
			id, cycle_id, kind, market_id, question, outcome, method, amount,
			justification, status, tx_hash, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.CycleID, string(rec.Kind), int64(rec.MarketID), rec.Question,
		rec.Outcome, rec.Method, rec.Amount, rec.Justification, string(rec.Status),
		rec.TxHash, rec.Error, createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert decision for market %d: %w", rec.MarketID, err)
	}
	return nil
}

// ListRecent returns decisions newest first, filtered by kind and time.
func (s *DecisionStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.DecisionRecord, error) {
	query := `
		SELECT id::text, cycle_id, kind, market_id, question, outcome, method,
		       amount, justification, status, tx_hash, error, created_at
		FROM decisions WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, string(opts.Kind))
		argIdx++
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list decisions: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanDecision)
	if err != nil {
		return nil, fmt.Errorf("postgres: list decisions rows: %w", err)
	}
	return recs, nil
}

func scanDecision(row pgx.CollectableRow) (domain.DecisionRecord, error) {
	var (
		rec      domain.DecisionRecord
		kind     string
		marketID int64
		status   string
	)
	err := row.Scan(&rec.ID, &rec.CycleID, &kind, &marketID, &rec.Question, &rec.Outcome,
		&rec.Method, &rec.Amount, &rec.Justification, &status, &rec.TxHash, &rec.Error, &rec.CreatedAt)
	if err != nil {
		return rec, err
	}
	rec.Kind = domain.DecisionKind(kind)
	rec.MarketID = uint64(marketID)
	rec.Status = domain.TxStatus(status)
	return rec, nil
}
