package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

// DecisionStore implements domain.DecisionStore on SQLite. Timestamps are
// stored as unix milliseconds.
type DecisionStore struct {
	db *sql.DB
}

// NewDecisionStore creates a DecisionStore on an opened, migrated database.
func NewDecisionStore(db *sql.DB) *DecisionStore {
	return &DecisionStore{db: db}
}

// Insert writes a decision row. A missing ID is generated.
func (s *DecisionStore) Insert(ctx context.Context, rec domain.DecisionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (
			id, cycle_id, kind, market_id, question, outcome, method, amount,
			justification, status, tx_hash, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CycleID, string(rec.Kind), int64(rec.MarketID), rec.Question,
		rec.Outcome, rec.Method, rec.Amount, rec.Justification, string(rec.Status),
		rec.TxHash, rec.Error, rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert decision for market %d: %w", rec.MarketID, err)
	}
	return nil
}

// ListRecent returns decisions newest first.
func (s *DecisionStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.DecisionRecord, error) {
	query := `
		SELECT id, cycle_id, kind, market_id, question, outcome, method, amount,
		       justification, status, tx_hash, error, created_at
		FROM decisions WHERE 1=1`
	var args []any

	if opts.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(opts.Kind))
	}
	if opts.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, opts.Since.UnixMilli())
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	query, args = paginate(query, args, opts)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list decisions: %w", err)
	}
	defer rows.Close()

	var recs []domain.DecisionRecord
	for rows.Next() {
		var (
			rec       domain.DecisionRecord
			kind      string
			marketID  int64
			status    string
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.CycleID, &kind, &marketID, &rec.Question, &rec.Outcome,
			&rec.Method, &rec.Amount, &rec.Justification, &status, &rec.TxHash, &rec.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan decision: %w", err)
		}
		rec.Kind = domain.DecisionKind(kind)
		rec.MarketID = uint64(marketID)
		rec.Status = domain.TxStatus(status)
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list decisions rows: %w", err)
	}
	return recs, nil
}

// paginate appends LIMIT/OFFSET. SQLite only accepts OFFSET after a LIMIT,
// so an offset without a limit uses -1 (unbounded).
func paginate(query string, args []any, opts domain.ListOpts) (string, []any) {
	switch {
	case opts.Limit > 0:
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	case opts.Offset > 0:
		query += " LIMIT -1"
	}
	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}
	return query, args
}
