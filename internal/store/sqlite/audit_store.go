package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

// AuditStore implements domain.AuditStore on SQLite.
type AuditStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewAuditStore creates an AuditStore on an opened, migrated database.
func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db, now: time.Now}
}

// Log appends an audit entry; detail is stored as JSON text next to the
// workflow, cycle and market it names.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("sqlite: marshal audit detail: %w", err)
	}
	wf, cycleID, marketID := domain.AuditTags(event, detail)

	var market sql.NullInt64
	if marketID != nil {
		market = sql.NullInt64{Int64: int64(*marketID), Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (event, workflow, cycle_id, market_id, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		event, string(wf), cycleID, market, string(detailJSON), s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: log audit event %s: %w", event, err)
	}
	return nil
}

// List returns audit entries newest first.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if opts.Workflow != "" {
		where = append(where, "workflow = ?")
		args = append(args, string(opts.Workflow))
	}
	if opts.CycleID != "" {
		where = append(where, "cycle_id = ?")
		args = append(args, opts.CycleID)
	}
	if opts.MarketID != nil {
		where = append(where, "market_id = ?")
		args = append(args, int64(*opts.MarketID))
	}
	if opts.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, opts.Since.UnixMilli())
	}

	query := `SELECT id, event, workflow, cycle_id, market_id, detail, created_at FROM audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	query, args = paginate(query, args, opts)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var (
			e         domain.AuditEntry
			wf        string
			marketID  sql.NullInt64
			detail    sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.Event, &wf, &e.CycleID, &marketID, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan audit entry: %w", err)
		}
		e.Workflow = domain.Workflow(wf)
		if marketID.Valid {
			m := uint64(marketID.Int64)
			e.MarketID = &m
		}
		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &e.Detail); err != nil {
				return nil, fmt.Errorf("sqlite: unmarshal audit detail: %w", err)
			}
		}
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list audit entries rows: %w", err)
	}
	return entries, nil
}
