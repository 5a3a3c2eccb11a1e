package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL. Each row carries
// the workflow, cycle and market it concerns next to the JSONB detail.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore backed by the given pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Log appends an audit entry.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit detail: %w", err)
	}
	wf, cycleID, marketID := domain.AuditTags(event, detail)

	var market *int64
	if marketID != nil {
		m := int64(*marketID)
		market = &m
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_log (event, workflow, cycle_id, market_id, detail) VALUES ($1, $2, $3, $4, $5)`,
		event, string(wf), cycleID, market, detailJSON,
	)
	if err != nil {
		return fmt.Errorf("postgres: log audit event %s: %w", event, err)
	}
	return nil
}

// List returns audit entries newest first, filtered by workflow, cycle,
// market and time.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	query, args := auditQuery(opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanAudit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries rows: %w", err)
	}
	return entries, nil
}

func auditQuery(opts domain.ListOpts) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if opts.Workflow != "" {
		add("workflow = $%d", string(opts.Workflow))
	}
	if opts.CycleID != "" {
		add("cycle_id = $%d", opts.CycleID)
	}
	if opts.MarketID != nil {
		add("market_id = $%d", int64(*opts.MarketID))
	}
	if opts.Since != nil {
		add("created_at >= $%d", *opts.Since)
	}

	var b strings.Builder
	b.WriteString(`SELECT id, event, workflow, cycle_id, market_id, detail, created_at FROM audit_log`)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}

func scanAudit(row pgx.CollectableRow) (domain.AuditEntry, error) {
	var (
		e        domain.AuditEntry
		wf       string
		marketID *int64
		detail   []byte
	)
	if err := row.Scan(&e.ID, &e.Event, &wf, &e.CycleID, &marketID, &detail, &e.CreatedAt); err != nil {
		return e, err
	}
	e.Workflow = domain.Workflow(wf)
	if marketID != nil {
		m := uint64(*marketID)
		e.MarketID = &m
	}
	if detail != nil {
		if err := json.Unmarshal(detail, &e.Detail); err != nil {
			return e, fmt.Errorf("unmarshal audit detail: %w", err)
		}
	}
	return e, nil
}
