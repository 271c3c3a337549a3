package postgres

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

type diagnosticRepo struct {
	q querier
}

// Record appends a diagnostic. Diagnostics are never updated.
func (r diagnosticRepo) Record(ctx context.Context, d domain.Diagnostic) error {
	const query = `
		INSERT INTO diagnostics (
			id, event_id, kind, code, severity, token_id, entity_id,
			message, block_number, tx_hash, created_at
		) VALUES ($1::text::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		d.ID, d.EventID, string(d.Kind), string(d.Code), string(d.Severity), d.TokenID, d.EntityID,
		d.Message, int64(d.BlockNumber), d.TxHash, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record diagnostic %s: %w", d.Code, err)
	}
	return nil
}

// list returns diagnostics newest first, narrowed by the filter.
func (r diagnosticRepo) list(ctx context.Context, f domain.DiagnosticFilter) ([]domain.Diagnostic, error) {
	query := `
		SELECT id::text, event_id, kind, code, severity, token_id, entity_id,
		       message, block_number, tx_hash, created_at
		FROM diagnostics WHERE 1=1`
	args := []any{}
	argIdx := 1

	if f.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", argIdx)
		args = append(args, string(f.Severity))
		argIdx++
	}
	if f.Code != "" {
		query += fmt.Sprintf(" AND code = $%d", argIdx)
		args = append(args, string(f.Code))
		argIdx++
	}
	if f.TokenID != "" {
		query += fmt.Sprintf(" AND token_id = $%d", argIdx)
		args = append(args, f.TokenID)
		argIdx++
	}

	query += " ORDER BY created_at DESC, block_number DESC"
	query, args = paginate(query, args, argIdx, f.ListOpts)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list diagnostics: %w", err)
	}
	defer rows.Close()

	var out []domain.Diagnostic
	for rows.Next() {
		var (
			d                    domain.Diagnostic
			kind, code, severity string
			block                int64
		)
		if err := rows.Scan(
			&d.ID, &d.EventID, &kind, &code, &severity, &d.TokenID, &d.EntityID,
			&d.Message, &block, &d.TxHash, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan diagnostic: %w", err)
		}
		d.Kind = domain.EventKind(kind)
		d.Code = domain.DiagnosticCode(code)
		d.Severity = domain.Severity(severity)
		d.BlockNumber = uint64(block)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list diagnostics rows: %w", err)
	}
	return out, nil
}
