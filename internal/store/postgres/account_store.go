package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

type accountRepo struct {
	q querier
}

const accountColumns = `id, address, total_primary_income::text, total_royalty::text`

func (r accountRepo) Get(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	row := r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, string(id))
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("postgres: get account %s: %w", id, err)
	}
	return a, nil
}

// GetOrCreate inserts a zeroed account unless one exists, then reads it back.
// ON CONFLICT DO NOTHING keeps repeated calls from rewriting the row.
func (r accountRepo) GetOrCreate(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	const insert = `
		INSERT INTO accounts (id, address, total_primary_income, total_royalty)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (id) DO NOTHING`
	if _, err := r.q.Exec(ctx, insert, string(id), string(id)); err != nil {
		return domain.Account{}, fmt.Errorf("postgres: create account %s: %w", id, err)
	}
	return r.Get(ctx, id)
}

func (r accountRepo) Put(ctx context.Context, a domain.Account) error {
	const query = `
		INSERT INTO accounts (id, address, total_primary_income, total_royalty, updated_at)
		VALUES ($1, $2, $3::text::numeric, $4::text::numeric, NOW())
		ON CONFLICT (id) DO UPDATE SET
			total_primary_income = EXCLUDED.total_primary_income,
			total_royalty        = EXCLUDED.total_royalty,
			updated_at           = NOW()`
	address := a.Address
	if address == "" {
		address = string(a.ID)
	}
	_, err := r.q.Exec(ctx, query, string(a.ID), address, numeric(a.TotalPrimaryIncome), numeric(a.TotalRoyalty))
	if err != nil {
		return fmt.Errorf("postgres: put account %s: %w", a.ID, err)
	}
	return nil
}

func (r accountRepo) list(ctx context.Context, opts domain.ListOpts) ([]domain.Account, error) {
	query, args := paginate(`SELECT `+accountColumns+` FROM accounts ORDER BY id`, nil, 1, opts)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		a                domain.Account
		id               string
		primary, royalty string
	)
	if err := row.Scan(&id, &a.Address, &primary, &royalty); err != nil {
		return domain.Account{}, err
	}
	a.ID = domain.AccountID(id)
	var err error
	if a.TotalPrimaryIncome, err = parseNumeric(primary); err != nil {
		return domain.Account{}, err
	}
	if a.TotalRoyalty, err = parseNumeric(royalty); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}
