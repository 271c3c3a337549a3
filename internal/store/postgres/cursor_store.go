package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// Get returns the indexing cursor of a contract, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, contract string) (domain.Cursor, error) {
	const query = `SELECT contract, block_number, updated_at FROM cursors WHERE contract = $1`
	var (
		c     domain.Cursor
		block int64
	)
	err := s.pool.QueryRow(ctx, query, contract).Scan(&c.Contract, &block, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Cursor{}, domain.ErrNotFound
		}
		return domain.Cursor{}, fmt.Errorf("postgres: get cursor %s: %w", contract, err)
	}
	c.Block = uint64(block)
	return c, nil
}

// Advance stores block as the cursor of contract.
func (s *Store) Advance(ctx context.Context, contract string, block uint64) error {
	const query = `
		INSERT INTO cursors (contract, block_number, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (contract) DO UPDATE SET
			block_number = EXCLUDED.block_number,
			updated_at   = NOW()`
	if _, err := s.pool.Exec(ctx, query, contract, int64(block)); err != nil {
		return fmt.Errorf("postgres: advance cursor %s to %d: %w", contract, block, err)
	}
	return nil
}
