package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnivault/omnivault/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a SnapshotStore backed by the given pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Append records one APY snapshot for a chain.
func (s *SnapshotStore) Append(ctx context.Context, chainID uint32, snap domain.APYSnapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO apy_snapshots (chain_id, taken_at, nav, shares) VALUES ($1, $2, $3, $4)`,
		int64(chainID), snap.Timestamp, snap.NAV, snap.Shares,
	)
	if err != nil {
		return fmt.Errorf("postgres: append snapshot for chain %d: %w", chainID, err)
	}
	return nil
}

// ListByChain returns snapshots for one chain in chronological order.
func (s *SnapshotStore) ListByChain(ctx context.Context, chainID uint32, opts domain.ListOpts) ([]domain.APYSnapshot, error) {
	query := `SELECT taken_at, nav, shares FROM apy_snapshots WHERE chain_id = $1`
	args := []any{int64(chainID)}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND taken_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND taken_at < $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}
	query += " ORDER BY taken_at"
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
		return nil, fmt.Errorf("postgres: list snapshots for chain %d: %w", chainID, err)
	}
	defer rows.Close()

	var out []domain.APYSnapshot
	for rows.Next() {
		var snap domain.APYSnapshot
		if err := rows.Scan(&snap.Timestamp, &snap.NAV, &snap.Shares); err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: snapshot rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.SnapshotStore = (*SnapshotStore)(nil)
