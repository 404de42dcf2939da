package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnivault/omnivault/internal/domain"
)

// FailedOpStore implements domain.FailedOpStore using PostgreSQL. The table
// is append-only; rows are never updated or deleted by this store.
type FailedOpStore struct {
	pool *pgxpool.Pool
}

// NewFailedOpStore creates a FailedOpStore backed by the given pool.
func NewFailedOpStore(pool *pgxpool.Pool) *FailedOpStore {
	return &FailedOpStore{pool: pool}
}

// Append inserts one failure record.
func (s *FailedOpStore) Append(ctx context.Context, rec domain.FailedOperationRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO failed_operations (occurred_at, operation_type, origin, error_message, reference)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.Timestamp, rec.OperationType, rec.Origin, rec.ErrorMessage, rec.Reference,
	)
	if err != nil {
		return fmt.Errorf("postgres: append failed operation: %w", err)
	}
	return nil
}

const failedOpCols = `id, occurred_at, operation_type, origin, error_message, reference`

// List returns failure records, newest first, with pagination.
func (s *FailedOpStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.FailedOperationRecord, error) {
	query := `SELECT ` + failedOpCols + ` FROM failed_operations`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" WHERE occurred_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	query += " ORDER BY occurred_at DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	return s.query(ctx, query, args...)
}

// ListBefore returns all records that occurred strictly before the cutoff,
// for archival.
func (s *FailedOpStore) ListBefore(ctx context.Context, before time.Time) ([]domain.FailedOperationRecord, error) {
	return s.query(ctx,
		`SELECT `+failedOpCols+` FROM failed_operations WHERE occurred_at < $1 ORDER BY occurred_at`,
		before,
	)
}

func (s *FailedOpStore) query(ctx context.Context, query string, args ...any) ([]domain.FailedOperationRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list failed operations: %w", err)
	}
	defer rows.Close()

	var out []domain.FailedOperationRecord
	for rows.Next() {
		var rec domain.FailedOperationRecord
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.OperationType, &rec.Origin, &rec.ErrorMessage, &rec.Reference); err != nil {
			return nil, fmt.Errorf("postgres: scan failed operation: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed operations rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.FailedOpStore = (*FailedOpStore)(nil)
