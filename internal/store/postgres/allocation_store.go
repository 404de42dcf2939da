package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnivault/omnivault/internal/domain"
)

// AllocationStore implements domain.AllocationStore using PostgreSQL.
type AllocationStore struct {
	pool *pgxpool.Pool
}

// NewAllocationStore creates an AllocationStore backed by the given pool.
func NewAllocationStore(pool *pgxpool.Pool) *AllocationStore {
	return &AllocationStore{pool: pool}
}

const allocationCols = `chain_id, vault_address, deployed_amount, reported_apy_bps,
	last_report_time, is_active, created_at, updated_at`

// Upsert inserts or updates a single allocation record.
func (s *AllocationStore) Upsert(ctx context.Context, rec domain.ChildAllocationRecord) error {
	const query = `
		INSERT INTO allocations (
			chain_id, vault_address, deployed_amount, reported_apy_bps,
			last_report_time, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (chain_id) DO UPDATE SET
			vault_address    = EXCLUDED.vault_address,
			deployed_amount  = EXCLUDED.deployed_amount,
			reported_apy_bps = EXCLUDED.reported_apy_bps,
			last_report_time = EXCLUDED.last_report_time,
			is_active        = EXCLUDED.is_active,
			updated_at       = NOW()`

	var lastReport *time.Time
	if !rec.LastReportTime.IsZero() {
		lastReport = &rec.LastReportTime
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, query,
		int64(rec.ChainID), rec.VaultAddress, rec.DeployedAmount, rec.ReportedAPYBps,
		lastReport, rec.IsActive, createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert allocation %d: %w", rec.ChainID, err)
	}
	return nil
}

func scanAllocation(row pgx.Row) (domain.ChildAllocationRecord, error) {
	var rec domain.ChildAllocationRecord
	var chainID int64
	var lastReport *time.Time
	err := row.Scan(
		&chainID, &rec.VaultAddress, &rec.DeployedAmount, &rec.ReportedAPYBps,
		&lastReport, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return domain.ChildAllocationRecord{}, err
	}
	rec.ChainID = uint32(chainID)
	if lastReport != nil {
		rec.LastReportTime = *lastReport
	}
	return rec, nil
}

// Get retrieves the allocation record for a chain.
func (s *AllocationStore) Get(ctx context.Context, chainID uint32) (domain.ChildAllocationRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+allocationCols+` FROM allocations WHERE chain_id = $1`, int64(chainID))
	rec, err := scanAllocation(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ChildAllocationRecord{}, domain.ErrNotFound
		}
		return domain.ChildAllocationRecord{}, fmt.Errorf("postgres: get allocation %d: %w", chainID, err)
	}
	return rec, nil
}

// ListActive returns all active allocation records.
func (s *AllocationStore) ListActive(ctx context.Context) ([]domain.ChildAllocationRecord, error) {
	return s.list(ctx, `SELECT `+allocationCols+` FROM allocations WHERE is_active ORDER BY chain_id`)
}

// List returns every allocation record, active or not.
func (s *AllocationStore) List(ctx context.Context) ([]domain.ChildAllocationRecord, error) {
	return s.list(ctx, `SELECT `+allocationCols+` FROM allocations ORDER BY chain_id`)
}

func (s *AllocationStore) list(ctx context.Context, query string) ([]domain.ChildAllocationRecord, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list allocations: %w", err)
	}
	defer rows.Close()

	var out []domain.ChildAllocationRecord
	for rows.Next() {
		rec, err := scanAllocation(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan allocation: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list allocations rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.AllocationStore = (*AllocationStore)(nil)
