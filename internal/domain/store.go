package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AllocationStore persists per-chain allocation records.
type AllocationStore interface {
	Upsert(ctx context.Context, rec ChildAllocationRecord) error
	Get(ctx context.Context, chainID uint32) (ChildAllocationRecord, error)
	ListActive(ctx context.Context) ([]ChildAllocationRecord, error)
	List(ctx context.Context) ([]ChildAllocationRecord, error)
}

// MessageStore tracks processed inbound message ids (idempotency) and the
// nonces consumed by outbound sends.
type MessageStore interface {
	// MarkProcessed records a message id; it returns ErrAlreadyExists when
	// the id was recorded before.
	MarkProcessed(ctx context.Context, messageID string, msgType MessageType, originChain uint32) error
	IsProcessed(ctx context.Context, messageID string) (bool, error)
	// NextNonce atomically allocates the next outbound nonce for a chain.
	NextNonce(ctx context.Context, chainID uint32) (uint64, error)
}

// FailedOpStore persists the append-only failure log.
type FailedOpStore interface {
	Append(ctx context.Context, rec FailedOperationRecord) error
	List(ctx context.Context, opts ListOpts) ([]FailedOperationRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]FailedOperationRecord, error)
}

// SnapshotStore persists child vault APY snapshots.
type SnapshotStore interface {
	Append(ctx context.Context, chainID uint32, snap APYSnapshot) error
	ListByChain(ctx context.Context, chainID uint32, opts ListOpts) ([]APYSnapshot, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of state-mutating operations.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	ListBefore(ctx context.Context, before time.Time) ([]AuditEntry, error)
}
