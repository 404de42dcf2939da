package domain

import "time"

// FailedOperationRecord is one row in the append-only failure log owned by the
// health coordinator. Anyone may report a failure; records never mutate
// ledger state.
type FailedOperationRecord struct {
	ID            int64
	Timestamp     time.Time
	OperationType string
	Origin        string
	ErrorMessage  string
	Reference     string
}

// HealthIssue describes one problem found by a health check.
type HealthIssue struct {
	ChainID uint32 // 0 for home-ledger issues
	Detail  string
}

// HealthReport is the result of a full system health check.
type HealthReport struct {
	Healthy   bool
	Issues    []HealthIssue
	CheckedAt time.Time
}

// ConfirmationStatus tracks per-chain delivery of an emergency instruction.
type ConfirmationStatus string

const (
	ConfirmationPending    ConfirmationStatus = "pending"
	ConfirmationDispatched ConfirmationStatus = "dispatched"
	ConfirmationConfirmed  ConfirmationStatus = "confirmed"
	ConfirmationFailed     ConfirmationStatus = "failed"
)
