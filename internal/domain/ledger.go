package domain

import "time"

// HomeLedgerState is the authoritative accounting state of the mother vault.
// Invariant: Buffer + TotalDeployed == total assets backing TotalShares,
// violated only transiently while a settlement is in flight.
type HomeLedgerState struct {
	TotalShares      int64
	Buffer           int64 // undeployed asset held locally
	TotalDeployed    int64 // sum of DeployedAmount across children
	DepositCap       int64
	ManagementFeeBps int64
	FeeSink          string
	PendingFeeUpdate *PendingFeeUpdate
	LastRebalance    time.Time
	Paused           bool
}

// TotalAssets returns the assets backing all outstanding shares.
func (s HomeLedgerState) TotalAssets() int64 {
	return s.Buffer + s.TotalDeployed
}

// SharePrice returns the asset value of one whole share at AmountScale, or
// AmountScale when no shares exist yet.
func (s HomeLedgerState) SharePrice() int64 {
	if s.TotalShares == 0 {
		return AmountScale
	}
	return MulDiv(s.TotalAssets(), AmountScale, s.TotalShares)
}

// PendingFeeUpdate records a proposed management fee change awaiting its
// timelock.
type PendingFeeUpdate struct {
	NewFeeBps  int64
	ProposedAt time.Time
	Executed   bool
}

// ChildAllocationRecord tracks the home ledger's view of one child vault.
// Records are deactivated, never deleted, to preserve audit history.
type ChildAllocationRecord struct {
	ChainID        uint32
	VaultAddress   string
	DeployedAmount int64
	ReportedAPYBps int64
	LastReportTime time.Time
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
