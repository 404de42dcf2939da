package domain

import "time"

// APYSnapshot is one point in a child vault's NAV-per-share history.
type APYSnapshot struct {
	Timestamp time.Time
	NAV       int64
	Shares    int64
}

// NAVPerShare returns the snapshot's NAV per whole share at AmountScale, or 0
// when no shares exist.
func (s APYSnapshot) NAVPerShare() int64 {
	if s.Shares == 0 {
		return 0
	}
	return MulDiv(s.NAV, AmountScale, s.Shares)
}

// SecurityLimits bound a child vault's exposure. Mutable only by a privileged
// role; SlippageBps is capped at MaxSlippageBpsCeiling.
type SecurityLimits struct {
	MinLiquidity     int64
	MaxDepositAmount int64
	SlippageBps      int64
}

// MaxSlippageBpsCeiling is the hard upper bound on configurable slippage
// tolerance.
const MaxSlippageBpsCeiling int64 = 500

// ChildLedgerState is the local accounting state of one child vault.
type ChildLedgerState struct {
	ChainID        uint32
	TotalShares    int64
	LastHarvestNAV int64
	Snapshots      []APYSnapshot
	Limits         SecurityLimits
	Paused         bool
}
