package domain

import "time"

// ChainMetrics is the per-chain input to the rebalancing engine.
type ChainMetrics struct {
	ChainID        uint32
	APYBps         int64
	DeployedAmount int64
	LastReportTime time.Time
	IsActive       bool
}

// RebalanceConfig holds the tunable gating parameters for rebalancing.
type RebalanceConfig struct {
	MinAPYDifferentialBps int64
	MinRebalanceAmount    int64
	MaxRebalanceAmount    int64
	MaxGasCostUSD         int64 // fixed-point at AmountScale
	Cooldown              time.Duration
}

// RebalanceDecision is a transient value object produced fresh on every
// evaluation; it is never persisted.
type RebalanceDecision struct {
	SourceChainID      uint32
	TargetChainID      uint32
	Amount             int64
	APYDifferentialBps int64
	EstimatedCostUSD   int64
	ShouldExecute      bool
	Reason             string
}
