// Package rebalance implements the capital rebalancing engine: a pure
// decision function over per-chain metrics plus a periodic runner that feeds
// it and hands executable decisions to the home ledger.
package rebalance

import (
	"fmt"
	"time"

	"github.com/omnivault/omnivault/internal/domain"
)

// Decision reasons surfaced on RebalanceDecision.Reason.
const (
	ReasonNoRebalanceNeeded        = "NoRebalanceNeeded"
	ReasonInsufficientDifferential = "InsufficientAPYDifferential"
	ReasonCooldownActive           = "CooldownActive"
	ReasonAmountBelowMinimum       = "AmountBelowMinimum"
	ReasonCostTooHigh              = "EstimatedCostTooHigh"
)

// CostEstimator estimates the execution cost of moving capital between two
// chains, fixed-point USD at domain.AmountScale.
type CostEstimator func(sourceChain, targetChain uint32, amount int64) int64

// FlatCost returns a CostEstimator that quotes the same cost for every move.
func FlatCost(usd int64) CostEstimator {
	return func(_, _ uint32, _ int64) int64 { return usd }
}

// Evaluate proposes at most one capital move: from the lowest-APY chain
// holding deployed capital to the highest-APY active chain. Every gating
// condition that fails yields ShouldExecute=false with a human-readable
// reason. Evaluate never mutates its inputs and holds no state.
func Evaluate(
	metrics map[uint32]domain.ChainMetrics,
	cfg domain.RebalanceConfig,
	lastRebalance time.Time,
	now time.Time,
	estimate CostEstimator,
) domain.RebalanceDecision {
	// Target: the active chain with the highest reported APY.
	var target *domain.ChainMetrics
	for id := range metrics {
		m := metrics[id]
		if !m.IsActive {
			continue
		}
		if target == nil || m.APYBps > target.APYBps {
			target = &m
		}
	}

	// Source: the lowest-APY chain that actually holds deployed capital,
	// excluding the target. The idle buffer is never a rebalance source;
	// deploying it is a separate, explicit decision.
	var source *domain.ChainMetrics
	for id := range metrics {
		m := metrics[id]
		if !m.IsActive || m.DeployedAmount <= 0 {
			continue
		}
		if target != nil && m.ChainID == target.ChainID {
			continue
		}
		if source == nil || m.APYBps < source.APYBps {
			source = &m
		}
	}

	if target == nil || source == nil {
		return decision(0, 0, 0, 0, 0, false, ReasonNoRebalanceNeeded)
	}

	differential := target.APYBps - source.APYBps
	if differential < cfg.MinAPYDifferentialBps {
		return decision(source.ChainID, target.ChainID, 0, differential, 0, false,
			fmt.Sprintf("%s: %dbps < %dbps", ReasonInsufficientDifferential, differential, cfg.MinAPYDifferentialBps))
	}

	if elapsed := now.Sub(lastRebalance); elapsed < cfg.Cooldown {
		return decision(source.ChainID, target.ChainID, 0, differential, 0, false,
			fmt.Sprintf("%s: %s remaining", ReasonCooldownActive, (cfg.Cooldown - elapsed).Round(time.Second)))
	}

	amount := source.DeployedAmount
	if cfg.MaxRebalanceAmount > 0 && amount > cfg.MaxRebalanceAmount {
		amount = cfg.MaxRebalanceAmount
	}
	if amount < cfg.MinRebalanceAmount {
		return decision(source.ChainID, target.ChainID, amount, differential, 0, false,
			fmt.Sprintf("%s: %s < %s", ReasonAmountBelowMinimum,
				domain.FormatAmount(amount), domain.FormatAmount(cfg.MinRebalanceAmount)))
	}

	var cost int64
	if estimate != nil {
		cost = estimate(source.ChainID, target.ChainID, amount)
	}
	if cfg.MaxGasCostUSD > 0 && cost > cfg.MaxGasCostUSD {
		return decision(source.ChainID, target.ChainID, amount, differential, cost, false,
			fmt.Sprintf("%s: %s > %s", ReasonCostTooHigh,
				domain.FormatAmount(cost), domain.FormatAmount(cfg.MaxGasCostUSD)))
	}

	return decision(source.ChainID, target.ChainID, amount, differential, cost, true,
		fmt.Sprintf("move %s from chain %d (%dbps) to chain %d (%dbps)",
			domain.FormatAmount(amount), source.ChainID, source.APYBps, target.ChainID, target.APYBps))
}

func decision(src, dst uint32, amount, diff, cost int64, execute bool, reason string) domain.RebalanceDecision {
	return domain.RebalanceDecision{
		SourceChainID:      src,
		TargetChainID:      dst,
		Amount:             amount,
		APYDifferentialBps: diff,
		EstimatedCostUSD:   cost,
		ShouldExecute:      execute,
		Reason:             reason,
	}
}
