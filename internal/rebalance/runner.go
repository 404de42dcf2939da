package rebalance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/omnivault/omnivault/internal/domain"
	"github.com/omnivault/omnivault/internal/vault"
)

// lockKey guards against two runner instances executing concurrently against
// the same home ledger.
const lockKey = "rebalance_runner"

// Runner periodically evaluates the rebalancing decision and executes it
// through the home ledger. It also refreshes the metrics cache for the
// monitoring surface.
type Runner struct {
	vault    *vault.MotherVault
	cfg      domain.RebalanceConfig
	interval time.Duration
	caller   string // operator identity used for execution
	estimate CostEstimator

	locks   domain.LockManager  // optional
	metrics domain.MetricsCache // optional

	logger *slog.Logger
}

// NewRunner creates a Runner evaluating every interval on behalf of the given
// operator identity.
func NewRunner(
	v *vault.MotherVault,
	cfg domain.RebalanceConfig,
	interval time.Duration,
	caller string,
	estimate CostEstimator,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		vault:    v,
		cfg:      cfg,
		interval: interval,
		caller:   caller,
		estimate: estimate,
		logger:   logger.With(slog.String("component", "rebalance_runner")),
	}
}

// SetLockManager attaches a distributed lock so only one runner instance
// executes at a time.
func (r *Runner) SetLockManager(locks domain.LockManager) { r.locks = locks }

// SetMetricsCache attaches the cache refreshed on every evaluation.
func (r *Runner) SetMetricsCache(m domain.MetricsCache) { r.metrics = m }

// Run evaluates on a fixed ticker until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "rebalance runner started",
		slog.Duration("interval", r.interval),
		slog.Int64("min_differential_bps", r.cfg.MinAPYDifferentialBps),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Tick(ctx); err != nil && !errors.Is(err, domain.ErrLockHeld) {
				r.logger.ErrorContext(ctx, "rebalance tick failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Tick performs one evaluate-and-maybe-execute cycle.
func (r *Runner) Tick(ctx context.Context) error {
	if r.locks != nil {
		unlock, err := r.locks.Acquire(ctx, lockKey, r.interval)
		if err != nil {
			return err
		}
		defer unlock()
	}

	metrics := r.vault.Metrics()
	r.refreshCache(ctx, metrics)

	d := Evaluate(metrics, r.cfg, r.vault.LastRebalance(), time.Now(), r.estimate)
	if !d.ShouldExecute {
		r.logger.DebugContext(ctx, "no rebalance", slog.String("reason", d.Reason))
		return nil
	}

	r.logger.InfoContext(ctx, "executing rebalance",
		slog.Uint64("source_chain", uint64(d.SourceChainID)),
		slog.Uint64("target_chain", uint64(d.TargetChainID)),
		slog.String("amount", domain.FormatAmount(d.Amount)),
		slog.Int64("differential_bps", d.APYDifferentialBps),
	)
	return r.vault.ExecuteRebalance(ctx, r.caller, d)
}

// Preview evaluates without executing, for the API surface.
func (r *Runner) Preview(ctx context.Context) domain.RebalanceDecision {
	metrics := r.vault.Metrics()
	r.refreshCache(ctx, metrics)
	return Evaluate(metrics, r.cfg, r.vault.LastRebalance(), time.Now(), r.estimate)
}

func (r *Runner) refreshCache(ctx context.Context, metrics map[uint32]domain.ChainMetrics) {
	if r.metrics == nil {
		return
	}
	for _, m := range metrics {
		if err := r.metrics.SetMetrics(ctx, m); err != nil {
			r.logger.WarnContext(ctx, "metrics cache refresh failed",
				slog.Uint64("chain_id", uint64(m.ChainID)),
				slog.String("error", err.Error()),
			)
			return
		}
	}
}
