// Package child implements the per-chain child vault: a message-driven state
// machine that invests bridged capital into a yield strategy, mints internal
// accounting shares, tracks NAV and trailing APY, and settles withdrawals
// back toward the home ledger.
package child

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/omnivault/omnivault/internal/bridge"
	"github.com/omnivault/omnivault/internal/domain"
	"github.com/omnivault/omnivault/internal/messaging"
)

// Sender dispatches messages upstream. Implemented by messaging.Messenger.
type Sender interface {
	Send(ctx context.Context, t domain.MessageType, targetChain uint32, payload any) (domain.CrossChainMessage, error)
	LocalAddress() string
}

// Config holds a child vault's fixed parameters.
type Config struct {
	ChainID     uint32
	HomeChainID uint32
	HomeAddress string
	// SeedNAV and SeedShares initialize the ledger with a non-zero NAV/share
	// pair, closing the first-depositor share-price manipulation window.
	SeedNAV          int64
	SeedShares       int64
	SnapshotInterval time.Duration
	Limits           domain.SecurityLimits
}

// Ledger is one child vault. All public entry points hold the ledger mutex
// for the duration of the call.
type Ledger struct {
	mu    sync.Mutex
	state domain.ChildLedgerState

	cfg      Config
	strategy Strategy
	bridge   bridge.Adapter
	sender   Sender
	acl      *domain.AccessController

	snapStore domain.SnapshotStore // optional

	logger *slog.Logger
	now    func() time.Time
}

// NewLedger creates a child vault seeded with the configured NAV/share pair.
// The seed capital is assumed to already sit in the strategy.
func NewLedger(
	cfg Config,
	strategy Strategy,
	br bridge.Adapter,
	sender Sender,
	acl *domain.AccessController,
	logger *slog.Logger,
) *Ledger {
	l := &Ledger{
		state: domain.ChildLedgerState{
			ChainID:        cfg.ChainID,
			TotalShares:    cfg.SeedShares,
			LastHarvestNAV: cfg.SeedNAV,
			Limits:         cfg.Limits,
		},
		cfg:      cfg,
		strategy: strategy,
		bridge:   br,
		sender:   sender,
		acl:      acl,
		logger:   logger.With(slog.String("component", "child_ledger"), slog.Uint64("chain_id", uint64(cfg.ChainID))),
		now:      time.Now,
	}
	l.state.Snapshots = append(l.state.Snapshots, domain.APYSnapshot{
		Timestamp: l.now(),
		NAV:       cfg.SeedNAV,
		Shares:    cfg.SeedShares,
	})
	return l
}

// SetSnapshotStore attaches optional snapshot persistence.
func (l *Ledger) SetSnapshotStore(s domain.SnapshotStore) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapStore = s
}

// SetClock overrides the time source. Test hook.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// RegisterHandlers wires the ledger's message handlers onto its messenger.
func (l *Ledger) RegisterHandlers(m *messaging.Messenger) {
	m.RegisterHandler(domain.MsgDepositRequest, l.HandleDepositRequest)
	m.RegisterHandler(domain.MsgWithdrawalRequest, l.HandleWithdrawalRequest)
	m.RegisterHandler(domain.MsgRebalanceCommand, l.HandleRebalanceCommand)
	m.RegisterHandler(domain.MsgEmergencyPause, l.HandleEmergencyPause)
	m.RegisterHandler(domain.MsgEmergencyUnpause, l.HandleEmergencyUnpause)
	m.RegisterHandler(domain.MsgEmergencyWithdrawAll, l.HandleEmergencyWithdrawAll)
}

// ---------------------------------------------------------------------------
// Inbound handlers
// ---------------------------------------------------------------------------

// HandleDepositRequest invests bridged capital into the strategy and mints
// shares at the current NAV.
func (l *Ledger) HandleDepositRequest(ctx context.Context, msg domain.CrossChainMessage) error {
	p, err := messaging.DecodeDepositRequest(msg)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.Paused {
		return fmt.Errorf("child: deposit: %w", domain.ErrPaused)
	}
	if p.Amount <= 0 {
		return fmt.Errorf("child: deposit: %w", domain.ErrZeroAmount)
	}
	if l.state.Limits.MaxDepositAmount > 0 && p.Amount > l.state.Limits.MaxDepositAmount {
		return fmt.Errorf("child: deposit %s over limit %s: %w",
			domain.FormatAmount(p.Amount), domain.FormatAmount(l.state.Limits.MaxDepositAmount), domain.ErrDepositLimitExceeded)
	}

	nav, err := l.strategy.CurrentNAV(ctx)
	if err != nil {
		return fmt.Errorf("child: deposit nav: %w", err)
	}
	if nav < l.state.Limits.MinLiquidity {
		return fmt.Errorf("child: deposit with nav %s below min %s: %w",
			domain.FormatAmount(nav), domain.FormatAmount(l.state.Limits.MinLiquidity), domain.ErrBelowMinLiquidity)
	}

	if err := l.strategy.Invest(ctx, p.Amount); err != nil {
		return fmt.Errorf("child: invest %s: %w", domain.FormatAmount(p.Amount), err)
	}

	shares := p.Amount
	if l.state.TotalShares > 0 && nav > 0 {
		shares = domain.MulDiv(p.Amount, l.state.TotalShares, nav)
	}
	l.state.TotalShares += shares
	// Principal is not profit: advance the harvest watermark with it.
	l.state.LastHarvestNAV += p.Amount

	l.logger.InfoContext(ctx, "deposit invested",
		slog.String("amount", domain.FormatAmount(p.Amount)),
		slog.Int64("shares", shares),
	)
	return nil
}

// HandleWithdrawalRequest liquidates the requested amount and settles it back
// to the home ledger.
func (l *Ledger) HandleWithdrawalRequest(ctx context.Context, msg domain.CrossChainMessage) error {
	p, err := messaging.DecodeWithdrawal(msg)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.withdrawLocked(ctx, p.Amount)
}

// HandleRebalanceCommand releases capital the home ledger wants redeployed
// elsewhere: it liquidates the requested amount and settles it home, where the
// deploy leg toward the recorded target chain completes.
func (l *Ledger) HandleRebalanceCommand(ctx context.Context, msg domain.CrossChainMessage) error {
	p, err := messaging.DecodeRebalanceCommand(msg)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.InfoContext(ctx, "rebalance command received",
		slog.String("amount", domain.FormatAmount(p.Amount)),
		slog.Uint64("redeploy_target", uint64(p.TargetChainID)),
	)
	return l.withdrawLocked(ctx, p.Amount)
}

// HandleEmergencyPause pauses the ledger and echoes the pause message home as
// the per-chain confirmation the coordinator tracks.
func (l *Ledger) HandleEmergencyPause(ctx context.Context, msg domain.CrossChainMessage) error {
	p, _ := messaging.DecodeEmergency(msg)

	l.mu.Lock()
	l.state.Paused = true
	l.mu.Unlock()

	l.logger.WarnContext(ctx, "emergency pause received", slog.String("reason", p.Reason))

	if _, err := l.sender.Send(ctx, domain.MsgEmergencyPause, l.cfg.HomeChainID, domain.EmergencyPayload{Reason: "ack"}); err != nil {
		return fmt.Errorf("child: pause ack: %w", err)
	}
	return nil
}

// HandleEmergencyUnpause lifts the pause and acks.
func (l *Ledger) HandleEmergencyUnpause(ctx context.Context, msg domain.CrossChainMessage) error {
	l.mu.Lock()
	l.state.Paused = false
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "emergency unpause received")

	if _, err := l.sender.Send(ctx, domain.MsgEmergencyUnpause, l.cfg.HomeChainID, domain.EmergencyPayload{Reason: "ack"}); err != nil {
		return fmt.Errorf("child: unpause ack: %w", err)
	}
	return nil
}

// HandleEmergencyWithdrawAll liquidates the entire position and settles it
// home.
func (l *Ledger) HandleEmergencyWithdrawAll(ctx context.Context, msg domain.CrossChainMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	nav, err := l.strategy.CurrentNAV(ctx)
	if err != nil {
		return fmt.Errorf("child: emergency withdraw nav: %w", err)
	}
	l.state.Paused = true
	if nav <= 0 {
		return nil
	}
	return l.withdrawLocked(ctx, nav)
}

// ---------------------------------------------------------------------------
// Local operations
// ---------------------------------------------------------------------------

// Withdraw liquidates amount from the strategy and settles it toward the home
// ledger.
func (l *Ledger) Withdraw(ctx context.Context, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.withdrawLocked(ctx, amount)
}

// withdrawLocked divests from the strategy, burns shares proportional to the
// released amount over the pre-divest NAV, bridges the proceeds home, and
// emits the settlement message. Caller holds l.mu.
func (l *Ledger) withdrawLocked(ctx context.Context, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("child: withdraw: %w", domain.ErrZeroAmount)
	}

	nav, err := l.strategy.CurrentNAV(ctx)
	if err != nil {
		return fmt.Errorf("child: withdraw nav: %w", err)
	}
	if nav <= 0 {
		return fmt.Errorf("child: withdraw with empty strategy: %w", domain.ErrInsufficientBuffer)
	}
	if amount > nav {
		amount = nav
	}

	actual, err := l.strategy.Divest(ctx, amount)
	if err != nil {
		return fmt.Errorf("child: divest %s: %w", domain.FormatAmount(amount), err)
	}

	// Burn against what the strategy actually released, valued at the
	// pre-divest NAV; a partial divest burns proportionally fewer shares.
	burned := domain.MulDiv(actual, l.state.TotalShares, nav)
	if burned > l.state.TotalShares {
		burned = l.state.TotalShares
	}

	l.state.TotalShares -= burned
	// Liquidated principal lowers the harvest watermark with the NAV.
	if l.state.LastHarvestNAV >= actual {
		l.state.LastHarvestNAV -= actual
	} else {
		l.state.LastHarvestNAV = 0
	}

	if _, err := l.bridge.BurnAndSend(ctx, actual, l.cfg.HomeChainID, l.cfg.HomeAddress); err != nil {
		return fmt.Errorf("child: settle withdrawal home: %w", err)
	}
	if _, err := l.sender.Send(ctx, domain.MsgWithdrawalRequest, l.cfg.HomeChainID, domain.WithdrawalPayload{
		Amount:    actual,
		Recipient: l.cfg.HomeAddress,
	}); err != nil {
		return fmt.Errorf("child: withdrawal settled message: %w", err)
	}

	l.logger.InfoContext(ctx, "withdrawal settled home",
		slog.String("amount", domain.FormatAmount(actual)),
		slog.Int64("shares_burned", burned),
	)
	return nil
}

// Harvest realizes pending rewards, computes profit over the last harvest
// watermark, and reports yield upstream when there is any. A zero-profit
// harvest succeeds without sending a report.
func (l *Ledger) Harvest(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.strategy.HarvestRewards(ctx); err != nil {
		return 0, fmt.Errorf("child: harvest rewards: %w", err)
	}
	nav, err := l.strategy.CurrentNAV(ctx)
	if err != nil {
		return 0, fmt.Errorf("child: harvest nav: %w", err)
	}

	profit := nav - l.state.LastHarvestNAV
	if profit < 0 {
		profit = 0
	}
	if profit == 0 {
		return 0, nil
	}

	l.state.LastHarvestNAV = nav

	if _, err := l.sender.Send(ctx, domain.MsgYieldReport, l.cfg.HomeChainID, domain.YieldReportPayload{
		APYBps:     trailingAPYBps(l.state.Snapshots),
		TotalValue: nav,
	}); err != nil {
		return profit, fmt.Errorf("child: yield report: %w", err)
	}

	l.logger.InfoContext(ctx, "harvest reported",
		slog.String("profit", domain.FormatAmount(profit)),
		slog.String("nav", domain.FormatAmount(nav)),
	)
	return profit, nil
}

// ReportAPY sends the current trailing APY upstream without harvesting.
func (l *Ledger) ReportAPY(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	nav, err := l.strategy.CurrentNAV(ctx)
	if err != nil {
		return fmt.Errorf("child: report nav: %w", err)
	}
	if _, err := l.sender.Send(ctx, domain.MsgYieldReport, l.cfg.HomeChainID, domain.YieldReportPayload{
		APYBps:     trailingAPYBps(l.state.Snapshots),
		TotalValue: nav,
	}); err != nil {
		return fmt.Errorf("child: apy report: %w", err)
	}
	return nil
}

// RecordSnapshot appends a NAV/share snapshot, enforcing the minimum interval
// against the previous snapshot's timestamp.
func (l *Ledger) RecordSnapshot(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if n := len(l.state.Snapshots); n > 0 {
		last := l.state.Snapshots[n-1]
		if now.Sub(last.Timestamp) < l.cfg.SnapshotInterval {
			return fmt.Errorf("child: snapshot at %s, last at %s: %w",
				now.Format(time.RFC3339), last.Timestamp.Format(time.RFC3339), domain.ErrSnapshotTooSoon)
		}
	}

	nav, err := l.strategy.CurrentNAV(ctx)
	if err != nil {
		return fmt.Errorf("child: snapshot nav: %w", err)
	}
	snap := domain.APYSnapshot{Timestamp: now, NAV: nav, Shares: l.state.TotalShares}
	l.state.Snapshots = append(l.state.Snapshots, snap)

	if l.snapStore != nil {
		if err := l.snapStore.Append(ctx, l.cfg.ChainID, snap); err != nil {
			l.logger.ErrorContext(ctx, "persist snapshot failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// EmergencyWithdrawAll liquidates the entire strategy position to the
// ledger's local balance without waiting for upstream instruction. Guardian
// only: a local safety valve independent of message delivery.
func (l *Ledger) EmergencyWithdrawAll(ctx context.Context, caller string) (int64, error) {
	if err := l.acl.Require(caller, domain.RoleGuardian); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	nav, err := l.strategy.CurrentNAV(ctx)
	if err != nil {
		return 0, fmt.Errorf("child: emergency nav: %w", err)
	}
	l.state.Paused = true
	if nav <= 0 {
		return 0, nil
	}
	actual, err := l.strategy.Divest(ctx, nav)
	if err != nil {
		return 0, fmt.Errorf("child: emergency divest: %w", err)
	}

	l.logger.WarnContext(ctx, "emergency withdraw all",
		slog.String("liquidated", domain.FormatAmount(actual)),
	)
	return actual, nil
}

// SetSecurityLimits updates the exposure bounds. Admin only; the slippage
// tolerance is capped at the hard ceiling.
func (l *Ledger) SetSecurityLimits(ctx context.Context, caller string, limits domain.SecurityLimits) error {
	if err := l.acl.Require(caller, domain.RoleAdmin); err != nil {
		return err
	}
	if limits.SlippageBps > domain.MaxSlippageBpsCeiling {
		return fmt.Errorf("child: slippage %d bps over ceiling %d: %w",
			limits.SlippageBps, domain.MaxSlippageBpsCeiling, domain.ErrSlippageTooHigh)
	}
	if limits.MinLiquidity < 0 || limits.MaxDepositAmount < 0 || limits.SlippageBps < 0 {
		return fmt.Errorf("child: negative security limit: %w", domain.ErrZeroAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Limits = limits

	l.logger.InfoContext(ctx, "security limits updated",
		slog.String("caller", caller),
		slog.String("max_deposit", domain.FormatAmount(limits.MaxDepositAmount)),
	)
	return nil
}

// State returns a copy of the ledger state.
func (l *Ledger) State() domain.ChildLedgerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.state
	st.Snapshots = append([]domain.APYSnapshot(nil), l.state.Snapshots...)
	return st
}

// APYBps returns the current trailing APY.
func (l *Ledger) APYBps() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return trailingAPYBps(l.state.Snapshots)
}
