// Package vault implements the home ledger (mother vault): the single source
// of truth for user shares, the deposit buffer, total deployed capital, and
// per-child allocation records. All cross-chain effects are issued
// optimistically at dispatch time and reconciled only on confirmed receipt of
// an inbound message, never silently reverted.
package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/omnivault/omnivault/internal/bridge"
	"github.com/omnivault/omnivault/internal/domain"
	"github.com/omnivault/omnivault/internal/messaging"
)

// maxManagementFeeBps caps the management fee at 100%.
const maxManagementFeeBps int64 = 10_000

// Sender dispatches outbound cross-chain messages. Implemented by the
// messaging.Messenger.
type Sender interface {
	Send(ctx context.Context, t domain.MessageType, targetChain uint32, payload any) (domain.CrossChainMessage, error)
	LocalAddress() string
}

// Config holds the mother vault's governance parameters.
type Config struct {
	DepositCap       int64
	ManagementFeeBps int64
	FeeSink          string
	FeeTimelock      time.Duration
}

// pendingRedeploy records the second half of an in-flight rebalance, keyed by
// source chain: once that chain's withdrawal settles into the buffer, the
// amount is deployed to the target chain. One move per source at a time.
type pendingRedeploy struct {
	TargetChainID uint32
	Amount        int64
}

// MotherVault is the home ledger. Every public entry point holds the vault
// mutex for the duration of the call, giving single-writer mutual exclusion
// over local state (the reentrancy discipline of the on-chain original).
type MotherVault struct {
	mu          sync.Mutex
	state       domain.HomeLedgerState
	allocations map[uint32]*domain.ChildAllocationRecord
	redeploys   map[uint32]pendingRedeploy

	acl         *domain.AccessController
	bridge      bridge.Adapter
	sender      Sender
	feeTimelock time.Duration

	// Optional collaborators; nil disables the concern.
	allocStore domain.AllocationStore
	audit      domain.AuditStore
	bus        domain.SignalBus

	logger *slog.Logger
	now    func() time.Time
}

// New creates a MotherVault with an empty ledger.
func New(
	cfg Config,
	acl *domain.AccessController,
	br bridge.Adapter,
	sender Sender,
	logger *slog.Logger,
) *MotherVault {
	return &MotherVault{
		state: domain.HomeLedgerState{
			DepositCap:       cfg.DepositCap,
			ManagementFeeBps: cfg.ManagementFeeBps,
			FeeSink:          cfg.FeeSink,
		},
		allocations: make(map[uint32]*domain.ChildAllocationRecord),
		redeploys:   make(map[uint32]pendingRedeploy),
		acl:         acl,
		bridge:      br,
		sender:      sender,
		logger:      logger.With(slog.String("component", "mother_vault")),
		now:         time.Now,
		feeTimelock: cfg.FeeTimelock,
	}
}

// SetStores attaches optional persistence and event collaborators.
func (v *MotherVault) SetStores(allocs domain.AllocationStore, audit domain.AuditStore, bus domain.SignalBus) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.allocStore = allocs
	v.audit = audit
	v.bus = bus
}

// SetClock overrides the time source. Test hook.
func (v *MotherVault) SetClock(now func() time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.now = now
}

// ---------------------------------------------------------------------------
// User operations
// ---------------------------------------------------------------------------

// Deposit accepts amount from depositor into the buffer and mints shares at
// the current share price. It rejects zero amounts, a paused vault, and
// deposits that would push total assets past the cap.
func (v *MotherVault) Deposit(ctx context.Context, amount int64, depositor string) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if amount <= 0 {
		return 0, fmt.Errorf("vault: deposit: %w", domain.ErrZeroAmount)
	}
	if v.state.Paused {
		return 0, fmt.Errorf("vault: deposit: %w", domain.ErrPaused)
	}
	if v.state.DepositCap > 0 && v.state.TotalAssets()+amount > v.state.DepositCap {
		return 0, fmt.Errorf("vault: deposit %s would exceed cap %s: %w",
			domain.FormatAmount(amount), domain.FormatAmount(v.state.DepositCap), domain.ErrDepositCapExceeded)
	}

	shares := amount
	if v.state.TotalShares > 0 {
		shares = domain.MulDiv(amount, v.state.TotalShares, v.state.TotalAssets())
	}

	v.state.Buffer += amount
	v.state.TotalShares += shares

	v.logEvent(ctx, domain.ChannelDeposits, "deposit", 0, amount, map[string]any{
		"depositor": depositor,
		"shares":    shares,
	})
	return shares, nil
}

// Withdraw burns shares and pays the proportional asset amount from the
// buffer. Withdrawals exceeding the buffer fail; the caller must wait for a
// rebalance or child liquidation to refill it.
func (v *MotherVault) Withdraw(ctx context.Context, shares int64, recipient string) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if shares <= 0 {
		return 0, fmt.Errorf("vault: withdraw: %w", domain.ErrZeroAmount)
	}
	if v.state.Paused {
		return 0, fmt.Errorf("vault: withdraw: %w", domain.ErrPaused)
	}
	if shares > v.state.TotalShares {
		return 0, fmt.Errorf("vault: withdraw %d shares of %d: %w", shares, v.state.TotalShares, domain.ErrInsufficientShares)
	}

	amount := domain.MulDiv(shares, v.state.TotalAssets(), v.state.TotalShares)
	if amount > v.state.Buffer {
		return 0, fmt.Errorf("vault: withdraw needs %s, buffer holds %s: %w",
			domain.FormatAmount(amount), domain.FormatAmount(v.state.Buffer), domain.ErrInsufficientBuffer)
	}

	v.state.Buffer -= amount
	v.state.TotalShares -= shares

	v.logEvent(ctx, domain.ChannelWithdrawals, "withdraw", 0, amount, map[string]any{
		"recipient": recipient,
		"shares":    shares,
	})
	return amount, nil
}

// ---------------------------------------------------------------------------
// Child management
// ---------------------------------------------------------------------------

// OnboardChild registers a child vault on chainID. Admin only.
func (v *MotherVault) OnboardChild(ctx context.Context, caller string, chainID uint32, address string) error {
	if err := v.acl.Require(caller, domain.RoleAdmin); err != nil {
		return err
	}
	if !domain.ValidAddress(address) {
		return fmt.Errorf("vault: onboard chain %d address %q: %w", chainID, address, domain.ErrInvalidAddress)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if rec, ok := v.allocations[chainID]; ok && rec.IsActive {
		return fmt.Errorf("vault: onboard chain %d: %w", chainID, domain.ErrChildAlreadyActive)
	}

	now := v.now()
	rec := v.allocations[chainID]
	if rec == nil {
		rec = &domain.ChildAllocationRecord{ChainID: chainID, CreatedAt: now}
		v.allocations[chainID] = rec
	}
	rec.VaultAddress = address
	rec.IsActive = true
	rec.UpdatedAt = now

	v.persistAlloc(ctx, rec)
	v.auditLog(ctx, "child_onboarded", map[string]any{"chain_id": chainID, "address": address, "caller": caller})
	return nil
}

// DeactivateChild marks a child inactive. The record is retained for audit
// history; deployed capital stays attributed until it settles back.
func (v *MotherVault) DeactivateChild(ctx context.Context, caller string, chainID uint32) error {
	if err := v.acl.Require(caller, domain.RoleAdmin); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	rec, ok := v.allocations[chainID]
	if !ok || !rec.IsActive {
		return fmt.Errorf("vault: deactivate chain %d: %w", chainID, domain.ErrChildNotActive)
	}
	rec.IsActive = false
	rec.UpdatedAt = v.now()

	v.persistAlloc(ctx, rec)
	v.auditLog(ctx, "child_deactivated", map[string]any{"chain_id": chainID, "caller": caller})
	return nil
}

// DeployToChild moves amount from the buffer toward the child on chainID.
// The local debit is applied optimistically at dispatch: the capital has
// genuinely left the local pool once the bridge burn succeeds. If the remote
// side never confirms, the record is corrected by a subsequent reconciling
// message, never silently reverted.
func (v *MotherVault) DeployToChild(ctx context.Context, caller string, chainID uint32, amount int64) error {
	if err := v.acl.Require(caller, domain.RoleOperator); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	return v.deployLocked(ctx, chainID, amount)
}

// deployLocked performs the deploy state transition. Caller holds v.mu.
func (v *MotherVault) deployLocked(ctx context.Context, chainID uint32, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("vault: deploy: %w", domain.ErrZeroAmount)
	}
	if v.state.Paused {
		return fmt.Errorf("vault: deploy: %w", domain.ErrPaused)
	}
	rec, ok := v.allocations[chainID]
	if !ok || !rec.IsActive {
		return fmt.Errorf("vault: deploy to chain %d: %w", chainID, domain.ErrChildNotActive)
	}
	if amount > v.state.Buffer {
		return fmt.Errorf("vault: deploy %s, buffer holds %s: %w",
			domain.FormatAmount(amount), domain.FormatAmount(v.state.Buffer), domain.ErrInsufficientBuffer)
	}

	transferID, err := v.bridge.BurnAndSend(ctx, amount, chainID, rec.VaultAddress)
	if err != nil {
		return fmt.Errorf("vault: deploy settlement to chain %d: %w", chainID, err)
	}

	// Optimistic local accounting: committed at dispatch.
	v.state.Buffer -= amount
	v.state.TotalDeployed += amount
	rec.DeployedAmount += amount
	rec.UpdatedAt = v.now()

	if _, err := v.sender.Send(ctx, domain.MsgDepositRequest, chainID, domain.DepositRequestPayload{Amount: amount}); err != nil {
		// The asset is in flight; the instruction is not. Surface the failure
		// for out-of-band recovery rather than reverting the debit.
		v.logger.ErrorContext(ctx, "deposit instruction dispatch failed after settlement",
			slog.Uint64("chain_id", uint64(chainID)),
			slog.String("transfer_id", transferID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("vault: deploy instruction to chain %d (transfer %s): %w", chainID, transferID, err)
	}

	v.persistAlloc(ctx, rec)
	v.logEvent(ctx, domain.ChannelDeploys, "deploy", chainID, amount, map[string]any{"transfer_id": transferID})
	return nil
}

// ---------------------------------------------------------------------------
// Inbound message handlers (registered on the messenger)
// ---------------------------------------------------------------------------

// HandleYieldReport updates the reporting chain's APY record. No funds move.
func (v *MotherVault) HandleYieldReport(ctx context.Context, msg domain.CrossChainMessage) error {
	report, err := messaging.DecodeYieldReport(msg)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	rec, ok := v.allocations[msg.SourceChainID]
	if !ok {
		return fmt.Errorf("vault: yield report from chain %d: %w", msg.SourceChainID, domain.ErrChildNotActive)
	}
	rec.ReportedAPYBps = report.APYBps
	rec.LastReportTime = v.now()
	rec.UpdatedAt = rec.LastReportTime

	v.persistAlloc(ctx, rec)
	v.logEvent(ctx, domain.ChannelYield, "yield_report", msg.SourceChainID, report.TotalValue, map[string]any{
		"apy_bps": report.APYBps,
	})
	return nil
}

// HandleWithdrawalSettled credits a settled child withdrawal back into the
// buffer and debits the chain's allocation by exactly the settled amount.
// Duplicate deliveries never reach this handler; the messenger drops them by
// message id. If the settlement completes an in-flight rebalance, the amount
// is immediately redeployed to the recorded target chain.
func (v *MotherVault) HandleWithdrawalSettled(ctx context.Context, msg domain.CrossChainMessage) error {
	p, err := messaging.DecodeWithdrawal(msg)
	if err != nil {
		return err
	}
	if p.Amount <= 0 {
		return fmt.Errorf("vault: withdrawal settlement from chain %d: %w", msg.SourceChainID, domain.ErrZeroAmount)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	rec, ok := v.allocations[msg.SourceChainID]
	if !ok {
		return fmt.Errorf("vault: withdrawal settlement from chain %d: %w", msg.SourceChainID, domain.ErrChildNotActive)
	}

	settled := p.Amount
	if settled > rec.DeployedAmount {
		// A child can return more than its recorded principal when yield was
		// liquidated with it; the surplus lands in the buffer as gain.
		settled = rec.DeployedAmount
	}

	v.state.Buffer += p.Amount
	v.state.TotalDeployed -= settled
	rec.DeployedAmount -= settled
	rec.UpdatedAt = v.now()

	v.persistAlloc(ctx, rec)
	v.logEvent(ctx, domain.ChannelWithdrawals, "withdrawal_settled", msg.SourceChainID, p.Amount, nil)

	// Only a settlement from the move's own source chain completes its
	// redeploy; unrelated settlements leave other in-flight moves untouched.
	if rd, ok := v.redeploys[msg.SourceChainID]; ok && !v.state.Paused {
		delete(v.redeploys, msg.SourceChainID)
		amount := rd.Amount
		if amount > v.state.Buffer {
			amount = v.state.Buffer
		}
		if err := v.deployLocked(ctx, rd.TargetChainID, amount); err != nil {
			v.logger.ErrorContext(ctx, "rebalance redeploy failed",
				slog.Uint64("target_chain", uint64(rd.TargetChainID)),
				slog.String("error", err.Error()),
			)
			// The funds remain safely in the buffer; the runner will propose
			// the move again on its next evaluation.
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Rebalancing
// ---------------------------------------------------------------------------

// ExecuteRebalance performs the withdraw-then-redeploy sequence for a
// decision produced by the rebalancing engine. A rebalance command is
// dispatched to the source chain and the redeploy completes when that chain's
// settlement arrives. At most one move per source chain may be in flight;
// a second is rejected rather than allowed to clobber the first. Operator
// only.
func (v *MotherVault) ExecuteRebalance(ctx context.Context, caller string, d domain.RebalanceDecision) error {
	if err := v.acl.Require(caller, domain.RoleOperator); err != nil {
		return err
	}
	if !d.ShouldExecute {
		return fmt.Errorf("vault: rebalance not executable: %s", d.Reason)
	}
	return v.executeRebalance(ctx, d)
}

// ExecuteEmergencyRebalance bypasses the engine's cooldown and differential
// gating but still requires the guardian role.
func (v *MotherVault) ExecuteEmergencyRebalance(ctx context.Context, caller string, sourceChain, targetChain uint32, amount int64) error {
	if err := v.acl.Require(caller, domain.RoleGuardian); err != nil {
		return err
	}
	return v.executeRebalance(ctx, domain.RebalanceDecision{
		SourceChainID: sourceChain,
		TargetChainID: targetChain,
		Amount:        amount,
		ShouldExecute: true,
		Reason:        "emergency",
	})
}

func (v *MotherVault) executeRebalance(ctx context.Context, d domain.RebalanceDecision) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state.Paused {
		return fmt.Errorf("vault: rebalance: %w", domain.ErrPaused)
	}
	src, ok := v.allocations[d.SourceChainID]
	if !ok || !src.IsActive {
		return fmt.Errorf("vault: rebalance source chain %d: %w", d.SourceChainID, domain.ErrChildNotActive)
	}
	dst, ok := v.allocations[d.TargetChainID]
	if !ok || !dst.IsActive {
		return fmt.Errorf("vault: rebalance target chain %d: %w", d.TargetChainID, domain.ErrChildNotActive)
	}
	if d.Amount <= 0 {
		return fmt.Errorf("vault: rebalance: %w", domain.ErrZeroAmount)
	}
	if d.Amount > src.DeployedAmount {
		return fmt.Errorf("vault: rebalance %s from chain %d holding %s: %w",
			domain.FormatAmount(d.Amount), d.SourceChainID, domain.FormatAmount(src.DeployedAmount), domain.ErrInsufficientBuffer)
	}
	if _, busy := v.redeploys[d.SourceChainID]; busy {
		return fmt.Errorf("vault: rebalance from chain %d: %w", d.SourceChainID, domain.ErrRebalanceInFlight)
	}

	if _, err := v.sender.Send(ctx, domain.MsgRebalanceCommand, d.SourceChainID, domain.RebalanceCommandPayload{
		Amount:        d.Amount,
		TargetChainID: d.TargetChainID,
	}); err != nil {
		return fmt.Errorf("vault: rebalance command: %w", err)
	}

	v.redeploys[d.SourceChainID] = pendingRedeploy{TargetChainID: d.TargetChainID, Amount: d.Amount}
	v.state.LastRebalance = v.now()

	v.auditLog(ctx, "rebalance_started", map[string]any{
		"source_chain": d.SourceChainID,
		"target_chain": d.TargetChainID,
		"amount":       d.Amount,
		"reason":       d.Reason,
	})
	v.logEvent(ctx, domain.ChannelRebalance, "rebalance_started", d.SourceChainID, d.Amount, map[string]any{
		"target_chain": d.TargetChainID,
	})
	return nil
}

// ---------------------------------------------------------------------------
// Fee governance
// ---------------------------------------------------------------------------

// ProposeFeeUpdate records a pending fee change; it becomes executable after
// the timelock elapses. Admin only.
func (v *MotherVault) ProposeFeeUpdate(ctx context.Context, caller string, newFeeBps int64) error {
	if err := v.acl.Require(caller, domain.RoleAdmin); err != nil {
		return err
	}
	if newFeeBps < 0 || newFeeBps > maxManagementFeeBps {
		return fmt.Errorf("vault: propose fee %d bps: %w", newFeeBps, domain.ErrFeeCapExceeded)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.PendingFeeUpdate = &domain.PendingFeeUpdate{
		NewFeeBps:  newFeeBps,
		ProposedAt: v.now(),
	}
	v.auditLog(ctx, "fee_update_proposed", map[string]any{"new_fee_bps": newFeeBps, "caller": caller})
	return nil
}

// ExecuteFeeUpdate applies the pending fee change once the timelock has
// elapsed. It succeeds exactly once per proposal. Admin only.
func (v *MotherVault) ExecuteFeeUpdate(ctx context.Context, caller string) error {
	if err := v.acl.Require(caller, domain.RoleAdmin); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	pending := v.state.PendingFeeUpdate
	if pending == nil || pending.Executed {
		return fmt.Errorf("vault: execute fee update: %w", domain.ErrNoPendingFeeUpdate)
	}
	if v.now().Before(pending.ProposedAt.Add(v.feeTimelock)) {
		return fmt.Errorf("vault: execute fee update before %s: %w",
			pending.ProposedAt.Add(v.feeTimelock).Format(time.RFC3339), domain.ErrTimelockActive)
	}

	v.state.ManagementFeeBps = pending.NewFeeBps
	pending.Executed = true

	v.auditLog(ctx, "fee_update_executed", map[string]any{"fee_bps": pending.NewFeeBps, "caller": caller})
	return nil
}

// ---------------------------------------------------------------------------
// Emergency controls
// ---------------------------------------------------------------------------

// EmergencyPause blocks new deposits, withdrawals, and deploys immediately.
// Guardian only. Remote propagation is the health coordinator's job.
func (v *MotherVault) EmergencyPause(ctx context.Context, caller string) error {
	if err := v.acl.Require(caller, domain.RoleGuardian); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Paused = true
	v.auditLog(ctx, "emergency_pause", map[string]any{"caller": caller})
	v.logEvent(ctx, domain.ChannelEmergency, "paused", 0, 0, nil)
	return nil
}

// EmergencyUnpause lifts the local pause. Guardian only.
func (v *MotherVault) EmergencyUnpause(ctx context.Context, caller string) error {
	if err := v.acl.Require(caller, domain.RoleGuardian); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Paused = false
	v.auditLog(ctx, "emergency_unpause", map[string]any{"caller": caller})
	v.logEvent(ctx, domain.ChannelEmergency, "unpaused", 0, 0, nil)
	return nil
}

// ---------------------------------------------------------------------------
// Views
// ---------------------------------------------------------------------------

// GetDeployableAmount returns the buffer available for deployment.
func (v *MotherVault) GetDeployableAmount() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state.Paused {
		return 0
	}
	return v.state.Buffer
}

// State returns a copy of the ledger state.
func (v *MotherVault) State() domain.HomeLedgerState {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := v.state
	if st.PendingFeeUpdate != nil {
		cp := *st.PendingFeeUpdate
		st.PendingFeeUpdate = &cp
	}
	return st
}

// Allocations returns a copy of all allocation records.
func (v *MotherVault) Allocations() []domain.ChildAllocationRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]domain.ChildAllocationRecord, 0, len(v.allocations))
	for _, rec := range v.allocations {
		out = append(out, *rec)
	}
	return out
}

// Metrics assembles the rebalancing engine's per-chain inputs from the
// allocation records.
func (v *MotherVault) Metrics() map[uint32]domain.ChainMetrics {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[uint32]domain.ChainMetrics, len(v.allocations))
	for id, rec := range v.allocations {
		out[id] = domain.ChainMetrics{
			ChainID:        id,
			APYBps:         rec.ReportedAPYBps,
			DeployedAmount: rec.DeployedAmount,
			LastReportTime: rec.LastReportTime,
			IsActive:       rec.IsActive,
		}
	}
	return out
}

// LastRebalance returns when the last rebalance was dispatched.
func (v *MotherVault) LastRebalance() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.LastRebalance
}

// CheckInvariant verifies that the allocation records sum to TotalDeployed
// and that buffer plus deployed capital equals the assets backing all shares.
func (v *MotherVault) CheckInvariant() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	var sum int64
	for _, rec := range v.allocations {
		sum += rec.DeployedAmount
	}
	if sum != v.state.TotalDeployed {
		return fmt.Errorf("vault: allocation sum %s != total deployed %s",
			domain.FormatAmount(sum), domain.FormatAmount(v.state.TotalDeployed))
	}
	if v.state.Buffer < 0 || v.state.TotalDeployed < 0 || v.state.TotalShares < 0 {
		return fmt.Errorf("vault: negative ledger state: buffer=%s deployed=%s shares=%d",
			domain.FormatAmount(v.state.Buffer), domain.FormatAmount(v.state.TotalDeployed), v.state.TotalShares)
	}
	if v.state.TotalShares > 0 && v.state.TotalAssets() <= 0 {
		return fmt.Errorf("vault: %d shares outstanding with no backing assets", v.state.TotalShares)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Internal helpers. Callers hold v.mu.
// ---------------------------------------------------------------------------

func (v *MotherVault) persistAlloc(ctx context.Context, rec *domain.ChildAllocationRecord) {
	if v.allocStore == nil {
		return
	}
	if err := v.allocStore.Upsert(ctx, *rec); err != nil {
		v.logger.ErrorContext(ctx, "persist allocation failed",
			slog.Uint64("chain_id", uint64(rec.ChainID)),
			slog.String("error", err.Error()),
		)
	}
}

func (v *MotherVault) auditLog(ctx context.Context, event string, detail map[string]any) {
	if v.audit == nil {
		return
	}
	if err := v.audit.Log(ctx, event, detail); err != nil {
		v.logger.ErrorContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (v *MotherVault) logEvent(ctx context.Context, channel, event string, chainID uint32, amount int64, detail map[string]any) {
	v.logger.InfoContext(ctx, event,
		slog.Uint64("chain_id", uint64(chainID)),
		slog.String("amount", domain.FormatAmount(amount)),
	)
	v.auditLog(ctx, event, detail)
	if v.bus == nil {
		return
	}
	payload, err := json.Marshal(domain.VaultEvent{
		Event:     event,
		ChainID:   chainID,
		Amount:    amount,
		Detail:    detail,
		Timestamp: v.now(),
	})
	if err != nil {
		return
	}
	if err := v.bus.Publish(ctx, channel, payload); err != nil {
		v.logger.WarnContext(ctx, "event publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
