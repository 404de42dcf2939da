// Package health aggregates per-chain health, owns the append-only failure
// log, and fans out emergency instructions to every child chain while
// tracking per-chain confirmation.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omnivault/omnivault/internal/domain"
	"github.com/omnivault/omnivault/internal/vault"
)

// Alerter delivers operator notifications. Implemented by notify.Notifier.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Coordinator is the health and emergency control plane for one home ledger.
type Coordinator struct {
	vault     *vault.MotherVault
	sender    vault.Sender
	failedOps domain.FailedOpStore
	bus       domain.SignalBus // optional
	alerter   Alerter          // optional
	staleness time.Duration

	mu            sync.Mutex
	confirmations map[uint32]domain.ConfirmationStatus

	logger *slog.Logger
	now    func() time.Time
}

// NewCoordinator creates a Coordinator. staleness is the maximum age of a
// child's last yield report before it is flagged.
func NewCoordinator(
	v *vault.MotherVault,
	sender vault.Sender,
	failedOps domain.FailedOpStore,
	staleness time.Duration,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		vault:         v,
		sender:        sender,
		failedOps:     failedOps,
		staleness:     staleness,
		confirmations: make(map[uint32]domain.ConfirmationStatus),
		logger:        logger.With(slog.String("component", "health_coordinator")),
		now:           time.Now,
	}
}

// SetBus attaches the signal bus for health event fan-out.
func (c *Coordinator) SetBus(bus domain.SignalBus) { c.bus = bus }

// SetAlerter attaches operator notifications.
func (c *Coordinator) SetAlerter(a Alerter) { c.alerter = a }

// SetClock overrides the time source. Test hook.
func (c *Coordinator) SetClock(now func() time.Time) { c.now = now }

// RecordFailedOperation appends to the failure log. Unauthenticated by
// design: anyone may report a failure for visibility, and records never
// mutate ledger state. A reference id is generated when none is supplied.
func (c *Coordinator) RecordFailedOperation(ctx context.Context, opType, origin, errMsg, reference string) error {
	if reference == "" {
		reference = uuid.New().String()
	}
	rec := domain.FailedOperationRecord{
		Timestamp:     c.now(),
		OperationType: opType,
		Origin:        origin,
		ErrorMessage:  errMsg,
		Reference:     reference,
	}
	if err := c.failedOps.Append(ctx, rec); err != nil {
		return fmt.Errorf("health: record failed operation: %w", err)
	}

	c.logger.WarnContext(ctx, "operation failure recorded",
		slog.String("type", opType),
		slog.String("origin", origin),
		slog.String("reference", reference),
	)
	if c.alerter != nil {
		_ = c.alerter.Notify(ctx, "failed_operation", "Operation failed",
			fmt.Sprintf("%s from %s: %s (ref %s)", opType, origin, errMsg, reference))
	}
	return nil
}

// PerformHealthCheck evaluates report staleness for every active chain and
// the home ledger's accounting invariant.
func (c *Coordinator) PerformHealthCheck(ctx context.Context) domain.HealthReport {
	now := c.now()
	report := domain.HealthReport{Healthy: true, CheckedAt: now}

	for _, rec := range c.vault.Allocations() {
		if !rec.IsActive {
			continue
		}
		if rec.LastReportTime.IsZero() {
			if rec.DeployedAmount > 0 {
				report.Issues = append(report.Issues, domain.HealthIssue{
					ChainID: rec.ChainID,
					Detail:  "capital deployed but no yield report received",
				})
			}
			continue
		}
		if age := now.Sub(rec.LastReportTime); age > c.staleness {
			report.Issues = append(report.Issues, domain.HealthIssue{
				ChainID: rec.ChainID,
				Detail:  fmt.Sprintf("last report %s ago exceeds staleness window %s", age.Round(time.Second), c.staleness),
			})
		}
	}

	if err := c.vault.CheckInvariant(); err != nil {
		report.Issues = append(report.Issues, domain.HealthIssue{Detail: err.Error()})
	}

	report.Healthy = len(report.Issues) == 0
	c.publish(ctx, report)
	return report
}

// Run performs periodic health checks until the context is cancelled,
// alerting on transitions to unhealthy.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	wasHealthy := true
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			report := c.PerformHealthCheck(ctx)
			if !report.Healthy && wasHealthy && c.alerter != nil {
				_ = c.alerter.Notify(ctx, "health_degraded", "System health degraded",
					fmt.Sprintf("%d issue(s) found", len(report.Issues)))
			}
			wasHealthy = report.Healthy
		}
	}
}

// ---------------------------------------------------------------------------
// Emergency fan-out
// ---------------------------------------------------------------------------

// EmergencyPause pauses the home ledger immediately, then propagates the
// pause to every active child chain. Pause-local-first: new deposits and
// deploys are blocked without waiting for any remote confirmation. Per-chain
// delivery status is tracked for operator visibility.
func (c *Coordinator) EmergencyPause(ctx context.Context, caller, reason string) error {
	if err := c.vault.EmergencyPause(ctx, caller); err != nil {
		return err
	}
	c.fanOut(ctx, domain.MsgEmergencyPause, reason)

	if c.alerter != nil {
		_ = c.alerter.Notify(ctx, "emergency_pause", "EMERGENCY PAUSE",
			fmt.Sprintf("triggered by %s: %s", caller, reason))
	}
	return nil
}

// EmergencyUnpause lifts the local pause and propagates.
func (c *Coordinator) EmergencyUnpause(ctx context.Context, caller string) error {
	if err := c.vault.EmergencyUnpause(ctx, caller); err != nil {
		return err
	}
	c.fanOut(ctx, domain.MsgEmergencyUnpause, "")
	return nil
}

// EmergencyWithdrawAll instructs every active child to liquidate and settle
// home. The home ledger stays paused; funds land in the buffer as
// settlements arrive. Guardian authorization is enforced by the pause.
func (c *Coordinator) EmergencyWithdrawAll(ctx context.Context, caller, reason string) error {
	if err := c.vault.EmergencyPause(ctx, caller); err != nil {
		return err
	}
	c.fanOut(ctx, domain.MsgEmergencyWithdrawAll, reason)

	if c.alerter != nil {
		_ = c.alerter.Notify(ctx, "emergency_withdraw_all", "EMERGENCY WITHDRAW ALL",
			fmt.Sprintf("triggered by %s: %s", caller, reason))
	}
	return nil
}

// fanOut dispatches an emergency instruction to all active chains, tracking
// per-chain status. A failed dispatch is recorded in the failure log; the
// remaining chains are still attempted.
func (c *Coordinator) fanOut(ctx context.Context, t domain.MessageType, reason string) {
	for _, rec := range c.vault.Allocations() {
		if !rec.IsActive {
			continue
		}
		c.setConfirmation(rec.ChainID, domain.ConfirmationPending)

		if _, err := c.sender.Send(ctx, t, rec.ChainID, domain.EmergencyPayload{Reason: reason}); err != nil {
			c.setConfirmation(rec.ChainID, domain.ConfirmationFailed)
			_ = c.RecordFailedOperation(ctx, "emergency_"+t.String(),
				fmt.Sprintf("chain:%d", rec.ChainID), err.Error(), "")
			continue
		}
		c.setConfirmation(rec.ChainID, domain.ConfirmationDispatched)
	}
}

// HandleEmergencyAck marks a chain's emergency instruction confirmed. Wired
// as the home-side handler for pause/unpause echoes from children.
func (c *Coordinator) HandleEmergencyAck(ctx context.Context, msg domain.CrossChainMessage) error {
	c.setConfirmation(msg.SourceChainID, domain.ConfirmationConfirmed)
	c.logger.InfoContext(ctx, "emergency instruction confirmed",
		slog.Uint64("chain_id", uint64(msg.SourceChainID)),
		slog.String("type", msg.Type.String()),
	)
	return nil
}

// Confirmations returns a snapshot of per-chain emergency delivery status.
func (c *Coordinator) Confirmations() map[uint32]domain.ConfirmationStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uint32]domain.ConfirmationStatus, len(c.confirmations))
	for k, v := range c.confirmations {
		out[k] = v
	}
	return out
}

func (c *Coordinator) setConfirmation(chainID uint32, s domain.ConfirmationStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmations[chainID] = s
}

func (c *Coordinator) publish(ctx context.Context, report domain.HealthReport) {
	if c.bus == nil {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := c.bus.Publish(ctx, domain.ChannelHealth, payload); err != nil {
		c.logger.WarnContext(ctx, "health publish failed", slog.String("error", err.Error()))
	}
}
