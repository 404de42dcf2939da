package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/omnivault/omnivault/internal/bridge"
	"github.com/omnivault/omnivault/internal/domain"
	"github.com/omnivault/omnivault/internal/vault"
)

const (
	chainA uint32 = 10
	chainB uint32 = 42161

	addrA    = "0x2000000000000000000000000000000000000002"
	addrB    = "0x3000000000000000000000000000000000000003"
	homeAddr = "0x1000000000000000000000000000000000000001"

	operator = "operator-1"
	guardian = "guardian-1"
	nobody   = "nobody"
)

type sent struct {
	Type    domain.MessageType
	ChainID uint32
}

// stubSender records sends and can fail for selected chains.
type stubSender struct {
	sends      []sent
	failChains map[uint32]bool
}

func (s *stubSender) Send(_ context.Context, t domain.MessageType, chain uint32, _ any) (domain.CrossChainMessage, error) {
	if s.failChains[chain] {
		return domain.CrossChainMessage{}, errors.New("relay unreachable")
	}
	s.sends = append(s.sends, sent{Type: t, ChainID: chain})
	return domain.CrossChainMessage{Type: t, TargetChainID: chain}, nil
}

func (s *stubSender) LocalAddress() string { return homeAddr }

type memFailedOps struct {
	records []domain.FailedOperationRecord
}

func (s *memFailedOps) Append(_ context.Context, rec domain.FailedOperationRecord) error {
	s.records = append(s.records, rec)
	return nil
}

func (s *memFailedOps) List(context.Context, domain.ListOpts) ([]domain.FailedOperationRecord, error) {
	return s.records, nil
}

func (s *memFailedOps) ListBefore(context.Context, time.Time) ([]domain.FailedOperationRecord, error) {
	return nil, nil
}

func newTestCoordinator(t *testing.T) (*Coordinator, *vault.MotherVault, *stubSender, *memFailedOps) {
	t.Helper()
	sender := &stubSender{failChains: map[uint32]bool{}}
	failedOps := &memFailedOps{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	acl := domain.NewAccessController(map[string][]domain.Role{
		operator: {domain.RoleAdmin, domain.RoleOperator},
		guardian: {domain.RoleGuardian},
	})
	v := vault.New(vault.Config{FeeTimelock: time.Hour}, acl, bridge.NewInMem(true), sender, logger)
	c := NewCoordinator(v, sender, failedOps, 24*time.Hour, logger)
	return c, v, sender, failedOps
}

func seedVault(t *testing.T, v *vault.MotherVault) {
	t.Helper()
	ctx := context.Background()
	if _, err := v.Deposit(ctx, 1_000*domain.AmountScale, homeAddr); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	for chainID, addr := range map[uint32]string{chainA: addrA, chainB: addrB} {
		if err := v.OnboardChild(ctx, operator, chainID, addr); err != nil {
			t.Fatalf("onboard: %v", err)
		}
	}
}

func TestEmergencyPauseFansOutToActiveChains(t *testing.T) {
	c, v, sender, _ := newTestCoordinator(t)
	seedVault(t, v)
	ctx := context.Background()

	if err := c.EmergencyPause(ctx, nobody, "test"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("unauthorized pause: got %v, want ErrUnauthorized", err)
	}
	if err := c.EmergencyPause(ctx, guardian, "anomalous flows"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !v.State().Paused {
		t.Error("vault not paused")
	}

	dispatched := map[uint32]bool{}
	for _, s := range sender.sends {
		if s.Type != domain.MsgEmergencyPause {
			t.Errorf("sent %v, want emergency pause", s.Type)
		}
		dispatched[s.ChainID] = true
	}
	if !dispatched[chainA] || !dispatched[chainB] {
		t.Errorf("fan-out reached %v, want both chains", dispatched)
	}

	conf := c.Confirmations()
	if conf[chainA] != domain.ConfirmationDispatched || conf[chainB] != domain.ConfirmationDispatched {
		t.Errorf("confirmations = %v, want dispatched on both", conf)
	}
}

func TestEmergencyPauseRecordsDispatchFailure(t *testing.T) {
	c, v, sender, failedOps := newTestCoordinator(t)
	seedVault(t, v)
	sender.failChains[chainB] = true

	if err := c.EmergencyPause(context.Background(), guardian, "test"); err != nil {
		t.Fatalf("pause: %v", err)
	}

	conf := c.Confirmations()
	if conf[chainA] != domain.ConfirmationDispatched {
		t.Errorf("chain A = %v, want dispatched", conf[chainA])
	}
	if conf[chainB] != domain.ConfirmationFailed {
		t.Errorf("chain B = %v, want failed", conf[chainB])
	}
	if len(failedOps.records) != 1 {
		t.Fatalf("failure records = %d, want 1", len(failedOps.records))
	}
	if failedOps.records[0].OperationType != "emergency_emergency_pause" {
		t.Errorf("operation type = %s", failedOps.records[0].OperationType)
	}
}

func TestHandleEmergencyAckConfirms(t *testing.T) {
	c, v, _, _ := newTestCoordinator(t)
	seedVault(t, v)
	ctx := context.Background()

	if err := c.EmergencyPause(ctx, guardian, "test"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := c.HandleEmergencyAck(ctx, domain.CrossChainMessage{
		Type:          domain.MsgEmergencyPause,
		SourceChainID: chainA,
	}); err != nil {
		t.Fatalf("ack: %v", err)
	}

	conf := c.Confirmations()
	if conf[chainA] != domain.ConfirmationConfirmed {
		t.Errorf("chain A = %v, want confirmed", conf[chainA])
	}
	if conf[chainB] != domain.ConfirmationDispatched {
		t.Errorf("chain B = %v, want still dispatched", conf[chainB])
	}
}

func TestEmergencyUnpauseAndWithdrawAll(t *testing.T) {
	c, v, sender, _ := newTestCoordinator(t)
	seedVault(t, v)
	ctx := context.Background()

	if err := c.EmergencyPause(ctx, guardian, "test"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := c.EmergencyUnpause(ctx, guardian); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if v.State().Paused {
		t.Error("vault still paused")
	}

	sender.sends = nil
	if err := c.EmergencyWithdrawAll(ctx, guardian, "drain"); err != nil {
		t.Fatalf("withdraw all: %v", err)
	}
	if !v.State().Paused {
		t.Error("withdraw all must leave the vault paused")
	}
	for _, s := range sender.sends {
		if s.Type != domain.MsgEmergencyWithdrawAll {
			t.Errorf("sent %v, want emergency withdraw all", s.Type)
		}
	}
	if len(sender.sends) != 2 {
		t.Errorf("fan-out sent %d messages, want 2", len(sender.sends))
	}
}

func TestPerformHealthCheckFlagsSilentAndStaleChains(t *testing.T) {
	c, v, _, _ := newTestCoordinator(t)
	seedVault(t, v)
	ctx := context.Background()

	// No capital deployed and no reports: healthy.
	report := c.PerformHealthCheck(ctx)
	if !report.Healthy {
		t.Fatalf("expected healthy, issues: %v", report.Issues)
	}

	// Capital deployed with no report yet is an issue.
	if err := v.DeployToChild(ctx, operator, chainA, 500*domain.AmountScale); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	report = c.PerformHealthCheck(ctx)
	if report.Healthy || len(report.Issues) != 1 {
		t.Fatalf("report = %+v, want one silent-chain issue", report)
	}
	if report.Issues[0].ChainID != chainA {
		t.Errorf("issue chain = %d, want %d", report.Issues[0].ChainID, chainA)
	}

	// A fresh report clears it.
	body, _ := domain.MarshalPayload(domain.YieldReportPayload{APYBps: 500, TotalValue: 500 * domain.AmountScale})
	if err := v.HandleYieldReport(ctx, domain.CrossChainMessage{
		Type:          domain.MsgYieldReport,
		SourceChainID: chainA,
		Payload:       body,
	}); err != nil {
		t.Fatalf("yield report: %v", err)
	}
	report = c.PerformHealthCheck(ctx)
	if !report.Healthy {
		t.Fatalf("expected healthy after report, issues: %v", report.Issues)
	}

	// Advance past the staleness window.
	c.SetClock(func() time.Time { return time.Now().Add(48 * time.Hour) })
	report = c.PerformHealthCheck(ctx)
	if report.Healthy || len(report.Issues) != 1 {
		t.Fatalf("report = %+v, want one staleness issue", report)
	}
}

func TestRecordFailedOperationGeneratesReference(t *testing.T) {
	c, _, _, failedOps := newTestCoordinator(t)

	if err := c.RecordFailedOperation(context.Background(), "bridge_transfer", "chain:10", "timeout", ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(failedOps.records) != 1 {
		t.Fatalf("records = %d, want 1", len(failedOps.records))
	}
	if failedOps.records[0].Reference == "" {
		t.Error("reference not generated")
	}
}
