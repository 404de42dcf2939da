package vault

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/omnivault/omnivault/internal/bridge"
	"github.com/omnivault/omnivault/internal/domain"
)

const (
	testChainA uint32 = 10
	testChainB uint32 = 42161
	testChainC uint32 = 8453

	testAddrA   = "0x2000000000000000000000000000000000000002"
	testAddrB   = "0x3000000000000000000000000000000000000003"
	testAddrC   = "0x6000000000000000000000000000000000000006"
	testHome    = "0x1000000000000000000000000000000000000001"
	testFeeSink = "0x4000000000000000000000000000000000000004"

	admin    = "admin-1"
	operator = "operator-1"
	guardian = "guardian-1"
	nobody   = "nobody"
)

type sent struct {
	Type    domain.MessageType
	ChainID uint32
	Payload any
}

// stubSender records dispatched messages instead of delivering them.
type stubSender struct {
	sends []sent
	fail  error
}

func (s *stubSender) Send(_ context.Context, t domain.MessageType, chain uint32, payload any) (domain.CrossChainMessage, error) {
	if s.fail != nil {
		return domain.CrossChainMessage{}, s.fail
	}
	s.sends = append(s.sends, sent{Type: t, ChainID: chain, Payload: payload})
	body, _ := domain.MarshalPayload(payload)
	return domain.CrossChainMessage{Type: t, TargetChainID: chain, Payload: body}, nil
}

func (s *stubSender) LocalAddress() string { return testHome }

func (s *stubSender) last(t *testing.T) sent {
	t.Helper()
	if len(s.sends) == 0 {
		t.Fatal("no messages sent")
	}
	return s.sends[len(s.sends)-1]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testACL() *domain.AccessController {
	return domain.NewAccessController(map[string][]domain.Role{
		admin:    {domain.RoleAdmin},
		operator: {domain.RoleOperator},
		guardian: {domain.RoleGuardian},
	})
}

func newTestVault(t *testing.T) (*MotherVault, *stubSender) {
	t.Helper()
	sender := &stubSender{}
	v := New(Config{
		DepositCap:       100_000 * domain.AmountScale,
		ManagementFeeBps: 50,
		FeeSink:          testFeeSink,
		FeeTimelock:      48 * time.Hour,
	}, testACL(), bridge.NewInMem(true), sender, testLogger())
	return v, sender
}

func mustDeposit(t *testing.T, v *MotherVault, amount int64) int64 {
	t.Helper()
	shares, err := v.Deposit(context.Background(), amount, "0x5000000000000000000000000000000000000005")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	return shares
}

func mustOnboard(t *testing.T, v *MotherVault, chainID uint32, addr string) {
	t.Helper()
	if err := v.OnboardChild(context.Background(), admin, chainID, addr); err != nil {
		t.Fatalf("onboard chain %d: %v", chainID, err)
	}
}

func settlementMsg(sourceChain uint32, amount int64, nonce uint64) domain.CrossChainMessage {
	body, _ := domain.MarshalPayload(domain.WithdrawalPayload{Amount: amount, Recipient: testHome})
	return domain.CrossChainMessage{
		Type:          domain.MsgWithdrawalRequest,
		SourceChainID: sourceChain,
		TargetChainID: 1,
		TargetAddress: testHome,
		Payload:       body,
		Nonce:         nonce,
	}
}

func yieldMsg(sourceChain uint32, apyBps, totalValue int64) domain.CrossChainMessage {
	body, _ := domain.MarshalPayload(domain.YieldReportPayload{APYBps: apyBps, TotalValue: totalValue})
	return domain.CrossChainMessage{
		Type:          domain.MsgYieldReport,
		SourceChainID: sourceChain,
		TargetChainID: 1,
		TargetAddress: testHome,
		Payload:       body,
	}
}

func TestDepositFirstMintsSharesOneToOne(t *testing.T) {
	v, _ := newTestVault(t)

	shares := mustDeposit(t, v, 1_000*domain.AmountScale)
	if shares != 1_000*domain.AmountScale {
		t.Fatalf("first deposit shares = %d, want %d", shares, 1_000*domain.AmountScale)
	}

	st := v.State()
	if st.Buffer != 1_000*domain.AmountScale {
		t.Errorf("buffer = %d, want %d", st.Buffer, 1_000*domain.AmountScale)
	}
	if st.SharePrice() != domain.AmountScale {
		t.Errorf("share price = %d, want %d", st.SharePrice(), domain.AmountScale)
	}
}

func TestDepositMintsAtCurrentSharePrice(t *testing.T) {
	v, _ := newTestVault(t)
	mustDeposit(t, v, 1_000*domain.AmountScale)
	mustOnboard(t, v, testChainA, testAddrA)
	if err := v.DeployToChild(context.Background(), operator, testChainA, 500*domain.AmountScale); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	// Yield settles back: assets grow from 1000 to 1100 with 1000 shares out.
	if err := v.HandleWithdrawalSettled(context.Background(), settlementMsg(testChainA, 600*domain.AmountScale, 1)); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if got := v.State().TotalAssets(); got != 1_100*domain.AmountScale {
		t.Fatalf("total assets = %d, want %d", got, 1_100*domain.AmountScale)
	}

	// 110 in at a 1.10 share price mints 100 shares.
	shares, err := v.Deposit(context.Background(), 110*domain.AmountScale, testHome)
	if err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	if shares != 100*domain.AmountScale {
		t.Errorf("second deposit shares = %d, want %d", shares, 100*domain.AmountScale)
	}
}

func TestDepositRejectsZeroCapAndPause(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	if _, err := v.Deposit(ctx, 0, testHome); !errors.Is(err, domain.ErrZeroAmount) {
		t.Errorf("zero deposit: got %v, want ErrZeroAmount", err)
	}
	if _, err := v.Deposit(ctx, 200_000*domain.AmountScale, testHome); !errors.Is(err, domain.ErrDepositCapExceeded) {
		t.Errorf("over cap: got %v, want ErrDepositCapExceeded", err)
	}

	if err := v.EmergencyPause(ctx, guardian); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := v.Deposit(ctx, domain.AmountScale, testHome); !errors.Is(err, domain.ErrPaused) {
		t.Errorf("paused deposit: got %v, want ErrPaused", err)
	}
}

func TestWithdrawPaysProportionalFromBuffer(t *testing.T) {
	v, _ := newTestVault(t)
	shares := mustDeposit(t, v, 1_000*domain.AmountScale)

	amount, err := v.Withdraw(context.Background(), shares/4, testHome)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount != 250*domain.AmountScale {
		t.Errorf("withdrawn = %d, want %d", amount, 250*domain.AmountScale)
	}
	if err := v.CheckInvariant(); err != nil {
		t.Errorf("invariant: %v", err)
	}
}

func TestWithdrawBeyondBufferFails(t *testing.T) {
	v, _ := newTestVault(t)
	shares := mustDeposit(t, v, 1_000*domain.AmountScale)
	mustOnboard(t, v, testChainA, testAddrA)
	if err := v.DeployToChild(context.Background(), operator, testChainA, 900*domain.AmountScale); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	// All shares are worth 1000 but only 100 sits in the buffer.
	if _, err := v.Withdraw(context.Background(), shares, testHome); !errors.Is(err, domain.ErrInsufficientBuffer) {
		t.Errorf("got %v, want ErrInsufficientBuffer", err)
	}
	if _, err := v.Withdraw(context.Background(), shares+1, testHome); !errors.Is(err, domain.ErrInsufficientShares) {
		t.Errorf("got %v, want ErrInsufficientShares", err)
	}
}

func TestOnboardChildRoleAndDuplicate(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	if err := v.OnboardChild(ctx, nobody, testChainA, testAddrA); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("unauthorized onboard: got %v, want ErrUnauthorized", err)
	}
	if err := v.OnboardChild(ctx, admin, testChainA, "not-an-address"); !errors.Is(err, domain.ErrInvalidAddress) {
		t.Errorf("bad address: got %v, want ErrInvalidAddress", err)
	}

	mustOnboard(t, v, testChainA, testAddrA)
	if err := v.OnboardChild(ctx, admin, testChainA, testAddrA); !errors.Is(err, domain.ErrChildAlreadyActive) {
		t.Errorf("duplicate onboard: got %v, want ErrChildAlreadyActive", err)
	}

	// Deactivate then re-onboard reuses the record.
	if err := v.DeactivateChild(ctx, admin, testChainA); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := v.DeactivateChild(ctx, admin, testChainA); !errors.Is(err, domain.ErrChildNotActive) {
		t.Errorf("double deactivate: got %v, want ErrChildNotActive", err)
	}
	mustOnboard(t, v, testChainA, testAddrA)
}

func TestDeployToChildOptimisticAccounting(t *testing.T) {
	v, sender := newTestVault(t)
	mustDeposit(t, v, 1_000*domain.AmountScale)
	mustOnboard(t, v, testChainA, testAddrA)

	if err := v.DeployToChild(context.Background(), operator, testChainA, 400*domain.AmountScale); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	st := v.State()
	if st.Buffer != 600*domain.AmountScale || st.TotalDeployed != 400*domain.AmountScale {
		t.Errorf("buffer/deployed = %d/%d, want %d/%d",
			st.Buffer, st.TotalDeployed, 600*domain.AmountScale, 400*domain.AmountScale)
	}

	msg := sender.last(t)
	if msg.Type != domain.MsgDepositRequest || msg.ChainID != testChainA {
		t.Errorf("sent %v to chain %d, want deposit request to %d", msg.Type, msg.ChainID, testChainA)
	}
	if err := v.CheckInvariant(); err != nil {
		t.Errorf("invariant: %v", err)
	}
}

func TestDeployRejections(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()
	mustDeposit(t, v, 1_000*domain.AmountScale)

	if err := v.DeployToChild(ctx, nobody, testChainA, domain.AmountScale); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("unauthorized: got %v", err)
	}
	if err := v.DeployToChild(ctx, operator, testChainA, domain.AmountScale); !errors.Is(err, domain.ErrChildNotActive) {
		t.Errorf("inactive child: got %v", err)
	}

	mustOnboard(t, v, testChainA, testAddrA)
	if err := v.DeployToChild(ctx, operator, testChainA, 2_000*domain.AmountScale); !errors.Is(err, domain.ErrInsufficientBuffer) {
		t.Errorf("over buffer: got %v", err)
	}
}

func TestHandleYieldReportUpdatesMetrics(t *testing.T) {
	v, _ := newTestVault(t)
	mustOnboard(t, v, testChainA, testAddrA)

	if err := v.HandleYieldReport(context.Background(), yieldMsg(testChainA, 750, 500*domain.AmountScale)); err != nil {
		t.Fatalf("yield report: %v", err)
	}

	m := v.Metrics()[testChainA]
	if m.APYBps != 750 {
		t.Errorf("apy = %d, want 750", m.APYBps)
	}
	if m.LastReportTime.IsZero() {
		t.Error("last report time not set")
	}

	if err := v.HandleYieldReport(context.Background(), yieldMsg(testChainB, 100, 0)); !errors.Is(err, domain.ErrChildNotActive) {
		t.Errorf("unknown chain report: got %v, want ErrChildNotActive", err)
	}
}

func TestHandleWithdrawalSettledClampsSurplus(t *testing.T) {
	v, _ := newTestVault(t)
	mustDeposit(t, v, 1_000*domain.AmountScale)
	mustOnboard(t, v, testChainA, testAddrA)
	if err := v.DeployToChild(context.Background(), operator, testChainA, 400*domain.AmountScale); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	// Child returns principal plus yield: the full amount lands in the buffer
	// but the allocation only sheds its recorded principal.
	if err := v.HandleWithdrawalSettled(context.Background(), settlementMsg(testChainA, 450*domain.AmountScale, 1)); err != nil {
		t.Fatalf("settle: %v", err)
	}

	st := v.State()
	if st.Buffer != 1_050*domain.AmountScale {
		t.Errorf("buffer = %d, want %d", st.Buffer, 1_050*domain.AmountScale)
	}
	if st.TotalDeployed != 0 {
		t.Errorf("deployed = %d, want 0", st.TotalDeployed)
	}
	if err := v.CheckInvariant(); err != nil {
		t.Errorf("invariant: %v", err)
	}
}

func TestRebalanceWithdrawThenRedeploy(t *testing.T) {
	v, sender := newTestVault(t)
	mustDeposit(t, v, 1_000*domain.AmountScale)
	mustOnboard(t, v, testChainA, testAddrA)
	mustOnboard(t, v, testChainB, testAddrB)
	ctx := context.Background()
	if err := v.DeployToChild(ctx, operator, testChainA, 600*domain.AmountScale); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	err := v.ExecuteRebalance(ctx, operator, domain.RebalanceDecision{
		SourceChainID: testChainA,
		TargetChainID: testChainB,
		Amount:        300 * domain.AmountScale,
		ShouldExecute: true,
	})
	if err != nil {
		t.Fatalf("rebalance: %v", err)
	}

	msg := sender.last(t)
	if msg.Type != domain.MsgRebalanceCommand || msg.ChainID != testChainA {
		t.Fatalf("sent %v to chain %d, want rebalance command to %d", msg.Type, msg.ChainID, testChainA)
	}
	cmd, ok := msg.Payload.(domain.RebalanceCommandPayload)
	if !ok {
		t.Fatalf("payload type %T", msg.Payload)
	}
	if cmd.Amount != 300*domain.AmountScale || cmd.TargetChainID != testChainB {
		t.Errorf("command payload = %+v", cmd)
	}
	if v.LastRebalance().IsZero() {
		t.Error("last rebalance not stamped")
	}

	// Settlement from the source completes the second leg.
	if err := v.HandleWithdrawalSettled(ctx, settlementMsg(testChainA, 300*domain.AmountScale, 2)); err != nil {
		t.Fatalf("settle: %v", err)
	}

	msg = sender.last(t)
	if msg.Type != domain.MsgDepositRequest || msg.ChainID != testChainB {
		t.Fatalf("redeploy sent %v to chain %d, want deposit request to %d", msg.Type, msg.ChainID, testChainB)
	}

	allocs := map[uint32]int64{}
	for _, rec := range v.Allocations() {
		allocs[rec.ChainID] = rec.DeployedAmount
	}
	if allocs[testChainA] != 300*domain.AmountScale || allocs[testChainB] != 300*domain.AmountScale {
		t.Errorf("allocations = %v, want 300 on each chain", allocs)
	}
	if err := v.CheckInvariant(); err != nil {
		t.Errorf("invariant: %v", err)
	}
}

func TestConcurrentRebalancesTrackedPerSource(t *testing.T) {
	v, sender := newTestVault(t)
	mustDeposit(t, v, 1_000*domain.AmountScale)
	mustOnboard(t, v, testChainA, testAddrA)
	mustOnboard(t, v, testChainB, testAddrB)
	mustOnboard(t, v, testChainC, testAddrC)
	ctx := context.Background()
	if err := v.DeployToChild(ctx, operator, testChainA, 400*domain.AmountScale); err != nil {
		t.Fatalf("deploy A: %v", err)
	}
	if err := v.DeployToChild(ctx, operator, testChainB, 300*domain.AmountScale); err != nil {
		t.Fatalf("deploy B: %v", err)
	}

	if err := v.ExecuteRebalance(ctx, operator, domain.RebalanceDecision{
		SourceChainID: testChainA,
		TargetChainID: testChainC,
		Amount:        200 * domain.AmountScale,
		ShouldExecute: true,
	}); err != nil {
		t.Fatalf("first rebalance: %v", err)
	}

	// A second move from the same source before its settlement must be
	// rejected, not allowed to clobber the first move's redeploy.
	err := v.ExecuteEmergencyRebalance(ctx, guardian, testChainA, testChainC, 100*domain.AmountScale)
	if !errors.Is(err, domain.ErrRebalanceInFlight) {
		t.Fatalf("overlapping rebalance from same source: got %v, want ErrRebalanceInFlight", err)
	}

	// A different source chain may move concurrently.
	if err := v.ExecuteRebalance(ctx, operator, domain.RebalanceDecision{
		SourceChainID: testChainB,
		TargetChainID: testChainC,
		Amount:        100 * domain.AmountScale,
		ShouldExecute: true,
	}); err != nil {
		t.Fatalf("second rebalance: %v", err)
	}

	// B settles first: only B's move completes; A's stays pending.
	if err := v.HandleWithdrawalSettled(ctx, settlementMsg(testChainB, 100*domain.AmountScale, 1)); err != nil {
		t.Fatalf("settle B: %v", err)
	}
	msg := sender.last(t)
	if msg.Type != domain.MsgDepositRequest || msg.ChainID != testChainC {
		t.Fatalf("B redeploy sent %v to chain %d, want deposit request to %d", msg.Type, msg.ChainID, testChainC)
	}
	if got := msg.Payload.(domain.DepositRequestPayload).Amount; got != 100*domain.AmountScale {
		t.Errorf("B redeploy amount = %d, want %d", got, 100*domain.AmountScale)
	}

	// A's settlement completes its own move with its own amount.
	if err := v.HandleWithdrawalSettled(ctx, settlementMsg(testChainA, 200*domain.AmountScale, 2)); err != nil {
		t.Fatalf("settle A: %v", err)
	}
	msg = sender.last(t)
	if msg.Type != domain.MsgDepositRequest || msg.ChainID != testChainC {
		t.Fatalf("A redeploy sent %v to chain %d, want deposit request to %d", msg.Type, msg.ChainID, testChainC)
	}
	if got := msg.Payload.(domain.DepositRequestPayload).Amount; got != 200*domain.AmountScale {
		t.Errorf("A redeploy amount = %d, want %d", got, 200*domain.AmountScale)
	}

	allocs := map[uint32]int64{}
	for _, rec := range v.Allocations() {
		allocs[rec.ChainID] = rec.DeployedAmount
	}
	want := map[uint32]int64{
		testChainA: 200 * domain.AmountScale,
		testChainB: 200 * domain.AmountScale,
		testChainC: 300 * domain.AmountScale,
	}
	for chain, amount := range want {
		if allocs[chain] != amount {
			t.Errorf("chain %d deployed = %d, want %d", chain, allocs[chain], amount)
		}
	}
	if err := v.CheckInvariant(); err != nil {
		t.Errorf("invariant: %v", err)
	}
}

func TestUnrelatedSettlementLeavesRedeployPending(t *testing.T) {
	v, sender := newTestVault(t)
	mustDeposit(t, v, 1_000*domain.AmountScale)
	mustOnboard(t, v, testChainA, testAddrA)
	mustOnboard(t, v, testChainB, testAddrB)
	ctx := context.Background()
	if err := v.DeployToChild(ctx, operator, testChainA, 300*domain.AmountScale); err != nil {
		t.Fatalf("deploy A: %v", err)
	}
	if err := v.DeployToChild(ctx, operator, testChainB, 300*domain.AmountScale); err != nil {
		t.Fatalf("deploy B: %v", err)
	}

	if err := v.ExecuteRebalance(ctx, operator, domain.RebalanceDecision{
		SourceChainID: testChainA,
		TargetChainID: testChainB,
		Amount:        200 * domain.AmountScale,
		ShouldExecute: true,
	}); err != nil {
		t.Fatalf("rebalance: %v", err)
	}

	// B returns capital on its own; that settlement must not consume A's
	// pending redeploy.
	if err := v.HandleWithdrawalSettled(ctx, settlementMsg(testChainB, 50*domain.AmountScale, 1)); err != nil {
		t.Fatalf("settle B: %v", err)
	}
	if got := sender.last(t).Type; got == domain.MsgDepositRequest {
		t.Fatal("unrelated settlement triggered the redeploy")
	}

	if err := v.HandleWithdrawalSettled(ctx, settlementMsg(testChainA, 200*domain.AmountScale, 2)); err != nil {
		t.Fatalf("settle A: %v", err)
	}
	msg := sender.last(t)
	if msg.Type != domain.MsgDepositRequest || msg.ChainID != testChainB {
		t.Fatalf("redeploy sent %v to chain %d, want deposit request to %d", msg.Type, msg.ChainID, testChainB)
	}
}

func TestRebalanceRejectsNonExecutableDecision(t *testing.T) {
	v, _ := newTestVault(t)
	err := v.ExecuteRebalance(context.Background(), operator, domain.RebalanceDecision{
		ShouldExecute: false,
		Reason:        "NoRebalanceNeeded",
	})
	if err == nil {
		t.Fatal("expected error for non-executable decision")
	}
}

func TestEmergencyRebalanceRequiresGuardian(t *testing.T) {
	v, _ := newTestVault(t)
	mustDeposit(t, v, 1_000*domain.AmountScale)
	mustOnboard(t, v, testChainA, testAddrA)
	mustOnboard(t, v, testChainB, testAddrB)
	ctx := context.Background()
	if err := v.DeployToChild(ctx, operator, testChainA, 500*domain.AmountScale); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	if err := v.ExecuteEmergencyRebalance(ctx, operator, testChainA, testChainB, 100*domain.AmountScale); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("operator emergency rebalance: got %v, want ErrUnauthorized", err)
	}
	if err := v.ExecuteEmergencyRebalance(ctx, guardian, testChainA, testChainB, 100*domain.AmountScale); err != nil {
		t.Errorf("guardian emergency rebalance: %v", err)
	}
}

func TestFeeUpdateTimelock(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	now := time.Now()
	v.SetClock(func() time.Time { return now })

	if err := v.ProposeFeeUpdate(ctx, admin, 20_000); !errors.Is(err, domain.ErrFeeCapExceeded) {
		t.Errorf("over-cap fee: got %v, want ErrFeeCapExceeded", err)
	}
	if err := v.ExecuteFeeUpdate(ctx, admin); !errors.Is(err, domain.ErrNoPendingFeeUpdate) {
		t.Errorf("execute without proposal: got %v, want ErrNoPendingFeeUpdate", err)
	}

	if err := v.ProposeFeeUpdate(ctx, admin, 100); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := v.ExecuteFeeUpdate(ctx, admin); !errors.Is(err, domain.ErrTimelockActive) {
		t.Errorf("early execute: got %v, want ErrTimelockActive", err)
	}

	now = now.Add(48*time.Hour + time.Minute)
	if err := v.ExecuteFeeUpdate(ctx, admin); err != nil {
		t.Fatalf("execute after timelock: %v", err)
	}
	if got := v.State().ManagementFeeBps; got != 100 {
		t.Errorf("fee = %d, want 100", got)
	}

	// A proposal executes exactly once.
	if err := v.ExecuteFeeUpdate(ctx, admin); !errors.Is(err, domain.ErrNoPendingFeeUpdate) {
		t.Errorf("second execute: got %v, want ErrNoPendingFeeUpdate", err)
	}
}

func TestPauseBlocksMutationsAndDeployableAmount(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()
	mustDeposit(t, v, 1_000*domain.AmountScale)
	mustOnboard(t, v, testChainA, testAddrA)

	if err := v.EmergencyPause(ctx, guardian); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := v.DeployToChild(ctx, operator, testChainA, domain.AmountScale); !errors.Is(err, domain.ErrPaused) {
		t.Errorf("paused deploy: got %v, want ErrPaused", err)
	}
	if got := v.GetDeployableAmount(); got != 0 {
		t.Errorf("deployable while paused = %d, want 0", got)
	}

	if err := v.EmergencyUnpause(ctx, guardian); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if got := v.GetDeployableAmount(); got != 1_000*domain.AmountScale {
		t.Errorf("deployable = %d, want %d", got, 1_000*domain.AmountScale)
	}
}
