package child

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
	childChain uint32 = 10
	homeChain  uint32 = 1
	homeAddr          = "0x1000000000000000000000000000000000000001"

	admin    = "admin-1"
	guardian = "guardian-1"
	nobody   = "nobody"
)

type sent struct {
	Type    domain.MessageType
	ChainID uint32
	Payload any
}

type stubSender struct {
	sends []sent
}

func (s *stubSender) Send(_ context.Context, t domain.MessageType, chain uint32, payload any) (domain.CrossChainMessage, error) {
	s.sends = append(s.sends, sent{Type: t, ChainID: chain, Payload: payload})
	return domain.CrossChainMessage{Type: t, TargetChainID: chain}, nil
}

func (s *stubSender) LocalAddress() string { return "0x2000000000000000000000000000000000000002" }

func (s *stubSender) last(t *testing.T) sent {
	t.Helper()
	if len(s.sends) == 0 {
		t.Fatal("no messages sent")
	}
	return s.sends[len(s.sends)-1]
}

func newTestLedger(t *testing.T, seedNAV, seedShares int64) (*Ledger, *SimStrategy, *stubSender) {
	t.Helper()
	strat := NewSimStrategy(seedNAV)
	l, sender := newTestLedgerWith(t, strat, seedNAV, seedShares)
	return l, strat, sender
}

func newTestLedgerWith(t *testing.T, strat Strategy, seedNAV, seedShares int64) (*Ledger, *stubSender) {
	t.Helper()
	sender := &stubSender{}
	acl := domain.NewAccessController(map[string][]domain.Role{
		admin:    {domain.RoleAdmin},
		guardian: {domain.RoleGuardian},
	})
	l := NewLedger(Config{
		ChainID:          childChain,
		HomeChainID:      homeChain,
		HomeAddress:      homeAddr,
		SeedNAV:          seedNAV,
		SeedShares:       seedShares,
		SnapshotInterval: time.Hour,
		Limits: domain.SecurityLimits{
			MaxDepositAmount: 10_000 * domain.AmountScale,
			SlippageBps:      50,
		},
	}, strat, bridge.NewInMem(true), sender, acl,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return l, sender
}

func depositMsg(amount int64) domain.CrossChainMessage {
	body, _ := domain.MarshalPayload(domain.DepositRequestPayload{Amount: amount})
	return domain.CrossChainMessage{
		Type:          domain.MsgDepositRequest,
		SourceChainID: homeChain,
		TargetChainID: childChain,
		Payload:       body,
	}
}

func withdrawalMsg(amount int64) domain.CrossChainMessage {
	body, _ := domain.MarshalPayload(domain.WithdrawalPayload{Amount: amount, Recipient: homeAddr})
	return domain.CrossChainMessage{
		Type:          domain.MsgWithdrawalRequest,
		SourceChainID: homeChain,
		TargetChainID: childChain,
		Payload:       body,
	}
}

func rebalanceCommandMsg(amount int64, target uint32) domain.CrossChainMessage {
	body, _ := domain.MarshalPayload(domain.RebalanceCommandPayload{Amount: amount, TargetChainID: target})
	return domain.CrossChainMessage{
		Type:          domain.MsgRebalanceCommand,
		SourceChainID: homeChain,
		TargetChainID: childChain,
		Payload:       body,
	}
}

// shortfallStrategy releases at most cap per divest, the way a real strategy
// behaves under thin pool liquidity.
type shortfallStrategy struct {
	*SimStrategy
	cap int64
}

func (s *shortfallStrategy) Divest(ctx context.Context, amount int64) (int64, error) {
	if amount > s.cap {
		amount = s.cap
	}
	return s.SimStrategy.Divest(ctx, amount)
}

func TestHandleDepositMintsAtNAV(t *testing.T) {
	// Seed: NAV 1000, shares 500. A 100 deposit mints 50 shares.
	l, strat, _ := newTestLedger(t, 1_000*domain.AmountScale, 500*domain.AmountScale)
	ctx := context.Background()

	if err := l.HandleDepositRequest(ctx, depositMsg(100*domain.AmountScale)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	st := l.State()
	if st.TotalShares != 550*domain.AmountScale {
		t.Errorf("total shares = %d, want %d", st.TotalShares, 550*domain.AmountScale)
	}
	// Principal advances the watermark so it never reads as profit.
	if st.LastHarvestNAV != 1_100*domain.AmountScale {
		t.Errorf("watermark = %d, want %d", st.LastHarvestNAV, 1_100*domain.AmountScale)
	}
	nav, _ := strat.CurrentNAV(ctx)
	if nav != 1_100*domain.AmountScale {
		t.Errorf("strategy nav = %d, want %d", nav, 1_100*domain.AmountScale)
	}
}

func TestHandleDepositRejections(t *testing.T) {
	l, _, _ := newTestLedger(t, 1_000*domain.AmountScale, 1_000*domain.AmountScale)
	ctx := context.Background()

	if err := l.HandleDepositRequest(ctx, depositMsg(0)); !errors.Is(err, domain.ErrZeroAmount) {
		t.Errorf("zero deposit: got %v, want ErrZeroAmount", err)
	}
	if err := l.HandleDepositRequest(ctx, depositMsg(20_000*domain.AmountScale)); !errors.Is(err, domain.ErrDepositLimitExceeded) {
		t.Errorf("over limit: got %v, want ErrDepositLimitExceeded", err)
	}

	if err := l.HandleEmergencyPause(ctx, domain.CrossChainMessage{Type: domain.MsgEmergencyPause}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := l.HandleDepositRequest(ctx, depositMsg(domain.AmountScale)); !errors.Is(err, domain.ErrPaused) {
		t.Errorf("paused deposit: got %v, want ErrPaused", err)
	}
}

func TestHandleWithdrawalSettlesHome(t *testing.T) {
	l, strat, sender := newTestLedger(t, 1_000*domain.AmountScale, 1_000*domain.AmountScale)
	ctx := context.Background()

	if err := l.HandleWithdrawalRequest(ctx, withdrawalMsg(400*domain.AmountScale)); err != nil {
		t.Fatalf("withdrawal: %v", err)
	}

	msg := sender.last(t)
	if msg.Type != domain.MsgWithdrawalRequest || msg.ChainID != homeChain {
		t.Fatalf("sent %v to chain %d, want settlement to home", msg.Type, msg.ChainID)
	}
	p, ok := msg.Payload.(domain.WithdrawalPayload)
	if !ok {
		t.Fatalf("payload type %T", msg.Payload)
	}
	if p.Amount != 400*domain.AmountScale || p.Recipient != homeAddr {
		t.Errorf("settlement payload = %+v", p)
	}

	st := l.State()
	if st.TotalShares != 600*domain.AmountScale {
		t.Errorf("total shares = %d, want %d", st.TotalShares, 600*domain.AmountScale)
	}
	nav, _ := strat.CurrentNAV(ctx)
	if nav != 600*domain.AmountScale {
		t.Errorf("nav = %d, want %d", nav, 600*domain.AmountScale)
	}
}

func TestHandleRebalanceCommandSettlesHome(t *testing.T) {
	l, strat, sender := newTestLedger(t, 1_000*domain.AmountScale, 1_000*domain.AmountScale)
	ctx := context.Background()

	if err := l.HandleRebalanceCommand(ctx, rebalanceCommandMsg(400*domain.AmountScale, 42161)); err != nil {
		t.Fatalf("rebalance command: %v", err)
	}

	msg := sender.last(t)
	if msg.Type != domain.MsgWithdrawalRequest || msg.ChainID != homeChain {
		t.Fatalf("sent %v to chain %d, want settlement to home", msg.Type, msg.ChainID)
	}
	p := msg.Payload.(domain.WithdrawalPayload)
	if p.Amount != 400*domain.AmountScale || p.Recipient != homeAddr {
		t.Errorf("settlement payload = %+v", p)
	}

	st := l.State()
	if st.TotalShares != 600*domain.AmountScale {
		t.Errorf("total shares = %d, want %d", st.TotalShares, 600*domain.AmountScale)
	}
	nav, _ := strat.CurrentNAV(ctx)
	if nav != 600*domain.AmountScale {
		t.Errorf("nav = %d, want %d", nav, 600*domain.AmountScale)
	}
}

func TestPartialDivestBurnsProportionally(t *testing.T) {
	strat := &shortfallStrategy{
		SimStrategy: NewSimStrategy(1_000 * domain.AmountScale),
		cap:         300 * domain.AmountScale,
	}
	l, sender := newTestLedgerWith(t, strat, 1_000*domain.AmountScale, 1_000*domain.AmountScale)
	ctx := context.Background()

	// 400 requested, 300 released: only the released amount's shares burn,
	// keeping the share price at 1.0.
	if err := l.Withdraw(ctx, 400*domain.AmountScale); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	p := sender.last(t).Payload.(domain.WithdrawalPayload)
	if p.Amount != 300*domain.AmountScale {
		t.Errorf("settled = %d, want %d", p.Amount, 300*domain.AmountScale)
	}

	st := l.State()
	if st.TotalShares != 700*domain.AmountScale {
		t.Errorf("total shares = %d, want %d", st.TotalShares, 700*domain.AmountScale)
	}
	nav, _ := strat.CurrentNAV(ctx)
	if nav != 700*domain.AmountScale {
		t.Errorf("nav = %d, want %d", nav, 700*domain.AmountScale)
	}
}

func TestWithdrawClampsToNAV(t *testing.T) {
	l, _, sender := newTestLedger(t, 100*domain.AmountScale, 100*domain.AmountScale)

	if err := l.Withdraw(context.Background(), 500*domain.AmountScale); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	p := sender.last(t).Payload.(domain.WithdrawalPayload)
	if p.Amount != 100*domain.AmountScale {
		t.Errorf("settled = %d, want clamp to nav %d", p.Amount, 100*domain.AmountScale)
	}
	if got := l.State().TotalShares; got != 0 {
		t.Errorf("total shares = %d, want 0", got)
	}
}

func TestHarvestReportsProfitOnce(t *testing.T) {
	l, strat, sender := newTestLedger(t, 1_000*domain.AmountScale, 1_000*domain.AmountScale)
	ctx := context.Background()

	// Nothing accrued: harvest succeeds silently.
	profit, err := l.Harvest(ctx)
	if err != nil {
		t.Fatalf("empty harvest: %v", err)
	}
	if profit != 0 || len(sender.sends) != 0 {
		t.Fatalf("empty harvest reported: profit=%d sends=%d", profit, len(sender.sends))
	}

	// 100 bps accrual on 1000 = 10 profit.
	strat.Accrue(100)
	profit, err = l.Harvest(ctx)
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if profit != 10*domain.AmountScale {
		t.Errorf("profit = %d, want %d", profit, 10*domain.AmountScale)
	}
	msg := sender.last(t)
	if msg.Type != domain.MsgYieldReport || msg.ChainID != homeChain {
		t.Errorf("sent %v to chain %d, want yield report home", msg.Type, msg.ChainID)
	}
	p := msg.Payload.(domain.YieldReportPayload)
	if p.TotalValue != 1_010*domain.AmountScale {
		t.Errorf("reported total value = %d, want %d", p.TotalValue, 1_010*domain.AmountScale)
	}

	// Watermark advanced: the same profit is never reported twice.
	profit, err = l.Harvest(ctx)
	if err != nil {
		t.Fatalf("second harvest: %v", err)
	}
	if profit != 0 {
		t.Errorf("second harvest profit = %d, want 0", profit)
	}
}

func TestReportAPYAlwaysSends(t *testing.T) {
	l, _, sender := newTestLedger(t, 1_000*domain.AmountScale, 1_000*domain.AmountScale)
	if err := l.ReportAPY(context.Background()); err != nil {
		t.Fatalf("report: %v", err)
	}
	if got := sender.last(t).Type; got != domain.MsgYieldReport {
		t.Errorf("sent %v, want yield report", got)
	}
}

func TestRecordSnapshotEnforcesInterval(t *testing.T) {
	l, _, _ := newTestLedger(t, 1_000*domain.AmountScale, 1_000*domain.AmountScale)
	ctx := context.Background()

	now := time.Now()
	l.SetClock(func() time.Time { return now })

	if err := l.RecordSnapshot(ctx); !errors.Is(err, domain.ErrSnapshotTooSoon) {
		t.Errorf("immediate snapshot: got %v, want ErrSnapshotTooSoon", err)
	}

	now = now.Add(2 * time.Hour)
	if err := l.RecordSnapshot(ctx); err != nil {
		t.Fatalf("spaced snapshot: %v", err)
	}
	if got := len(l.State().Snapshots); got != 2 {
		t.Errorf("snapshots = %d, want 2", got)
	}
}

func TestTrailingAPYGrowsWithNAV(t *testing.T) {
	l, strat, _ := newTestLedger(t, 1_000*domain.AmountScale, 1_000*domain.AmountScale)
	ctx := context.Background()

	// A single seed snapshot yields no trailing window.
	if got := l.APYBps(); got != 0 {
		t.Errorf("apy with one snapshot = %d, want 0", got)
	}

	now := time.Now()
	l.SetClock(func() time.Time { return now })
	now = now.Add(30 * 24 * time.Hour)

	strat.Accrue(100)
	if _, err := strat.HarvestRewards(ctx); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordSnapshot(ctx); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// 1% over roughly a month annualizes to roughly 12%.
	apy := l.APYBps()
	if apy < 1_000 || apy > 1_400 {
		t.Errorf("trailing apy = %d bps, want around 1200", apy)
	}
}

func TestEmergencyPauseAcksHome(t *testing.T) {
	l, _, sender := newTestLedger(t, 1_000*domain.AmountScale, 1_000*domain.AmountScale)
	ctx := context.Background()

	if err := l.HandleEmergencyPause(ctx, domain.CrossChainMessage{Type: domain.MsgEmergencyPause}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !l.State().Paused {
		t.Error("ledger not paused")
	}
	msg := sender.last(t)
	if msg.Type != domain.MsgEmergencyPause || msg.ChainID != homeChain {
		t.Errorf("ack = %v to chain %d, want pause ack home", msg.Type, msg.ChainID)
	}

	if err := l.HandleEmergencyUnpause(ctx, domain.CrossChainMessage{Type: domain.MsgEmergencyUnpause}); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if l.State().Paused {
		t.Error("ledger still paused")
	}
}

func TestEmergencyWithdrawAllGuardianOnly(t *testing.T) {
	l, strat, _ := newTestLedger(t, 1_000*domain.AmountScale, 1_000*domain.AmountScale)
	ctx := context.Background()

	if _, err := l.EmergencyWithdrawAll(ctx, nobody); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("unauthorized: got %v, want ErrUnauthorized", err)
	}

	liquidated, err := l.EmergencyWithdrawAll(ctx, guardian)
	if err != nil {
		t.Fatalf("guardian withdraw all: %v", err)
	}
	if liquidated != 1_000*domain.AmountScale {
		t.Errorf("liquidated = %d, want %d", liquidated, 1_000*domain.AmountScale)
	}
	if !l.State().Paused {
		t.Error("ledger not paused after emergency")
	}
	nav, _ := strat.CurrentNAV(ctx)
	if nav != 0 {
		t.Errorf("strategy nav = %d, want 0", nav)
	}
}

func TestSetSecurityLimits(t *testing.T) {
	l, _, _ := newTestLedger(t, 1_000*domain.AmountScale, 1_000*domain.AmountScale)
	ctx := context.Background()

	limits := domain.SecurityLimits{MaxDepositAmount: domain.AmountScale, SlippageBps: 100}
	if err := l.SetSecurityLimits(ctx, nobody, limits); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("unauthorized: got %v", err)
	}
	if err := l.SetSecurityLimits(ctx, admin, domain.SecurityLimits{SlippageBps: 600}); !errors.Is(err, domain.ErrSlippageTooHigh) {
		t.Errorf("over ceiling: got %v, want ErrSlippageTooHigh", err)
	}
	if err := l.SetSecurityLimits(ctx, admin, limits); err != nil {
		t.Fatalf("set limits: %v", err)
	}
	if got := l.State().Limits.MaxDepositAmount; got != domain.AmountScale {
		t.Errorf("max deposit = %d, want %d", got, domain.AmountScale)
	}
}
