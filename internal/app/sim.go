package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/omnivault/omnivault/internal/bridge"
	"github.com/omnivault/omnivault/internal/child"
	"github.com/omnivault/omnivault/internal/domain"
	"github.com/omnivault/omnivault/internal/messaging"
	"github.com/omnivault/omnivault/internal/rebalance"
	"github.com/omnivault/omnivault/internal/vault"
)

// Sim topology: one home ledger and two child vaults with different yield
// profiles, all connected through the in-memory network.
const (
	simHomeChain   uint32 = 1
	simChildChainA uint32 = 10
	simChildChainB uint32 = 42161

	simHomeAddr   = "0x1000000000000000000000000000000000000001"
	simChildAddrA = "0x2000000000000000000000000000000000000002"
	simChildAddrB = "0x3000000000000000000000000000000000000003"
	simFeeSink    = "0x4000000000000000000000000000000000000004"

	simOperator  = "sim-operator"
	simDepositor = "0x5000000000000000000000000000000000000005"
)

// simNode bundles one child vault with its strategy so the scenario can drive
// yield accrual directly.
type simNode struct {
	ledger   *child.Ledger
	strategy *child.SimStrategy
}

// SimMode runs a self-contained end-to-end scenario in a single process:
// deposit, deployment to two children, divergent yield accrual, harvesting,
// an APY-driven rebalance, and a user withdrawal. It exits once the scenario
// completes or the context is cancelled.
func (a *App) SimMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting simulation")

	acl := domain.NewAccessController(map[string][]domain.Role{
		simOperator: {domain.RoleAdmin, domain.RoleOperator, domain.RoleGuardian},
	})
	net := messaging.NewInMemNetwork()

	// Home ledger.
	homeMsgr := messaging.New(
		simHomeChain, simHomeAddr,
		net.TransportFor(simHomeChain, simHomeAddr),
		messaging.NewMemStore(), nil, a.logger,
	)
	for chainID, addr := range map[uint32]string{
		simChildChainA: simChildAddrA,
		simChildChainB: simChildAddrB,
	} {
		if err := homeMsgr.AddRemote(messaging.Remote{ChainID: chainID, Address: addr}); err != nil {
			return err
		}
	}

	v := vault.New(vault.Config{
		DepositCap:       a.cfg.Vault.DepositCap,
		ManagementFeeBps: a.cfg.Vault.ManagementFeeBps,
		FeeSink:          simFeeSink,
		FeeTimelock:      a.cfg.Vault.FeeTimelock.Duration,
	}, acl, bridge.NewInMem(true), homeMsgr, a.logger)
	homeMsgr.RegisterHandler(domain.MsgYieldReport, v.HandleYieldReport)
	homeMsgr.RegisterHandler(domain.MsgWithdrawalRequest, v.HandleWithdrawalSettled)
	net.Attach(simHomeChain, homeMsgr)

	// Children.
	newChild := func(chainID uint32, addr string) (*simNode, error) {
		msgr := messaging.New(
			chainID, addr,
			net.TransportFor(chainID, addr),
			messaging.NewMemStore(), nil, a.logger,
		)
		if err := msgr.AddRemote(messaging.Remote{ChainID: simHomeChain, Address: simHomeAddr}); err != nil {
			return nil, err
		}
		strat := child.NewSimStrategy(a.cfg.Child.SeedNAV)
		led := child.NewLedger(child.Config{
			ChainID:          chainID,
			HomeChainID:      simHomeChain,
			HomeAddress:      simHomeAddr,
			SeedNAV:          a.cfg.Child.SeedNAV,
			SeedShares:       a.cfg.Child.SeedShares,
			SnapshotInterval: 500 * time.Millisecond,
			Limits: domain.SecurityLimits{
				MaxDepositAmount: a.cfg.Child.MaxDepositAmount,
				SlippageBps:      a.cfg.Child.SlippageBps,
			},
		}, strat, bridge.NewInMem(true), msgr, acl, a.logger)
		led.RegisterHandlers(msgr)
		net.Attach(chainID, msgr)
		return &simNode{ledger: led, strategy: strat}, nil
	}

	nodeA, err := newChild(simChildChainA, simChildAddrA)
	if err != nil {
		return err
	}
	nodeB, err := newChild(simChildChainB, simChildAddrB)
	if err != nil {
		return err
	}

	// Scenario: seed the vault and spread capital across both chains.
	if _, err := v.Deposit(ctx, 5_000*domain.AmountScale, simDepositor); err != nil {
		return fmt.Errorf("sim: deposit: %w", err)
	}
	for chainID, addr := range map[uint32]string{
		simChildChainA: simChildAddrA,
		simChildChainB: simChildAddrB,
	} {
		if err := v.OnboardChild(ctx, simOperator, chainID, addr); err != nil {
			return fmt.Errorf("sim: onboard chain %d: %w", chainID, err)
		}
	}
	if err := v.DeployToChild(ctx, simOperator, simChildChainA, 2_000*domain.AmountScale); err != nil {
		return fmt.Errorf("sim: deploy to chain %d: %w", simChildChainA, err)
	}
	if err := v.DeployToChild(ctx, simOperator, simChildChainB, 1_000*domain.AmountScale); err != nil {
		return fmt.Errorf("sim: deploy to chain %d: %w", simChildChainB, err)
	}
	a.logSimState(ctx, "capital deployed", v)

	// Divergent yield: chain B outperforms chain A round after round.
	for round := 1; round <= 6; round++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}

		nodeA.strategy.Accrue(5)
		nodeB.strategy.Accrue(60)

		for chainID, node := range map[uint32]*simNode{
			simChildChainA: nodeA,
			simChildChainB: nodeB,
		} {
			if err := node.ledger.RecordSnapshot(ctx); err != nil {
				a.logger.DebugContext(ctx, "sim snapshot skipped",
					slog.Uint64("chain_id", uint64(chainID)),
					slog.String("reason", err.Error()),
				)
			}
			if _, err := node.ledger.Harvest(ctx); err != nil {
				return fmt.Errorf("sim: harvest chain %d: %w", chainID, err)
			}
		}
		a.logger.InfoContext(ctx, "sim round complete",
			slog.Int("round", round),
			slog.Int64("apy_a_bps", nodeA.ledger.APYBps()),
			slog.Int64("apy_b_bps", nodeB.ledger.APYBps()),
		)
	}

	// Rebalance toward the stronger chain.
	runner := rebalance.NewRunner(v, domain.RebalanceConfig{
		MinAPYDifferentialBps: a.cfg.Rebalance.MinAPYDifferentialBps,
		MinRebalanceAmount:    a.cfg.Rebalance.MinAmount,
		MaxRebalanceAmount:    a.cfg.Rebalance.MaxAmount,
		MaxGasCostUSD:         a.cfg.Rebalance.MaxGasCostUSD,
		Cooldown:              a.cfg.Rebalance.Cooldown.Duration,
	}, time.Minute, simOperator, rebalance.FlatCost(a.cfg.Rebalance.FlatCostUSD), a.logger)

	d := runner.Preview(ctx)
	if d.ShouldExecute {
		if err := v.ExecuteRebalance(ctx, simOperator, d); err != nil {
			return fmt.Errorf("sim: rebalance: %w", err)
		}
		a.logger.InfoContext(ctx, "sim rebalance executed",
			slog.Uint64("source_chain", uint64(d.SourceChainID)),
			slog.Uint64("target_chain", uint64(d.TargetChainID)),
			slog.String("amount", domain.FormatAmount(d.Amount)),
		)
	} else {
		a.logger.InfoContext(ctx, "sim rebalance skipped", slog.String("reason", d.Reason))
	}

	// A user withdrawal against the remaining buffer.
	state := v.State()
	shares := state.TotalShares / 10
	amount, err := v.Withdraw(ctx, shares, simDepositor)
	if err != nil {
		return fmt.Errorf("sim: withdraw: %w", err)
	}
	a.logger.InfoContext(ctx, "sim withdrawal paid",
		slog.Int64("shares", shares),
		slog.String("amount", domain.FormatAmount(amount)),
	)

	if err := v.CheckInvariant(); err != nil {
		return fmt.Errorf("sim: invariant violated: %w", err)
	}
	a.logSimState(ctx, "simulation complete", v)
	return nil
}

func (a *App) logSimState(ctx context.Context, msg string, v *vault.MotherVault) {
	st := v.State()
	a.logger.InfoContext(ctx, msg,
		slog.String("buffer", domain.FormatAmount(st.Buffer)),
		slog.String("deployed", domain.FormatAmount(st.TotalDeployed)),
		slog.Int64("total_shares", st.TotalShares),
		slog.String("share_price", domain.FormatAmount(st.SharePrice())),
	)
}
