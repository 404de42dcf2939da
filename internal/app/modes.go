package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omnivault/omnivault/internal/bridge"
	"github.com/omnivault/omnivault/internal/child"
	"github.com/omnivault/omnivault/internal/crypto"
	"github.com/omnivault/omnivault/internal/domain"
	"github.com/omnivault/omnivault/internal/health"
	"github.com/omnivault/omnivault/internal/messaging"
	"github.com/omnivault/omnivault/internal/rebalance"
	"github.com/omnivault/omnivault/internal/server"
	"github.com/omnivault/omnivault/internal/server/handler"
	"github.com/omnivault/omnivault/internal/server/ws"
	"github.com/omnivault/omnivault/internal/vault"
)

// HomeMode runs the home ledger: share accounting, capital deployment, the
// rebalancing runner, the health coordinator, and the full admin API.
func (a *App) HomeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting home ledger mode",
		slog.Uint64("chain_id", uint64(a.cfg.Messenger.ChainID)),
	)

	g, ctx := errgroup.WithContext(ctx)

	acl := a.accessController()
	messenger, err := a.buildMessenger(deps)
	if err != nil {
		return err
	}

	// Settlement adapter. Chain-specific bridge adapters slot in here; the
	// in-memory adapter settles transfers instantly.
	br := bridge.NewInMem(true)

	v := vault.New(vault.Config{
		DepositCap:       a.cfg.Vault.DepositCap,
		ManagementFeeBps: a.cfg.Vault.ManagementFeeBps,
		FeeSink:          a.cfg.Vault.FeeSink,
		FeeTimelock:      a.cfg.Vault.FeeTimelock.Duration,
	}, acl, br, messenger, a.logger)
	v.SetStores(deps.AllocationStore, deps.AuditStore, deps.SignalBus)

	coordinator := health.NewCoordinator(v, messenger, deps.FailedOpStore, a.cfg.Health.Staleness.Duration, a.logger)
	coordinator.SetBus(deps.SignalBus)
	coordinator.SetAlerter(deps.Notifier)

	// Home-side inbound handlers: yield reports, withdrawal settlements, and
	// emergency acknowledgement echoes from children.
	messenger.RegisterHandler(domain.MsgYieldReport, v.HandleYieldReport)
	messenger.RegisterHandler(domain.MsgWithdrawalRequest, v.HandleWithdrawalSettled)
	messenger.RegisterHandler(domain.MsgEmergencyPause, coordinator.HandleEmergencyAck)
	messenger.RegisterHandler(domain.MsgEmergencyUnpause, coordinator.HandleEmergencyAck)

	runner := rebalance.NewRunner(
		v,
		domain.RebalanceConfig{
			MinAPYDifferentialBps: a.cfg.Rebalance.MinAPYDifferentialBps,
			MinRebalanceAmount:    a.cfg.Rebalance.MinAmount,
			MaxRebalanceAmount:    a.cfg.Rebalance.MaxAmount,
			MaxGasCostUSD:         a.cfg.Rebalance.MaxGasCostUSD,
			Cooldown:              a.cfg.Rebalance.Cooldown.Duration,
		},
		a.cfg.Rebalance.Interval.Duration,
		a.cfg.Rebalance.Operator,
		rebalance.FlatCost(a.cfg.Rebalance.FlatCostUSD),
		a.logger,
	)
	if deps.LockManager != nil {
		runner.SetLockManager(deps.LockManager)
	}
	if deps.MetricsCache != nil {
		runner.SetMetricsCache(deps.MetricsCache)
	}
	if a.cfg.Rebalance.Enabled {
		g.Go(func() error {
			return runner.Run(ctx)
		})
	} else {
		a.logger.InfoContext(ctx, "rebalance.enabled is false; runner available for previews only")
	}

	g.Go(func() error {
		return coordinator.Run(ctx, a.cfg.Health.CheckInterval.Duration)
	})

	a.startArchiveLoop(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps.SignalBus, server.Handlers{
			Health:    handler.NewHealthHandler(coordinator, deps.FailedOpStore, a.logger),
			Vault:     handler.NewVaultHandler(v, a.logger),
			Children:  handler.NewChildrenHandler(v, deps.SnapshotStore, a.logger),
			Rebalance: handler.NewRebalanceHandler(runner, v, a.logger),
			Admin:     handler.NewAdminHandler(v, coordinator, deps.AuditStore, a.logger),
			Messages:  handler.NewMessagesHandler(messenger, a.cfg.Relayer.TrustedSigners, a.logger),
		})
	}

	return g.Wait()
}

// ChildMode runs one child vault: inbound deploy/withdraw/emergency handling
// plus the periodic harvest, report, and snapshot loops.
func (a *App) ChildMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting child vault mode",
		slog.Uint64("chain_id", uint64(a.cfg.Messenger.ChainID)),
		slog.Uint64("home_chain_id", uint64(a.cfg.Child.HomeChainID)),
	)

	g, ctx := errgroup.WithContext(ctx)

	acl := a.accessController()
	messenger, err := a.buildMessenger(deps)
	if err != nil {
		return err
	}
	if err := messenger.AddRemote(messaging.Remote{
		ChainID: a.cfg.Child.HomeChainID,
		Address: a.cfg.Child.HomeAddress,
	}); err != nil {
		return fmt.Errorf("app: home remote: %w", err)
	}

	// Yield strategy. Protocol-specific strategies slot in here; the
	// simulated strategy accrues nothing unless driven externally.
	strat := child.NewSimStrategy(a.cfg.Child.SeedNAV)
	br := bridge.NewInMem(true)

	ledger := child.NewLedger(child.Config{
		ChainID:          a.cfg.Messenger.ChainID,
		HomeChainID:      a.cfg.Child.HomeChainID,
		HomeAddress:      a.cfg.Child.HomeAddress,
		SeedNAV:          a.cfg.Child.SeedNAV,
		SeedShares:       a.cfg.Child.SeedShares,
		SnapshotInterval: a.cfg.Child.SnapshotInterval.Duration,
		Limits: domain.SecurityLimits{
			MinLiquidity:     a.cfg.Child.MinLiquidity,
			MaxDepositAmount: a.cfg.Child.MaxDepositAmount,
			SlippageBps:      a.cfg.Child.SlippageBps,
		},
	}, strat, br, messenger, acl, a.logger)
	if deps.SnapshotStore != nil {
		ledger.SetSnapshotStore(deps.SnapshotStore)
	}
	ledger.RegisterHandlers(messenger)

	g.Go(func() error {
		return a.childLoop(ctx, "harvest", a.cfg.Child.HarvestInterval.Duration, func(ctx context.Context) error {
			_, err := ledger.Harvest(ctx)
			return err
		})
	})
	g.Go(func() error {
		return a.childLoop(ctx, "report", a.cfg.Child.ReportInterval.Duration, ledger.ReportAPY)
	})
	g.Go(func() error {
		return a.childLoop(ctx, "snapshot", a.cfg.Child.SnapshotInterval.Duration, ledger.RecordSnapshot)
	})

	a.startArchiveLoop(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps.SignalBus, server.Handlers{
			Health:   handler.NewHealthHandler(nil, deps.FailedOpStore, a.logger),
			Messages: handler.NewMessagesHandler(messenger, a.cfg.Relayer.TrustedSigners, a.logger),
		})
	}

	return g.Wait()
}

// MonitorMode runs a read-only node: it serves the health surface, bridges
// vault events to WebSocket clients, and periodically logs the cached
// per-chain metrics.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	if deps.MetricsCache != nil && len(a.cfg.Chains) > 0 {
		chainIDs := make([]uint32, 0, len(a.cfg.Chains))
		for _, ch := range a.cfg.Chains {
			chainIDs = append(chainIDs, ch.ChainID)
		}
		g.Go(func() error {
			ticker := time.NewTicker(a.cfg.Health.CheckInterval.Duration)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					metrics, err := deps.MetricsCache.GetAll(ctx, chainIDs)
					if err != nil {
						a.logger.WarnContext(ctx, "metrics fetch failed", slog.String("error", err.Error()))
						continue
					}
					for _, m := range metrics {
						a.logger.InfoContext(ctx, "chain metrics",
							slog.Uint64("chain_id", uint64(m.ChainID)),
							slog.Int64("apy_bps", m.APYBps),
							slog.String("deployed", domain.FormatAmount(m.DeployedAmount)),
						)
					}
				}
			}
		})
	}

	a.startHTTPServer(ctx, g, deps.SignalBus, server.Handlers{
		Health: handler.NewHealthHandler(nil, deps.FailedOpStore, a.logger),
	})

	return g.Wait()
}

// childLoop runs one periodic child vault task, logging failures instead of
// stopping. A paused ledger or a too-early snapshot is routine, not an error.
func (a *App) childLoop(ctx context.Context, name string, interval time.Duration, task func(context.Context) error) error {
	if interval <= 0 {
		a.logger.Warn("child loop disabled", slog.String("loop", name))
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := task(ctx)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrPaused), errors.Is(err, domain.ErrSnapshotTooSoon):
				a.logger.DebugContext(ctx, "child task skipped",
					slog.String("loop", name),
					slog.String("reason", err.Error()),
				)
			default:
				a.logger.ErrorContext(ctx, "child task failed",
					slog.String("loop", name),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// accessController builds the capability table from the configured role
// grants.
func (a *App) accessController() *domain.AccessController {
	grants := make(map[string][]domain.Role)
	for _, id := range a.cfg.Roles.Admins {
		grants[id] = append(grants[id], domain.RoleAdmin)
	}
	for _, id := range a.cfg.Roles.Operators {
		grants[id] = append(grants[id], domain.RoleOperator)
	}
	for _, id := range a.cfg.Roles.Guardians {
		grants[id] = append(grants[id], domain.RoleGuardian)
	}
	return domain.NewAccessController(grants)
}

// buildMessenger constructs this node's messenger over the HTTP relay
// transport, with every configured chain registered as a trusted remote.
func (a *App) buildMessenger(deps *Dependencies) (*messaging.Messenger, error) {
	var signer messaging.MessageSigner
	if deps.Signer != nil {
		signer = deps.Signer
	}

	transport := messaging.NewHTTPTransport(
		a.cfg.Messenger.ChainID,
		a.cfg.Messenger.LocalAddress,
		signer,
		a.logger,
	)
	for _, ch := range a.cfg.Chains {
		if ch.Endpoint != "" {
			transport.SetEndpoint(ch.ChainID, ch.Endpoint)
		}
	}

	messenger := messaging.New(
		a.cfg.Messenger.ChainID,
		a.cfg.Messenger.LocalAddress,
		transport,
		deps.MessageStore,
		deps.FailedOpStore,
		a.logger,
	)
	for _, ch := range a.cfg.Chains {
		if err := messenger.AddRemote(messaging.Remote{ChainID: ch.ChainID, Address: ch.VaultAddress}); err != nil {
			return nil, fmt.Errorf("app: remote chain %d: %w", ch.ChainID, err)
		}
	}
	return messenger, nil
}

// startHTTPServer adds the HTTP server (and, when a signal bus is available,
// the WebSocket hub) to the errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, bus domain.SignalBus, handlers server.Handlers) {
	var hub *ws.Hub
	if bus != nil {
		hub = ws.NewHub(bus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	var adminHMAC *crypto.HMACAuth
	if a.cfg.Server.AdminHMACKey != "" && a.cfg.Server.AdminHMACSecret != "" {
		adminHMAC = &crypto.HMACAuth{
			Key:    a.cfg.Server.AdminHMACKey,
			Secret: a.cfg.Server.AdminHMACSecret,
		}
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		AdminHMAC:   adminHMAC,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	})
}

// startArchiveLoop periodically moves expired failure-log and audit rows to
// object storage. No-op when archival is not wired.
func (a *App) startArchiveLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}

	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				before := time.Now().UTC().Add(-retention)
				if n, err := deps.Archiver.ArchiveFailedOperations(ctx, before); err != nil {
					a.logger.ErrorContext(ctx, "archive failed operations", slog.String("error", err.Error()))
				} else if n > 0 {
					a.logger.InfoContext(ctx, "failed operations archived", slog.Int64("count", n))
				}
				if n, err := deps.Archiver.ArchiveAuditLog(ctx, before); err != nil {
					a.logger.ErrorContext(ctx, "archive audit log", slog.String("error", err.Error()))
				} else if n > 0 {
					a.logger.InfoContext(ctx, "audit log archived", slog.Int64("count", n))
				}
			}
		}
	})
}
