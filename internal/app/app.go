// Package app owns the node lifecycle: it wires stores, caches, blob storage,
// signing, and notifications, then runs the goroutines for the selected
// operating mode (home ledger, child vault, monitor, or simulation).
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/omnivault/omnivault/internal/config"
)

// App is the root object handed to main. Cleanup functions registered during
// wiring run in reverse order when Close is called.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New builds an App around validated configuration.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies, dispatches to the configured mode, and blocks until
// the context is cancelled or the mode returns.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting node",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	run, ok := map[string]func(context.Context, *Dependencies) error{
		"home":    a.HomeMode,
		"child":   a.ChildMode,
		"monitor": a.MonitorMode,
		"sim":     a.SimMode,
	}[strings.ToLower(a.cfg.Mode)]
	if !ok {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
	return run(ctx, deps)
}

// Close releases resources in reverse registration order. Safe to call more
// than once.
func (a *App) Close() {
	a.logger.Info("shutting down node")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
