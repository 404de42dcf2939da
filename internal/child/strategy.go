package child

import (
	"context"
	"fmt"
	"sync"

	"github.com/omnivault/omnivault/internal/domain"
)

// Strategy is the yield-farming collaborator a child vault deploys capital
// into. Swap routing, pool math, and reward harvesting live behind this
// contract; the child ledger only consumes it.
type Strategy interface {
	Invest(ctx context.Context, amount int64) error
	Divest(ctx context.Context, amount int64) (actual int64, err error)
	CurrentNAV(ctx context.Context) (int64, error)
	PendingRewards(ctx context.Context) (int64, error)
	HarvestRewards(ctx context.Context) (int64, error)
}

// SimStrategy is a deterministic in-process strategy used by the sim mode and
// tests. Yield accrues only when Accrue is called, keeping tests clock-free.
type SimStrategy struct {
	mu      sync.Mutex
	nav     int64
	pending int64
}

// NewSimStrategy creates a strategy holding the given seed NAV.
func NewSimStrategy(seedNAV int64) *SimStrategy {
	return &SimStrategy{nav: seedNAV}
}

// Invest implements Strategy.
func (s *SimStrategy) Invest(_ context.Context, amount int64) error {
	if amount <= 0 {
		return domain.ErrZeroAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nav += amount
	return nil
}

// Divest implements Strategy. It liquidates up to amount and returns what was
// actually released.
func (s *SimStrategy) Divest(_ context.Context, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrZeroAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount > s.nav {
		amount = s.nav
	}
	s.nav -= amount
	return amount, nil
}

// CurrentNAV implements Strategy.
func (s *SimStrategy) CurrentNAV(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav, nil
}

// PendingRewards implements Strategy.
func (s *SimStrategy) PendingRewards(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, nil
}

// HarvestRewards implements Strategy. Pending rewards are folded into NAV.
func (s *SimStrategy) HarvestRewards(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	harvested := s.pending
	s.nav += harvested
	s.pending = 0
	return harvested, nil
}

// Accrue credits simulated yield as pending rewards: amountBps of the current
// NAV. Sim and test hook.
func (s *SimStrategy) Accrue(amountBps int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending += domain.MulDiv(s.nav, amountBps, 10_000)
}

func (s *SimStrategy) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("sim(nav=%s pending=%s)", domain.FormatAmount(s.nav), domain.FormatAmount(s.pending))
}

// Compile-time interface check.
var _ Strategy = (*SimStrategy)(nil)
