package domain

import (
	"context"
	"time"
)

// MetricsCache provides fast access to the latest per-chain metrics used by
// the rebalancing engine and the monitoring surface.
type MetricsCache interface {
	SetMetrics(ctx context.Context, m ChainMetrics) error
	GetMetrics(ctx context.Context, chainID uint32) (ChainMetrics, error)
	GetAll(ctx context.Context, chainIDs []uint32) (map[uint32]ChainMetrics, error)
}

// LockManager provides distributed locking so that only one rebalance runner
// instance executes at a time.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of vault events to the websocket hub and
// external monitors.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
