package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omnivault/omnivault/internal/domain"
)

const metricsTTL = 30 * time.Minute

// MetricsCache implements domain.MetricsCache using JSON-serialized values
// under per-chain keys.
//
// Key schema:
//
//	chain:metrics:{chainID} - JSON-encoded ChainMetrics
type MetricsCache struct {
	rdb *redis.Client
}

// NewMetricsCache creates a MetricsCache backed by the given Client.
func NewMetricsCache(c *Client) *MetricsCache {
	return &MetricsCache{rdb: c.Underlying()}
}

func metricsKey(chainID uint32) string {
	return "chain:metrics:" + strconv.FormatUint(uint64(chainID), 10)
}

// SetMetrics stores the latest metrics for a chain with a 30-minute TTL. The
// TTL makes stale entries self-evict when a chain stops reporting.
func (mc *MetricsCache) SetMetrics(ctx context.Context, m domain.ChainMetrics) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: marshal metrics for chain %d: %w", m.ChainID, err)
	}
	if err := mc.rdb.Set(ctx, metricsKey(m.ChainID), data, metricsTTL).Err(); err != nil {
		return fmt.Errorf("redis: set metrics for chain %d: %w", m.ChainID, err)
	}
	return nil
}

// GetMetrics retrieves the latest metrics for a chain.
// It returns domain.ErrNotFound when no entry exists.
func (mc *MetricsCache) GetMetrics(ctx context.Context, chainID uint32) (domain.ChainMetrics, error) {
	data, err := mc.rdb.Get(ctx, metricsKey(chainID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ChainMetrics{}, domain.ErrNotFound
		}
		return domain.ChainMetrics{}, fmt.Errorf("redis: get metrics for chain %d: %w", chainID, err)
	}

	var m domain.ChainMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.ChainMetrics{}, fmt.Errorf("redis: unmarshal metrics for chain %d: %w", chainID, err)
	}
	return m, nil
}

// GetAll retrieves metrics for the given chains in one round trip using MGET.
// Chains without a cache entry are omitted from the result map.
func (mc *MetricsCache) GetAll(ctx context.Context, chainIDs []uint32) (map[uint32]domain.ChainMetrics, error) {
	if len(chainIDs) == 0 {
		return map[uint32]domain.ChainMetrics{}, nil
	}

	keys := make([]string, len(chainIDs))
	for i, id := range chainIDs {
		keys[i] = metricsKey(id)
	}

	values, err := mc.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: mget metrics: %w", err)
	}

	out := make(map[uint32]domain.ChainMetrics, len(chainIDs))
	for i, v := range values {
		if v == nil {
			continue
		}
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var m domain.ChainMetrics
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("redis: unmarshal metrics for chain %d: %w", chainIDs[i], err)
		}
		out[chainIDs[i]] = m
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.MetricsCache = (*MetricsCache)(nil)
