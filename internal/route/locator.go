// Package route discovers swap paths between assets: direct pools via the
// factory, and two-hop paths through configured bridge assets.
package route

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityRouter/internal/model"
	"liquidityRouter/internal/venue"
)

const (
	// DefaultCacheTTL applies when no TTL is configured.
	DefaultCacheTTL = time.Hour
	// MaxCacheTTL caps configured TTLs.
	MaxCacheTTL = 24 * time.Hour
)

// tierKey identifies one cached lookup: a canonical pair plus a tier.
type tierKey struct {
	Token0      common.Address
	Token1      common.Address
	TickSpacing int32
}

type tierEntry struct {
	info     model.PoolInfo
	found    bool
	storedAt time.Time
}

// poolCache stores positive and negative lookups with a TTL. An expired
// entry is a miss, never evidence of pool absence.
type poolCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[tierKey]tierEntry
}

func newPoolCache(ttl time.Duration) *poolCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if ttl > MaxCacheTTL {
		ttl = MaxCacheTTL
	}
	return &poolCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[tierKey]tierEntry),
	}
}

func (c *poolCache) get(key tierKey) (model.PoolInfo, bool, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(entry.storedAt) > c.ttl {
		return model.PoolInfo{}, false, false
	}
	return entry.info, entry.found, true
}

func (c *poolCache) put(key tierKey, info model.PoolInfo, found bool) {
	c.mu.Lock()
	c.entries[key] = tierEntry{info: info, found: found, storedAt: c.now()}
	c.mu.Unlock()
}

// Locator finds the pool for an asset pair by probing tick-spacing tiers in
// a configured priority order against the factory. The first verified match
// wins; the search is not exhaustive-then-best.
type Locator struct {
	factory  venue.Factory
	pools    venue.PoolReader
	spacings []int32
	cache    *poolCache
	logger   *zap.Logger
}

// LocatorConfig configures a Locator.
type LocatorConfig struct {
	// TickSpacings is the tier probe order.
	TickSpacings []int32
	// CacheTTL bounds how long lookups (including negative ones) are
	// reused. Zero means DefaultCacheTTL; values above MaxCacheTTL clamp.
	CacheTTL time.Duration
	// DisableCache turns off lookup caching entirely.
	DisableCache bool
}

func NewLocator(factory venue.Factory, pools venue.PoolReader, cfg LocatorConfig, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	locator := &Locator{
		factory:  factory,
		pools:    pools,
		spacings: cfg.TickSpacings,
		logger:   logger,
	}
	if !cfg.DisableCache {
		locator.cache = newPoolCache(cfg.CacheTTL)
	}
	return locator
}

// TickSpacings returns the configured tier probe order.
func (l *Locator) TickSpacings() []int32 {
	return l.spacings
}

// FindPool returns the first pool found for the pair across the configured
// tiers, or found=false if no tier has one.
func (l *Locator) FindPool(ctx context.Context, assetA, assetB common.Address) (model.PoolInfo, bool, error) {
	if assetA == assetB {
		return model.PoolInfo{}, false, fmt.Errorf("identical assets %s", assetA.Hex())
	}
	token0, token1 := CanonicalPair(assetA, assetB)

	for _, spacing := range l.spacings {
		info, found, err := l.lookupTier(ctx, token0, token1, spacing)
		if err != nil {
			return model.PoolInfo{}, false, err
		}
		if found {
			return info, true, nil
		}
	}
	return model.PoolInfo{}, false, nil
}

func (l *Locator) lookupTier(ctx context.Context, token0, token1 common.Address, spacing int32) (model.PoolInfo, bool, error) {
	key := tierKey{Token0: token0, Token1: token1, TickSpacing: spacing}
	if l.cache != nil {
		if info, found, ok := l.cache.get(key); ok {
			return info, found, nil
		}
	}

	poolAddr, err := l.factory.GetPool(ctx, token0, token1, spacing)
	if err != nil {
		return model.PoolInfo{}, false, fmt.Errorf("factory lookup: %w", err)
	}
	if poolAddr == (common.Address{}) {
		if l.cache != nil {
			l.cache.put(key, model.PoolInfo{}, false)
		}
		return model.PoolInfo{}, false, nil
	}

	info, err := l.pools.Metadata(ctx, poolAddr)
	if err != nil {
		return model.PoolInfo{}, false, fmt.Errorf("pool %s metadata: %w", poolAddr.Hex(), err)
	}
	// The factory answer is only trusted after the pool itself confirms
	// the canonical pair.
	if info.Token0 != token0 || info.Token1 != token1 {
		l.logger.Warn("factory returned mismatched pool",
			zap.String("pool", poolAddr.Hex()),
			zap.String("token0", token0.Hex()),
			zap.String("token1", token1.Hex()),
		)
		if l.cache != nil {
			l.cache.put(key, model.PoolInfo{}, false)
		}
		return model.PoolInfo{}, false, nil
	}

	if l.cache != nil {
		l.cache.put(key, info, true)
	}
	return info, true, nil
}

// CanonicalPair orders two assets lower-identifier-first.
func CanonicalPair(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		return b, a
	}
	return a, b
}
