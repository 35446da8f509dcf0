package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/terralinea/geosql-engine/pkg/apperrors"
)

// Cache holds a single swappable catalog snapshot for the process lifetime.
// Readers always observe a complete snapshot; refresh introspects outside the
// lock and only briefly takes it to swap the pointer. A failed refresh keeps
// the previous snapshot authoritative.
type Cache struct {
	introspector Introspector
	maxAge       time.Duration // 0 disables time-based refresh
	logger       *zap.Logger

	mu   sync.RWMutex
	snap *Snapshot

	// loadMu serializes introspection so concurrent cold-start Gets and
	// Refreshes do not run duplicate passes.
	loadMu sync.Mutex

	refreshing sync.Mutex // guards the background refresh trigger
	inFlight   bool
}

// NewCache creates a cache around the given introspector. maxAge is the
// coarse staleness interval after which Get schedules a background refresh;
// 0 means snapshots never go stale on their own.
func NewCache(introspector Introspector, maxAge time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		introspector: introspector,
		maxAge:       maxAge,
		logger:       logger.Named("catalog"),
	}
}

// Get returns the current snapshot. It introspects synchronously only on
// cold start or after Invalidate; otherwise the held snapshot is returned
// without touching the database. Snapshots older than maxAge trigger a
// background refresh but are still returned immediately.
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()

	if snap == nil {
		return c.load(ctx, false)
	}

	if c.maxAge > 0 && time.Since(snap.LoadedAt) > c.maxAge {
		c.refreshInBackground()
	}
	return snap, nil
}

// Refresh forces a new introspection pass and atomically replaces the held
// snapshot. On failure the previous snapshot, if any, stays in place and is
// returned alongside the error so callers can keep serving.
func (c *Cache) Refresh(ctx context.Context) (*Snapshot, error) {
	return c.load(ctx, true)
}

// load runs one introspection pass. With force=false it is a cold-start
// load: if another caller finished a load while we waited on loadMu, that
// snapshot is returned without introspecting again.
func (c *Cache) load(ctx context.Context, force bool) (*Snapshot, error) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	c.mu.RLock()
	prev := c.snap
	c.mu.RUnlock()

	if !force && prev != nil {
		return prev, nil
	}

	snap, err := c.introspector.Introspect(ctx)
	if err != nil {
		if prev != nil {
			c.logger.Warn("catalog refresh failed, keeping previous snapshot",
				zap.Time("loaded_at", prev.LoadedAt),
				zap.Error(err))
			return prev, fmt.Errorf("refresh catalog: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCatalogUnavailable, err)
	}

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	c.logger.Info("catalog snapshot swapped", zap.Int("tables", snap.Len()))
	return snap, nil
}

// Invalidate drops the held snapshot; the next Get introspects synchronously.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}

// refreshInBackground starts at most one asynchronous refresh at a time.
func (c *Cache) refreshInBackground() {
	c.refreshing.Lock()
	if c.inFlight {
		c.refreshing.Unlock()
		return
	}
	c.inFlight = true
	c.refreshing.Unlock()

	go func() {
		defer func() {
			c.refreshing.Lock()
			c.inFlight = false
			c.refreshing.Unlock()
		}()
		if _, err := c.Refresh(context.Background()); err != nil {
			c.logger.Warn("background catalog refresh failed", zap.Error(err))
		}
	}()
}
