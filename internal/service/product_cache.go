package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"wtb-catalog/internal/domain"
	"wtb-catalog/internal/index"
	"wtb-catalog/internal/snapshot"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultRefreshInterval = time.Hour

var (
	ErrNoProductsFetched   = errors.New("no products fetched")
	ErrNoIndexableProducts = errors.New("no fetched product carries a sku")
)

// CatalogFetcher retrieves the full upstream product listing. Implementations
// return whatever was fetched before a failure alongside the error.
type CatalogFetcher interface {
	FetchAll(ctx context.Context) ([]domain.ProductRecord, error)
}

// SnapshotStore persists the index between restarts
type SnapshotStore interface {
	Load(ctx context.Context) (*snapshot.Snapshot, error)
	Save(ctx context.Context, idx *index.Index, at time.Time) error
}

// ProductCatalog is what the lookup front end needs from the cache
type ProductCatalog interface {
	FindBySkuAndVariant(sku, variant string) (*domain.ProductResult, error)
	FindBySkuAllSizes(sku string) (*domain.ProductSummary, error)
	FindBySkuWithVariants(sku string, variants []string) (*domain.MultiVariantResult, error)
	Status() domain.CacheStatus
	Refresh(ctx context.Context, force bool) error
}

// Options configures a ProductCache
type Options struct {
	BaseURL         string
	RefreshInterval time.Duration
}

// ProductCache serves lookups from an in-memory SKU index that is rebuilt
// from the upstream catalog or a stored snapshot. The index is replaced as a
// whole so lookups never observe a partially built one.
type ProductCache struct {
	fetcher CatalogFetcher
	store   SnapshotStore
	options Options
	logger  *zap.Logger

	index      atomic.Pointer[index.Index]
	lastUpdate atomic.Pointer[time.Time]
	refreshing atomic.Int32
	hasCache   atomic.Bool

	// serializes refresh bodies
	mu     sync.Mutex
	flight singleflight.Group
	now    func() time.Time
}

// NewProductCache creates an empty product cache
func NewProductCache(fetcher CatalogFetcher, store SnapshotStore, opts Options, logger *zap.Logger) *ProductCache {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}

	c := &ProductCache{
		fetcher: fetcher,
		store:   store,
		options: opts,
		logger:  logger.With(zap.String("component", "product_cache")),
		now:     time.Now,
	}
	c.index.Store(index.Empty())
	return c
}

// Refresh rebuilds the index. Unless force is set a valid stored snapshot is
// used instead of the network. Callers arriving while a refresh with the same
// force flag is running share its result. A caller whose ctx ends stops
// waiting, but the shared refresh runs to completion for the others.
func (c *ProductCache) Refresh(ctx context.Context, force bool) error {
	c.refreshing.Add(1)
	defer c.refreshing.Add(-1)

	flightCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(strconv.FormatBool(force), func() (interface{}, error) {
		// held for the life of the flight, independent of its callers
		c.refreshing.Add(1)
		defer c.refreshing.Add(-1)

		c.mu.Lock()
		defer c.mu.Unlock()
		return nil, c.refresh(flightCtx, force)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ProductCache) refresh(ctx context.Context, force bool) error {
	logger := c.logger.With(
		zap.String("refresh_id", uuid.NewString()),
		zap.Bool("force", force),
	)
	start := c.now()

	if !force && c.store != nil {
		if c.useSnapshot(ctx, logger) {
			return nil
		}
	}

	logger.Info("Fetching fresh product data")
	records, fetchErr := c.fetcher.FetchAll(ctx)
	if fetchErr != nil {
		logger.Warn("Catalog fetch incomplete",
			zap.Int("records", len(records)),
			zap.Error(fetchErr),
		)
	}

	if len(records) == 0 {
		logger.Warn("No products fetched, keeping existing cache")
		if fetchErr != nil {
			return fmt.Errorf("%w: %w", ErrNoProductsFetched, fetchErr)
		}
		return ErrNoProductsFetched
	}

	idx := index.Build(records)
	if idx.Len() == 0 {
		logger.Warn("Fetched products carry no SKU, keeping existing cache",
			zap.Int("records", len(records)),
		)
		return ErrNoIndexableProducts
	}

	updatedAt := c.now()
	c.publish(idx, updatedAt)

	logger.Info("Product cache refreshed",
		zap.Int("records", idx.Total()),
		zap.Int("products_with_sku", idx.Len()),
		zap.Int("products_without_sku", len(idx.Unindexed())),
		zap.Duration("duration", time.Since(start)),
	)

	if c.store != nil {
		if err := c.store.Save(ctx, idx, updatedAt); err != nil {
			logger.Error("Failed to save catalog snapshot", zap.Error(err))
		}
	}

	return nil
}

func (c *ProductCache) useSnapshot(ctx context.Context, logger *zap.Logger) bool {
	snap, err := c.store.Load(ctx)
	if err != nil {
		logger.Info("No usable catalog snapshot", zap.Error(err))
		return false
	}
	if len(snap.Records) == 0 {
		return false
	}

	idx := index.Build(snap.Records)
	if idx.Len() == 0 {
		logger.Warn("Catalog snapshot holds no SKU, ignoring it")
		return false
	}

	c.publish(idx, snap.LastUpdate)
	logger.Info("Using existing catalog snapshot",
		zap.Int("products_with_sku", idx.Len()),
		zap.Time("last_update", snap.LastUpdate),
	)
	return true
}

func (c *ProductCache) publish(idx *index.Index, at time.Time) {
	c.index.Store(idx)
	c.lastUpdate.Store(&at)
	c.hasCache.Store(true)
}

// StartBackgroundRefresh force refreshes the cache every refresh interval
// until ctx is cancelled. Failed cycles are logged and retried at the next tick.
func (c *ProductCache) StartBackgroundRefresh(ctx context.Context) error {
	timer := time.NewTimer(c.options.RefreshInterval)
	defer timer.Stop()

	c.logger.Info("Background refresh started", zap.Duration("interval", c.options.RefreshInterval))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Background refresh stopped")
			return ctx.Err()
		case <-timer.C:
			c.logger.Info("Scheduled cache refresh triggered")
			if err := c.Refresh(ctx, true); err != nil && ctx.Err() == nil {
				c.logger.Error("Scheduled cache refresh failed", zap.Error(err))
			}
			timer.Reset(c.options.RefreshInterval)
		}
	}
}

// Status returns a read-only view of the cache state
func (c *ProductCache) Status() domain.CacheStatus {
	status := domain.CacheStatus{
		IsRefreshing:  c.refreshing.Load() > 0,
		HasCache:      c.hasCache.Load(),
		ProductsCount: c.index.Load().Len(),
	}
	if last := c.lastUpdate.Load(); last != nil {
		t := *last
		status.LastUpdate = &t
	}
	return status
}
