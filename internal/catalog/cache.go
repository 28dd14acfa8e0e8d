package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/rxstock/internal/core"
)

const keyPrefix = "rxstock:catalog:"

// missMarker is cached for barcodes the catalog does not know.
const missMarker = "-"

// redisCmds is the subset of *redis.Client the cache uses.
type redisCmds interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Cache is a read-through Redis cache in front of a core.Catalog. Barcode
// lookups (hits and misses), product reads and the category list are
// cached; name/brand searches always reach the catalog. Redis failures are
// logged and the call falls through to the catalog.
type Cache struct {
	next   core.Catalog
	rdb    redisCmds
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(next core.Catalog, rdb redisCmds, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

// Connect opens a Redis client from a redis:// URL and checks it with PING.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

func barcodeKey(barcode string) string { return keyPrefix + "barcode:" + barcode }
func productKey(id string) string      { return keyPrefix + "product:" + id }
func categoriesKey() string            { return keyPrefix + "categories" }

func (c *Cache) SearchByBarcode(ctx context.Context, barcode string) (*core.CatalogProduct, error) {
	key := barcodeKey(barcode)
	if raw, ok := c.get(ctx, key); ok {
		if raw == missMarker {
			return nil, nil
		}
		var p core.CatalogProduct
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			return &p, nil
		}
	}

	p, err := c.next.SearchByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	if p == nil {
		c.set(ctx, key, missMarker)
	} else {
		c.setJSON(ctx, key, p)
	}
	return p, nil
}

func (c *Cache) SearchByNameBrand(ctx context.Context, name, brand string) ([]core.CatalogProduct, error) {
	return c.next.SearchByNameBrand(ctx, name, brand)
}

func (c *Cache) ListCategories(ctx context.Context) ([]core.Category, error) {
	if raw, ok := c.get(ctx, categoriesKey()); ok {
		var cats []core.Category
		if err := json.Unmarshal([]byte(raw), &cats); err == nil {
			return cats, nil
		}
	}

	cats, err := c.next.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	c.setJSON(ctx, categoriesKey(), cats)
	return cats, nil
}

func (c *Cache) GetProduct(ctx context.Context, id string) (*core.CatalogProduct, error) {
	key := productKey(id)
	if raw, ok := c.get(ctx, key); ok {
		var p core.CatalogProduct
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			return &p, nil
		}
	}

	p, err := c.next.GetProduct(ctx, id)
	if err != nil || p == nil {
		return p, err
	}
	c.setJSON(ctx, key, p)
	return p, nil
}

// Invalidate drops cached entries touched by committed items: the barcode
// of every item and the product of every matched item.
func (c *Cache) Invalidate(ctx context.Context, items []core.CommitItem) {
	keys := make([]string, 0, 2*len(items))
	for _, it := range items {
		if it.Barcode != "" {
			keys = append(keys, barcodeKey(it.Barcode))
		}
		if it.CatalogProductID != "" {
			keys = append(keys, productKey(it.CatalogProductID))
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("catalog cache invalidation failed",
			"keys", len(keys),
			"error", err)
	}
}

// WrapStore returns an InventoryStore that invalidates the cache after each
// successful chunk, so new products and stock changes are seen by the next
// session.
func (c *Cache) WrapStore(store core.InventoryStore) core.InventoryStore {
	return invalidatingStore{next: store, cache: c}
}

type invalidatingStore struct {
	next  core.InventoryStore
	cache *Cache
}

func (s invalidatingStore) CommitBatch(ctx context.Context, sessionID uuid.UUID, items []core.CommitItem) error {
	if err := s.next.CommitBatch(ctx, sessionID, items); err != nil {
		return err
	}
	s.cache.Invalidate(context.WithoutCancel(ctx), items)
	return nil
}

func (c *Cache) get(ctx context.Context, key string) (string, bool) {
	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("catalog cache read failed", "key", key, "error", err)
		}
		return "", false
	}
	return raw, true
}

func (c *Cache) setJSON(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.set(ctx, key, string(data))
}

func (c *Cache) set(ctx context.Context, key, value string) {
	if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write failed", "key", key, "error", err)
	}
}
