package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/warelane/warelane/internal/masterdata"
)

// ProductCache keeps recent barcode lookups in Redis. Scanning is bursty;
// the same barcode is often scanned dozens of times in one session, so a
// short TTL takes most of that load off the database. Cache failures are
// treated as misses.
type ProductCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewProductCache constructs ProductCache.
func NewProductCache(rdb *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{rdb: rdb, ttl: ttl}
}

func barcodeKey(code string) string {
	return fmt.Sprintf("scan:barcode:%s", code)
}

// Get returns the cached product for a barcode, if present.
func (c *ProductCache) Get(ctx context.Context, code string) (masterdata.Product, bool) {
	if c == nil || c.rdb == nil {
		return masterdata.Product{}, false
	}
	raw, err := c.rdb.Get(ctx, barcodeKey(code)).Bytes()
	if err != nil {
		return masterdata.Product{}, false
	}
	var p masterdata.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return masterdata.Product{}, false
	}
	return p, true
}

// Set stores a product under its barcode.
func (c *ProductCache) Set(ctx context.Context, code string, p masterdata.Product) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, barcodeKey(code), raw, c.ttl)
}
