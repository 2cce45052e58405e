package ocspclient

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is a supplemental, off-by-default in-memory OCSP response cache
// keyed by CertID, bounded by the earlier of the response's own
// nextUpdate (when the responder supplied one) and an administrative
// ceiling TTL. It exists purely to avoid refetching a fresh-enough
// response under load; a disabled cache (TTL <= 0) makes the pipeline
// behave exactly as if it did not exist (§8: "pure w.r.t. inputs").
//
// Concurrent lookups for the same CertID are collapsed with
// singleflight so a burst of requests for one certificate triggers a
// single OCSP round trip.
type Cache struct {
	ttl    time.Duration
	group  singleflight.Group
	mu     sync.Mutex
	byKey  map[string]cacheEntry
}

type cacheEntry struct {
	validated *Validated
	expiresAt time.Time
}

// NewCache builds a Cache with the given ceiling TTL. A non-positive ttl
// disables caching: Fetch always calls fn.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, byKey: make(map[string]cacheEntry)}
}

// Fetch returns a cached, still-fresh Validated result for certID, or
// calls fn to obtain one and caches it for min(ttl, its own freshness
// window) before returning.
func (c *Cache) Fetch(ctx context.Context, certID CertID, fn func(ctx context.Context) (*Validated, error)) (*Validated, error) {
	if c == nil || c.ttl <= 0 {
		return fn(ctx)
	}

	key := cacheKey(certID)

	c.mu.Lock()
	if entry, ok := c.byKey[key]; ok && time.Now().Before(entry.expiresAt) {
		c.mu.Unlock()
		return entry.validated, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		expiresAt := time.Now().Add(c.ttl)
		if result.NextUpdate != nil && result.NextUpdate.Before(expiresAt) {
			expiresAt = *result.NextUpdate
		}
		c.mu.Lock()
		c.byKey[key] = cacheEntry{validated: result, expiresAt: expiresAt}
		c.mu.Unlock()
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Validated), nil
}

func cacheKey(id CertID) string {
	return hex.EncodeToString(id.IssuerNameHash) + ":" +
		hex.EncodeToString(id.IssuerKeyHash) + ":" +
		id.SerialNumber.String()
}
