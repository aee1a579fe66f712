package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/relaygate/relaygate/internal/store"
)

// volatileFields never participate in cache keys: they change per request
// without changing the meaning of the call.
var volatileFields = []string{
	"attempt",
	"request_id",
	"requestId",
	"dispatch_id",
	"trace_id",
	"timestamp",
	"nonce",
	"idempotency_key",
}

// ResponseCache stores successful dispatch results for read-like,
// deterministic capabilities. Side-effecting capabilities (an email send, a
// payment capture) must never be listed as cacheable.
type ResponseCache struct {
	store store.Store
	ttl   time.Duration

	mu        sync.RWMutex
	cacheable map[string]bool
}

// NewResponseCache creates a cache with the given TTL and the set of
// cache-eligible capabilities.
func NewResponseCache(st store.Store, ttl time.Duration, cacheableCapabilities []string) *ResponseCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &ResponseCache{store: st, ttl: ttl, cacheable: make(map[string]bool)}
	c.UpdateCacheable(cacheableCapabilities)
	return c
}

// Eligible reports whether results for the capability may be cached.
func (c *ResponseCache) Eligible(capability string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cacheable[capability]
}

// UpdateCacheable replaces the cache-eligible capability set at runtime.
func (c *ResponseCache) UpdateCacheable(capabilities []string) {
	next := make(map[string]bool, len(capabilities))
	for _, cap := range capabilities {
		next[cap] = true
	}
	c.mu.Lock()
	c.cacheable = next
	c.mu.Unlock()
}

// BuildKey derives the content-addressed cache key for a call. The payload is
// canonicalized (encoding/json sorts map keys) and volatile fields are
// stripped before hashing, so two semantically identical calls always share
// one key.
func (c *ResponseCache) BuildKey(providerCode, capability string, payload map[string]any) (string, error) {
	canonical, err := canonicalPayload(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload for %s/%s: %w", providerCode, capability, err)
	}
	sum := sha256.Sum256([]byte(providerCode + "\x00" + capability + "\x00" + canonical))
	return "cache:" + hex.EncodeToString(sum[:]), nil
}

// canonicalPayload renders the payload as stable JSON without volatile
// fields. Top-level volatile fields are removed wherever they appear.
func canonicalPayload(payload map[string]any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	doc := string(b)
	for _, field := range volatileFields {
		if gjson.Get(doc, field).Exists() {
			doc, err = sjson.Delete(doc, field)
			if err != nil {
				return "", err
			}
		}
	}
	return doc, nil
}

// Get looks up a cached result. A hit returns a copy with Meta["source"]
// set to "cache".
func (c *ResponseCache) Get(ctx context.Context, key string) (*Result, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Warnf("cache lookup failed: %v", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		log.Warnf("discarding undecodable cache entry: %v", err)
		_ = c.store.Delete(ctx, key)
		return nil, false
	}
	if res.Meta == nil {
		res.Meta = make(map[string]any)
	}
	res.Meta["source"] = SourceCache
	return &res, true
}

// Set stores a successful result under the key. Unsuccessful results are
// rejected outright; callers must not cache failures.
func (c *ResponseCache) Set(ctx context.Context, key string, res *Result) error {
	if res == nil || !res.Success {
		return fmt.Errorf("cache: only successful results are cacheable")
	}
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("cache: encode result: %w", err)
	}
	return c.store.Set(ctx, key, string(b), c.ttl)
}
