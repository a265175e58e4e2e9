package auth

import (
	"sync"
	"sync/atomic"
	"time"
)

// tenantCache memoizes successful authentications for a fixed TTL. An entry
// past its deadline is still served while a single caller re-validates the
// key, so steady-state requests never wait on bcrypt or the database.
type tenantCache struct {
	ttl     time.Duration
	entries sync.Map // full API key -> *tenantEntry
}

type tenantEntry struct {
	tenant   *TenantContext
	deadline int64       // unix nanoseconds
	claimed  atomic.Bool // refresh claim, cleared by the next Put
}

func newTenantCache(ttl time.Duration) *tenantCache {
	return &tenantCache{ttl: ttl}
}

// Lookup returns the cached tenant for the key. ok is false on a miss.
// refresh is true for exactly one caller after the entry passes its
// deadline; that caller must re-validate the key out of band.
func (c *tenantCache) Lookup(key string) (tenant *TenantContext, refresh, ok bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		return nil, false, false
	}
	e := v.(*tenantEntry)
	if time.Now().UnixNano() < e.deadline {
		return e.tenant, false, true
	}
	return e.tenant, e.claimed.CompareAndSwap(false, true), true
}

// Put stores the tenant under the key with a fresh deadline.
func (c *tenantCache) Put(key string, tenant *TenantContext) {
	c.entries.Store(key, &tenantEntry{
		tenant:   tenant,
		deadline: time.Now().Add(c.ttl).UnixNano(),
	})
}

// Drop removes the key so the next Lookup misses.
func (c *tenantCache) Drop(key string) {
	c.entries.Delete(key)
}
