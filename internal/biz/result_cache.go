package biz

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"KuroAccounts/internal/conf"
	"KuroAccounts/internal/data"
	"KuroAccounts/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheSize = 10000
	defaultCacheTTL  = 5 * time.Minute
)

// CacheStats is a snapshot of a ResultCache's counters.
type CacheStats struct {
	Name   string
	Size   int
	Hits   int64
	Misses int64
}

// keyState is the bookkeeping of one busy key.
type keyState struct {
	gen     uint64 // bumped by Invalidate
	holders int    // remote reads and computes in flight
	writes  int    // remote sets and deletes in flight
	epoch   uint64 // bumped when a remote write starts or ends
}

// ticket is what a reader or compute saw of its key when it started. A
// result is only kept if the key has not changed since.
type ticket struct {
	gen   uint64
	epoch uint64
}

// ResultCache memoizes computed values per key in an expirable LRU, backed by
// an optional remote cache. Concurrent misses for one key share a single
// compute. Failed computes are never stored.
type ResultCache[V any] struct {
	name   string
	ttl    time.Duration
	local  *expirable.LRU[string, V]
	remote data.CacheClient
	group  singleflight.Group

	// keys tracks the keys with a read, compute or remote write in flight.
	// An entry is dropped as soon as the key is idle.
	mu   sync.Mutex
	keys map[string]*keyState

	hits   atomic.Int64
	misses atomic.Int64
	logger *log.Helper
}

// NewResultCache creates a cache named name. remote may be nil.
func NewResultCache[V any](name string, c *conf.Cache, remote data.CacheClient, logger log.Logger) *ResultCache[V] {
	size, ttl := defaultCacheSize, defaultCacheTTL
	if c != nil {
		if c.Size > 0 {
			size = c.Size
		}
		if c.TTL > 0 {
			ttl = c.TTL
		}
	}

	return &ResultCache[V]{
		name:   name,
		ttl:    ttl,
		local:  expirable.NewLRU[string, V](size, nil, ttl),
		remote: remote,
		keys:   make(map[string]*keyState),
		logger: log.NewHelper(logger),
	}
}

// NewCustomerDetailsCache creates the cache of aggregated customer views.
// The remote layer is used only when c.Remote is set.
func NewCustomerDetailsCache(c *conf.Cache, remote data.CacheClient, logger log.Logger) *ResultCache[*model.CustomerDetails] {
	if c == nil || !c.Remote {
		remote = nil
	}
	return NewResultCache[*model.CustomerDetails](data.CacheKeyCustomerDetails, c, remote, logger)
}

// GetOrCompute returns the cached value of key, or runs compute on a miss.
// The compute is detached from ctx: a caller that gives up returns ctx.Err()
// while the compute completes for the other waiters and the cache.
func (c *ResultCache[V]) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (V, error)) (V, error) {
	var zero V

	if v, ok := c.local.Get(key); ok {
		c.hits.Add(1)
		return v, nil
	}

	if c.remote != nil {
		t := c.acquire(key)
		v, ok := c.getRemote(ctx, key)
		promoted := ok && c.promote(key, t, v)
		c.release(key)
		if promoted {
			c.hits.Add(1)
			return v, nil
		}
	}

	c.misses.Add(1)
	computeCtx := context.WithoutCancel(ctx)

	results := c.group.DoChan(key, func() (interface{}, error) {
		t := c.acquire(key)
		defer c.release(key)

		v, err := compute(computeCtx)
		if err != nil {
			return nil, err
		}
		c.store(computeCtx, key, t, v)
		return v, nil
	})

	select {
	case res := <-results:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Invalidate drops key from both layers. A compute or remote read already
// in flight for key will not store its result.
func (c *ResultCache[V]) Invalidate(ctx context.Context, key string) {
	c.mu.Lock()
	st := c.keys[key]
	if st != nil {
		st.gen++
	}
	c.local.Remove(key)
	c.group.Forget(key)
	if c.remote == nil {
		c.mu.Unlock()
		return
	}
	if st == nil {
		st = &keyState{}
		c.keys[key] = st
	}
	st.writes++
	st.epoch++
	c.mu.Unlock()

	if err := c.remote.Delete(ctx, c.remoteKey(key)); err != nil {
		c.logger.Warnw("msg", "failed to invalidate remote cache entry",
			"cache", c.name,
			"key", key,
			"error", err)
	}
	c.endWrite(key, st)
}

// Stats returns the current size and counters.
func (c *ResultCache[V]) Stats() CacheStats {
	return CacheStats{
		Name:   c.name,
		Size:   c.local.Len(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

func (c *ResultCache[V]) acquire(key string) ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.keys[key]
	if st == nil {
		st = &keyState{}
		c.keys[key] = st
	}
	st.holders++
	return ticket{gen: st.gen, epoch: st.epoch}
}

func (c *ResultCache[V]) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.keys[key]
	st.holders--
	c.dropIdle(key, st)
}

func (c *ResultCache[V]) endWrite(key string, st *keyState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st.writes--
	st.epoch++
	c.dropIdle(key, st)
}

// dropIdle must be called with c.mu held.
func (c *ResultCache[V]) dropIdle(key string, st *keyState) {
	if st.holders == 0 && st.writes == 0 {
		delete(c.keys, key)
	}
}

// promote copies a remote hit into the local layer unless the key was
// invalidated or written since t was taken, in which case the remote value
// may be stale.
func (c *ResultCache[V]) promote(key string, t ticket, v V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.keys[key]
	if st.gen != t.gen || st.epoch != t.epoch || st.writes > 0 {
		return false
	}
	c.local.Add(key, v)
	return true
}

func (c *ResultCache[V]) store(ctx context.Context, key string, t ticket, v V) {
	c.mu.Lock()
	st := c.keys[key]
	if st.gen != t.gen {
		c.mu.Unlock()
		c.logger.Debugw("msg", "discarding result computed before invalidation", "cache", c.name, "key", key)
		return
	}
	c.local.Add(key, v)
	if c.remote == nil {
		c.mu.Unlock()
		return
	}
	st.writes++
	st.epoch++
	c.mu.Unlock()

	if err := c.remote.Set(ctx, c.remoteKey(key), v, c.ttl); err != nil {
		c.logger.Warnw("msg", "failed to write remote cache entry (degraded mode)",
			"cache", c.name,
			"key", key,
			"error", err)
	} else {
		c.mu.Lock()
		stale := st.gen != t.gen
		c.mu.Unlock()
		// An Invalidate that ran during the write may have deleted before we set.
		if stale {
			_ = c.remote.Delete(ctx, c.remoteKey(key))
		}
	}
	c.endWrite(key, st)
}

func (c *ResultCache[V]) getRemote(ctx context.Context, key string) (V, bool) {
	var v V
	if c.remote == nil {
		return v, false
	}

	err := c.remote.Get(ctx, c.remoteKey(key), &v)
	if err == nil {
		return v, true
	}
	if !errors.Is(err, data.ErrCacheNotFound) {
		c.logger.Warnw("msg", "remote cache read failed (degraded mode)",
			"cache", c.name,
			"key", key,
			"error", err)
	}
	return v, false
}

func (c *ResultCache[V]) remoteKey(key string) string {
	return data.BuildCacheKey(c.name, key)
}
