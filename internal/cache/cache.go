// Package cache keeps successful result sets for the lifetime of the process,
// keyed by the normalized statement text.
//
// Entries never expire and are never evicted. A cached answer may be stale
// once the underlying reviews change; callers that mutate the store should
// build a new Cache.
package cache

import (
	"context"
	"strings"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/review-agent/backend/internal/executor"
	"github.com/review-agent/backend/internal/sanitize"
)

// Normalize folds case, trims, collapses whitespace runs and drops the
// trailing terminator. String literals are folded too, so statements that
// differ only in literal case share a key.
func Normalize(statement string) string {
	s := strings.Join(strings.Fields(statement), " ")
	s = strings.TrimRight(s, sanitize.Terminator+" ")
	return strings.ToLower(s)
}

type Cache struct {
	items *ttlcache.Cache[string, executor.ResultSet]
}

func New() *Cache {
	return &Cache{
		items: ttlcache.New[string, executor.ResultSet](
			ttlcache.WithDisableTouchOnHit[string, executor.ResultSet](),
		),
	}
}

// Get looks up a statement. The returned rows are shared and must be
// treated as read-only.
func (c *Cache) Get(statement string) (executor.ResultSet, bool) {
	item := c.items.Get(Normalize(statement))
	if item == nil {
		return executor.ResultSet{}, false
	}
	return item.Value(), true
}

func (c *Cache) Put(statement string, rs executor.ResultSet) {
	c.items.Set(Normalize(statement), rs, ttlcache.NoTTL)
}

func (c *Cache) Len() int {
	return c.items.Len()
}

// Runner executes one statement.
type Runner interface {
	Execute(ctx context.Context, statement string) executor.Outcome
}

// Reader serves statements from the cache and otherwise runs them once per
// normalized key, however many callers ask concurrently. It never stores:
// the pipeline puts a result only after its success has been audited.
type Reader struct {
	cache *Cache
	next  Runner
	group singleflight.Group

	// OnLookup, if set, observes every lookup.
	OnLookup func(hit bool)
}

func NewReader(cache *Cache, next Runner) *Reader {
	return &Reader{cache: cache, next: next}
}

func (r *Reader) Execute(ctx context.Context, statement string) executor.Outcome {
	if rs, ok := r.cache.Get(statement); ok {
		r.observe(true)
		return executor.Outcome{Result: rs, Cached: true}
	}
	r.observe(false)

	// The shared run ignores caller cancellation; the executor's timeout
	// bounds it.
	ch := r.group.DoChan(Normalize(statement), func() (any, error) {
		return r.next.Execute(context.WithoutCancel(ctx), statement), nil
	})
	select {
	case res := <-ch:
		if err := ctx.Err(); err != nil {
			return abandoned(err)
		}
		return res.Val.(executor.Outcome)
	case <-ctx.Done():
		return abandoned(ctx.Err())
	}
}

func abandoned(err error) executor.Outcome {
	return executor.Failed(executor.RuntimeError, err.Error())
}

func (r *Reader) observe(hit bool) {
	if r.OnLookup != nil {
		r.OnLookup(hit)
	}
}
