package stories

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"hnproxy/internal/cache"
	"hnproxy/internal/hn"
)

// Fetcher loads single items from upstream with at most maxConcurrent
// calls in flight. It is the only writer of the item cache.
type Fetcher struct {
	upstream Upstream
	items    *cache.Cache[hn.Item]
	permits  *semaphore.Weighted
	flight   singleflight.Group
	ttl      time.Duration
	log      *zap.Logger
	metrics  Metrics
}

// NewFetcher returns a Fetcher that caches items for ttl.
func NewFetcher(up Upstream, items *cache.Cache[hn.Item], maxConcurrent int, ttl time.Duration, log *zap.Logger, m Metrics) *Fetcher {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRequests
	}
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = NoopMetrics{}
	}
	return &Fetcher{
		upstream: up,
		items:    items,
		permits:  semaphore.NewWeighted(int64(maxConcurrent)),
		ttl:      ttl,
		log:      log,
		metrics:  m,
	}
}

func itemKey(id int) string { return "item:" + strconv.Itoa(id) }

// Story returns the item for id, or false when it could not be loaded.
// Cache hits never wait for a permit. Concurrent misses for the same id
// share one upstream call, and a caller giving up does not cancel it.
func (f *Fetcher) Story(ctx context.Context, id int) (hn.Item, bool) {
	key := itemKey(id)
	if it, ok := f.items.Get(key); ok {
		return it, true
	}

	// The shared load outlives any one caller; each caller stops waiting
	// on its own ctx. The HTTP client timeout still bounds the call.
	ch := f.flight.DoChan(key, func() (any, error) {
		return f.load(context.WithoutCancel(ctx), id, key)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return hn.Item{}, false
		}
		return res.Val.(hn.Item), true
	case <-ctx.Done():
		return hn.Item{}, false
	}
}

func (f *Fetcher) load(ctx context.Context, id int, key string) (hn.Item, error) {
	f.metrics.Waiting(1)
	err := f.permits.Acquire(ctx, 1)
	f.metrics.Waiting(-1)
	if err != nil {
		f.log.Debug("Gave up waiting for upstream permit", zap.Int("id", id), zap.Error(err))
		return hn.Item{}, err
	}
	defer f.permits.Release(1)

	f.metrics.InFlight(1)
	defer f.metrics.InFlight(-1)

	start := time.Now()
	it, err := f.upstream.Item(ctx, id)
	if err != nil {
		outcome := "error"
		if errors.Is(err, hn.ErrNotFound) {
			outcome = "not_found"
		}
		f.metrics.Upstream("item", outcome, time.Since(start))
		f.log.Warn("Error fetching story", zap.Int("id", id), zap.Error(err))
		return hn.Item{}, err
	}
	f.metrics.Upstream("item", "ok", time.Since(start))

	f.items.Set(key, it, f.ttl)
	return it, nil
}
