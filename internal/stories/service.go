package stories

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hnproxy/internal/cache"
	"hnproxy/internal/hn"
)

const idListKey = "idlist"

// Service resolves the current id list and the live items behind it.
type Service struct {
	upstream Upstream
	fetcher  *Fetcher
	ids      *cache.Cache[[]int]
	items    *cache.Cache[hn.Item]
	ttl      time.Duration
	log      *zap.Logger
	metrics  Metrics
}

// NewService builds the two caches and the bounded fetcher around up.
func NewService(up Upstream, opts Options) *Service {
	opts = opts.withDefaults()
	items := cache.New[hn.Item]("item", opts.CacheMetrics)
	return &Service{
		upstream: up,
		fetcher: NewFetcher(up, items, opts.MaxConcurrentRequests, 2*opts.CacheDuration,
			opts.Logger.Named("fetcher"), opts.Metrics),
		ids:     cache.New[[]int]("idlist", opts.CacheMetrics),
		items:   items,
		ttl:     opts.CacheDuration,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
}

// Fetcher exposes the bounded item fetcher.
func (s *Service) Fetcher() *Fetcher { return s.fetcher }

// CurrentIDs returns the newest story ids in upstream order. Any failure
// yields an empty list, which callers treat as "no data". The returned
// slice is shared with the cache and must not be modified.
func (s *Service) CurrentIDs(ctx context.Context) []int {
	if ids, ok := s.ids.Get(idListKey); ok {
		s.log.Debug("Returning cached newest story IDs")
		return ids
	}

	s.log.Info("Fetching newest story IDs from upstream")
	start := time.Now()
	ids, err := s.upstream.NewStoryIDs(ctx)
	if err != nil {
		s.metrics.Upstream("newstories", "error", time.Since(start))
		s.log.Error("Error fetching newest story IDs", zap.Error(err))
		return []int{}
	}
	s.metrics.Upstream("newstories", "ok", time.Since(start))
	if ids == nil {
		ids = []int{}
	}

	s.ids.Set(idListKey, ids, s.ttl)
	s.log.Info("Fetched newest story IDs", zap.Int("count", len(ids)))
	return ids
}

// Stories fetches every id concurrently and waits for all of them. The
// result keeps the order of ids and leaves out items that failed to load
// or are deleted or dead.
func (s *Service) Stories(ctx context.Context, ids []int) []hn.Item {
	fetched := make([]hn.Item, len(ids))
	found := make([]bool, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			fetched[i], found[i] = s.fetcher.Story(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]hn.Item, 0, len(ids))
	for i := range ids {
		if found[i] && fetched[i].Live() {
			out = append(out, fetched[i])
		}
	}
	if dropped := len(ids) - len(out); dropped > 0 {
		s.log.Debug("Dropped unavailable or dead stories", zap.Int("dropped", dropped), zap.Int("requested", len(ids)))
	}
	return out
}

// Sweep removes expired entries from both caches.
func (s *Service) Sweep() {
	s.ids.DeleteExpired()
	s.items.DeleteExpired()
}

// CacheSizes reports resident entries per cache.
func (s *Service) CacheSizes() map[string]int {
	return map[string]int{
		s.ids.Name():   s.ids.Len(),
		s.items.Name(): s.items.Len(),
	}
}

// TrackSizes hands each cache's size function to track.
func (s *Service) TrackSizes(track func(cache string, size func() int)) {
	track(s.ids.Name(), s.ids.Len)
	track(s.items.Name(), s.items.Len)
}
