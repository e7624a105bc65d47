package stories

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hnproxy/internal/cache"
	"hnproxy/internal/hn"
)

const (
	DefaultCacheDuration         = 5 * time.Minute
	DefaultMaxConcurrentRequests = 10
	// MaxStories caps how many ids of the list are retrieved per query.
	MaxStories = 500
)

// Upstream is the part of the Hacker News API the pipeline reads.
type Upstream interface {
	NewStoryIDs(ctx context.Context) ([]int, error)
	Item(ctx context.Context, id int) (hn.Item, error)
}

var _ Upstream = (*hn.Client)(nil)

// Metrics observes upstream traffic. NoopMetrics is the default.
type Metrics interface {
	Upstream(endpoint, outcome string, d time.Duration)
	InFlight(delta int)
	Waiting(delta int)
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

func (NoopMetrics) Upstream(string, string, time.Duration) {}
func (NoopMetrics) InFlight(int)                           {}
func (NoopMetrics) Waiting(int)                            {}

var _ Metrics = NoopMetrics{}

// Options configures a Service. Zero values get the defaults above.
type Options struct {
	// CacheDuration is the id list TTL; items live twice as long.
	CacheDuration         time.Duration
	MaxConcurrentRequests int
	Logger                *zap.Logger
	Metrics               Metrics
	CacheMetrics          cache.Metrics
}

func (o Options) withDefaults() Options {
	if o.CacheDuration <= 0 {
		o.CacheDuration = DefaultCacheDuration
	}
	if o.MaxConcurrentRequests <= 0 {
		o.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.CacheMetrics == nil {
		o.CacheMetrics = cache.NoopMetrics{}
	}
	return o
}
