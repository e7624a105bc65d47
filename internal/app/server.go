// internal/app/server.go
package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"hnproxy/internal/cache"
	"hnproxy/internal/extractors"
	"hnproxy/internal/extractors/filters"
	"hnproxy/internal/fetch"
	"hnproxy/internal/hn"
	"hnproxy/internal/logger"
	"hnproxy/internal/metrics"
	"hnproxy/internal/stories"
)

// Server is the application server.
type Server struct {
	cfg     *Config
	log     *zap.Logger
	stories *stories.Service
	engine  *stories.Engine
	// article extraction
	extractors *extractors.Registry
	urlFilter  *filters.FilterRegistry
	articles   *cache.Cache[articleResponse]

	registry *prometheus.Registry
	mux      *http.ServeMux
	shutdown chan struct{}
	started  time.Time
}

// NewServer creates a new Server with provided config.
func NewServer(cfg *Config, log *zap.Logger) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log = logger.OrNop(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.New(reg, "hnproxy")

	// upstream client; retries stay off unless configured
	upstream := fetch.NewClient(fetch.ClientOptions{
		Timeout:   cfg.RequestTimeout(),
		UserAgent: cfg.Upstream.UserAgent,
		RetryMax:  cfg.Upstream.RetryMax,
		Logger:    log,
	})

	svc := stories.NewService(hn.NewClient(upstream, cfg.Upstream.BaseURL), stories.Options{
		CacheDuration:         cfg.CacheDuration(),
		MaxConcurrentRequests: cfg.Upstream.MaxConcurrentRequests,
		Logger:                log.Named("stories"),
		Metrics:               rec,
		CacheMetrics:          rec,
	})
	svc.TrackSizes(rec.TrackSize)

	// article pages come from arbitrary sites, so they get their own client
	pages := fetch.NewClient(fetch.ClientOptions{
		Timeout:   cfg.ArticleTimeout(),
		UserAgent: cfg.Article.UserAgent,
		RetryMax:  1,
		Logger:    log,
	})
	r := extractors.NewRegistry()
	r.RegisterDefault(extractors.NewDefaultExtractor(pages))
	for _, site := range cfg.Article.Sites {
		r.RegisterDomain(site.Domain, extractors.NewSiteExtractor(pages, site.Selectors...))
	}

	articles := cache.New[articleResponse]("article", rec)
	rec.TrackSize(articles.Name(), articles.Len)

	s := &Server{
		cfg:        cfg,
		log:        log,
		stories:    svc,
		engine:     stories.NewEngine(svc, cfg.Query.MaxStories, log.Named("query")),
		extractors: r,
		urlFilter:  filters.NewFilterRegistry(cfg.Article.Filters...),
		articles:   articles,
		registry:   reg,
		mux:        http.NewServeMux(),
		shutdown:   make(chan struct{}),
		started:    time.Now(),
	}

	s.registerRoutes()
	return s, nil
}

// Engine returns the query engine the HTTP handlers use.
func (s *Server) Engine() *stories.Engine { return s.engine }

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.withLogging(s.withRecovery(s.withCommonHeaders(s.mux))))
}

// Run starts the HTTP server and background workers and blocks until ctx
// is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context, addr string) error {
	// start cache cleaner
	go s.cacheCleanerLoop()
	defer close(s.shutdown)

	h := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Server listening", zap.String("addr", addr))
		errCh <- h.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return h.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleHome)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.mux.HandleFunc("GET /api/stories/newest", s.handleNewest)
	s.mux.HandleFunc("GET /api/stories/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/stories/health", s.handleStoriesHealth)
	s.mux.HandleFunc("GET /api/stories/newest.rss", s.handleFeed(feedRSS))
	s.mux.HandleFunc("GET /api/stories/newest.atom", s.handleFeed(feedAtom))
	s.mux.HandleFunc("GET /api/stories/{id}/article", s.handleArticle)
}

// handleHome serves a short HTML page describing the API.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	const homeHTML = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<title>hnproxy</title>
	<style>
		body { font-family: system-ui, sans-serif; max-width: 760px; margin: 40px auto; color: #333; }
		code { background: #f1f3f4; padding: 2px 6px; border-radius: 4px; }
		li { margin: 6px 0; }
	</style>
</head>
<body>
	<h1>hnproxy</h1>
	<p>Cached, paginated access to the newest Hacker News stories.</p>
	<ul>
		<li><code>GET /api/stories/newest?page=1&amp;pageSize=20&amp;search=go</code></li>
		<li><code>GET /api/stories/search?query=golang&amp;page=1&amp;pageSize=20</code></li>
		<li><code>GET /api/stories/newest.rss</code>, <code>GET /api/stories/newest.atom</code></li>
		<li><code>GET /api/stories/{id}/article</code></li>
		<li><code>GET /health</code>, <code>GET /metrics</code></li>
	</ul>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(homeHTML))
}

// handleHealth returns JSON health information.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sizes := s.stories.CacheSizes()
	sizes[s.articles.Name()] = s.articles.Len()

	health := map[string]interface{}{
		"status":     "ok",
		"service":    "hnproxy",
		"cache_size": sizes,
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"timestamp":  time.Now().Format(time.RFC3339),
	}
	writeJSON(w, http.StatusOK, health)
}

// cacheCleanerLoop periodically sweeps expired cache entries.
func (s *Server) cacheCleanerLoop() {
	ticker := time.NewTicker(s.cfg.SweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.shutdown:
			return
		}
	}
}

func (s *Server) sweep() {
	s.stories.Sweep()
	s.articles.DeleteExpired()
	s.log.Debug("Cache swept", zap.Any("sizes", s.stories.CacheSizes()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
