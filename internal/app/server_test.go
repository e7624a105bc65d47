package app

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap/zaptest"

	"hnproxy/internal/extractors"
	"hnproxy/internal/hn"
	"hnproxy/internal/stories"
)

const readablePage = `<!DOCTYPE html>
<html><head>
<title>Notes on Caching Upstream APIs</title>
<meta property="og:image" content="/img/cache.png">
</head><body>
<nav>Home | Archive</nav>
<article>
<h1>Notes on Caching Upstream APIs</h1>
<p>A proxy that fronts a public API spends most of its time waiting on the network. Keeping the
most recent answers in memory for a few minutes removes almost all of that waiting for readers
who arrive close together, and it keeps the upstream service from seeing the same request
hundreds of times.</p>
<p>The list of identifiers changes quickly, so it gets a short lifetime. Individual records change
rarely, so they can live longer. Both are dropped lazily when they are read after expiry, and a
periodic sweep removes the entries nobody asked for again.</p>
<p>Concurrency needs a ceiling as well: a burst of cold reads should queue politely for a permit
rather than open hundreds of sockets at once against a service that never asked for them.</p>
</article>
<footer>Copyright</footer>
</body></html>`

type fakeHN struct {
	srv   *httptest.Server
	items map[int]hn.Item
	ids   []int
	hits  atomic.Int32
}

func strp(s string) *string { return &s }

// newFakeHN serves 30 stories, newest (highest id) first. Story 1030
// links to a readable page on the same server, 1029 is a self post, and
// 1028 points at a blocked domain.
func newFakeHN(t *testing.T) *fakeHN {
	t.Helper()
	f := &fakeHN{items: map[int]hn.Item{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v0/newstories.json", func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		_ = json.NewEncoder(w).Encode(f.ids)
	})
	mux.HandleFunc("GET /v0/item/{file}", func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		id, err := strconv.Atoi(strings.TrimSuffix(r.PathValue("file"), ".json"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		it, ok := f.items[id]
		if !ok {
			_, _ = w.Write([]byte("null"))
			return
		}
		_ = json.NewEncoder(w).Encode(it)
	})
	mux.HandleFunc("GET /pages/readable", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, readablePage)
	})
	mux.HandleFunc("GET /pages/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	for id := 1030; id > 1000; id-- {
		it := hn.Item{
			ID:    id,
			Title: fmt.Sprintf("Story number %d", id),
			By:    "user" + strconv.Itoa(id%3),
			Time:  1_700_000_000 + int64(id),
			Type:  "story",
			URL:   strp(fmt.Sprintf("https://example.com/%d", id)),
		}
		switch id {
		case 1030:
			it.Title = "Notes on Caching Upstream APIs"
			it.URL = strp(f.srv.URL + "/pages/readable")
		case 1029:
			it.Title = "Ask HN: How do you test proxies?"
			it.URL = nil
			it.Text = strp("<p>I keep writing <i>fake upstreams</i> and wonder if there is a better way.</p>")
			it.By = "alice"
		case 1028:
			it.URL = strp("https://twitter.com/someone/status/1")
		case 1027:
			it.URL = strp(f.srv.URL + "/pages/broken")
		}
		f.ids = append(f.ids, id)
		f.items[id] = it
	}
	return f
}

func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *fakeHN) {
	t.Helper()
	up := newFakeHN(t)

	cfg := DefaultConfig()
	cfg.Upstream.BaseURL = up.srv.URL + "/v0"
	if mutate != nil {
		mutate(cfg)
	}
	s, err := NewServer(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s, up
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, h, httptest.NewRequest(http.MethodGet, target, nil))
}

func decodePage(t *testing.T, rr *httptest.ResponseRecorder) apiResponse[stories.Page] {
	t.Helper()
	var resp apiResponse[stories.Page]
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding %q: %v", rr.Body.String(), err)
	}
	return resp
}

func pageIDs(p stories.Page) []int {
	out := make([]int, 0, len(p.Stories))
	for _, it := range p.Stories {
		out = append(out, it.ID)
	}
	return out
}

func TestNewestDefaults(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rr := get(t, s.Handler(), "/api/stories/newest")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}

	resp := decodePage(t, rr)
	if !resp.Success {
		t.Errorf("success = false, message %q", resp.Message)
	}
	p := resp.Data
	if p.Page != 1 || p.PageSize != 20 || p.TotalCount != 30 || p.TotalPages != 2 {
		t.Errorf("page meta = %+v", p)
	}
	if len(p.Stories) != 20 || p.Stories[0].ID != 1030 || p.Stories[19].ID != 1011 {
		t.Errorf("stories = %v, want 1030..1011 in upstream order", pageIDs(p))
	}
}

func TestNewestSecondPageAndSearch(t *testing.T) {
	s, _ := newTestServer(t, nil)

	p := decodePage(t, get(t, s.Handler(), "/api/stories/newest?page=2&pageSize=20")).Data
	if diff := cmp.Diff([]int{1010, 1009, 1008, 1007, 1006, 1005, 1004, 1003, 1002, 1001}, pageIDs(p)); diff != "" {
		t.Errorf("page 2 (-want +got):\n%s", diff)
	}

	p = decodePage(t, get(t, s.Handler(), "/api/stories/newest?search=FAKE+upstreams")).Data
	if diff := cmp.Diff([]int{1029}, pageIDs(p)); diff != "" {
		t.Errorf("text search (-want +got):\n%s", diff)
	}

	// newest never matches on author
	p = decodePage(t, get(t, s.Handler(), "/api/stories/newest?search=alice")).Data
	if p.TotalCount != 0 || p.Stories == nil {
		t.Errorf("author search on newest = %+v, want empty non-nil page", p)
	}
}

func TestNewestClampsPageSize(t *testing.T) {
	s, _ := newTestServer(t, nil)
	p := decodePage(t, get(t, s.Handler(), "/api/stories/newest?pageSize=150")).Data
	if p.PageSize != 100 || len(p.Stories) != 30 || p.TotalPages != 1 {
		t.Errorf("page = size %d, %d stories, %d pages", p.PageSize, len(p.Stories), p.TotalPages)
	}
}

func TestInvalidParameters(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, target := range []string{
		"/api/stories/newest?page=0",
		"/api/stories/newest?pageSize=0",
		"/api/stories/newest?page=-3",
		"/api/stories/newest?pageSize=abc",
		"/api/stories/search?query=x&page=two",
	} {
		t.Run(target, func(t *testing.T) {
			rr := get(t, s.Handler(), target)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			resp := decodePage(t, rr)
			if resp.Success || resp.Message != "Invalid parameters provided" {
				t.Errorf("envelope = %+v", resp)
			}
			if resp.Data.Stories == nil || len(resp.Data.Stories) != 0 {
				t.Errorf("data.stories = %v, want []", resp.Data.Stories)
			}
		})
	}
}

func TestSearchMatchesAuthor(t *testing.T) {
	s, _ := newTestServer(t, nil)
	resp := decodePage(t, get(t, s.Handler(), "/api/stories/search?query=ALICE"))
	if !resp.Success {
		t.Fatalf("envelope = %+v", resp)
	}
	if diff := cmp.Diff([]int{1029}, pageIDs(resp.Data)); diff != "" {
		t.Errorf("search (-want +got):\n%s", diff)
	}

	// blank query behaves like newest
	blank := decodePage(t, get(t, s.Handler(), "/api/stories/search?query=%20%20&pageSize=5")).Data
	newest := decodePage(t, get(t, s.Handler(), "/api/stories/newest?pageSize=5")).Data
	if diff := cmp.Diff(newest, blank); diff != "" {
		t.Errorf("blank search differs from newest (-newest +search):\n%s", diff)
	}
}

func TestIDListCachedAcrossRequests(t *testing.T) {
	s, up := newTestServer(t, nil)
	get(t, s.Handler(), "/api/stories/newest")
	first := up.hits.Load()
	get(t, s.Handler(), "/api/stories/newest?page=2")
	get(t, s.Handler(), "/api/stories/search?query=story")
	if got := up.hits.Load(); got != first {
		t.Errorf("upstream hits went from %d to %d on warm cache", first, got)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t, nil)

	var short map[string]any
	rr := get(t, s.Handler(), "/api/stories/health")
	if err := json.Unmarshal(rr.Body.Bytes(), &short); err != nil {
		t.Fatal(err)
	}
	if short["status"] != "healthy" || short["timestamp"] == "" {
		t.Errorf("stories health = %v", short)
	}

	get(t, s.Handler(), "/api/stories/newest?pageSize=5")
	var health struct {
		Status    string         `json:"status"`
		Service   string         `json:"service"`
		CacheSize map[string]int `json:"cache_size"`
	}
	rr = get(t, s.Handler(), "/health")
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Service != "hnproxy" {
		t.Errorf("health = %+v", health)
	}
	if health.CacheSize["idlist"] != 1 || health.CacheSize["item"] != 30 {
		t.Errorf("cache sizes = %v", health.CacheSize)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)
	get(t, s.Handler(), "/api/stories/newest")

	body := get(t, s.Handler(), "/metrics").Body.String()
	for _, want := range []string{
		`hnproxy_cache_entries{cache="item"} 30`,
		`hnproxy_cache_misses_total{cache="idlist"} 1`,
		`hnproxy_upstream_requests_total{endpoint="item",outcome="ok"} 30`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stories/health", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	rr := do(t, s.Handler(), req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:4200" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("credentials not allowed for a listed origin")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/stories/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = do(t, s.Handler(), req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin got Allow-Origin %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/stories/newest", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr = do(t, s.Handler(), req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Methods"), "GET") {
		t.Errorf("Allow-Methods = %q", rr.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestCORSAnyOrigin(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) { c.CORS.AllowedOrigins = nil })
	req := httptest.NewRequest(http.MethodGet, "/api/stories/health", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	if got := do(t, s.Handler(), req).Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}

func TestRequestID(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rr := get(t, s.Handler(), "/api/stories/health")
	if len(rr.Header().Get("X-Request-ID")) != 36 {
		t.Errorf("generated X-Request-ID = %q, want a uuid", rr.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stories/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	if got := do(t, s.Handler(), req).Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want the caller's id", got)
	}
}

func TestRecovery(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.withRecovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rr := get(t, h, "/boom")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	var resp apiResponse[map[string]any]
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Success || resp.Message != "An internal server error occurred" {
		t.Errorf("envelope = %+v", resp)
	}
}

func TestRSSFeed(t *testing.T) {
	s, up := newTestServer(t, nil)
	rr := get(t, s.Handler(), "/api/stories/newest.rss?pageSize=5")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/rss+xml") {
		t.Errorf("Content-Type = %q", ct)
	}

	feed, err := gofeed.NewParser().ParseString(rr.Body.String())
	if err != nil {
		t.Fatalf("parsing rss: %v", err)
	}
	if feed.FeedType != "rss" || len(feed.Items) != 5 {
		t.Fatalf("feed type %q with %d items", feed.FeedType, len(feed.Items))
	}

	first := feed.Items[0]
	if first.Link != up.srv.URL+"/pages/readable" {
		t.Errorf("first link = %q", first.Link)
	}
	if first.GUID != extractors.GenerateGUIDFromURL("https://news.ycombinator.com/item?id=1030") {
		t.Errorf("first guid = %q", first.GUID)
	}

	// self posts link to the discussion and summarize their text
	ask := feed.Items[1]
	if ask.Link != "https://news.ycombinator.com/item?id=1029" {
		t.Errorf("self post link = %q", ask.Link)
	}
	if !strings.Contains(ask.Description, "fake upstreams") || strings.Contains(ask.Description, "<i>") {
		t.Errorf("self post description = %q", ask.Description)
	}
}

func TestAtomFeed(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rr := get(t, s.Handler(), "/api/stories/newest.atom?search=ask+hn")
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/atom+xml") {
		t.Errorf("Content-Type = %q", ct)
	}
	feed, err := gofeed.NewParser().ParseString(rr.Body.String())
	if err != nil {
		t.Fatalf("parsing atom: %v", err)
	}
	if feed.FeedType != "atom" || len(feed.Items) != 1 || feed.Items[0].Title != "Ask HN: How do you test proxies?" {
		t.Errorf("feed = %s with %d items", feed.FeedType, len(feed.Items))
	}
}

func TestFeedRejectsInvalidParameters(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, target := range []string{"/api/stories/newest.rss?page=0", "/api/stories/newest.atom?pageSize=x"} {
		rr := get(t, s.Handler(), target)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("%s: Content-Type = %q", target, ct)
		}
		if resp := decodePage(t, rr); resp.Success || resp.Message != "Invalid parameters provided" {
			t.Errorf("%s: envelope = %+v", target, resp)
		}
	}
}

func TestHugePageIsEmpty(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rr := get(t, s.Handler(), "/api/stories/newest?page=100000000000000000&pageSize=100")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	p := decodePage(t, rr).Data
	if len(p.Stories) != 0 || p.Page != 100000000000000000 || p.TotalCount != 30 {
		t.Errorf("page = %d with %d stories (total %d), want no stories", p.Page, len(p.Stories), p.TotalCount)
	}
}

func decodeArticle(t *testing.T, rr *httptest.ResponseRecorder) apiResponse[*articleResponse] {
	t.Helper()
	var resp apiResponse[*articleResponse]
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding %q: %v", rr.Body.String(), err)
	}
	return resp
}

func TestArticle(t *testing.T) {
	s, up := newTestServer(t, nil)

	rr := get(t, s.Handler(), "/api/stories/1030/article")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	resp := decodeArticle(t, rr)
	a := resp.Data
	if !resp.Success || a == nil {
		t.Fatalf("envelope = %+v", resp)
	}
	if a.ID != 1030 || a.URL != up.srv.URL+"/pages/readable" {
		t.Errorf("article id/url = %d %q", a.ID, a.URL)
	}
	if !strings.Contains(a.Content, "queue politely for a permit") {
		t.Errorf("content = %q", a.Content)
	}
	if len(a.Images) == 0 || a.Images[0] != up.srv.URL+"/img/cache.png" {
		t.Errorf("images = %v", a.Images)
	}

	// served from the article cache afterwards
	if s.articles.Len() != 1 {
		t.Errorf("article cache holds %d entries, want 1", s.articles.Len())
	}
	again := decodeArticle(t, get(t, s.Handler(), "/api/stories/1030/article")).Data
	if again == nil || again.Content != a.Content {
		t.Error("cached article differs from the first response")
	}
}

func TestArticleErrors(t *testing.T) {
	s, _ := newTestServer(t, nil)
	tests := []struct {
		target string
		status int
	}{
		{"/api/stories/1029/article", http.StatusNotFound},   // self post
		{"/api/stories/999/article", http.StatusNotFound},    // unknown item
		{"/api/stories/1028/article", http.StatusForbidden},  // blocked domain
		{"/api/stories/1027/article", http.StatusBadGateway}, // page fetch fails
		{"/api/stories/abc/article", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rr := get(t, s.Handler(), tt.target)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.status, rr.Body)
			}
			if resp := decodeArticle(t, rr); resp.Success || resp.Message == "" {
				t.Errorf("envelope = %+v", resp)
			}
		})
	}
}

func TestArticleDisabled(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) { c.Article.Enabled = false })
	if rr := get(t, s.Handler(), "/api/stories/1030/article"); rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestSweepDropsExpiredArticles(t *testing.T) {
	s, _ := newTestServer(t, nil)
	s.articles.Set("1", articleResponse{ID: 1}, -1)
	s.articles.Set("2", articleResponse{ID: 2}, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	s.sweep()
	if n := s.articles.Len(); n != 1 {
		t.Errorf("article cache holds %d entries after sweep, want 1", n)
	}
}
