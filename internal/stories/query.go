package stories

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"hnproxy/internal/hn"
)

// Query is a validated request: Page >= 1, PageSize in [1, 100].
type Query struct {
	Page     int
	PageSize int
	// Search filters Newest by title and text.
	Search string
	// Query filters Search by title, text and author.
	Query string
}

// Page is one slice of a filtered story listing.
type Page struct {
	Stories    []hn.Item `json:"stories"`
	TotalCount int       `json:"totalCount"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
}

// Retriever is what the Engine needs from a Service.
type Retriever interface {
	CurrentIDs(ctx context.Context) []int
	Stories(ctx context.Context, ids []int) []hn.Item
}

var _ Retriever = (*Service)(nil)

// Engine answers newest and search queries over the current listing.
type Engine struct {
	source     Retriever
	maxStories int
	log        *zap.Logger
}

// NewEngine returns an Engine reading at most maxStories ids per query
// (MaxStories when maxStories is not positive or larger).
func NewEngine(source Retriever, maxStories int, log *zap.Logger) *Engine {
	if maxStories <= 0 || maxStories > MaxStories {
		maxStories = MaxStories
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{source: source, maxStories: maxStories, log: log}
}

// Newest pages through the newest stories, keeping those whose title or
// text contains q.Search when it is not blank.
func (e *Engine) Newest(ctx context.Context, q Query) Page {
	e.log.Info("Getting newest stories",
		zap.Int("page", q.Page), zap.Int("pageSize", q.PageSize), zap.String("search", q.Search))
	return e.run(ctx, q, titleOrText(q.Search))
}

// Search pages through stories whose title, text or author contains
// q.Query. A blank query is the unfiltered newest listing.
func (e *Engine) Search(ctx context.Context, q Query) Page {
	if strings.TrimSpace(q.Query) == "" {
		return e.Newest(ctx, Query{Page: q.Page, PageSize: q.PageSize})
	}
	e.log.Info("Searching stories",
		zap.String("query", q.Query), zap.Int("page", q.Page), zap.Int("pageSize", q.PageSize))
	return e.run(ctx, q, titleTextOrAuthor(q.Query))
}

func (e *Engine) run(ctx context.Context, q Query, keep func(hn.Item) bool) Page {
	ids := e.source.CurrentIDs(ctx)
	if len(ids) == 0 {
		e.log.Warn("No story IDs returned from upstream")
		return Paginate(nil, q.Page, q.PageSize)
	}
	if len(ids) > e.maxStories {
		ids = ids[:e.maxStories]
	}

	p := Paginate(Filter(e.source.Stories(ctx, ids), keep), q.Page, q.PageSize)
	e.log.Info("Retrieved stories", zap.Int("count", len(p.Stories)), zap.Int("total", p.TotalCount))
	return p
}

// Filter returns the items keep accepts, in their original order.
// A nil keep accepts everything.
func Filter(items []hn.Item, keep func(hn.Item) bool) []hn.Item {
	if keep == nil {
		return items
	}
	out := make([]hn.Item, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// Paginate slices items into page number page of size pageSize. Pages
// past the end are empty but still carry the totals.
func Paginate(items []hn.Item, page, pageSize int) Page {
	p := Page{
		Stories:    []hn.Item{},
		TotalCount: len(items),
		Page:       page,
		PageSize:   pageSize,
	}
	if pageSize <= 0 || len(items) == 0 {
		return p
	}
	p.TotalPages = (len(items) + pageSize - 1) / pageSize

	// compare pages before multiplying so huge page numbers cannot wrap
	if page > p.TotalPages {
		return p
	}
	skip := max(page-1, 0) * pageSize
	end := min(skip+pageSize, len(items))
	p.Stories = append(p.Stories, items[skip:end]...)
	return p
}

func titleOrText(term string) func(hn.Item) bool {
	if strings.TrimSpace(term) == "" {
		return nil
	}
	t := strings.ToLower(term)
	return func(it hn.Item) bool {
		return contains(it.Title, t) || contains(it.TextOrEmpty(), t)
	}
}

func titleTextOrAuthor(term string) func(hn.Item) bool {
	t := strings.ToLower(term)
	return func(it hn.Item) bool {
		return contains(it.Title, t) || contains(it.TextOrEmpty(), t) || contains(it.By, t)
	}
}

func contains(s, lowerTerm string) bool {
	return strings.Contains(strings.ToLower(s), lowerTerm)
}
