package extractors

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ErrNoContent is returned when no readable content could be found.
var ErrNoContent = errors.New("no main article content found")

// Article is the readable form of a page a story links to.
type Article struct {
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Byline   string   `json:"byline,omitempty"`
	SiteName string   `json:"siteName,omitempty"`
	Excerpt  string   `json:"excerpt,omitempty"`
	Content  string   `json:"content"`
	Images   []string `json:"images,omitempty"`
}

// Extractor extracts the main content of the page at url.
type Extractor interface {
	Extract(ctx context.Context, url string) (Article, error)
}

// Registry holds registered extractors and default fallback.
type Registry struct {
	defaultExtractor Extractor
	domains          map[string]Extractor
}

func NewRegistry() *Registry {
	return &Registry{domains: make(map[string]Extractor)}
}

func (r *Registry) RegisterDefault(e Extractor) {
	r.defaultExtractor = e
}

// RegisterDomain routes urls on domain (and its subdomains) to e.
func (r *Registry) RegisterDomain(domain string, e Extractor) {
	r.domains[strings.ToLower(domain)] = e
}

// ForURL returns the best extractor for the URL.
func (r *Registry) ForURL(rawURL string) Extractor {
	if u, err := url.Parse(rawURL); err == nil {
		host := strings.ToLower(u.Hostname())
		for host != "" {
			if e, ok := r.domains[host]; ok {
				return e
			}
			_, rest, found := strings.Cut(host, ".")
			if !found {
				break
			}
			host = rest
		}
	}
	if r.defaultExtractor != nil {
		return r.defaultExtractor
	}
	return defaultExtractorStub{}
}

// defaultExtractorStub is a last-resort extractor.
type defaultExtractorStub struct{}

func (defaultExtractorStub) Extract(context.Context, string) (Article, error) {
	return Article{}, ErrNoContent
}
