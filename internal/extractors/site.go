package extractors

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"hnproxy/internal/fetch"
)

// noiseSelector matches page furniture removed from site content.
const noiseSelector = "script, style, iframe, noscript, .ad, .advertisement, .social-share, .share, .related"

// SiteExtractor pulls content out of a known site layout with CSS
// selectors, tried in order. Pages where none match go through the
// readability path.
type SiteExtractor struct {
	client    *fetch.Client
	selectors []string
}

// NewSiteExtractor creates a SiteExtractor for the given selectors.
func NewSiteExtractor(client *fetch.Client, selectors ...string) *SiteExtractor {
	return &SiteExtractor{client: client, selectors: selectors}
}

// Extract implements the Extractor interface.
func (s *SiteExtractor) Extract(ctx context.Context, articleURL string) (Article, error) {
	base, err := url.Parse(articleURL)
	if err != nil {
		return Article{}, fmt.Errorf("parsing url: %w", err)
	}
	body, err := s.client.GetBody(ctx, articleURL, map[string]string{"Accept": "text/html,application/xhtml+xml"})
	if err != nil {
		return Article{}, err
	}

	if a, ok := s.extractFromHTML(body, base); ok {
		return a, nil
	}
	return extractFromHTML(body, base)
}

func (s *SiteExtractor) extractFromHTML(body []byte, base *url.URL) (Article, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Article{}, false
	}

	for _, sel := range s.selectors {
		content := doc.Find(sel).First()
		if content.Length() == 0 {
			continue
		}
		content.Find(noiseSelector).Remove()

		raw, err := content.Html()
		if err != nil {
			continue
		}
		htmlStr := sanitizeHTML(raw)
		if htmlStr == "" {
			continue
		}

		images := extractImagesFromMetaTags(string(body), base)
		if len(images) == 0 {
			images = extractImagesFromHTMLWithBase(htmlStr, base)
		}
		return Article{
			URL:      base.String(),
			Title:    metaOr(doc, `meta[property="og:title"]`, doc.Find("title").First().Text()),
			SiteName: metaOr(doc, `meta[property="og:site_name"]`, ""),
			Excerpt:  metaOr(doc, `meta[property="og:description"]`, metaOr(doc, `meta[name="description"]`, "")),
			Content:  htmlStr,
			Images:   images,
		}, true
	}
	return Article{}, false
}

func metaOr(doc *goquery.Document, sel, fallback string) string {
	if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(fallback)
}
