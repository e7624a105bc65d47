package extractors

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"hnproxy/internal/fetch"
)

// DefaultExtractor uses go-readability primarily and goquery as a fallback.
type DefaultExtractor struct {
	client *fetch.Client
}

// NewDefaultExtractor constructs a DefaultExtractor that downloads pages
// with client.
func NewDefaultExtractor(client *fetch.Client) *DefaultExtractor {
	return &DefaultExtractor{client: client}
}

// Extract downloads articleURL and returns its readable content.
func (d *DefaultExtractor) Extract(ctx context.Context, articleURL string) (Article, error) {
	base, err := url.Parse(articleURL)
	if err != nil {
		return Article{}, fmt.Errorf("parsing url: %w", err)
	}
	body, err := d.client.GetBody(ctx, articleURL, map[string]string{"Accept": "text/html,application/xhtml+xml"})
	if err != nil {
		return Article{}, err
	}
	return extractFromHTML(body, base)
}

func extractFromHTML(body []byte, base *url.URL) (Article, error) {
	// First: try go-readability
	doc, err := readability.FromReader(bytes.NewReader(body), base)
	if err == nil && strings.TrimSpace(doc.Content) != "" {
		// Try to get meta tag images first, then fall back to content images
		imgs := extractImagesFromMetaTags(string(body), base)
		if len(imgs) == 0 {
			imgs = extractImagesFromHTMLWithBase(doc.Content, base)
		}
		return Article{
			URL:      base.String(),
			Title:    strings.TrimSpace(doc.Title),
			Byline:   strings.TrimSpace(doc.Byline),
			SiteName: doc.SiteName,
			Excerpt:  strings.TrimSpace(doc.Excerpt),
			Content:  sanitizeHTML(doc.Content),
			Images:   imgs,
		}, nil
	}

	// Second: goquery over common containers
	return extractWithSelectors(body, base)
}

// containerSelectors are tried in order when readability finds nothing.
var containerSelectors = []string{
	"article",
	"main",
	".article-body",
	".post-content",
	".entry-content",
	".content",
	".story-body",
}

func extractWithSelectors(body []byte, base *url.URL) (Article, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Article{}, err
	}

	for _, sel := range containerSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		s.Find("script, iframe, style, .ad, .advertisement, .promo, .related, .share").Remove()
		htmlStr, _ := s.Html()
		htmlStr = sanitizeHTML(htmlStr)
		if htmlStr == "" {
			continue
		}
		imgs := extractImagesFromMetaTags(string(body), base)
		if len(imgs) == 0 {
			imgs = extractImagesFromHTMLWithBase(htmlStr, base)
		}
		excerpt, _ := doc.Find(`meta[name="description"]`).Attr("content")
		return Article{
			URL:     base.String(),
			Title:   strings.TrimSpace(doc.Find("title").First().Text()),
			Excerpt: strings.TrimSpace(excerpt),
			Content: htmlStr,
			Images:  imgs,
		}, nil
	}

	return Article{}, ErrNoContent
}

// sanitizeHTML ensures consistent wrapping.
func sanitizeHTML(html string) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}
	if !strings.HasPrefix(html, "<div") {
		html = fmt.Sprintf(`<div class="hnproxy-article">%s</div>`, html)
	}
	return html
}

// extractImagesFromMetaTags extracts image URLs from Open Graph and Twitter Card meta tags.
func extractImagesFromMetaTags(html string, base *url.URL) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var images []string
	for _, sel := range []string{
		`meta[property="og:image"]`,
		`meta[name="twitter:image"]`,
		`meta[property="article:image"]`,
	} {
		if src, ok := doc.Find(sel).Attr("content"); ok && src != "" {
			images = append(images, resolveURL(base, src))
		}
	}
	return images
}

// extractImagesFromHTMLWithBase collects <img src> values as absolute urls.
func extractImagesFromHTMLWithBase(html string, base *url.URL) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var images []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		// Skip data URLs and very short URLs
		if !ok || strings.HasPrefix(src, "data:") || len(src) < 6 {
			return
		}
		images = append(images, resolveURL(base, src))
	})
	return images
}

// resolveURL makes href absolute against base.
func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
