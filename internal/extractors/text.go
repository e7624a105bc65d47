package extractors

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText renders an HTML fragment (such as an item's text) as
// whitespace-collapsed plain text.
func PlainText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	// paragraph tags carry no whitespace in upstream text
	html = strings.NewReplacer("<p>", " <p>", "<br>", " <br>").Replace(html)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Summarize trims an HTML fragment to a plain text summary of at most
// limit runes, ellipsis included.
func Summarize(html string, limit int) string {
	plain := PlainText(html)
	runes := []rune(plain)
	if len(runes) <= limit {
		return plain
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return strings.TrimSpace(string(runes[:limit-3])) + "..."
}
