// internal/app/feed_handler.go
package app

import (
	"net/http"
	"time"

	"github.com/gorilla/feeds"
	"go.uber.org/zap"

	"hnproxy/internal/extractors"
	"hnproxy/internal/hn"
	"hnproxy/internal/stories"
)

type feedFormat int

const (
	feedRSS feedFormat = iota
	feedAtom
)

const summaryLimit = 300

// handleFeed renders a newest page as RSS or Atom. It takes the same
// query parameters as the JSON endpoint and fails with the same envelope.
func (s *Server) handleFeed(format feedFormat) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, ok := s.parseQuery(r)
		if !ok {
			writeJSON(w, http.StatusBadRequest, apiResponse[stories.Page]{Data: emptyPage(), Message: msgInvalidParams})
			return
		}
		q.Search = r.URL.Query().Get("search")

		page := s.engine.Newest(r.Context(), q)
		feed := buildFeed(page, selfURL(r))

		var (
			body        string
			err         error
			contentType string
		)
		switch format {
		case feedAtom:
			body, err = feed.ToAtom()
			contentType = "application/atom+xml; charset=utf-8"
		default:
			body, err = feed.ToRss()
			contentType = "application/rss+xml; charset=utf-8"
		}
		if err != nil {
			s.log.Error("Failed to render feed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, apiResponse[struct{}]{Message: "Failed to render feed"})
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=60")
		_, _ = w.Write([]byte(body))
	}
}

func buildFeed(page stories.Page, link string) *feeds.Feed {
	feed := &feeds.Feed{
		Title:       "Hacker News: newest",
		Link:        &feeds.Link{Href: link},
		Description: "The newest stories on Hacker News",
		Id:          link,
		Created:     time.Now(),
	}

	for _, item := range page.Stories {
		feed.Items = append(feed.Items, feedItem(item))
	}
	if len(feed.Items) > 0 {
		// newest first, so the first item carries the feed's update time
		feed.Updated = feed.Items[0].Created
	}
	return feed
}

func feedItem(item hn.Item) *feeds.Item {
	discussion := item.DiscussionURL()
	link := item.URLOrEmpty()
	if link == "" {
		link = discussion
	}

	fi := &feeds.Item{
		Id:          extractors.GenerateGUIDFromURL(discussion),
		Title:       item.Title,
		Link:        &feeds.Link{Href: link},
		Source:      &feeds.Link{Href: discussion},
		Description: extractors.Summarize(item.TextOrEmpty(), summaryLimit),
		Created:     time.Unix(item.Time, 0).UTC(),
	}
	if item.By != "" {
		fi.Author = &feeds.Author{Name: item.By}
	}
	if text := item.TextOrEmpty(); text != "" {
		fi.Content = text
	}
	return fi
}

func selfURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.Path
}
