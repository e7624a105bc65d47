package app

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// articleResponse is the readable version of the page a story links to.
type articleResponse struct {
	ID       int      `json:"id"`
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	Byline   string   `json:"byline,omitempty"`
	SiteName string   `json:"siteName,omitempty"`
	Excerpt  string   `json:"excerpt,omitempty"`
	Content  string   `json:"content"`
	Images   []string `json:"images"`
}

func articleFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiResponse[*articleResponse]{Message: msg})
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Article.Enabled {
		articleFailure(w, http.StatusNotFound, "Article extraction is disabled")
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		articleFailure(w, http.StatusBadRequest, msgInvalidParams)
		return
	}

	key := strconv.Itoa(id)
	if cached, ok := s.articles.Get(key); ok {
		writeJSON(w, http.StatusOK, apiResponse[*articleResponse]{Data: &cached, Success: true})
		return
	}

	item, ok := s.stories.Fetcher().Story(r.Context(), id)
	if !ok || !item.Live() {
		articleFailure(w, http.StatusNotFound, "Story not found")
		return
	}
	link := item.URLOrEmpty()
	if link == "" {
		articleFailure(w, http.StatusNotFound, "Story has no article link")
		return
	}
	if !s.urlFilter.ShouldProcess(link) {
		articleFailure(w, http.StatusForbidden, "Article source is blocked")
		return
	}

	art, err := s.extractors.ForURL(link).Extract(r.Context(), link)
	if err != nil {
		s.log.Warn("Failed to extract article",
			zap.Int("id", id),
			zap.String("url", link),
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err),
		)
		articleFailure(w, http.StatusBadGateway, "Failed to extract article")
		return
	}

	resp := articleResponse{
		ID:       id,
		Title:    art.Title,
		URL:      link,
		Byline:   art.Byline,
		SiteName: art.SiteName,
		Excerpt:  art.Excerpt,
		Content:  art.Content,
		Images:   art.Images,
	}
	if resp.Title == "" {
		resp.Title = item.Title
	}
	if resp.Images == nil {
		resp.Images = []string{}
	}

	s.articles.Set(key, resp, s.cfg.ArticleCacheDuration())
	writeJSON(w, http.StatusOK, apiResponse[*articleResponse]{Data: &resp, Success: true})
}
