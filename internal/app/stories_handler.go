package app

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"hnproxy/internal/hn"
	"hnproxy/internal/stories"
)

const msgInvalidParams = "Invalid parameters provided"

// apiResponse is the envelope every /api/stories JSON endpoint answers with.
type apiResponse[T any] struct {
	Data    T      `json:"data"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func emptyPage() stories.Page {
	return stories.Page{Stories: []hn.Item{}}
}

// parseQuery reads page and pageSize from r. Missing values take the
// configured defaults; pageSize above the maximum is clamped.
func (s *Server) parseQuery(r *http.Request) (stories.Query, bool) {
	q := stories.Query{Page: 1, PageSize: s.cfg.Query.DefaultPageSize}
	values := r.URL.Query()

	if v := values.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, false
		}
		q.Page = n
	}
	if v := values.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, false
		}
		q.PageSize = n
	}
	if q.Page < 1 || q.PageSize < 1 {
		return q, false
	}
	q.PageSize = min(q.PageSize, s.cfg.Query.MaxPageSize)
	return q, true
}

func (s *Server) handleNewest(w http.ResponseWriter, r *http.Request) {
	q, ok := s.parseQuery(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiResponse[stories.Page]{Data: emptyPage(), Message: msgInvalidParams})
		return
	}
	q.Search = r.URL.Query().Get("search")

	page := s.engine.Newest(r.Context(), q)
	s.log.Debug("Served newest stories",
		zap.Int("page", page.Page),
		zap.Int("page_size", page.PageSize),
		zap.Int("total", page.TotalCount),
	)
	writeJSON(w, http.StatusOK, apiResponse[stories.Page]{Data: page, Success: true})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q, ok := s.parseQuery(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiResponse[stories.Page]{Data: emptyPage(), Message: msgInvalidParams})
		return
	}
	q.Query = r.URL.Query().Get("query")

	page := s.engine.Search(r.Context(), q)
	s.log.Debug("Served story search",
		zap.String("query", q.Query),
		zap.Int("total", page.TotalCount),
	)
	writeJSON(w, http.StatusOK, apiResponse[stories.Page]{Data: page, Success: true})
}

func (s *Server) handleStoriesHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}
