package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
	"github.com/tchow-twistedxcom/tgarchive/internal/highlight"
	"github.com/tchow-twistedxcom/tgarchive/internal/search"
	"github.com/tchow-twistedxcom/tgarchive/internal/viewer"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

type messagesResponse struct {
	Total     int               `json:"total"`
	Skipped   int               `json:"skipped"`
	Source    string            `json:"source"`
	LoadedAt  time.Time         `json:"loadedAt"`
	LoadError string            `json:"loadError,omitempty"`
	Messages  []archive.Message `json:"messages"`
}

type searchResponse struct {
	Query   string          `json:"query"`
	Total   int             `json:"total"`
	Results []search.Result `json:"results"`
}

const maxLimit = 1000

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if !s.allowRequest(w, r) {
		return
	}
	arc := s.Archive()
	resp := messagesResponse{
		Total:    arc.Len(),
		Skipped:  arc.Dataset.Skipped,
		Source:   arc.Dataset.Source,
		LoadedAt: arc.Dataset.LoadedAt,
		Messages: arc.Dataset.Messages,
	}
	if arc.Err != nil {
		resp.LoadError = arc.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.allowRequest(w, r) {
		return
	}
	q := r.URL.Query()
	limit, ok := intParam(w, q.Get("limit"), "limit", 50)
	if !ok {
		return
	}
	limit = min(max(limit, 1), maxLimit)

	term := q.Get("q")
	results := s.Archive().Index.Search(term)
	resp := searchResponse{Query: term, Total: len(results), Results: results}
	if len(results) > limit {
		resp.Results = results[:limit]
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleWindow answers one stateless window: a fresh viewer is positioned at
// top with the given height and discarded afterwards.
func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	if !s.allowRequest(w, r) {
		return
	}
	q := r.URL.Query()
	top, ok := intParam(w, q.Get("top"), "top", 0)
	if !ok {
		return
	}
	height, ok := intParam(w, q.Get("height"), "height", 800)
	if !ok {
		return
	}
	mode, err := highlight.ParseMode(q.Get("mode"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	opts := s.cfg.Viewer
	opts.Deferred = false
	if mode != highlight.ModeAuto {
		opts.Highlight = mode
	}
	opts.Capabilities = highlight.ProbeClient(q.Get("hl"))

	v := viewer.New(s.Archive(), opts)
	defer v.Close()
	v.Resize(max(height, 1))
	v.SetQuery(q.Get("q"))
	v.ScrollTo(max(top, 0))
	writeJSON(w, http.StatusOK, newWindowFrame(v, v.Rows()))
}

func intParam(w http.ResponseWriter, raw, name string, def int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", name+" must be an integer")
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiErrorResponse{
		Error: apiError{
			Code:    code,
			Message: message,
		},
	})
}
