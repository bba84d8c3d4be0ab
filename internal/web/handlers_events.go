package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

var archiveEventsHeartbeatInterval = 15 * time.Second

type archiveEvent struct {
	Messages  int       `json:"messages"`
	Skipped   int       `json:"skipped"`
	Source    string    `json:"source"`
	LoadedAt  time.Time `json:"loadedAt"`
	Revision  uint64    `json:"revision"`
	LoadError string    `json:"loadError,omitempty"`
}

func (s *Server) archiveEvent() archiveEvent {
	arc := s.Archive()
	ev := archiveEvent{
		Messages: arc.Len(),
		Skipped:  arc.Dataset.Skipped,
		Source:   arc.Dataset.Source,
		LoadedAt: arc.Dataset.LoadedAt,
		Revision: s.Revision(),
	}
	if arc.Err != nil {
		ev.LoadError = arc.Err.Error()
	}
	return ev
}

func (s *Server) handleArchiveEvents(w http.ResponseWriter, r *http.Request) {
	if !s.allowRequest(w, r) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// subscribe before the first event so a swap in between is not lost
	changes := s.subscribeArchiveChanges()
	defer s.unsubscribeArchiveChanges(changes)

	last := s.Revision()
	if err := writeSSEEvent(w, flusher, "archive", s.archiveEvent()); err != nil {
		return
	}

	heartbeatTicker := time.NewTicker(archiveEventsHeartbeatInterval)
	defer heartbeatTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeatTicker.C:
			if err := writeSSEComment(w, flusher, "keepalive"); err != nil {
				return
			}
		case <-changes:
			ev := s.archiveEvent()
			if ev.Revision == last {
				continue
			}
			last = ev.Revision
			if err := writeSSEEvent(w, flusher, "reload", ev); err != nil {
				return
			}
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeSSEComment(w http.ResponseWriter, flusher http.Flusher, comment string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", comment); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
