package web

import (
	"bufio"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
	"github.com/tchow-twistedxcom/tgarchive/internal/search"
	"github.com/tchow-twistedxcom/tgarchive/internal/viewer"
)

func testArchive(msgs ...archive.Message) *viewer.Archive {
	if len(msgs) == 0 {
		msgs = []archive.Message{
			{ID: 1, Text: "hello world"},
			{ID: 2, Text: "<b>goodbye</b> moon"},
			{ID: 3, Media: "images/cat.png", OCR: "a cat on a mat"},
		}
	}
	ds := &archive.Dataset{Messages: archive.Prepare(msgs), Source: "test.json"}
	return viewer.NewArchive(ds, search.DefaultOptions())
}

func manyMessages(n int) []archive.Message {
	msgs := make([]archive.Message, n)
	for i := range msgs {
		msgs[i] = archive.Message{ID: int64(i + 1), Text: fmt.Sprintf("message number %d", i+1)}
	}
	return msgs
}

func newTestServer(t *testing.T, cfg Config, arc *viewer.Archive) (*Server, *httptest.Server) {
	t.Helper()
	if arc == nil {
		arc = testArchive()
	}
	srv := NewServer(cfg, arc)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.cancelBase()
	})
	return srv, ts
}

func wsURL(baseURL, path string) string {
	if strings.HasPrefix(baseURL, "https://") {
		return "wss://" + strings.TrimPrefix(baseURL, "https://") + path
	}
	return "ws://" + strings.TrimPrefix(baseURL, "http://") + path
}

func readSSEEvent(r *bufio.Reader) (string, string, error) {
	var (
		event string
		data  string
	)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", "", err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if event != "" || data != "" {
				return event, data, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "event:") {
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
}
