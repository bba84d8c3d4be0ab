package logging

import (
	"bytes"
	"log/slog"
	"strings"
)

// BridgeWriter is an io.Writer that forwards stdlib log output to slog.
// A leading "[category] " prefix becomes the component attribute.
type BridgeWriter struct {
	logger    *slog.Logger
	component string
}

// NewBridgeWriter creates a writer for log.SetOutput. defaultComponent is
// used for lines without a category prefix.
func NewBridgeWriter(defaultComponent string) *BridgeWriter {
	return &BridgeWriter{
		logger:    Logger(),
		component: defaultComponent,
	}
}

// Write treats each call as one log line.
func (bw *BridgeWriter) Write(p []byte) (int, error) {
	n := len(p)
	msg := string(bytes.TrimSpace(p))
	if msg == "" {
		return n, nil
	}
	msg = stripLogTimestamp(msg)

	component := bw.component
	if strings.HasPrefix(msg, "[") {
		if idx := strings.Index(msg, "] "); idx > 0 {
			component = strings.ToLower(msg[1:idx])
			msg = msg[idx+2:]
		}
	}

	bw.logger.Info(msg, slog.String("component", canonicalComponent(component)))
	return n, nil
}

// stripLogTimestamp drops the "15:04:05 " or "15:04:05.000000 " prefix the
// stdlib logger adds; slog writes its own time.
func stripLogTimestamp(s string) string {
	if len(s) > 16 && s[2] == ':' && s[5] == ':' && s[8] == '.' && s[15] == ' ' {
		return s[16:]
	}
	if len(s) > 9 && s[2] == ':' && s[5] == ':' && s[8] == ' ' {
		return s[9:]
	}
	return s
}

func canonicalComponent(cat string) string {
	switch cat {
	case "archive", "loader", "dataset":
		return CompArchive
	case "search", "index", "fuzzy":
		return CompSearch
	case "highlight", "hl":
		return CompHighlight
	case "ui", "tui":
		return CompUI
	case "web", "ws", "sse":
		return CompWeb
	case "http", "http-server":
		return CompHTTP
	case "snapshot", "sqlite":
		return CompSnapshot
	case "perf":
		return CompPerf
	default:
		return cat
	}
}
