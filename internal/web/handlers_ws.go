package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tchow-twistedxcom/tgarchive/internal/highlight"
	"github.com/tchow-twistedxcom/tgarchive/internal/logging"
	"github.com/tchow-twistedxcom/tgarchive/internal/viewer"
)

type wsAck struct {
	Key        string `json:"key"`
	Generation uint64 `json:"generation"`
}

type wsClientMessage struct {
	Type   string         `json:"type"` // query, scroll, viewport, measure, ack, ping
	Query  string         `json:"query,omitempty"`
	Top    int            `json:"top,omitempty"`
	Height int            `json:"height,omitempty"`
	Seq    uint64         `json:"seq,omitempty"` // scroll frames only
	Sizes  map[string]int `json:"sizes,omitempty"`
	Acks   []wsAck        `json:"acks,omitempty"`
}

type wsServerMessage struct {
	Type      string    `json:"type"` // status, error
	Event     string    `json:"event,omitempty"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message,omitempty"`
	Messages  int       `json:"messages,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	Revision  uint64    `json:"revision,omitempty"`
	LoadError string    `json:"loadError,omitempty"`
	Time      time.Time `json:"time,omitempty"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     allowWSOrigin,
}

const wsMaxFrameBytes = 64 << 10

func allowWSOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return false
	}

	return strings.EqualFold(originURL.Host, r.Host)
}

type wsConnWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newWSConnWriter(conn *websocket.Conn) *wsConnWriter {
	return &wsConnWriter{conn: conn}
}

func (w *wsConnWriter) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteJSON(v)
}

// viewSession is one browser view. The viewer is owned by the session loop.
type viewSession struct {
	srv      *Server
	v        *viewer.Viewer
	arc      *viewer.Archive
	writer   *wsConnWriter
	limiter  *rate.Limiter
	staleAck int

	// scrollSeq is the seq of the last scroll frame handled, echoed in
	// every window frame.
	scrollSeq uint64
}

func (s *Server) handleViewWS(w http.ResponseWriter, r *http.Request) {
	if !s.allowRequest(w, r) {
		return
	}
	q := r.URL.Query()
	height, ok := intParam(w, q.Get("height"), "height", 800)
	if !ok {
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxFrameBytes)

	opts := s.cfg.Viewer
	opts.Deferred = true
	opts.Capabilities = highlight.ProbeClient(q.Get("hl"))

	sess := &viewSession{
		srv:     s,
		arc:     s.Archive(),
		writer:  newWSConnWriter(conn),
		limiter: rate.NewLimiter(rate.Limit(s.cfg.Rate), max(int(s.cfg.Rate), 1)),
	}
	sess.v = viewer.New(sess.arc, opts)
	defer sess.v.Close()
	sess.v.Resize(max(height, 1))

	connected := wsServerMessage{
		Type:     "status",
		Event:    "connected",
		Messages: sess.arc.Len(),
		Mode:     string(sess.v.Highlighter().Mode()),
		Revision: s.Revision(),
		Time:     time.Now().UTC(),
	}
	if sess.arc.Err != nil {
		connected.LoadError = sess.arc.Err.Error()
	}
	_ = sess.writer.WriteJSON(connected)
	if err := sess.sendWindow(); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	frames := make(chan wsClientMessage, 64)
	go sess.readLoop(ctx, conn, frames)

	sess.run(ctx, frames)
	if sess.staleAck > 0 {
		logging.Aggregate(logging.CompWeb, "stale_ack", slog.Int("count", sess.staleAck))
	}
}

func (sess *viewSession) readLoop(ctx context.Context, conn *websocket.Conn, frames chan<- wsClientMessage) {
	defer close(frames)
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				webLog.Warn("websocket_closed_unexpectedly", slog.String("error", err.Error()))
			}
			return
		}

		var msg wsClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			_ = sess.writer.WriteJSON(wsServerMessage{
				Type:    "error",
				Code:    "INVALID_MESSAGE",
				Message: "invalid json payload",
				Time:    time.Now().UTC(),
			})
			continue
		}
		select {
		case frames <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// run handles frames at the configured rate. Consecutive frames of the same
// kind collapse into the newest one, so a burst of keystrokes settles on the
// last query.
func (sess *viewSession) run(ctx context.Context, frames <-chan wsClientMessage) {
	var pending *wsClientMessage
	for {
		var msg wsClientMessage
		if pending != nil {
			msg, pending = *pending, nil
		} else {
			var ok bool
			select {
			case <-ctx.Done():
				return
			case msg, ok = <-frames:
				if !ok {
					return
				}
			}
		}
		if err := sess.limiter.Wait(ctx); err != nil {
			return
		}
		msg, pending = coalesce(msg, frames)
		if err := sess.handle(msg); err != nil {
			return
		}
	}
}

func coalesce(msg wsClientMessage, frames <-chan wsClientMessage) (wsClientMessage, *wsClientMessage) {
	switch msg.Type {
	case "query", "scroll", "viewport":
	default:
		return msg, nil
	}
	for {
		select {
		case next, ok := <-frames:
			if !ok {
				return msg, nil
			}
			if next.Type != msg.Type {
				return msg, &next
			}
			msg = next
		default:
			return msg, nil
		}
	}
}

func (sess *viewSession) handle(msg wsClientMessage) error {
	if arc := sess.srv.Archive(); arc != sess.arc {
		sess.arc = arc
		sess.v.SetArchive(arc)
		if err := sess.writer.WriteJSON(wsServerMessage{
			Type:     "status",
			Event:    "reloaded",
			Messages: arc.Len(),
			Revision: sess.srv.Revision(),
			Time:     time.Now().UTC(),
		}); err != nil {
			return err
		}
	}

	switch msg.Type {
	case "ping":
		return sess.writer.WriteJSON(wsServerMessage{
			Type:  "status",
			Event: "pong",
			Time:  time.Now().UTC(),
		})
	case "query":
		sess.v.SetQuery(msg.Query)
	case "scroll":
		sess.v.ScrollTo(max(msg.Top, 0))
		if msg.Seq > sess.scrollSeq {
			sess.scrollSeq = msg.Seq
		}
	case "viewport":
		if msg.Height <= 0 {
			return sess.writeError("INVALID_MESSAGE", "viewport height must be positive")
		}
		sess.v.Resize(msg.Height)
	case "measure":
		for key, size := range msg.Sizes {
			sess.v.Measure(key, size)
		}
	case "ack":
		committed := 0
		for _, a := range msg.Acks {
			if sess.v.Commit(a.Key, a.Generation) {
				committed++
			} else {
				sess.staleAck++
			}
		}
		if committed == 0 {
			return nil
		}
	default:
		return sess.writeError("UNSUPPORTED_MESSAGE", "supported message types: query,scroll,viewport,measure,ack,ping")
	}
	return sess.sendWindow()
}

func (sess *viewSession) sendWindow() error {
	start := time.Now()
	frame := newWindowFrame(sess.v, sess.v.Rows())
	frame.Seq = sess.scrollSeq
	logging.Aggregate(logging.CompWeb, "window_sent",
		slog.Int("rows", len(frame.Rows)),
		slog.Int64("elapsed_us", time.Since(start).Microseconds()))
	return sess.writer.WriteJSON(frame)
}

func (sess *viewSession) writeError(code, message string) error {
	return sess.writer.WriteJSON(wsServerMessage{
		Type:    "error",
		Code:    code,
		Message: message,
		Time:    time.Now().UTC(),
	})
}
