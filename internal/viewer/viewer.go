// Package viewer is the front-end independent state of one archive view:
// the query, its ranked results, the virtualized window over them and the
// highlight state of every mounted row.
//
// A Viewer is owned by a single goroutine (the bubbletea update loop or one
// websocket session). The Archive it reads is shared.
package viewer

import (
	"fmt"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
	"github.com/tchow-twistedxcom/tgarchive/internal/highlight"
	"github.com/tchow-twistedxcom/tgarchive/internal/lightbox"
	"github.com/tchow-twistedxcom/tgarchive/internal/logging"
	"github.com/tchow-twistedxcom/tgarchive/internal/richtext"
	"github.com/tchow-twistedxcom/tgarchive/internal/search"
	"github.com/tchow-twistedxcom/tgarchive/internal/window"
)

// Options configure a Viewer.
type Options struct {
	Window window.Options
	// ResetScrollOnQuery scrolls to the top whenever a query changes the
	// ordered result list.
	ResetScrollOnQuery bool
	Highlight          highlight.Mode
	Capabilities       highlight.Capabilities
	// Deferred leaves highlights of newly bound rows pending until Commit
	// is called with the row's generation.
	Deferred bool
}

// DefaultOptions mirror the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Window:             window.Options{EstimateSize: 4, Overscan: 5},
		ResetScrollOnQuery: true,
		Highlight:          highlight.ModeAuto,
		Capabilities:       highlight.Capabilities{CustomHighlights: true},
	}
}

// Row is a mounted row ready to paint.
type Row struct {
	Key        string
	Slot       int
	Generation uint64
	Item       window.Item
	Message    *archive.Message
	Result     search.Result
	Doc        *richtext.Document
	Text       highlight.Result
	OCR        []highlight.Segment
	Media      []highlight.Segment
	Link       string
	// Highlighted is false while the row's highlight is pending.
	Highlighted bool
}

type rowState struct {
	gen       uint64
	result    search.Result
	doc       *richtext.Document
	text      highlight.Result
	ocr       []highlight.Segment
	media     []highlight.Segment
	committed bool
}

// Viewer is the state of one archive view.
type Viewer struct {
	arc     *Archive
	opts    Options
	reg     *highlight.Registry
	hl      highlight.Highlighter
	virt    *window.Virtualizer
	pool    *window.Pool
	states  map[string]*rowState
	query   string
	results []search.Result
	byKey   map[string]int
	box     lightbox.Lightbox
}

// New returns a viewer over arc showing the whole working set.
func New(arc *Archive, opts Options) *Viewer {
	v := &Viewer{
		arc:    arc,
		opts:   opts,
		reg:    highlight.NewRegistry(),
		virt:   window.New(opts.Window),
		states: make(map[string]*rowState),
	}
	v.hl = highlight.Select(opts.Highlight, opts.Capabilities, v.reg)
	v.pool = window.NewPool(v.release)
	v.apply(arc.Index.Search(""))
	return v
}

// RowKey is the stable key of a working set entry.
func RowKey(r search.Result) string {
	return fmt.Sprintf("%d-%d", r.Message.ID, r.Position)
}

func (v *Viewer) release(r *window.Row) {
	v.hl.Clear(r.Key())
	delete(v.states, r.Key())
}

func (v *Viewer) apply(results []search.Result) bool {
	v.results = results
	keys := make([]string, len(results))
	v.byKey = make(map[string]int, len(results))
	for i, r := range results {
		keys[i] = RowKey(r)
		v.byKey[keys[i]] = i
	}
	return v.virt.SetKeys(keys)
}

// Archive returns the archive being viewed.
func (v *Viewer) Archive() *Archive { return v.arc }

// Registry returns the highlight registry of this view.
func (v *Viewer) Registry() *highlight.Registry { return v.reg }

// Highlighter returns the selected highlighting strategy.
func (v *Viewer) Highlighter() highlight.Highlighter { return v.hl }

// Window returns the virtualizer.
func (v *Viewer) Window() *window.Virtualizer { return v.virt }

// Lightbox returns the image viewer.
func (v *Viewer) Lightbox() *lightbox.Lightbox { return &v.box }

// Query returns the current search term.
func (v *Viewer) Query() string { return v.query }

// Results returns the ranked results of the current query.
func (v *Viewer) Results() []search.Result { return v.results }

// Total returns the number of results.
func (v *Viewer) Total() int { return len(v.results) }

// SetQuery runs term. Every mounted row gets fresh highlight state; when the
// result list changed and ResetScrollOnQuery is set, the view returns to the
// top.
func (v *Viewer) SetQuery(term string) {
	if term == v.query {
		return
	}
	v.query = term
	changed := v.apply(v.arc.Index.Search(term))
	v.pool.RefreshAll()
	if changed && v.opts.ResetScrollOnQuery {
		v.virt.SetScroll(0)
	}
	viewLog.Debug("query_changed", "results", len(v.results), "reset", changed && v.opts.ResetScrollOnQuery)
}

// SetArchive swaps in a reloaded archive and reruns the current query.
func (v *Viewer) SetArchive(arc *Archive) {
	if arc == v.arc {
		return
	}
	v.arc = arc
	v.pool.ReleaseAll()
	v.apply(arc.Index.Search(v.query))
	v.box.Close()
}

// Scroll moves the view by delta units.
func (v *Viewer) Scroll(delta int) { v.virt.ScrollBy(delta) }

// ScrollTo moves the view to offset.
func (v *Viewer) ScrollTo(offset int) { v.virt.SetScroll(offset) }

// Resize sets the viewport extent.
func (v *Viewer) Resize(height int) { v.virt.SetViewport(height) }

// Measure records the real size of the row with key.
func (v *Viewer) Measure(key string, size int) {
	if i, ok := v.byKey[key]; ok {
		v.virt.Measure(i, size)
	}
}

// Rows binds the mounted items to row slots and returns them in order.
func (v *Viewer) Rows() []Row {
	rows := v.pool.Sync(v.virt.Items())
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		st := v.state(r)
		if !v.opts.Deferred && !st.committed {
			v.commit(r.Key(), st)
		}
		out = append(out, v.view(r, st))
	}
	return out
}

func (v *Viewer) state(r *window.Row) *rowState {
	if st, ok := v.states[r.Key()]; ok && st.gen == r.Generation {
		return st
	}
	res := v.results[r.Item.Index]
	doc := document(res.Message)
	st := &rowState{
		gen:    r.Generation,
		result: res,
		doc:    doc,
		text:   highlight.Result{Key: r.Key(), Segments: highlight.DocumentSegments(doc, nil), Markup: doc.HTML()},
		ocr:    highlight.MapSpans(res.Message.OCR, nil),
		media:  highlight.MapSpans(res.Message.Media, nil),
	}
	v.states[r.Key()] = st
	return st
}

// document parses the message markup. When the markup cannot be parsed, or
// its text content disagrees with plainText, the row renders its plain text
// so spans keep addressing the right characters.
func document(m *archive.Message) *richtext.Document {
	doc, err := richtext.Parse(m.Text)
	if err != nil {
		viewLog.Warn("markup_parse_failed", "id", m.ID, "error", err)
		return richtext.Plain(m.PlainText)
	}
	if doc.Text() != m.PlainText {
		logging.Aggregate(logging.CompHighlight, "plaintext_mismatch")
		return richtext.Plain(m.PlainText)
	}
	return doc
}

func (v *Viewer) commit(key string, st *rowState) {
	m := st.result.Message
	st.text = v.hl.Apply(key, st.doc, st.result.Spans(search.KeyPlainText))
	st.ocr = highlight.MapSpans(m.OCR, st.result.Spans(search.KeyOCR))
	st.media = highlight.MapSpans(m.Media, st.result.Spans(search.KeyMedia))
	st.committed = true
}

// Commit applies the pending highlight of row key at generation gen. A
// commit for a recycled row or an older query is ignored and reported as
// false.
func (v *Viewer) Commit(key string, gen uint64) bool {
	if !v.pool.Current(key, gen) {
		logging.Aggregate(logging.CompHighlight, "stale_commit")
		return false
	}
	st, ok := v.states[key]
	if !ok || st.gen != gen {
		return false
	}
	if !st.committed {
		v.commit(key, st)
	}
	return true
}

// Row returns the mounted row for key.
func (v *Viewer) Row(key string) (Row, bool) {
	r, ok := v.pool.Lookup(key)
	if !ok {
		return Row{}, false
	}
	st, ok := v.states[key]
	if !ok || st.gen != r.Generation {
		return Row{}, false
	}
	return v.view(r, st), true
}

func (v *Viewer) view(r *window.Row, st *rowState) Row {
	row := Row{
		Key:         r.Key(),
		Slot:        r.Slot,
		Generation:  r.Generation,
		Item:        r.Item,
		Message:     st.result.Message,
		Result:      st.result,
		Doc:         st.doc,
		Text:        st.text,
		OCR:         st.ocr,
		Media:       st.media,
		Highlighted: st.committed,
	}
	if v.arc.Channel != "" {
		row.Link = archive.DeepLink(v.arc.Channel, st.result.Message.ID)
	}
	return row
}

// OpenImage opens the lightbox on the image of row key.
func (v *Viewer) OpenImage(key string) bool {
	i, ok := v.byKey[key]
	if !ok {
		return false
	}
	m := v.results[i].Message
	if m.Media == "" {
		return false
	}
	v.box.Open(lightbox.Slide{Src: m.Media, Alt: m.AltText(), MessageID: m.ID})
	return true
}

// Close retracts every highlight and releases all rows.
func (v *Viewer) Close() {
	v.pool.ReleaseAll()
	v.reg.Clear()
	v.box.Close()
}
