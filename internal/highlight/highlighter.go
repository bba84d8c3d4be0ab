package highlight

import (
	"fmt"

	"github.com/muesli/termenv"

	"github.com/tchow-twistedxcom/tgarchive/internal/logging"
	"github.com/tchow-twistedxcom/tgarchive/internal/richtext"
	"github.com/tchow-twistedxcom/tgarchive/internal/search"
)

var hlLog = logging.ForComponent(logging.CompHighlight)

// Mode names a highlighting strategy.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeRanges Mode = "ranges"
	ModeSplice Mode = "splice"
)

// ParseMode validates a configured mode name. Empty means auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeRanges, ModeSplice:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown highlight mode %q (want auto, ranges or splice)", s)
}

// MarkClass is the class carried by spliced mark elements and the name of
// the client side highlight.
const MarkClass = "search-highlight"

// Result is the highlight of one row's rich text.
type Result struct {
	Key      string           `json:"key"`
	Ranges   []richtext.Range `json:"ranges,omitempty"`
	Segments []Segment        `json:"segments"`
	Markup   string           `json:"markup"`
}

// Highlighter applies plain-text spans to a rendered document under a row
// key. Applying again under the same key replaces the previous highlight.
type Highlighter interface {
	Apply(key string, doc *richtext.Document, spans []search.Span) Result
	Clear(key string)
	Mode() Mode
}

// RangeHighlighter registers ranges and leaves the markup untouched.
// Painters style the registered ranges themselves.
type RangeHighlighter struct {
	reg *Registry
}

// NewRangeHighlighter returns a highlighter that records ranges in reg.
func NewRangeHighlighter(reg *Registry) *RangeHighlighter {
	return &RangeHighlighter{reg: reg}
}

func (h *RangeHighlighter) Mode() Mode { return ModeRanges }

func (h *RangeHighlighter) Apply(key string, doc *richtext.Document, spans []search.Span) Result {
	ranges := Locate(doc, spans)
	h.reg.Register(key, ranges)
	return Result{Key: key, Ranges: ranges, Segments: DocumentSegments(doc, ranges), Markup: doc.HTML()}
}

func (h *RangeHighlighter) Clear(key string) { h.reg.Unregister(key) }

// SpliceHighlighter wraps matched text in mark elements of a cloned tree.
// The ranges are still registered so rows can be retracted uniformly.
type SpliceHighlighter struct {
	reg   *Registry
	Tag   string
	Class string
}

// NewSpliceHighlighter returns a highlighter producing <mark> markup.
func NewSpliceHighlighter(reg *Registry) *SpliceHighlighter {
	return &SpliceHighlighter{reg: reg, Tag: "mark", Class: MarkClass}
}

func (h *SpliceHighlighter) Mode() Mode { return ModeSplice }

func (h *SpliceHighlighter) Apply(key string, doc *richtext.Document, spans []search.Span) Result {
	ranges := Locate(doc, spans)
	h.reg.Register(key, ranges)
	return Result{
		Key:      key,
		Ranges:   ranges,
		Segments: DocumentSegments(doc, ranges),
		Markup:   doc.Wrap(ranges, h.Tag, h.Class),
	}
}

func (h *SpliceHighlighter) Clear(key string) { h.reg.Unregister(key) }

// Capabilities describe what the rendering surface can do.
type Capabilities struct {
	// CustomHighlights is true when the surface styles registered ranges
	// without changing the markup: a colour terminal, or a browser exposing
	// CSS.highlights.
	CustomHighlights bool
}

// ProbeTerminal derives capabilities from a terminal colour profile. A plain
// ASCII terminal cannot style ranges and gets bracket markers instead.
func ProbeTerminal(p termenv.Profile) Capabilities {
	return Capabilities{CustomHighlights: p != termenv.Ascii}
}

// ProbeClient derives capabilities from the flag a browser client sends.
func ProbeClient(flag string) Capabilities {
	return Capabilities{CustomHighlights: flag == string(ModeRanges)}
}

// Select picks the strategy once. A forced mode wins over the probe.
func Select(mode Mode, caps Capabilities, reg *Registry) Highlighter {
	switch {
	case mode == ModeSplice:
		return NewSpliceHighlighter(reg)
	case mode == ModeRanges:
		return NewRangeHighlighter(reg)
	case caps.CustomHighlights:
		return NewRangeHighlighter(reg)
	default:
		hlLog.Debug("highlight_fallback", "reason", "no custom highlight support")
		return NewSpliceHighlighter(reg)
	}
}
