package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"

	"github.com/tchow-twistedxcom/tgarchive/internal/highlight"
	"github.com/tchow-twistedxcom/tgarchive/internal/richtext"
	"github.com/tchow-twistedxcom/tgarchive/internal/viewer"
)

const (
	markOpen  = "["
	markClose = "]"
)

// rowPainter renders viewer rows to terminal lines.
type rowPainter struct {
	width int
	// markers brackets matches instead of styling them, for terminals
	// without colour.
	markers bool
	reg     *highlight.Registry
}

// paint renders one message row. The last line is the separator.
func (p rowPainter) paint(r viewer.Row) []string {
	width := max(p.width, 10)
	var lines []string

	header := RowHeaderStyle.Render(fmt.Sprintf("#%d", r.Message.ID))
	if r.Link != "" {
		room := width - lipgloss.Width(header) - 2
		if room > 8 {
			header += "  " + RowLinkStyle.Render(runewidth.Truncate(r.Link, room, "…"))
		}
	}
	lines = append(lines, header)

	if r.Doc != nil && r.Doc.Len() > 0 {
		lines = append(lines, p.block(p.text(r), width)...)
	}
	if r.Message.Media != "" {
		lines = append(lines, p.block("▣ "+p.segments(r.Media, MediaStyle), width)...)
	}
	if r.Message.OCR != "" {
		lines = append(lines, p.block("OCR Text: "+p.segments(r.OCR, OCRStyle), width)...)
	}
	lines = append(lines, SeparatorStyle.Render(strings.Repeat("─", width)))
	return lines
}

func (p rowPainter) block(s string, width int) []string {
	return strings.Split(wrap.String(wordwrap.String(s, width), width), "\n")
}

// text paints the rich text. With colour, matches are read from the
// registry so retracted highlights disappear even from cached rows.
func (p rowPainter) text(r viewer.Row) string {
	if p.markers {
		return highlight.Bracket(r.Text.Segments, markOpen, markClose)
	}
	var ranges []richtext.Range
	if p.reg != nil {
		ranges = p.reg.Ranges(r.Key)
	}
	return paintDocument(r.Doc, ranges)
}

func (p rowPainter) segments(segs []highlight.Segment, base lipgloss.Style) string {
	if p.markers {
		return highlight.Bracket(segs, markOpen, markClose)
	}
	var sb strings.Builder
	for _, s := range segs {
		if s.Match {
			sb.WriteString(paintRun(MatchStyle, s.Text))
			continue
		}
		sb.WriteString(paintRun(base, s.Text))
	}
	return sb.String()
}

// paintDocument renders text nodes with their emphasis and paints ranges
// with MatchStyle.
func paintDocument(doc *richtext.Document, ranges []richtext.Range) string {
	byNode := make(map[int][]richtext.Range, len(ranges))
	for _, r := range ranges {
		byNode[r.Node] = append(byNode[r.Node], r)
	}
	var sb strings.Builder
	for i, n := range doc.TextNodes() {
		style := EmphasisStyle(n.Emphasis)
		runes := []rune(n.Text())
		rs := byNode[i]
		sort.Slice(rs, func(a, b int) bool { return rs[a].Start < rs[b].Start })
		pos := 0
		for _, r := range rs {
			start, end := max(r.Start, pos), min(r.End, len(runes))
			if start >= end {
				continue
			}
			sb.WriteString(paintRun(style, string(runes[pos:start])))
			sb.WriteString(paintRun(MatchStyle, string(runes[start:end])))
			pos = end
		}
		sb.WriteString(paintRun(style, string(runes[pos:])))
	}
	return sb.String()
}

// paintRun styles each line separately so lipgloss never pads a run to a
// block.
func paintRun(style lipgloss.Style, s string) string {
	if s == "" {
		return ""
	}
	parts := strings.Split(s, "\n")
	for i, part := range parts {
		if part != "" {
			parts[i] = style.Render(part)
		}
	}
	return strings.Join(parts, "\n")
}
