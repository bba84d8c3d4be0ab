// Package highlight maps search spans onto renderable text. Spans are always
// plain-text rune coordinates with an inclusive end.
package highlight

import (
	"sort"
	"strings"

	"github.com/tchow-twistedxcom/tgarchive/internal/richtext"
	"github.com/tchow-twistedxcom/tgarchive/internal/search"
)

// Segment is a run of text that either matched the query or did not.
type Segment struct {
	Text  string `json:"text"`
	Match bool   `json:"match,omitempty"`
}

// Join concatenates segment text.
func Join(segs []Segment) string {
	var sb strings.Builder
	for _, s := range segs {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// HasMatch reports whether any segment is a match.
func HasMatch(segs []Segment) bool {
	for _, s := range segs {
		if s.Match {
			return true
		}
	}
	return false
}

// Bracket renders segments as text with matches enclosed by open and close.
func Bracket(segs []Segment, open, close string) string {
	var sb strings.Builder
	for _, s := range segs {
		if s.Match {
			sb.WriteString(open)
			sb.WriteString(s.Text)
			sb.WriteString(close)
			continue
		}
		sb.WriteString(s.Text)
	}
	return sb.String()
}

type interval struct{ start, end int } // end exclusive

// normalize sorts spans by start, clamps them to n runes and merges overlaps.
func normalize(spans []search.Span, n int) []interval {
	ivs := make([]interval, 0, len(spans))
	for _, s := range spans {
		start, end := s.Start, s.End+1
		if start < 0 {
			start = 0
		}
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		ivs = append(ivs, interval{start, end})
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].start < ivs[j].start })

	merged := ivs[:0]
	for _, iv := range ivs {
		if k := len(merged); k > 0 && iv.start <= merged[k-1].end {
			if iv.end > merged[k-1].end {
				merged[k-1].end = iv.end
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// MapSpans splits raw into segments. The concatenation of the segments is
// always exactly raw; spans need not be sorted and may overlap or run past
// the end of the text.
func MapSpans(raw string, spans []search.Span) []Segment {
	if raw == "" {
		return nil
	}
	runes := []rune(raw)
	ivs := normalize(spans, len(runes))
	if len(ivs) == 0 {
		return []Segment{{Text: raw}}
	}

	segs := make([]Segment, 0, 2*len(ivs)+1)
	pos := 0
	for _, iv := range ivs {
		if iv.start > pos {
			segs = append(segs, Segment{Text: string(runes[pos:iv.start])})
		}
		segs = append(segs, Segment{Text: string(runes[iv.start:iv.end]), Match: true})
		pos = iv.end
	}
	if pos < len(runes) {
		segs = append(segs, Segment{Text: string(runes[pos:])})
	}
	return segs
}

// Locate intersects spans with the document's text nodes. Offset k of the
// document text lands on the k-th rendered character, so markup preceding a
// match never shifts it.
func Locate(doc *richtext.Document, spans []search.Span) []richtext.Range {
	ivs := normalize(spans, doc.Len())
	if len(ivs) == 0 {
		return nil
	}
	var out []richtext.Range
	for i, n := range doc.TextNodes() {
		for _, iv := range ivs {
			if iv.start >= n.End() {
				break
			}
			s, e := max(iv.start, n.Offset), min(iv.end, n.End())
			if s < e {
				out = append(out, richtext.Range{Node: i, Start: s - n.Offset, End: e - n.Offset})
			}
		}
	}
	return out
}

// RangeSpans converts node ranges back to plain-text spans on key.
func RangeSpans(doc *richtext.Document, key string, ranges []richtext.Range) []search.Span {
	nodes := doc.TextNodes()
	out := make([]search.Span, 0, len(ranges))
	for _, r := range ranges {
		if r.Node < 0 || r.Node >= len(nodes) || r.Start >= r.End {
			continue
		}
		off := nodes[r.Node].Offset
		out = append(out, search.Span{Key: key, Start: off + r.Start, End: off + r.End - 1})
	}
	return out
}

// DocumentSegments splits the document text by node ranges.
func DocumentSegments(doc *richtext.Document, ranges []richtext.Range) []Segment {
	return MapSpans(doc.Text(), RangeSpans(doc, search.KeyPlainText, ranges))
}
