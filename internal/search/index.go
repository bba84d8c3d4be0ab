// Package search is the fuzzy full-text index over the archive working set.
//
// Three fields are indexed per message: plainText, media and ocr. Spans are
// rune offsets into the raw field value with an inclusive end.
package search

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
	"github.com/tchow-twistedxcom/tgarchive/internal/logging"
)

var searchLog = logging.ForComponent(logging.CompSearch)

// Field keys, in index order.
const (
	KeyPlainText = "plainText"
	KeyMedia     = "media"
	KeyOCR       = "ocr"
)

// Keys lists the indexed fields. Their position is the field id used by the
// serialized form.
var Keys = []string{KeyPlainText, KeyMedia, KeyOCR}

// DefaultThreshold is the edit budget per pattern rune.
const DefaultThreshold = 0.3

// epsilon replaces a zero field score so a perfect field still contributes
// its norm to the product.
const epsilon = 2.220446049250313e-16

// Options tune matching.
type Options struct {
	// Threshold bounds fuzzy matches: a pattern of m runes may be off by
	// floor(Threshold*m) edits. 0 means exact substrings only.
	Threshold float64
	// Extended enables the extended query grammar (see ParseQuery).
	Extended bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, Extended: true}
}

// Span marks the matched runes [Start, End] (End inclusive) of one field.
type Span struct {
	Key   string `json:"key"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// FieldMatch is the contribution of a single field to a result.
type FieldMatch struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`
	Spans []Span  `json:"spans,omitempty"`
}

// Result is one ranked message.
type Result struct {
	Message  *archive.Message `json:"message"`
	Position int              `json:"position"`
	Score    float64          `json:"score"`
	Fields   []FieldMatch     `json:"fields,omitempty"`
}

// Spans returns the spans for a field key.
func (r Result) Spans(key string) []Span {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Spans
		}
	}
	return nil
}

// field is one indexed value.
type field struct {
	value  string
	folded []rune
	norm   float64
}

type record struct {
	fields [3]*field
}

// Index is immutable after Build or Load and safe for concurrent Search.
type Index struct {
	messages []archive.Message
	records  []record
	opts     Options
}

func fieldValue(m *archive.Message, key int) string {
	switch key {
	case 0:
		return m.PlainText
	case 1:
		return m.Media
	default:
		return m.OCR
	}
}

func newField(value string, norm float64) *field {
	return &field{value: value, folded: fold(value), norm: norm}
}

// fieldNorm is 1/sqrt(number of space separated tokens), rounded to three
// decimals.
func fieldNorm(value string) float64 {
	tokens := len(strings.FieldsFunc(value, func(r rune) bool { return r == ' ' }))
	if tokens == 0 {
		tokens = 1
	}
	return math.Round(1/math.Sqrt(float64(tokens))*1000) / 1000
}

func buildRecord(m *archive.Message) record {
	var rec record
	for k := range Keys {
		if v := fieldValue(m, k); v != "" {
			rec.fields[k] = newField(v, fieldNorm(v))
		}
	}
	return rec
}

// Build indexes the working set in order.
func Build(messages []archive.Message, opts Options) *Index {
	start := time.Now()
	idx := &Index{messages: messages, records: make([]record, len(messages)), opts: opts}
	for i := range messages {
		idx.records[i] = buildRecord(&messages[i])
	}
	searchLog.Info("index_built", "messages", len(messages), "duration_ms", time.Since(start).Milliseconds())
	return idx
}

// Len returns the number of indexed messages.
func (idx *Index) Len() int { return len(idx.messages) }

// Options returns the matching options.
func (idx *Index) Options() Options { return idx.opts }

// Messages returns the working set the index was built over.
func (idx *Index) Messages() []archive.Message { return idx.messages }

// All returns the working set as results without spans.
func (idx *Index) All() []Result {
	out := make([]Result, len(idx.messages))
	for i := range idx.messages {
		out[i] = Result{Message: &idx.messages[i], Position: i}
	}
	return out
}

// Search runs term against every field of every message. An empty term
// returns the whole working set in order.
func (idx *Index) Search(term string) []Result {
	q := ParseQuery(term, idx.opts.Extended)
	if q.IsEmpty() {
		return idx.All()
	}
	return idx.SearchQuery(q)
}

// SearchQuery runs a parsed query.
func (idx *Index) SearchQuery(q Query) []Result {
	if q.IsEmpty() {
		return idx.All()
	}
	start := time.Now()
	groups := compile(q)

	var out []Result
	for i := range idx.records {
		var fields []FieldMatch
		total := 1.0
		for k, f := range idx.records[i].fields {
			if f == nil {
				continue
			}
			score, spans, ok := evalField(groups, f, k == 1, idx.opts.Threshold)
			if !ok {
				continue
			}
			fm := FieldMatch{Key: Keys[k], Score: score}
			for _, s := range spans {
				fm.Spans = append(fm.Spans, Span{Key: Keys[k], Start: s.start, End: s.end})
			}
			fields = append(fields, fm)
			total *= math.Pow(math.Max(score, epsilon), f.norm)
		}
		if len(fields) == 0 {
			continue
		}
		out = append(out, Result{Message: &idx.messages[i], Position: i, Score: total, Fields: fields})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score < out[b].Score })

	logging.Aggregate(logging.CompSearch, "query_executed")
	searchLog.Debug("query_executed",
		"groups", len(q),
		"results", len(out),
		"duration_us", time.Since(start).Microseconds())
	return out
}

// evalField returns the first group whose terms all match f. The field
// score is the mean of the term scores.
func evalField(groups [][]compiledTerm, f *field, asPath bool, threshold float64) (float64, []runeSpan, bool) {
	for _, g := range groups {
		sum := 0.0
		var spans []runeSpan
		matched := true
		for _, t := range g {
			tm := matchTerm(t, f, asPath, threshold)
			if !tm.ok {
				matched = false
				break
			}
			sum += tm.score
			spans = append(spans, tm.spans...)
		}
		if matched && len(g) > 0 {
			return sum / float64(len(g)), spans, true
		}
	}
	return 0, nil, false
}
