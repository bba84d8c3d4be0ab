package search

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
)

func fixture() []archive.Message {
	return archive.Prepare([]archive.Message{
		{ID: 1, Text: "hello world"},
		{ID: 2, Text: "goodbye"},
		{ID: 3, Text: "<b>Weekly</b> report", Media: "images/report_3.jpg", OCR: "Revenue grew in March"},
		{ID: 4, Media: "images/cat.png", OCR: "a cat sitting on a mat"},
		{ID: 5, Text: "Hello again, <i>world</i> of cats"},
	})
}

func ids(results []Result) []int64 {
	out := make([]int64, len(results))
	for i, r := range results {
		out[i] = r.Message.ID
	}
	return out
}

func TestEmptyQueryReturnsWorkingSet(t *testing.T) {
	msgs := fixture()
	idx := Build(msgs, DefaultOptions())

	for _, term := range []string{"", "   ", "\t"} {
		results := idx.Search(term)
		require.Len(t, results, len(msgs))
		for i, r := range results {
			assert.Same(t, &msgs[i], r.Message)
			assert.Equal(t, i, r.Position)
			assert.Empty(t, r.Fields)
		}
	}
}

func TestOperatorOnlyQueryReturnsWorkingSet(t *testing.T) {
	msgs := archive.Prepare([]archive.Message{{ID: 1, Text: "hello world"}, {ID: 2, Text: "goodbye"}})
	idx := Build(msgs, DefaultOptions())
	for _, q := range []string{"|", "! ^", "!^ | ="} {
		results := idx.Search(q)
		assert.Equal(t, []int64{2, 1}, ids(results), q)
		for _, r := range results {
			assert.Empty(t, r.Spans(KeyPlainText), q)
		}
	}
}

func TestTypoHighlightsWholeWord(t *testing.T) {
	msgs := archive.Prepare([]archive.Message{{ID: 1, Text: "hello world"}})
	results := Build(msgs, DefaultOptions()).Search("helo")
	require.Len(t, results, 1)
	assert.Equal(t, []Span{{Key: KeyPlainText, Start: 0, End: 4}}, results[0].Spans(KeyPlainText))
}

func TestEndToEndScenario(t *testing.T) {
	msgs := archive.Prepare([]archive.Message{{ID: 1, Text: "hello world"}, {ID: 2, Text: "goodbye"}})
	idx := Build(msgs, DefaultOptions())

	assert.Equal(t, []int64{2, 1}, ids(idx.Search("")))

	results := idx.Search("hello")
	require.Equal(t, []int64{1}, ids(results))
	assert.Equal(t, []Span{{Key: KeyPlainText, Start: 0, End: 4}}, results[0].Spans(KeyPlainText))
	assert.Equal(t, "hello", string([]rune(msgs[1].PlainText)[0:5]))
}

func TestFuzzyToleratesTypos(t *testing.T) {
	idx := Build(fixture(), DefaultOptions())

	results := idx.Search("reveneu")
	require.NotEmpty(t, results)
	assert.EqualValues(t, 3, results[0].Message.ID)
	spans := results[0].Spans(KeyOCR)
	require.NotEmpty(t, spans)
	assert.Equal(t, 0, spans[0].Start)
}

func TestThresholdZeroIsExactSubstring(t *testing.T) {
	opts := DefaultOptions()
	opts.Threshold = 0
	idx := Build(fixture(), opts)

	assert.Empty(t, idx.Search("reveneu"))
	assert.Equal(t, []int64{3}, ids(idx.Search("revenue")))
}

func TestOCRSpansAddressRawOCR(t *testing.T) {
	msgs := fixture()
	idx := Build(msgs, DefaultOptions())

	results := idx.Search("'sitting")
	require.Equal(t, []int64{4}, ids(results))
	spans := results[0].Spans(KeyOCR)
	require.Len(t, spans, 1)
	ocr := []rune(results[0].Message.OCR)
	assert.Equal(t, "sitting", string(ocr[spans[0].Start:spans[0].End+1]))
}

func TestSpansUsePlainTextCoordinates(t *testing.T) {
	idx := Build(fixture(), DefaultOptions())

	results := idx.Search("'report")
	require.NotEmpty(t, results)
	r := results[0]
	assert.EqualValues(t, 3, r.Message.ID)
	spans := r.Spans(KeyPlainText)
	require.Len(t, spans, 1)
	// "Weekly report": the tag bytes in the markup do not shift the span
	assert.Equal(t, Span{Key: KeyPlainText, Start: 7, End: 12}, spans[0])
}

func TestExtendedSyntax(t *testing.T) {
	idx := Build(fixture(), DefaultOptions())

	tests := []struct {
		query string
		want  []int64
	}{
		{"=goodbye", []int64{2}},
		{"=good", nil},
		{"'cat", []int64{5, 4}},
		{"^hello", []int64{5, 1}},
		{"world$", []int64{1}},
		{".png$", []int64{4}},
		{"'hello !again", []int64{1}},
		{"!^hello 'world", nil},
		{"=goodbye | =\"hello world\"", []int64{2, 1}},
		{"!cat$ 'cats", []int64{5}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := ids(idx.Search(tt.query))
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestExtendedSyntaxDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.Extended = false
	idx := Build(fixture(), opts)

	// operators are plain pattern characters: "'hello !again" is two edits
	// away from "hello again" and "hello world" no longer qualifies
	assert.Equal(t, []int64{5}, ids(idx.Search("'hello !again")))
	assert.Equal(t, []int64{2}, ids(idx.Search("goodbye")))
}

func TestNegatedTermsProduceNoSpans(t *testing.T) {
	idx := Build(fixture(), DefaultOptions())
	for _, r := range idx.Search("!zebra") {
		for _, f := range r.Fields {
			assert.Empty(t, f.Spans)
		}
	}
}

func TestScoreOrdering(t *testing.T) {
	idx := Build(fixture(), DefaultOptions())
	results := idx.Search("world")
	require.GreaterOrEqual(t, len(results), 2)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Score, results[i].Score)
	}
	// the exact short field wins over the longer one
	assert.EqualValues(t, 1, results[0].Message.ID)
}

func TestTiesKeepWorkingSetOrder(t *testing.T) {
	msgs := archive.Prepare([]archive.Message{{ID: 1, Text: "same"}, {ID: 2, Text: "same"}, {ID: 3, Text: "same"}})
	idx := Build(msgs, DefaultOptions())
	assert.Equal(t, []int64{3, 2, 1}, ids(idx.Search("same")))
}

func TestSearchIsDeterministic(t *testing.T) {
	idx := Build(fixture(), DefaultOptions())
	first := idx.Search("cat | report")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, idx.Search("cat | report"))
	}
}

func TestFieldNorm(t *testing.T) {
	assert.Equal(t, 1.0, fieldNorm("one"))
	assert.Equal(t, 0.707, fieldNorm("one two"))
	assert.Equal(t, 0.5, fieldNorm("a b  c d"))
	assert.Equal(t, 1.0, fieldNorm(""))
}

func TestSerializedIndexMatchesBuilt(t *testing.T) {
	msgs := fixture()
	built := Build(msgs, DefaultOptions())
	data, err := built.Serialize()
	require.NoError(t, err)

	loaded, err := Load(msgs, data, DefaultOptions())
	require.NoError(t, err)

	for _, q := range []string{"", "hello", "cat", "reveneu", "^hello | 'png", "!cat"} {
		assert.Equal(t, built.Search(q), loaded.Search(q), "query %q", q)
	}
}

func TestLoadToleratesStaleRecords(t *testing.T) {
	old := fixture()
	data, err := Build(old, DefaultOptions()).Serialize()
	require.NoError(t, err)

	msgs := archive.Prepare([]archive.Message{
		{ID: 1, Text: "hello world, edited"},
		{ID: 9, Text: "brand new hello"},
	})
	loaded, err := Load(msgs, data, DefaultOptions())
	require.NoError(t, err)
	built := Build(msgs, DefaultOptions())
	assert.Equal(t, built.Search("hello"), loaded.Search("hello"))
	assert.Equal(t, 2, loaded.Len())
}

func TestLoadRejectsIncompatibleIndex(t *testing.T) {
	msgs := fixture()
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{"version":`},
		{"version", `{"version":2,"keys":["plainText","media","ocr"],"records":[]}`},
		{"keys", `{"version":1,"keys":["text"],"records":[]}`},
		{"key order", `{"version":1,"keys":["ocr","media","plainText"],"records":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(msgs, []byte(tt.data), DefaultOptions())
			var ierr *IndexError
			require.True(t, errors.As(err, &ierr), "got %v", err)
			assert.False(t, ierr.Foreign)
		})
	}
}

func TestLoadFlagsForeignIndex(t *testing.T) {
	// the shape of an index exported by a JavaScript fuzzy-search library
	data := `{"keys":[{"path":["plainText"],"id":"plainText","weight":1,"src":"plainText"}],"records":[{"i":0,"$":{"0":{"v":"hello","n":1}}}]}`
	_, err := Load(fixture(), []byte(data), DefaultOptions())
	var ierr *IndexError
	require.True(t, errors.As(err, &ierr), "got %v", err)
	assert.True(t, ierr.Foreign)
}

func BenchmarkSearch(b *testing.B) {
	msgs := make([]archive.Message, 10000)
	for i := range msgs {
		msgs[i] = archive.Message{ID: int64(i + 1), PlainText: fmt.Sprintf("message number %d about cats and dogs", i), Text: "x"}
	}
	idx := Build(msgs, DefaultOptions())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx.Search("dgos")
	}
}
