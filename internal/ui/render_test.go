package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
	"github.com/tchow-twistedxcom/tgarchive/internal/highlight"
	"github.com/tchow-twistedxcom/tgarchive/internal/richtext"
	"github.com/tchow-twistedxcom/tgarchive/internal/viewer"
)

func TestPaintDocumentKeepsText(t *testing.T) {
	doc := richtext.MustParse("<b>hello</b> <i>world</i>")
	out := paintDocument(doc, []richtext.Range{{Node: 2, Start: 0, End: 5}})
	// tests run without a colour profile, so styling is invisible
	assert.Equal(t, "hello world", out)
}

func TestPaintDocumentClampsRanges(t *testing.T) {
	doc := richtext.MustParse("abc")
	assert.Equal(t, "abc", paintDocument(doc, []richtext.Range{{Node: 0, Start: 1, End: 99}, {Node: 0, Start: 0, End: 2}}))
	assert.Equal(t, "", paintDocument(richtext.Plain(""), nil))
}

func TestPaintRunPreservesNewlines(t *testing.T) {
	assert.Equal(t, "one\n\ntwo", paintRun(DimStyle, "one\n\ntwo"))
	assert.Equal(t, "", paintRun(DimStyle, ""))
}

func prepareRow(t *testing.T, mode highlight.Mode, text, query string) (viewer.Row, *highlight.Registry) {
	t.Helper()
	opts := viewer.DefaultOptions()
	opts.Highlight = mode
	v := viewer.New(testArchive([]archive.Message{{ID: 9, Text: text, Media: "images/9.jpg", OCR: "scanned " + query}}), opts)
	v.Resize(40)
	v.SetQuery(query)
	rows := v.Rows()
	require.Len(t, rows, 1)
	return rows[0], v.Registry()
}

func TestPaintRowMarkers(t *testing.T) {
	row, reg := prepareRow(t, highlight.ModeSplice, "find the needle here", "needle")
	lines := rowPainter{width: 40, markers: true, reg: reg}.paint(row)
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Equal(t, "#9", lines[0])
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "find the [needle] here")
	assert.Contains(t, joined, "OCR Text: scanned [needle]")
	assert.Contains(t, joined, "▣ images/9.jpg")
	assert.Equal(t, strings.Repeat("─", 40), lines[len(lines)-1])
}

func TestPaintRowWraps(t *testing.T) {
	row, reg := prepareRow(t, highlight.ModeRanges, strings.Repeat("lorem ipsum ", 20), "ipsum")
	lines := rowPainter{width: 30, reg: reg}.paint(row)
	for _, l := range lines {
		assert.LessOrEqual(t, lipgloss.Width(l), 30, l)
	}
	assert.Greater(t, len(lines), 8)
}

func TestPaintRowLink(t *testing.T) {
	row, reg := prepareRow(t, highlight.ModeRanges, "x", "x")
	row.Link = "https://t.me/" + strings.Repeat("c", 80) + "/9"
	lines := rowPainter{width: 40, reg: reg}.paint(row)
	assert.True(t, strings.HasPrefix(lines[0], "#9  https://t.me/"))
	assert.LessOrEqual(t, lipgloss.Width(lines[0]), 40)
}
