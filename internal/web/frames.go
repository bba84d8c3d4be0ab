package web

import (
	"github.com/tchow-twistedxcom/tgarchive/internal/highlight"
	"github.com/tchow-twistedxcom/tgarchive/internal/richtext"
	"github.com/tchow-twistedxcom/tgarchive/internal/search"
	"github.com/tchow-twistedxcom/tgarchive/internal/viewer"
)

// windowFrame is the mounted slice of a view, sent as `window`. Seq echoes
// the last scroll frame the session handled; a client only adopts Scroll
// from a frame that answers its latest scroll.
type windowFrame struct {
	Type      string     `json:"type"`
	Query     string     `json:"query"`
	Total     int        `json:"total"`
	TotalSize int        `json:"totalSize"`
	Scroll    int        `json:"scroll"`
	Seq       uint64     `json:"seq"`
	Mode      string     `json:"mode"`
	Rows      []rowFrame `json:"rows"`
}

type rowFrame struct {
	Key         string              `json:"key"`
	Slot        int                 `json:"slot"`
	Generation  uint64              `json:"generation"`
	Index       int                 `json:"index"`
	Start       int                 `json:"start"`
	Size        int                 `json:"size"`
	ID          int64               `json:"id"`
	Link        string              `json:"link,omitempty"`
	Markup      string              `json:"markup"`
	Ranges      []richtext.Range    `json:"ranges,omitempty"`
	Media       string              `json:"media,omitempty"`
	MediaMarks  []highlight.Segment `json:"mediaSegments,omitempty"`
	OCR         []highlight.Segment `json:"ocrSegments,omitempty"`
	Alt         string              `json:"alt"`
	Highlighted bool                `json:"highlighted"`
	Score       float64             `json:"score"`
	Fields      []search.FieldMatch `json:"fields,omitempty"`
}

func newWindowFrame(v *viewer.Viewer, rows []viewer.Row) windowFrame {
	frame := windowFrame{
		Type:      "window",
		Query:     v.Query(),
		Total:     v.Total(),
		TotalSize: v.Window().TotalSize(),
		Scroll:    v.Window().ScrollOffset(),
		Mode:      string(v.Highlighter().Mode()),
		Rows:      make([]rowFrame, 0, len(rows)),
	}
	for _, r := range rows {
		frame.Rows = append(frame.Rows, newRowFrame(r))
	}
	return frame
}

func newRowFrame(r viewer.Row) rowFrame {
	rf := rowFrame{
		Key:         r.Key,
		Slot:        r.Slot,
		Generation:  r.Generation,
		Index:       r.Item.Index,
		Start:       r.Item.Start,
		Size:        r.Item.Size,
		ID:          r.Message.ID,
		Link:        r.Link,
		Markup:      r.Text.Markup,
		Media:       r.Message.Media,
		Alt:         r.Message.AltText(),
		Highlighted: r.Highlighted,
		Score:       r.Result.Score,
		Fields:      r.Result.Fields,
	}
	if r.Highlighted {
		rf.Ranges = r.Text.Ranges
	}
	if r.Message.Media != "" {
		rf.MediaMarks = r.Media
	}
	if r.Message.OCR != "" {
		rf.OCR = r.OCR
	}
	return rf
}
