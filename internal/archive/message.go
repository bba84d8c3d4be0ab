// Package archive loads the static message dataset and keeps the working set
// invariants: only non-empty messages, ordered by id descending.
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tchow-twistedxcom/tgarchive/internal/logging"
	"github.com/tchow-twistedxcom/tgarchive/internal/richtext"
)

var archiveLog = logging.ForComponent(logging.CompArchive)

// Message is one exported channel message.
type Message struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Media     string `json:"media,omitempty"`
	OCR       string `json:"ocr,omitempty"`
	PlainText string `json:"plainText"`
}

// IsEmpty reports whether the message has no text, media or OCR content.
func (m Message) IsEmpty() bool {
	return m.Text == "" && m.Media == "" && m.OCR == ""
}

// AltText is the description used for the message image.
func (m Message) AltText() string {
	switch {
	case m.OCR != "":
		return m.OCR
	case m.PlainText != "":
		return m.PlainText
	default:
		return "Media"
	}
}

// DeepLink returns the public t.me link of a channel message.
func DeepLink(channel string, id int64) string {
	return fmt.Sprintf("https://t.me/%s/%d", strings.TrimPrefix(channel, "@"), id)
}

// Filter returns the messages that carry any content, preserving order.
func Filter(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.IsEmpty() {
			out = append(out, m)
		}
	}
	return out
}

// SortByIDDesc orders messages by id, newest first. Duplicate ids keep their
// relative order.
func SortByIDDesc(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].ID > msgs[j].ID })
}

// Prepare applies the working set invariants: plainText is filled in where
// the dataset lacks it, empty records are dropped and the rest sorted.
func Prepare(msgs []Message) []Message {
	for i := range msgs {
		if msgs[i].PlainText == "" && msgs[i].Text != "" {
			msgs[i].PlainText = richtext.Project(msgs[i].Text)
		}
	}
	out := Filter(msgs)
	SortByIDDesc(out)
	return out
}

// Reproject recomputes plainText from text for every message, discarding
// whatever projection the dataset carried.
func Reproject(msgs []Message) {
	for i := range msgs {
		msgs[i].PlainText = richtext.Project(msgs[i].Text)
	}
}

// Decode parses a dataset document. Entries that are not objects or lack an
// integer id are skipped and counted; string fields of the wrong type are
// treated as absent.
func Decode(data []byte) ([]Message, int, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, 0, fmt.Errorf("decode dataset: %w", err)
	}

	msgs := make([]Message, 0, len(entries))
	skipped := 0
	for i, raw := range entries {
		m, err := decodeEntry(raw)
		if err != nil {
			skipped++
			archiveLog.Warn("entry_skipped", "index", i, "error", err)
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, skipped, nil
}

func decodeEntry(raw json.RawMessage) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Message{}, fmt.Errorf("entry is not an object")
	}

	idRaw, ok := fields["id"]
	if !ok {
		return Message{}, fmt.Errorf("entry has no id")
	}
	if trimmed := bytes.TrimSpace(idRaw); len(trimmed) > 0 && trimmed[0] == '"' {
		return Message{}, fmt.Errorf("id is a string")
	}
	dec := json.NewDecoder(bytes.NewReader(idRaw))
	dec.UseNumber()
	var num json.Number
	if err := dec.Decode(&num); err != nil {
		return Message{}, fmt.Errorf("id is not a number")
	}
	id, err := num.Int64()
	if err != nil {
		return Message{}, fmt.Errorf("id %s is not an integer", num)
	}

	return Message{
		ID:        id,
		Text:      stringField(fields, "text"),
		Media:     stringField(fields, "media"),
		OCR:       stringField(fields, "ocr"),
		PlainText: stringField(fields, "plainText"),
	}, nil
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Encode renders messages as a dataset document.
func Encode(msgs []Message) ([]byte, error) {
	if msgs == nil {
		msgs = []Message{}
	}
	return json.MarshalIndent(msgs, "", "  ")
}
