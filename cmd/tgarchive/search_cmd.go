package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
	"github.com/tchow-twistedxcom/tgarchive/internal/config"
	"github.com/tchow-twistedxcom/tgarchive/internal/highlight"
	"github.com/tchow-twistedxcom/tgarchive/internal/search"
	"github.com/tchow-twistedxcom/tgarchive/internal/viewer"
)

const snippetWidth = 72

type searchHit struct {
	ID       int64               `json:"id"`
	Score    float64             `json:"score"`
	Link     string              `json:"link,omitempty"`
	Text     string              `json:"text,omitempty"`
	Media    string              `json:"media,omitempty"`
	OCR      string              `json:"ocr,omitempty"`
	Fields   []search.FieldMatch `json:"fields,omitempty"`
	Snippets map[string]string   `json:"snippets,omitempty"`
}

type searchOutput struct {
	Query   string      `json:"query"`
	Total   int         `json:"total"`
	Results []searchHit `json:"results"`
}

func handleSearch(cfg *config.Config, w io.Writer, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	af := addArchiveFlags(fs, false)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	limit := fs.Int("limit", 20, "Maximum number of results to print")
	fs.Usage = func() {
		fmt.Println("Usage: tgarchive search [options] <query>")
		fmt.Println()
		fmt.Println("Run one query and print the ranked results with the matches in [brackets].")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  tgarchive search cat")
		fmt.Println("  tgarchive search \"'invoice !draft\" --json")
	}
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *limit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	src, _, channel := af.resolve(cfg)
	arc, err := loadArchive(context.Background(), src, searchOptions(cfg), channel)
	if err != nil {
		return err
	}

	out := runSearch(arc, strings.Join(fs.Args(), " "), *limit)
	if *jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	printSearch(w, out)
	return nil
}

func runSearch(arc *viewer.Archive, query string, limit int) searchOutput {
	results := arc.Index.Search(query)
	out := searchOutput{Query: query, Total: len(results), Results: make([]searchHit, 0, min(limit, len(results)))}
	for _, r := range results {
		if len(out.Results) == limit {
			break
		}
		m := r.Message
		hit := searchHit{
			ID:     m.ID,
			Score:  r.Score,
			Text:   m.PlainText,
			Media:  m.Media,
			OCR:    m.OCR,
			Fields: r.Fields,
		}
		if arc.Channel != "" {
			hit.Link = archive.DeepLink(arc.Channel, m.ID)
		}
		for _, f := range r.Fields {
			if len(f.Spans) == 0 {
				continue
			}
			if hit.Snippets == nil {
				hit.Snippets = make(map[string]string)
			}
			hit.Snippets[f.Key] = snippet(highlight.MapSpans(fieldText(m, f.Key), f.Spans), snippetWidth)
		}
		out.Results = append(out.Results, hit)
	}
	return out
}

func fieldText(m *archive.Message, key string) string {
	switch key {
	case search.KeyMedia:
		return m.Media
	case search.KeyOCR:
		return m.OCR
	default:
		return m.PlainText
	}
}

// snippet brackets the matches and trims the text to about width cells,
// keeping the first match in view.
func snippet(segs []highlight.Segment, width int) string {
	lead := 0
	for _, s := range segs {
		if s.Match {
			break
		}
		lead += runewidth.StringWidth(s.Text)
	}
	text := strings.Join(strings.Fields(highlight.Bracket(segs, "[", "]")), " ")
	if lead > width/2 {
		skip := lead - width/4
		cut := 0
		for i, r := range text {
			if cut >= skip {
				text = "…" + text[i:]
				break
			}
			cut += runewidth.RuneWidth(r)
		}
	}
	return runewidth.Truncate(text, width, "…")
}

func printSearch(w io.Writer, out searchOutput) {
	if out.Total == 0 {
		fmt.Fprintln(w, "No messages match.")
		return
	}
	for _, hit := range out.Results {
		header := fmt.Sprintf("#%d  score %.3f", hit.ID, hit.Score)
		if hit.Link != "" {
			header += "  " + hit.Link
		}
		fmt.Fprintln(w, header)
		for _, key := range []string{search.KeyPlainText, search.KeyMedia, search.KeyOCR} {
			if s, ok := hit.Snippets[key]; ok {
				fmt.Fprintf(w, "  %-9s %s\n", key+":", s)
			}
		}
		fmt.Fprintln(w)
	}
	if out.Total > len(out.Results) {
		fmt.Fprintf(w, "%d of %d results shown\n", len(out.Results), out.Total)
	} else {
		fmt.Fprintf(w, "%d results\n", out.Total)
	}
}
