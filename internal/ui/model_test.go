package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
	"github.com/tchow-twistedxcom/tgarchive/internal/highlight"
	"github.com/tchow-twistedxcom/tgarchive/internal/search"
	"github.com/tchow-twistedxcom/tgarchive/internal/viewer"
)

func testArchive(msgs []archive.Message) *viewer.Archive {
	ds := &archive.Dataset{Messages: archive.Prepare(msgs), Source: "test"}
	return viewer.NewArchive(ds, search.DefaultOptions())
}

func newTestModel(t *testing.T, load Loader, mutate ...func(*Options)) *Model {
	t.Helper()
	opts := Options{
		Viewer:   viewer.DefaultOptions(),
		Load:     load,
		Debounce: time.Millisecond,
	}
	opts.Viewer.Deferred = true
	for _, f := range mutate {
		f(&opts)
	}
	m := New(context.Background(), opts)
	m.input.Cursor.SetMode(cursor.CursorStatic)
	t.Cleanup(m.Close)
	send(m, tea.WindowSizeMsg{Width: 80, Height: 24})
	return m
}

func staticLoader(msgs []archive.Message) Loader {
	arc := testArchive(msgs)
	return func(context.Context) (*viewer.Archive, error) { return arc, nil }
}

// send delivers msg and runs the commands it produces, skipping timers that
// would keep the loop alive.
func send(m *Model, msg tea.Msg) {
	_, cmd := m.Update(msg)
	run(m, cmd, 0)
}

func run(m *Model, cmd tea.Cmd, depth int) {
	if cmd == nil || depth > 8 {
		return
	}
	switch msg := cmd().(type) {
	case nil:
	case tea.BatchMsg:
		for _, c := range msg {
			run(m, c, depth+1)
		}
	case spinner.TickMsg:
	default:
		_, next := m.Update(msg)
		run(m, next, depth+1)
	}
}

func loaded(t *testing.T, msgs []archive.Message, mutate ...func(*Options)) *Model {
	t.Helper()
	m := newTestModel(t, staticLoader(msgs), mutate...)
	send(m, m.load())
	require.NotNil(t, m.Viewer())
	return m
}

func typeText(m *Model, s string) {
	for _, r := range s {
		send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

var fixture = []archive.Message{
	{ID: 1, Text: "hello world"},
	{ID: 2, Text: "goodbye"},
	{ID: 3, Media: "images/cat.png", OCR: "a cat on a mat"},
}

func TestLoadingView(t *testing.T) {
	m := newTestModel(t, staticLoader(fixture))
	assert.Contains(t, m.View(), "Loading messages...")

	send(m, m.load())
	view := m.View()
	assert.NotContains(t, view, "Loading messages...")
	assert.Contains(t, view, "#3")
	assert.Contains(t, view, "goodbye")
	assert.Contains(t, view, "hello world")
}

func TestLoadFailureAndRetry(t *testing.T) {
	attempts := 0
	load := func(context.Context) (*viewer.Archive, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("connection refused")
		}
		return testArchive(fixture), nil
	}
	m := newTestModel(t, load)
	send(m, m.load())

	view := m.View()
	assert.Contains(t, view, "Failed to load archive: connection refused")
	assert.Contains(t, view, "press r to retry")
	assert.Equal(t, 0, m.Viewer().Total())

	// the search box has focus after a load; leave it first
	send(m, tea.KeyMsg{Type: tea.KeyEsc})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	assert.True(t, m.loading)
	run(m, cmd, 0)

	assert.Equal(t, 2, attempts)
	assert.NoError(t, m.err)
	assert.Equal(t, 3, m.Viewer().Total())
	assert.Contains(t, m.View(), "hello world")
}

func TestTypingRunsDebouncedQuery(t *testing.T) {
	m := loaded(t, fixture, func(o *Options) { o.Viewer.Highlight = highlight.ModeSplice })
	typeText(m, "hello")

	assert.Equal(t, "hello", m.Viewer().Query())
	assert.Equal(t, 1, m.Viewer().Total())

	view := m.View()
	assert.Contains(t, view, "[hello] world")
	assert.NotContains(t, view, "goodbye")
	assert.Contains(t, view, "1 of 3")
}

func TestStaleDebounceIgnored(t *testing.T) {
	m := loaded(t, fixture)
	m.input.SetValue("goodbye")
	send(m, queryMsg{term: "hel"})
	assert.Equal(t, "", m.Viewer().Query())
}

func TestHighlightRetractedAfterNewQuery(t *testing.T) {
	m := loaded(t, fixture, func(o *Options) { o.Viewer.Highlight = highlight.ModeSplice })
	typeText(m, "hello")
	require.Contains(t, m.View(), "[hello]")

	m.input.SetValue("")
	send(m, tea.KeyMsg{Type: tea.KeyEnter})
	view := m.View()
	assert.Contains(t, view, "hello world")
	assert.NotContains(t, view, "[")
	assert.Zero(t, m.Viewer().Registry().Len())
}

func TestPendingHighlightCommitsAsync(t *testing.T) {
	m := loaded(t, fixture)
	m.Viewer().SetQuery("cat")
	_, cmd := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	require.NotEmpty(t, m.rows)
	for _, r := range m.rows {
		assert.False(t, r.Highlighted)
	}
	run(m, cmd, 0)
	require.Len(t, m.rows, 1)
	assert.True(t, m.rows[0].Highlighted)
	assert.True(t, highlight.HasMatch(m.rows[0].OCR))
}

func TestStaleHighlightMessageDropped(t *testing.T) {
	m := loaded(t, fixture)
	require.NotEmpty(t, m.rows)
	r := m.rows[0]
	send(m, highlightMsg{key: r.Key, gen: r.Generation + 1000})
	assert.Equal(t, r, m.rows[0])
	assert.Nil(t, m.commit(highlightMsg{key: "missing", gen: 1}))
}

func TestScrollKeys(t *testing.T) {
	msgs := make([]archive.Message, 200)
	for i := range msgs {
		msgs[i] = archive.Message{ID: int64(i + 1), Text: fmt.Sprintf("message %d", i+1)}
	}
	m := loaded(t, msgs)
	send(m, tea.KeyMsg{Type: tea.KeyEsc})

	send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	assert.Equal(t, 1, m.Viewer().Window().ScrollOffset())
	send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'G'}})
	assert.Equal(t, m.Viewer().Window().MaxScroll(), m.Viewer().Window().ScrollOffset())
	assert.Contains(t, m.View(), "message 1\n")
	send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'g'}})
	assert.Equal(t, 0, m.Viewer().Window().ScrollOffset())
	assert.Contains(t, m.View(), "message 200")

	// mounted rows stay bounded by the viewport
	assert.Less(t, len(m.rows), 40)
}

func TestLightbox(t *testing.T) {
	var opened []string
	m := loaded(t, fixture, func(o *Options) {
		o.ImagesDir = "/data/archive"
		o.Open = func(target string) error {
			opened = append(opened, target)
			return nil
		}
	})
	send(m, tea.KeyMsg{Type: tea.KeyEsc})

	// newest first: message 3 carries the image
	send(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, m.Viewer().Lightbox().IsOpen())
	view := m.View()
	assert.Contains(t, view, "message #3")
	assert.Contains(t, view, "/data/archive/images/cat.png")
	assert.Contains(t, view, "a cat on a mat")

	send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'o'}})
	assert.Equal(t, []string{"/data/archive/images/cat.png"}, opened)
	assert.Contains(t, m.status, "opened")

	send(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.Viewer().Lightbox().IsOpen())
}

func TestLightboxNoImage(t *testing.T) {
	m := loaded(t, []archive.Message{{ID: 1, Text: "text only"}})
	send(m, tea.KeyMsg{Type: tea.KeyEsc})
	send(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.Viewer().Lightbox().IsOpen())
	assert.Equal(t, "no image in this message", m.status)
}

func TestEmptyStates(t *testing.T) {
	m := loaded(t, nil)
	assert.Contains(t, m.View(), "The archive is empty.")

	m = loaded(t, fixture)
	m.Viewer().SetQuery("zzzzqqqq")
	send(m, tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Contains(t, m.View(), "No messages match.")
}

func TestRowsMeasuredToPaintedHeight(t *testing.T) {
	long := strings.Repeat("word ", 60)
	m := loaded(t, []archive.Message{{ID: 1, Text: long}, {ID: 2, Text: "short"}})
	for _, r := range m.rows {
		assert.Equal(t, len(m.lines(r)), r.Item.Size, r.Key)
	}
}

func TestQuitKeys(t *testing.T) {
	m := loaded(t, fixture)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestCopyKey(t *testing.T) {
	var copied []string
	stub := func(o *Options) {
		o.Copy = func(text string) error {
			copied = append(copied, text)
			return nil
		}
	}

	arc := testArchive(fixture)
	arc.Channel = "@durov"
	m := newTestModel(t, func(context.Context) (*viewer.Archive, error) { return arc, nil }, stub)
	send(m, m.load())
	send(m, tea.KeyMsg{Type: tea.KeyEsc})
	send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	assert.Equal(t, []string{"https://t.me/durov/3"}, copied)
	assert.Equal(t, "copied link of #3", m.status)

	// without a channel the text is copied instead
	copied = nil
	m = loaded(t, fixture, stub)
	send(m, tea.KeyMsg{Type: tea.KeyEsc})
	send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	assert.Equal(t, []string{"a cat on a mat"}, copied)
	assert.Equal(t, "copied text of #3", m.status)
}

func TestCopyFailureReported(t *testing.T) {
	m := loaded(t, fixture, func(o *Options) {
		o.Copy = func(string) error { return errors.New("no clipboard") }
	})
	send(m, tea.KeyMsg{Type: tea.KeyEsc})
	send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	assert.Equal(t, "copy failed: no clipboard", m.status)
}
