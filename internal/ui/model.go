// Package ui is the terminal front-end: a search box over a virtualized list
// of archived messages with an image lightbox.
package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
	"github.com/tchow-twistedxcom/tgarchive/internal/clipboard"
	"github.com/tchow-twistedxcom/tgarchive/internal/highlight"
	"github.com/tchow-twistedxcom/tgarchive/internal/logging"
	"github.com/tchow-twistedxcom/tgarchive/internal/platform"
	"github.com/tchow-twistedxcom/tgarchive/internal/search"
	"github.com/tchow-twistedxcom/tgarchive/internal/viewer"
)

var uiLog = logging.ForComponent(logging.CompUI)

// Loader produces the archive to view. It runs off the update loop.
type Loader func(ctx context.Context) (*viewer.Archive, error)

// Options configure the terminal viewer.
type Options struct {
	Viewer viewer.Options
	Load   Loader
	// ImagesDir resolves relative media paths.
	ImagesDir string
	// Debounce delays running a query after the last keystroke.
	Debounce time.Duration
	// Theme is the configured theme name; "system" follows the OS.
	Theme string
	// Open launches external viewers. Defaults to platform.OpenFile.
	Open func(target string) error
	// Copy puts text on the clipboard. Defaults to clipboard.Copy.
	Copy func(text string) error
}

type (
	archiveLoadedMsg struct {
		arc *viewer.Archive
		err error
	}
	queryMsg     struct{ term string }
	highlightMsg struct {
		key string
		gen uint64
	}
	openedMsg struct {
		target string
		err    error
	}
	copiedMsg struct {
		id   int64
		what string
		err  error
	}
)

// Model is the bubbletea model of the terminal viewer.
type Model struct {
	ctx  context.Context
	opts Options

	v       *viewer.Viewer
	input   textinput.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap
	themes  *ThemeWatcher

	width  int
	height int

	loading bool
	err     error
	status  string

	rows  []viewer.Row
	cache map[string]renderedRow
}

type renderedRow struct {
	gen         uint64
	highlighted bool
	lines       []string
}

// New returns a model that loads its archive on Init.
func New(ctx context.Context, opts Options) *Model {
	if opts.Open == nil {
		opts.Open = platform.OpenFile
	}
	if opts.Copy == nil {
		opts.Copy = func(text string) error {
			_, err := clipboard.Copy(text)
			return err
		}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 120 * time.Millisecond
	}

	ti := textinput.New()
	ti.Placeholder = "Search messages..."
	ti.Prompt = SearchPromptStyle.Render("/ ")
	ti.CharLimit = 256

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	m := &Model{
		ctx:     ctx,
		opts:    opts,
		input:   ti,
		spinner: sp,
		help:    help.New(),
		keys:    defaultKeys(),
		loading: true,
		cache:   make(map[string]renderedRow),
	}
	if opts.Theme == "system" {
		m.themes = NewThemeWatcher(ctx)
	}
	return m
}

// Init starts loading the archive.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.load}
	if m.themes != nil {
		cmds = append(cmds, m.themes.listen())
	}
	return tea.Batch(cmds...)
}

func (m *Model) load() tea.Msg {
	if m.opts.Load == nil {
		return archiveLoadedMsg{err: fmt.Errorf("no archive configured")}
	}
	arc, err := m.opts.Load(m.ctx)
	return archiveLoadedMsg{arc: arc, err: err}
}

// Close releases the viewer and stops the theme watcher.
func (m *Model) Close() {
	if m.v != nil {
		m.v.Close()
	}
	if m.themes != nil {
		m.themes.Close()
	}
}

// Viewer returns the current viewer (nil while loading).
func (m *Model) Viewer() *viewer.Viewer { return m.v }

func (m *Model) listHeight() int {
	// search box (3) + status (1) + help
	return max(m.height-4-lipgloss.Height(m.help.View(m.keys)), 1)
}

func (m *Model) painter() rowPainter {
	p := rowPainter{width: m.width}
	if m.v != nil {
		p.reg = m.v.Registry()
		p.markers = m.v.Highlighter().Mode() == highlight.ModeSplice
	}
	return p
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width != m.width {
			clear(m.cache)
		}
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(m.width-8, 10)
		m.help.Width = m.width
		if m.v != nil {
			m.v.Resize(m.listHeight())
		}
		return m, m.relayout()

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case archiveLoadedMsg:
		return m, m.applyArchive(msg)

	case queryMsg:
		if m.v == nil || msg.term != m.input.Value() {
			return m, nil
		}
		m.v.SetQuery(msg.term)
		return m, m.relayout()

	case highlightMsg:
		return m, m.commit(msg)

	case openedMsg:
		if msg.err != nil {
			m.status = "open failed: " + msg.err.Error()
			uiLog.Warn("open_external_failed", "target", msg.target, "error", msg.err)
		} else {
			m.status = "opened " + msg.target
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
			uiLog.Warn("clipboard_copy_failed", "id", msg.id, "error", msg.err)
		} else {
			m.status = fmt.Sprintf("copied %s of #%d", msg.what, msg.id)
		}
		return m, nil

	case themeChangedMsg:
		if msg.dark {
			InitTheme("dark")
		} else {
			InitTheme("light")
		}
		clear(m.cache)
		return m, tea.Batch(m.relayout(), m.themes.listen())

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) applyArchive(msg archiveLoadedMsg) tea.Cmd {
	m.loading = false
	m.err = msg.err
	arc := msg.arc
	if msg.err != nil {
		uiLog.Error("archive_load_failed", "error", msg.err)
		arc = viewer.Failed("", msg.err, search.DefaultOptions())
	}
	if m.v == nil {
		m.v = viewer.New(arc, m.opts.Viewer)
		m.input.Focus()
	} else {
		m.v.SetArchive(arc)
	}
	clear(m.cache)
	m.v.Resize(m.listHeight())
	m.status = ""
	if n := arc.Dataset.Skipped; n > 0 {
		m.status = fmt.Sprintf("%d malformed entries skipped", n)
	}
	return m.relayout()
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.v != nil && m.v.Lightbox().IsOpen() {
		return m, m.handleLightboxKey(msg)
	}
	if m.input.Focused() {
		return m, m.handleInputKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		if m.v != nil {
			m.v.Resize(m.listHeight())
		}
		return m, m.relayout()
	}
	if m.loading {
		return m, nil
	}
	if m.err != nil && key.Matches(msg, m.keys.Retry) {
		m.loading = true
		m.status = ""
		return m, tea.Batch(m.spinner.Tick, m.load)
	}
	if m.v == nil {
		return m, nil
	}

	page := max(m.listHeight()-1, 1)
	switch {
	case key.Matches(msg, m.keys.Search):
		m.input.Focus()
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Down):
		m.v.Scroll(1)
	case key.Matches(msg, m.keys.Up):
		m.v.Scroll(-1)
	case key.Matches(msg, m.keys.PageDown):
		m.v.Scroll(page)
	case key.Matches(msg, m.keys.PageUp):
		m.v.Scroll(-page)
	case key.Matches(msg, m.keys.Top):
		m.v.ScrollTo(0)
	case key.Matches(msg, m.keys.Bottom):
		m.v.ScrollTo(m.v.Window().MaxScroll())
	case key.Matches(msg, m.keys.Open):
		if r, ok := m.topRow(); ok && !m.v.OpenImage(r.Key) {
			m.status = "no image in this message"
		}
		return m, nil
	case key.Matches(msg, m.keys.Copy):
		return m, m.copyTop()
	default:
		return m, nil
	}
	return m, m.relayout()
}

func (m *Model) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.input.Blur()
		return nil
	case tea.KeyEnter:
		m.input.Blur()
		if m.v == nil {
			return nil
		}
		m.v.SetQuery(m.input.Value())
		return m.relayout()
	case tea.KeyDown, tea.KeyUp, tea.KeyPgDown, tea.KeyPgUp:
		m.input.Blur()
		_, cmd := m.handleKey(msg)
		return cmd
	}
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	term := m.input.Value()
	if term == before {
		return cmd
	}
	debounce := tea.Tick(m.opts.Debounce, func(time.Time) tea.Msg {
		return queryMsg{term: term}
	})
	return tea.Batch(cmd, debounce)
}

func (m *Model) handleLightboxKey(msg tea.KeyMsg) tea.Cmd {
	box := m.v.Lightbox()
	switch {
	case key.Matches(msg, m.keys.Close), key.Matches(msg, m.keys.Quit):
		box.Close()
	case key.Matches(msg, m.keys.External):
		slide, ok := box.Current()
		if !ok {
			return nil
		}
		target := m.resolveMedia(slide.Src)
		open := m.opts.Open
		return func() tea.Msg {
			return openedMsg{target: target, err: open(target)}
		}
	}
	return nil
}

func (m *Model) resolveMedia(src string) string {
	if archive.IsURL(src) || filepath.IsAbs(src) || m.opts.ImagesDir == "" {
		return src
	}
	return filepath.Join(m.opts.ImagesDir, filepath.FromSlash(src))
}

// copyTop copies the top row's deep link, or its text when the archive has
// no channel to link to.
func (m *Model) copyTop() tea.Cmd {
	r, ok := m.topRow()
	if !ok {
		return nil
	}
	what, text := "link", r.Link
	if text == "" {
		what = "text"
		if r.Doc != nil {
			text = r.Doc.Text()
		}
		if strings.TrimSpace(text) == "" {
			text = r.Message.OCR
		}
	}
	if strings.TrimSpace(text) == "" {
		m.status = "nothing to copy"
		return nil
	}
	id, copyFn := r.Message.ID, m.opts.Copy
	return func() tea.Msg {
		return copiedMsg{id: id, what: what, err: copyFn(text)}
	}
}

// topRow is the first row whose top edge is inside the viewport.
func (m *Model) topRow() (viewer.Row, bool) {
	scroll := m.v.Window().ScrollOffset()
	for _, r := range m.rows {
		if r.Item.Start >= scroll {
			return r, true
		}
	}
	if len(m.rows) > 0 {
		return m.rows[len(m.rows)-1], true
	}
	return viewer.Row{}, false
}

// lines returns the painted lines of r, reusing the cache while the row's
// generation and highlight state are unchanged.
func (m *Model) lines(r viewer.Row) []string {
	if c, ok := m.cache[r.Key]; ok && c.gen == r.Generation && c.highlighted == r.Highlighted {
		return c.lines
	}
	lines := m.painter().paint(r)
	m.cache[r.Key] = renderedRow{gen: r.Generation, highlighted: r.Highlighted, lines: lines}
	return lines
}

// relayout binds rows for the current window, measures them and schedules
// pending highlights.
func (m *Model) relayout() tea.Cmd {
	if m.v == nil || m.width == 0 {
		return nil
	}
	for pass := 0; pass < 3; pass++ {
		m.rows = m.v.Rows()
		settled := true
		for _, r := range m.rows {
			if h := len(m.lines(r)); h != r.Item.Size {
				m.v.Measure(r.Key, h)
				settled = false
			}
		}
		if settled {
			break
		}
	}
	m.pruneCache()

	var cmds []tea.Cmd
	for _, r := range m.rows {
		if r.Highlighted {
			continue
		}
		msg := highlightMsg{key: r.Key, gen: r.Generation}
		cmds = append(cmds, func() tea.Msg { return msg })
	}
	return tea.Batch(cmds...)
}

func (m *Model) pruneCache() {
	if len(m.cache) <= 4*len(m.rows)+16 {
		return
	}
	mounted := make(map[string]struct{}, len(m.rows))
	for _, r := range m.rows {
		mounted[r.Key] = struct{}{}
	}
	for k := range m.cache {
		if _, ok := mounted[k]; !ok {
			delete(m.cache, k)
		}
	}
}

func (m *Model) commit(msg highlightMsg) tea.Cmd {
	if m.v == nil || !m.v.Commit(msg.key, msg.gen) {
		return nil
	}
	r, ok := m.v.Row(msg.key)
	if !ok {
		return nil
	}
	for i := range m.rows {
		if m.rows[i].Key == r.Key {
			m.rows[i] = r
		}
	}
	if h := len(m.lines(r)); h != r.Item.Size {
		m.v.Measure(r.Key, h)
		return m.relayout()
	}
	return nil
}

// View renders the model.
func (m *Model) View() string {
	if m.width == 0 {
		return ""
	}
	if m.loading {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" Loading messages...")
	}

	var b strings.Builder
	b.WriteString(SearchBoxStyle.Width(max(m.width-2, 10)).Render(m.input.View()))
	b.WriteString("\n")

	if m.v != nil && m.v.Lightbox().IsOpen() {
		b.WriteString(m.lightboxView())
	} else {
		b.WriteString(m.listView())
	}
	b.WriteString("\n")
	b.WriteString(m.statusView())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) listView() string {
	height := m.listHeight()
	if m.err != nil {
		msg := ErrorStyle.Render("Failed to load archive: "+m.err.Error()) + "\n" +
			DimStyle.Render("press r to retry, q to quit")
		return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, wordwrap.String(msg, m.width))
	}
	if m.v.Total() == 0 {
		text := "No messages match."
		if m.v.Query() == "" {
			text = "The archive is empty."
		}
		return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, DimStyle.Render(text))
	}

	screen := make([]string, height)
	scroll := m.v.Window().ScrollOffset()
	for _, r := range m.rows {
		for j, line := range m.lines(r) {
			y := r.Item.Start + j - scroll
			if y >= 0 && y < height {
				screen[y] = line
			}
		}
	}
	return strings.Join(screen, "\n")
}

func (m *Model) lightboxView() string {
	slide, _ := m.v.Lightbox().Current()
	inner := max(min(m.width-8, 72), 20)
	body := LightboxTitleStyle.Render(fmt.Sprintf("Image · message #%d", slide.MessageID)) + "\n\n" +
		runewidth.Truncate(m.resolveMedia(slide.Src), inner, "…") + "\n\n" +
		wordwrap.String(slide.Alt, inner) + "\n\n" +
		DimStyle.Render("o open externally · esc close")
	box := LightboxStyle.Width(inner + 4).Render(body)
	return lipgloss.Place(m.width, m.listHeight(), lipgloss.Center, lipgloss.Center, box)
}

func (m *Model) statusView() string {
	var parts []string
	if m.v != nil {
		if q := m.v.Query(); q != "" {
			parts = append(parts, fmt.Sprintf("%d of %d", m.v.Total(), m.v.Archive().Len()))
		} else {
			parts = append(parts, fmt.Sprintf("%d messages", m.v.Total()))
		}
		if r, ok := m.topRow(); ok {
			parts = append(parts, fmt.Sprintf("at %d", r.Item.Index+1))
		}
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	line := runewidth.Truncate(strings.Join(parts, " · "), max(m.width-2, 1), "…")
	return StatusBarStyle.Width(m.width).Render(line)
}
