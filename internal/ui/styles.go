package ui

import (
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/tchow-twistedxcom/tgarchive/internal/richtext"
)

// Theme represents the current color scheme
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// currentTheme holds the active theme (set at init)
var currentTheme Theme = ThemeDark

type palette struct {
	Bg, Surface, Border, Text, TextDim  lipgloss.Color
	Accent, Purple, Cyan, Green, Yellow lipgloss.Color
	Orange, Red, Comment                lipgloss.Color
}

// Dark Theme - Tokyo Night
var darkColors = palette{
	Bg:      lipgloss.Color("#1a1b26"),
	Surface: lipgloss.Color("#24283b"),
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Purple:  lipgloss.Color("#bb9af7"),
	Cyan:    lipgloss.Color("#7dcfff"),
	Green:   lipgloss.Color("#9ece6a"),
	Yellow:  lipgloss.Color("#e0af68"),
	Orange:  lipgloss.Color("#ff9e64"),
	Red:     lipgloss.Color("#f7768e"),
	Comment: lipgloss.Color("#787fa0"),
}

// Light Theme - Tokyo Night Light variant
var lightColors = palette{
	Bg:      lipgloss.Color("#d5d6db"),
	Surface: lipgloss.Color("#e9e9ec"),
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Purple:  lipgloss.Color("#7847bd"),
	Cyan:    lipgloss.Color("#166775"),
	Green:   lipgloss.Color("#485e30"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Orange:  lipgloss.Color("#965027"),
	Red:     lipgloss.Color("#8c4351"),
	Comment: lipgloss.Color("#6a6d7c"),
}

// Active palette (set by InitTheme)
var colors palette

// themeMu protects the style variables during live theme switches.
var themeMu sync.RWMutex

// InitTheme sets the active color palette based on theme name.
// Must be called before any UI rendering.
func InitTheme(theme string) {
	themeMu.Lock()
	defer themeMu.Unlock()
	if theme == "light" {
		currentTheme = ThemeLight
		colors = lightColors
	} else {
		currentTheme = ThemeDark
		colors = darkColors
	}
	initStyles()
}

// GetCurrentTheme returns the active theme
func GetCurrentTheme() Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme
}

func init() {
	InitTheme("dark")
}

// Chrome
var (
	TitleStyle     lipgloss.Style
	DimStyle       lipgloss.Style
	ErrorStyle     lipgloss.Style
	StatusBarStyle lipgloss.Style
	SpinnerStyle   lipgloss.Style
)

// Search box
var (
	SearchBoxStyle    lipgloss.Style
	SearchPromptStyle lipgloss.Style
)

// Message rows
var (
	RowHeaderStyle lipgloss.Style
	RowLinkStyle   lipgloss.Style
	MediaStyle     lipgloss.Style
	OCRStyle       lipgloss.Style
	SeparatorStyle lipgloss.Style
	// MatchStyle paints registered highlight ranges.
	MatchStyle lipgloss.Style
)

// Lightbox
var (
	LightboxStyle      lipgloss.Style
	LightboxTitleStyle lipgloss.Style
)

var emphasisStyles map[richtext.Emphasis]lipgloss.Style

// initStyles initializes all style variables with current theme colors.
// Called by InitTheme after the palette is set.
func initStyles() {
	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(colors.Accent).
		Background(colors.Surface).
		Padding(0, 1)

	DimStyle = lipgloss.NewStyle().
		Foreground(colors.Comment)

	ErrorStyle = lipgloss.NewStyle().
		Foreground(colors.Red).
		Bold(true)

	StatusBarStyle = lipgloss.NewStyle().
		Foreground(colors.TextDim).
		Background(colors.Surface).
		Padding(0, 1)

	SpinnerStyle = lipgloss.NewStyle().
		Foreground(colors.Purple)

	SearchBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colors.Accent).
		Padding(0, 1)

	SearchPromptStyle = lipgloss.NewStyle().
		Foreground(colors.Accent).
		Bold(true)

	RowHeaderStyle = lipgloss.NewStyle().
		Foreground(colors.Cyan).
		Bold(true)

	RowLinkStyle = lipgloss.NewStyle().
		Foreground(colors.TextDim).
		Underline(true)

	MediaStyle = lipgloss.NewStyle().
		Foreground(colors.Green)

	OCRStyle = lipgloss.NewStyle().
		Foreground(colors.TextDim).
		Italic(true)

	SeparatorStyle = lipgloss.NewStyle().
		Foreground(colors.Border)

	MatchStyle = lipgloss.NewStyle().
		Foreground(colors.Bg).
		Background(colors.Yellow).
		Bold(true)

	LightboxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colors.Purple).
		Padding(1, 2)

	LightboxTitleStyle = lipgloss.NewStyle().
		Foreground(colors.Purple).
		Bold(true)

	emphasisStyles = map[richtext.Emphasis]lipgloss.Style{
		richtext.Bold:      lipgloss.NewStyle().Bold(true),
		richtext.Italic:    lipgloss.NewStyle().Italic(true),
		richtext.Underline: lipgloss.NewStyle().Underline(true),
		richtext.Strike:    lipgloss.NewStyle().Strikethrough(true),
		richtext.Code:      lipgloss.NewStyle().Foreground(colors.Orange),
		richtext.Spoiler:   lipgloss.NewStyle().Foreground(colors.Surface).Background(colors.Surface),
		richtext.Link:      lipgloss.NewStyle().Foreground(colors.Accent).Underline(true),
		richtext.Quote:     lipgloss.NewStyle().Foreground(colors.TextDim),
	}
}

var emphasisOrder = []richtext.Emphasis{
	richtext.Spoiler, richtext.Code, richtext.Link, richtext.Bold,
	richtext.Italic, richtext.Underline, richtext.Strike, richtext.Quote,
}

// EmphasisStyle combines the styles of every flag in e. Earlier flags in
// emphasisOrder win when two set the same property.
func EmphasisStyle(e richtext.Emphasis) lipgloss.Style {
	themeMu.RLock()
	defer themeMu.RUnlock()
	s := lipgloss.NewStyle()
	for _, flag := range emphasisOrder {
		if e.Has(flag) {
			s = s.Inherit(emphasisStyles[flag])
		}
	}
	return s.Inherit(lipgloss.NewStyle().Foreground(colors.Text))
}
