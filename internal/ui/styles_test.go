package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tchow-twistedxcom/tgarchive/internal/richtext"
)

func TestInitTheme(t *testing.T) {
	t.Cleanup(func() { InitTheme("dark") })

	InitTheme("light")
	assert.Equal(t, ThemeLight, GetCurrentTheme())
	assert.Equal(t, lightColors.Accent, colors.Accent)

	InitTheme("anything else")
	assert.Equal(t, ThemeDark, GetCurrentTheme())
	assert.Equal(t, darkColors.Accent, colors.Accent)
}

func TestPaletteComplete(t *testing.T) {
	for _, p := range []palette{darkColors, lightColors} {
		for _, c := range []string{string(p.Bg), string(p.Text), string(p.Accent), string(p.Yellow), string(p.Comment)} {
			assert.NotEmpty(t, c)
		}
	}
}

func TestEmphasisStyle(t *testing.T) {
	s := EmphasisStyle(richtext.Bold | richtext.Italic)
	assert.True(t, s.GetBold())
	assert.True(t, s.GetItalic())
	assert.False(t, s.GetUnderline())

	code := EmphasisStyle(richtext.Code)
	assert.Equal(t, colors.Orange, code.GetForeground())

	plain := EmphasisStyle(0)
	assert.Equal(t, colors.Text, plain.GetForeground())
}
