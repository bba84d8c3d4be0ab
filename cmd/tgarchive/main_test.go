package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/term"

	"github.com/tchow-twistedxcom/tgarchive/internal/config"
)

func TestRunDispatch(t *testing.T) {
	assert.Equal(t, 0, run([]string{"version"}))
	assert.Equal(t, 0, run([]string{"help"}))
	assert.Equal(t, 0, run(nil))
	assert.Equal(t, 1, run([]string{"frobnicate"}))
	assert.Equal(t, 2, run([]string{"search", "--bogus"}))
}

func TestViewRefusesWithoutTerminal(t *testing.T) {
	if term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) {
		t.Skip("running attached to a terminal")
	}
	err := handleView(&config.Config{}, nil)
	assert.ErrorIs(t, err, errNoTerminal)
}

func TestViewRejectsBadHighlightMode(t *testing.T) {
	err := handleView(&config.Config{View: config.ViewSettings{Highlight: "neon"}}, nil)
	assert.Error(t, err)
}

func TestBuildWebServerServesLoadFailure(t *testing.T) {
	dir := t.TempDir()
	srv, err := buildWebServer(context.Background(), &config.Config{}, []string{
		"--data", filepath.Join(dir, "missing.json"),
		"--listen", "127.0.0.1:0",
	})
	require.NoError(t, err)

	arc := srv.Archive()
	assert.Zero(t, arc.Len())
	assert.Error(t, arc.Err)
	assert.Equal(t, "127.0.0.1:0", srv.Addr())
}

func TestBuildWebServerLoadsDataset(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "messages.json")
	require.NoError(t, os.WriteFile(data, []byte(`[{"id":1,"text":"hi"}]`), 0o644))

	srv, err := buildWebServer(context.Background(), &config.Config{
		Archive: config.ArchiveSettings{Channel: "chan"},
	}, []string{"--data", data, "--watch"})
	require.NoError(t, err)

	arc := srv.Archive()
	assert.Equal(t, 1, arc.Len())
	assert.Equal(t, "chan", arc.Channel)
	assert.NoError(t, arc.Err)
}

func TestBuildWebServerRejectsArgs(t *testing.T) {
	_, err := buildWebServer(context.Background(), &config.Config{}, []string{"extra"})
	assert.Error(t, err)
}
