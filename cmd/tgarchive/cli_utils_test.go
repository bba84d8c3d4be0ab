package main

import (
	"context"
	"flag"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
	"github.com/tchow-twistedxcom/tgarchive/internal/config"
	"github.com/tchow-twistedxcom/tgarchive/internal/highlight"
	"github.com/tchow-twistedxcom/tgarchive/internal/search"
	"github.com/tchow-twistedxcom/tgarchive/internal/snapshot"
)

func TestNormalizeArgs(t *testing.T) {
	newFS := func() *flag.FlagSet {
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		fs.Bool("json", false, "")
		fs.Int("limit", 0, "")
		return fs
	}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"flags first", []string{"--json", "cat"}, []string{"--json", "cat"}},
		{"bool after positional", []string{"cat", "--json"}, []string{"--json", "cat"}},
		{"value flag after positional", []string{"cat", "--limit", "5"}, []string{"--limit", "5", "cat"}},
		{"equals form", []string{"cat", "--limit=5", "dog"}, []string{"--limit=5", "cat", "dog"}},
		{"double dash", []string{"cat", "--json", "--", "-negative"}, []string{"--json", "--", "cat", "-negative"}},
		{"lone dash is positional", []string{"-", "--json"}, []string{"--json", "-"}},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeArgs(newFS(), tt.args))
		})
	}
}

func TestNormalizeArgsIntegration(t *testing.T) {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "")
	limit := fs.Int("limit", 20, "")

	require.NoError(t, parseFlags(fs, []string{"hello", "world", "--json", "--limit", "3"}))
	assert.True(t, *jsonOut)
	assert.Equal(t, 3, *limit)
	assert.Equal(t, []string{"hello", "world"}, fs.Args())
}

func TestParseFlagsHelpIsUsage(t *testing.T) {
	fs := flag.NewFlagSet("x", flag.ContinueOnError)
	fs.Usage = func() {}
	assert.ErrorIs(t, parseFlags(fs, []string{"-h"}), errUsage)
	assert.ErrorIs(t, parseFlags(fs, []string{"--bogus"}), errUsage)
}

func TestArchiveFlagsResolve(t *testing.T) {
	cfg := &config.Config{Archive: config.ArchiveSettings{Channel: "cfgchannel"}}

	fs := flag.NewFlagSet("x", flag.ContinueOnError)
	af := addArchiveFlags(fs, true)
	require.NoError(t, fs.Parse(nil))
	src, images, channel := af.resolve(cfg)
	assert.Equal(t, "messages.json", src.Data)
	assert.Equal(t, "fuse-index.json", src.Index)
	assert.Equal(t, ".", images)
	assert.Equal(t, "cfgchannel", channel)

	fs = flag.NewFlagSet("x", flag.ContinueOnError)
	af = addArchiveFlags(fs, true)
	require.NoError(t, fs.Parse([]string{"--data", "/srv/archive.db", "--channel", "flagchannel"}))
	src, images, channel = af.resolve(cfg)
	assert.Equal(t, "/srv/archive.db", src.Data)
	assert.Empty(t, src.Index, "snapshots carry their own index")
	assert.Equal(t, "/srv", images)
	assert.Equal(t, "flagchannel", channel)

	fs = flag.NewFlagSet("x", flag.ContinueOnError)
	af = addArchiveFlags(fs, false)
	require.NoError(t, fs.Parse([]string{"--data", "https://example.com/messages.json"}))
	_, images, _ = af.resolve(cfg)
	assert.Empty(t, images)
}

func TestLoadArchiveChannelPrecedence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.db")
	store, err := snapshot.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	require.NoError(t, store.Save(ctx, []archive.Message{{ID: 1, Text: "hi", PlainText: "hi"}}, nil, "stored"))
	require.NoError(t, store.Close())

	arc, err := loadArchive(ctx, archive.Source{Data: path}, search.DefaultOptions(), "")
	require.NoError(t, err)
	assert.Equal(t, "stored", arc.Channel)

	arc, err = loadArchive(ctx, archive.Source{Data: path}, search.DefaultOptions(), "override")
	require.NoError(t, err)
	assert.Equal(t, "override", arc.Channel)
}

func TestViewerOptionsFromConfig(t *testing.T) {
	overscan := 2
	reset := false
	cfg := &config.Config{View: config.ViewSettings{
		Overscan:           &overscan,
		ResetScrollOnQuery: &reset,
		Highlight:          "splice",
	}}

	opts, err := viewerOptions(cfg, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, opts.Window.EstimateSize)
	assert.Equal(t, 2, opts.Window.Overscan)
	assert.False(t, opts.ResetScrollOnQuery)
	assert.Equal(t, highlight.ModeSplice, opts.Highlight)

	cfg.View.Highlight = "glitter"
	_, err = viewerOptions(cfg, 7)
	assert.Error(t, err)
}

func TestSearchOptionsFromConfig(t *testing.T) {
	exact := 0.0
	off := false
	cfg := &config.Config{Search: config.SearchSettings{Threshold: &exact, Extended: &off}}

	opts := searchOptions(cfg)
	assert.Equal(t, 0.0, opts.Threshold)
	assert.False(t, opts.Extended)

	opts = searchOptions(&config.Config{})
	assert.Equal(t, 0.3, opts.Threshold)
	assert.True(t, opts.Extended)
}

func TestParseColorProfile(t *testing.T) {
	for _, name := range []string{"truecolor", "256", "16", "none", "ASCII"} {
		_, ok := parseColorProfile(name)
		assert.True(t, ok, name)
	}
	_, ok := parseColorProfile("sepia")
	assert.False(t, ok)
}
