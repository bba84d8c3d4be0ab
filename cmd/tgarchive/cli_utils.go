package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
	"github.com/tchow-twistedxcom/tgarchive/internal/config"
	"github.com/tchow-twistedxcom/tgarchive/internal/highlight"
	"github.com/tchow-twistedxcom/tgarchive/internal/search"
	"github.com/tchow-twistedxcom/tgarchive/internal/snapshot"
	"github.com/tchow-twistedxcom/tgarchive/internal/viewer"
	"github.com/tchow-twistedxcom/tgarchive/internal/window"
)

// normalizeArgs moves flags in front of positional arguments, because the
// flag package stops at the first positional: "search cat --json" would
// otherwise treat --json as part of the query.
func normalizeArgs(fs *flag.FlagSet, args []string) []string {
	boolFlags := make(map[string]bool)
	fs.VisitAll(func(f *flag.Flag) {
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
			boolFlags[f.Name] = true
		}
	})

	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			// keep the terminator so "-x" after it stays positional
			positional = append(positional, args[i+1:]...)
			return append(append(flags, "--"), positional...)
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positional = append(positional, arg)
			continue
		}

		flags = append(flags, arg)
		name := strings.TrimLeft(arg, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if !boolFlags[name] && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	return append(flags, positional...)
}

// parseFlags parses args after normalizing them. -h prints usage and
// returns errUsage.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errUsage
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

// archiveFlags are the dataset location flags shared by view, serve and
// search. Empty values fall back to the [archive] config section.
type archiveFlags struct {
	data    *string
	index   *string
	images  *string
	channel *string
}

func addArchiveFlags(fs *flag.FlagSet, withImages bool) archiveFlags {
	af := archiveFlags{
		data:    fs.String("data", "", "Dataset path, URL or .db snapshot (default from config, else messages.json)"),
		index:   fs.String("index", "", "Serialized index path or URL (default from config, else fuse-index.json)"),
		channel: fs.String("channel", "", "Telegram channel for deep links"),
	}
	if withImages {
		af.images = fs.String("images", "", "Directory media paths are relative to (default: the dataset directory)")
	}
	return af
}

// resolve merges the flags over the config defaults.
func (af archiveFlags) resolve(cfg *config.Config) (archive.Source, string, string) {
	settings := cfg.ArchiveDefaults()
	src := archive.Source{
		Data:  firstNonEmpty(*af.data, settings.Data),
		Index: firstNonEmpty(*af.index, settings.Index),
	}
	// a snapshot carries its own index
	if *af.index == "" && snapshot.IsSnapshot(src.Data) {
		src.Index = ""
	}
	images := settings.Images
	if af.images != nil && *af.images != "" {
		images = *af.images
	}
	if images == "" {
		images = viewer.ImagesDir(src.Data)
	}
	return src, images, firstNonEmpty(*af.channel, settings.Channel)
}

func searchOptions(cfg *config.Config) search.Options {
	return search.Options{
		Threshold: cfg.Search.GetThreshold(),
		Extended:  cfg.Search.GetExtended(),
	}
}

// viewerOptions builds viewer options from [view]. estimate is the unmeasured
// row size in the front-end's unit.
func viewerOptions(cfg *config.Config, estimate int) (viewer.Options, error) {
	vs := cfg.ViewDefaults()
	mode, err := highlight.ParseMode(vs.Highlight)
	if err != nil {
		return viewer.Options{}, fmt.Errorf("view.highlight: %w", err)
	}
	opts := viewer.DefaultOptions()
	opts.Window = window.Options{EstimateSize: estimate, Overscan: vs.GetOverscan()}
	opts.ResetScrollOnQuery = vs.GetResetScrollOnQuery()
	opts.Highlight = mode
	return opts, nil
}

// loadArchive loads src. A non-empty channel overrides the one stored with
// the dataset.
func loadArchive(ctx context.Context, src archive.Source, opts search.Options, channel string) (*viewer.Archive, error) {
	arc, err := viewer.Load(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	if channel != "" {
		arc.Channel = channel
	}
	return arc, nil
}

// firstNonEmpty returns the first non-empty string after trimming whitespace.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return nil
}
