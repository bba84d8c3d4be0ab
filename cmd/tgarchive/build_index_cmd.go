package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
	"github.com/tchow-twistedxcom/tgarchive/internal/config"
	"github.com/tchow-twistedxcom/tgarchive/internal/search"
	"github.com/tchow-twistedxcom/tgarchive/internal/snapshot"
)

type buildIndexOptions struct {
	In      string
	Out     string
	Index   string
	SQLite  string
	Channel string
}

type buildIndexResult struct {
	Messages int
	Skipped  int
}

func handleBuildIndex(cfg *config.Config, args []string) error {
	settings := cfg.ArchiveDefaults()

	fs := flag.NewFlagSet("build-index", flag.ContinueOnError)
	in := fs.String("in", settings.Data, "Dataset to read")
	out := fs.String("out", "", "Where to write the enriched dataset (default: --in)")
	index := fs.String("index", settings.Index, "Where to write the serialized index")
	sqlitePath := fs.String("sqlite", "", "Also write a .db snapshot holding the dataset and index")
	channel := fs.String("channel", settings.Channel, "Channel recorded in the snapshot")
	fs.Usage = func() {
		fmt.Println("Usage: tgarchive build-index [options]")
		fmt.Println()
		fmt.Println("Compute plainText for every message, rewrite the dataset and write the")
		fmt.Println("serialized search index.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  tgarchive build-index --in messages.json")
		fmt.Println("  tgarchive build-index --in export.json --out messages.json --sqlite archive.db")
	}
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	res, err := buildIndex(context.Background(), buildIndexOptions{
		In:      *in,
		Out:     firstNonEmpty(*out, *in),
		Index:   *index,
		SQLite:  *sqlitePath,
		Channel: *channel,
	}, searchOptions(cfg), os.Stdout)
	if err != nil {
		return err
	}
	if res.Skipped > 0 {
		fmt.Printf("Skipped %d malformed entries\n", res.Skipped)
	}
	return nil
}

func buildIndex(ctx context.Context, opts buildIndexOptions, sopts search.Options, w io.Writer) (buildIndexResult, error) {
	start := time.Now()
	data, err := os.ReadFile(opts.In)
	if err != nil {
		return buildIndexResult{}, fmt.Errorf("read dataset: %w", err)
	}
	msgs, skipped, err := archive.Decode(data)
	if err != nil {
		return buildIndexResult{}, fmt.Errorf("parse %s: %w", opts.In, err)
	}
	archive.Reproject(msgs)
	msgs = archive.Prepare(msgs)

	idx := search.Build(msgs, sopts)
	indexData, err := idx.Serialize()
	if err != nil {
		return buildIndexResult{}, fmt.Errorf("serialize index: %w", err)
	}
	dataset, err := archive.Encode(msgs)
	if err != nil {
		return buildIndexResult{}, fmt.Errorf("encode dataset: %w", err)
	}

	if err := writeFileAtomic(opts.Out, dataset); err != nil {
		return buildIndexResult{}, err
	}
	fmt.Fprintf(w, "Wrote %d messages to %s\n", len(msgs), opts.Out)
	if opts.Index != "" {
		if err := writeFileAtomic(opts.Index, indexData); err != nil {
			return buildIndexResult{}, err
		}
		fmt.Fprintf(w, "Wrote index to %s\n", opts.Index)
	}

	if opts.SQLite != "" {
		if err := writeSnapshot(ctx, opts); err != nil {
			return buildIndexResult{}, err
		}
		fmt.Fprintf(w, "Wrote snapshot to %s\n", opts.SQLite)
	}

	cliLog.Info("index_built",
		slog.String("dataset", opts.In),
		slog.Int("messages", len(msgs)),
		slog.Int("skipped", skipped),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return buildIndexResult{Messages: len(msgs), Skipped: skipped}, nil
}

// writeSnapshot imports the files just written, so the snapshot holds exactly
// what a file based load would see.
func writeSnapshot(ctx context.Context, opts buildIndexOptions) error {
	store, err := snapshot.Open(opts.SQLite)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return err
	}
	_, err = snapshot.ImportFiles(ctx, store, opts.Out, opts.Index, opts.Channel)
	return err
}
