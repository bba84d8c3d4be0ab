package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/tchow-twistedxcom/tgarchive/internal/config"
	"github.com/tchow-twistedxcom/tgarchive/internal/highlight"
	"github.com/tchow-twistedxcom/tgarchive/internal/ui"
	"github.com/tchow-twistedxcom/tgarchive/internal/viewer"
)

var errNoTerminal = errors.New("view needs an interactive terminal (try 'tgarchive search' or 'tgarchive serve')")

func handleView(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	af := addArchiveFlags(fs, true)
	mode := fs.String("highlight", "", "Highlight strategy: auto, ranges or splice (default from config)")
	fs.Usage = func() {
		fmt.Println("Usage: tgarchive view [options]")
		fmt.Println()
		fmt.Println("Browse the archive in the terminal. Type to search, enter opens an image.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  tgarchive view")
		fmt.Println("  tgarchive view --data archive.db")
		fmt.Println("  tgarchive view --data https://example.com/messages.json --index https://example.com/fuse-index.json")
	}
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errNoTerminal
	}

	opts, err := viewerOptions(cfg, cfg.ViewDefaults().RowEstimate)
	if err != nil {
		return err
	}
	if *mode != "" {
		if opts.Highlight, err = highlight.ParseMode(*mode); err != nil {
			return err
		}
	}
	opts.Capabilities = highlight.ProbeTerminal(termenv.ColorProfile())

	src, images, channel := af.resolve(cfg)
	sopts := searchOptions(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.InitTheme(cfg.ResolveTheme())
	model := ui.New(ctx, ui.Options{
		Viewer: opts,
		Load: func(ctx context.Context) (*viewer.Archive, error) {
			return loadArchive(ctx, src, sopts, channel)
		},
		ImagesDir: images,
		Theme:     cfg.Theme(),
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
