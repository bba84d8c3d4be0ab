package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
	"github.com/tchow-twistedxcom/tgarchive/internal/config"
	"github.com/tchow-twistedxcom/tgarchive/internal/viewer"
	"github.com/tchow-twistedxcom/tgarchive/internal/web"
)

// buildWebServer parses serve flags, loads the archive and returns a server
// ready to start. A failed load still yields a server: it serves an empty
// archive that reports the failure.
func buildWebServer(ctx context.Context, cfg *config.Config, args []string) (*web.Server, error) {
	ws := cfg.WebDefaults()

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	af := addArchiveFlags(fs, true)
	listenAddr := fs.String("listen", ws.Listen, "Listen address for the web server")
	token := fs.String("token", ws.Token, "Bearer token for API, websocket and event access")
	watch := fs.Bool("watch", ws.Watch, "Reload the archive when the dataset files change")
	rateLimit := fs.Float64("rate", ws.Rate, "Inbound websocket frames per second per connection")
	fs.Usage = func() {
		fmt.Println("Usage: tgarchive serve [options]")
		fmt.Println()
		fmt.Println("Serve the archive and the browser viewer.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  tgarchive serve")
		fmt.Println("  tgarchive serve --listen 0.0.0.0:8080 --token s3cret")
		fmt.Println("  tgarchive serve --data export/messages.json --watch")
	}
	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	opts, err := viewerOptions(cfg, cfg.ViewDefaults().RowEstimatePx)
	if err != nil {
		return nil, err
	}

	src, images, channel := af.resolve(cfg)
	sopts := searchOptions(cfg)
	load := func(ctx context.Context) (*viewer.Archive, error) {
		return loadArchive(ctx, src, sopts, channel)
	}

	arc, err := load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		arc = viewer.Failed(src.Data, err, sopts)
	}

	var watchPaths []string
	for _, p := range []string{src.Data, src.Index} {
		if p != "" && !archive.IsURL(p) {
			watchPaths = append(watchPaths, p)
		}
	}

	return web.NewServer(web.Config{
		ListenAddr: *listenAddr,
		Token:      *token,
		ImagesDir:  images,
		Viewer:     opts,
		Rate:       *rateLimit,
		Watch:      *watch,
		WatchPaths: watchPaths,
		Load:       load,
	}, arc), nil
}

func handleServe(cfg *config.Config, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := buildWebServer(ctx, cfg, args)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			cliLog.Warn("shutdown_failed", slog.String("error", err.Error()))
		}
	}()

	fmt.Printf("Serving %d messages on http://%s\n", server.Archive().Len(), server.Addr())
	cliLog.Info("serve_started", slog.String("server", server.String()))
	if err := server.Start(); err != nil {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}
