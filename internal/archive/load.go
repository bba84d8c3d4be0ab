package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned by fetch when the resource does not exist.
var ErrNotFound = errors.New("archive: not found")

// maxFetchBytes bounds a single dataset or index download.
const maxFetchBytes = 512 << 20

// LoadError reports a dataset fetch or parse failure.
type LoadError struct {
	Op     string // "fetch" or "decode"
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("archive: %s %s: %v", e.Op, e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Source names where the dataset and its optional serialized index live.
// Each is a local path or an http(s) URL.
type Source struct {
	Data  string
	Index string
}

// Dataset is a loaded, prepared working set plus the raw serialized index
// shipped next to it (nil when absent).
type Dataset struct {
	Messages []Message
	Index    []byte
	Skipped  int
	Source   string
	LoadedAt time.Time

	// Channel is the deep-link channel recorded with the dataset, if any.
	Channel string
}

// Len returns the working set size.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Messages)
}

// Empty returns a dataset with no messages, used as the fallback when a load
// fails.
func Empty(source string) *Dataset {
	return &Dataset{Messages: []Message{}, Source: source, LoadedAt: time.Now()}
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Load fetches the dataset and index concurrently, decodes the dataset and
// applies the working set invariants. A missing or unreadable index is logged
// and reported as nil.
func Load(ctx context.Context, src Source) (*Dataset, error) {
	start := time.Now()
	var data, index []byte

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := fetch(gctx, src.Data)
		if err != nil {
			return &LoadError{Op: "fetch", Source: src.Data, Err: err}
		}
		data = b
		return nil
	})
	if src.Index != "" {
		g.Go(func() error {
			b, err := fetch(gctx, src.Index)
			switch {
			case errors.Is(err, ErrNotFound):
				archiveLog.Info("index_absent", "source", src.Index)
			case err != nil:
				archiveLog.Warn("index_fetch_failed", "source", src.Index, "error", err)
			default:
				index = b
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		archiveLog.Error("archive_load_failed", "source", src.Data, "error", err)
		return nil, err
	}

	msgs, skipped, err := Decode(data)
	if err != nil {
		lerr := &LoadError{Op: "decode", Source: src.Data, Err: err}
		archiveLog.Error("archive_load_failed", "source", src.Data, "error", lerr)
		return nil, lerr
	}
	total := len(msgs)
	msgs = Prepare(msgs)

	archiveLog.Info("archive_loaded",
		"source", src.Data,
		"entries", total+skipped,
		"messages", len(msgs),
		"skipped", skipped,
		"has_index", index != nil,
		"duration_ms", time.Since(start).Milliseconds())

	return &Dataset{
		Messages: msgs,
		Index:    index,
		Skipped:  skipped,
		Source:   src.Data,
		LoadedAt: time.Now(),
	}, nil
}

// IsURL reports whether loc is fetched over http.
func IsURL(loc string) bool {
	return strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://")
}

func fetch(ctx context.Context, loc string) ([]byte, error) {
	if loc == "" {
		return nil, fmt.Errorf("empty location")
	}
	if IsURL(loc) {
		return fetchURL(ctx, loc)
	}
	data, err := os.ReadFile(loc)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	return data, err
}

func fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}
