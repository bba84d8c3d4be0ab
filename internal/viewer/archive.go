package viewer

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
	"github.com/tchow-twistedxcom/tgarchive/internal/logging"
	"github.com/tchow-twistedxcom/tgarchive/internal/search"
	"github.com/tchow-twistedxcom/tgarchive/internal/snapshot"
)

var viewLog = logging.ForComponent(logging.CompUI)

// Archive is an immutable dataset and index pair. It is shared read-only by
// every Viewer.
type Archive struct {
	Dataset *archive.Dataset
	Index   *search.Index
	Channel string
	// Err is the load failure of an empty fallback archive.
	Err error
}

// NewArchive pairs a dataset with its index: the serialized index when the
// dataset shipped one that fits, otherwise a freshly built one.
func NewArchive(ds *archive.Dataset, opts search.Options) *Archive {
	if ds == nil {
		ds = archive.Empty("")
	}
	var idx *search.Index
	if ds.Index != nil {
		loaded, err := search.Load(ds.Messages, ds.Index, opts)
		var ierr *search.IndexError
		switch {
		case errors.As(err, &ierr) && ierr.Foreign:
			viewLog.Info("index_ignored", "source", ds.Source, "reason", ierr.Reason)
		case errors.As(err, &ierr):
			viewLog.Warn("index_rejected", "source", ds.Source, "error", err)
		case err != nil:
			viewLog.Warn("index_load_failed", "source", ds.Source, "error", err)
		default:
			idx = loaded
		}
	}
	if idx == nil {
		idx = search.Build(ds.Messages, opts)
	}
	return &Archive{Dataset: ds, Index: idx, Channel: ds.Channel}
}

// Failed returns an empty archive that carries the load error, so front-ends
// stay responsive after a failed load.
func Failed(source string, err error, opts search.Options) *Archive {
	a := NewArchive(archive.Empty(source), opts)
	a.Err = err
	return a
}

// Load reads src (a JSON dataset, URL or .db snapshot) into an Archive.
func Load(ctx context.Context, src archive.Source, opts search.Options) (*Archive, error) {
	start := time.Now()
	var (
		ds  *archive.Dataset
		err error
	)
	if snapshot.IsSnapshot(src.Data) {
		ds, err = snapshot.Read(ctx, src.Data)
	} else {
		ds, err = archive.Load(ctx, src)
	}
	if err != nil {
		return nil, err
	}
	a := NewArchive(ds, opts)
	logging.ForComponent(logging.CompPerf).Info("archive_ready",
		"messages", ds.Len(),
		"duration_ms", time.Since(start).Milliseconds())
	return a, nil
}

// Len returns the working set size.
func (a *Archive) Len() int { return a.Dataset.Len() }

// ImagesDir guesses the images directory for a local dataset: the directory
// that holds it.
func ImagesDir(data string) string {
	if data == "" || archive.IsURL(data) {
		return ""
	}
	return filepath.Dir(data)
}
