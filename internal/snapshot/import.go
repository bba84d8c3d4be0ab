package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
)

// ImportFiles reads a JSON dataset (and optional index file) and stores them
// as the snapshot. It returns the number of messages stored.
func ImportFiles(ctx context.Context, s *Store, dataPath, indexPath, channel string) (int, error) {
	data, err := os.ReadFile(dataPath)
	if err != nil {
		return 0, fmt.Errorf("read dataset: %w", err)
	}
	msgs, skipped, err := archive.Decode(data)
	if err != nil {
		return 0, fmt.Errorf("parse dataset: %w", err)
	}
	msgs = archive.Prepare(msgs)

	var index []byte
	if indexPath != "" {
		index, err = os.ReadFile(indexPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("read index: %w", err)
		}
	}

	if err := s.Save(ctx, msgs, index, channel); err != nil {
		return 0, err
	}
	snapLog.Info("snapshot_imported", "dataset", dataPath, "messages", len(msgs), "skipped", skipped)
	return len(msgs), nil
}
