package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestSaveAndReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStore(t)

	msgs := []archive.Message{
		{ID: 3, Text: "<b>three</b>", PlainText: "three"},
		{ID: 2, Media: "images/2.jpg", OCR: "two"},
		{ID: 1, Text: "one", PlainText: "one"},
	}
	require.NoError(t, s.Save(ctx, msgs, []byte(`{"version":1}`), "chan"))

	info, err := s.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, info.Messages)
	assert.True(t, info.HasIndex)
	assert.Equal(t, "chan", info.Channel)
	assert.False(t, info.BuiltAt.IsZero())
	require.NoError(t, s.Close())

	ds, err := Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, msgs, ds.Messages)
	assert.Equal(t, `{"version":1}`, string(ds.Index))
	assert.Equal(t, path, ds.Source)
	assert.Equal(t, "chan", ds.Channel)
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.Save(ctx, []archive.Message{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}}, []byte("{}"), ""))
	require.NoError(t, s.Save(ctx, []archive.Message{{ID: 9, Text: "z"}}, nil, ""))

	msgs, err := s.Messages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []archive.Message{{ID: 9, Text: "z"}}, msgs)

	index, err := s.Index(ctx)
	require.NoError(t, err)
	assert.Nil(t, index)
}

func TestReadAppliesWorkingSetInvariants(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStore(t)
	require.NoError(t, s.Save(ctx, []archive.Message{{ID: 1, Text: "<i>x</i>"}, {ID: 5}, {ID: 7, OCR: "y"}}, nil, ""))

	ds, err := Read(ctx, path)
	require.NoError(t, err)
	require.Len(t, ds.Messages, 2)
	assert.EqualValues(t, 7, ds.Messages[0].ID)
	assert.Equal(t, "x", ds.Messages[1].PlainText)
}

func TestReadErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := Read(ctx, filepath.Join(dir, "missing.db"))
	var lerr *archive.LoadError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, "fetch", lerr.Op)
	assert.ErrorIs(t, err, archive.ErrNotFound)

	// a valid sqlite file without the snapshot tables
	other := filepath.Join(dir, "other.db")
	db, err := sql.Open("sqlite", other)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE t (x INTEGER)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Read(ctx, other)
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, "decode", lerr.Op)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestImportFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	data := filepath.Join(dir, "messages.json")
	require.NoError(t, os.WriteFile(data, []byte(`[{"id":1,"text":"<b>a</b>"},{"id":2},{"id":3,"ocr":"c"}]`), 0o644))

	s, _ := newTestStore(t)
	n, err := ImportFiles(ctx, s, data, filepath.Join(dir, "absent.json"), "chan")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	msgs, err := s.Messages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.EqualValues(t, 3, msgs[0].ID)
	assert.Equal(t, "a", msgs[1].PlainText)
}

func TestIsSnapshot(t *testing.T) {
	assert.True(t, IsSnapshot("/data/archive.db"))
	assert.False(t, IsSnapshot("messages.json"))
	assert.False(t, IsSnapshot("https://example.com/archive.db"))
}
