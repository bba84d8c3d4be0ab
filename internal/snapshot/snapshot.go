// Package snapshot stores a dataset and its serialized index in one SQLite
// file, so the pair is always mutually consistent.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
	"github.com/tchow-twistedxcom/tgarchive/internal/logging"
)

// SchemaVersion tracks the snapshot schema. Bump it when the tables change.
const SchemaVersion = 1

// Ext is the file extension that marks a snapshot source.
const Ext = ".db"

// Meta keys.
const (
	metaSchemaVersion = "schema_version"
	metaIndex         = "index"
	metaBuiltAt       = "built_at"
	metaChannel       = "channel"
)

var snapLog = logging.ForComponent(logging.CompSnapshot)

// ErrNoSnapshot is returned by Read for a file without a snapshot schema.
var ErrNoSnapshot = errors.New("snapshot: not a snapshot file")

// Store wraps a snapshot database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite file at path with WAL mode and a busy
// timeout, so a running server can read while build-index rewrites it.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("snapshot: %s: %w", pragma, err)
		}
	}
	return &Store{db: db}, nil
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("snapshot: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS snapshot_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("snapshot: create snapshot_meta: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			position   INTEGER PRIMARY KEY,
			id         INTEGER NOT NULL,
			text       TEXT NOT NULL DEFAULT '',
			media      TEXT NOT NULL DEFAULT '',
			ocr        TEXT NOT NULL DEFAULT '',
			plain_text TEXT NOT NULL DEFAULT ''
		)
	`); err != nil {
		return fmt.Errorf("snapshot: create messages: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO snapshot_meta (key, value) VALUES (?, ?)
	`, metaSchemaVersion, strconv.Itoa(SchemaVersion)); err != nil {
		return fmt.Errorf("snapshot: set schema version: %w", err)
	}

	return tx.Commit()
}

// Info describes a stored snapshot.
type Info struct {
	Messages int
	HasIndex bool
	BuiltAt  time.Time
	Channel  string
}

// Save replaces the stored dataset and index in one transaction. A nil index
// removes any stored index.
func (s *Store) Save(ctx context.Context, msgs []archive.Message, index []byte, channel string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("snapshot: begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages"); err != nil {
		return fmt.Errorf("snapshot: clear messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (position, id, text, media, ocr, plain_text)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("snapshot: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range msgs {
		if _, err := stmt.ExecContext(ctx, i, m.ID, m.Text, m.Media, m.OCR, m.PlainText); err != nil {
			return fmt.Errorf("snapshot: insert message %d: %w", m.ID, err)
		}
	}

	meta := map[string]string{
		metaBuiltAt: strconv.FormatInt(time.Now().Unix(), 10),
		metaChannel: channel,
	}
	if index != nil {
		meta[metaIndex] = string(index)
	} else if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot_meta WHERE key = ?", metaIndex); err != nil {
		return fmt.Errorf("snapshot: clear index: %w", err)
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO snapshot_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("snapshot: set %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("snapshot: commit: %w", err)
	}
	snapLog.Info("snapshot_saved", "messages", len(msgs), "has_index", index != nil)
	return nil
}

// Messages returns the stored messages in position order.
func (s *Store) Messages(ctx context.Context) ([]archive.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, media, ocr, plain_text FROM messages ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: query messages: %w", err)
	}
	defer rows.Close()

	var out []archive.Message
	for rows.Next() {
		var m archive.Message
		if err := rows.Scan(&m.ID, &m.Text, &m.Media, &m.OCR, &m.PlainText); err != nil {
			return nil, fmt.Errorf("snapshot: scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Index returns the stored serialized index, or nil.
func (s *Store) Index(ctx context.Context) ([]byte, error) {
	v, ok, err := s.meta(ctx, metaIndex)
	if err != nil || !ok {
		return nil, err
	}
	return []byte(v), nil
}

// Info summarizes the snapshot.
func (s *Store) Info(ctx context.Context) (Info, error) {
	var info Info
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&info.Messages); err != nil {
		return info, fmt.Errorf("snapshot: count messages: %w", err)
	}
	_, hasIndex, err := s.meta(ctx, metaIndex)
	if err != nil {
		return info, err
	}
	info.HasIndex = hasIndex
	if v, ok, err := s.meta(ctx, metaBuiltAt); err == nil && ok {
		if secs, perr := strconv.ParseInt(v, 10, 64); perr == nil {
			info.BuiltAt = time.Unix(secs, 0)
		}
	}
	info.Channel, _, _ = s.meta(ctx, metaChannel)
	return info, nil
}

func (s *Store) meta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM snapshot_meta WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("snapshot: get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'snapshot_meta'").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("snapshot: inspect schema: %w", err)
	}
	if n == 0 {
		return 0, ErrNoSnapshot
	}
	v, ok, err := s.meta(ctx, metaSchemaVersion)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNoSnapshot
	}
	return strconv.Atoi(v)
}

// IsSnapshot reports whether loc names a snapshot file.
func IsSnapshot(loc string) bool {
	return filepath.Ext(loc) == Ext && !archive.IsURL(loc)
}

// Read loads a snapshot as a prepared dataset. Failures are reported as
// *archive.LoadError so callers treat every source alike.
func Read(ctx context.Context, path string) (*archive.Dataset, error) {
	fail := func(op string, err error) (*archive.Dataset, error) {
		lerr := &archive.LoadError{Op: op, Source: path, Err: err}
		snapLog.Error("snapshot_read_failed", "path", path, "error", err)
		return nil, lerr
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fail("fetch", fmt.Errorf("%w: %s", archive.ErrNotFound, path))
		}
		return fail("fetch", err)
	}
	s, err := Open(path)
	if err != nil {
		return fail("fetch", err)
	}
	defer s.Close()

	version, err := s.schemaVersion(ctx)
	if err != nil {
		return fail("decode", err)
	}
	if version != SchemaVersion {
		return fail("decode", fmt.Errorf("unsupported schema version %d", version))
	}

	msgs, err := s.Messages(ctx)
	if err != nil {
		return fail("decode", err)
	}
	index, err := s.Index(ctx)
	if err != nil {
		return fail("decode", err)
	}
	channel, _, err := s.meta(ctx, metaChannel)
	if err != nil {
		return fail("decode", err)
	}

	total := len(msgs)
	msgs = archive.Prepare(msgs)
	snapLog.Info("snapshot_loaded", "path", path, "messages", len(msgs), "dropped", total-len(msgs), "has_index", index != nil)
	return &archive.Dataset{Messages: msgs, Index: index, Source: path, LoadedAt: time.Now(), Channel: channel}, nil
}
