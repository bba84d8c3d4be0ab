package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTo(t *testing.T, cfg Config) string {
	t.Helper()
	Shutdown()
	dir := t.TempDir()
	cfg.LogDir = dir
	cfg.Debug = true
	Init(cfg)
	t.Cleanup(Shutdown)
	return filepath.Join(dir, LogFileName)
}

// readRecords parses every complete JSONL line in the log file.
func readRecords(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)

	var records []map[string]any
	start := 0
	for i, b := range data {
		if b != '\n' {
			continue
		}
		var r map[string]any
		if err := json.Unmarshal(data[start:i], &r); err == nil {
			records = append(records, r)
		}
		start = i + 1
	}
	return records
}

func TestInitWritesJSONLines(t *testing.T) {
	path := initTo(t, Config{})

	Logger().Info("archive_loaded", "messages", 42)

	records := readRecords(t, path)
	require.Len(t, records, 1)
	assert.Equal(t, "archive_loaded", records[0]["msg"])
	assert.EqualValues(t, 42, records[0]["messages"])
}

func TestInitWithoutLogDirDiscards(t *testing.T) {
	Shutdown()
	Init(Config{})
	defer Shutdown()

	require.NotNil(t, Logger())
	Logger().Info("goes_nowhere")
}

func TestForComponentCreatedBeforeInit(t *testing.T) {
	Shutdown()
	early := ForComponent(CompSearch)

	path := initTo(t, Config{})
	early.Info("query_executed", slog.String("query", "hello"))

	records := readRecords(t, path)
	require.Len(t, records, 1)
	assert.Equal(t, CompSearch, records[0]["component"])
	assert.Equal(t, "hello", records[0]["query"])
}

func TestForComponentWithAttrs(t *testing.T) {
	path := initTo(t, Config{})

	ForComponent(CompWeb).With("conn", "c1").Warn("frame_dropped")

	records := readRecords(t, path)
	require.Len(t, records, 1)
	assert.Equal(t, CompWeb, records[0]["component"])
	assert.Equal(t, "c1", records[0]["conn"])
}

func TestLevelFiltering(t *testing.T) {
	path := initTo(t, Config{Level: "warn"})

	Logger().Info("filtered")
	Logger().Warn("kept")

	records := readRecords(t, path)
	require.Len(t, records, 1)
	assert.Equal(t, "kept", records[0]["msg"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestTextFormat(t *testing.T) {
	path := initTo(t, Config{Format: "text"})

	Logger().Info("text_format")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var record map[string]any
	assert.Error(t, json.Unmarshal(data, &record))
	assert.Contains(t, string(data), "msg=text_format")
}

func TestDumpRingBuffer(t *testing.T) {
	path := initTo(t, Config{RingBufferSize: 4096})

	Logger().Info("before_crash")

	dump := filepath.Join(filepath.Dir(path), "crash.jsonl")
	require.NoError(t, DumpRingBuffer(dump))

	data, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.Contains(t, string(data), "before_crash")
}
