package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Component names used as the "component" attribute.
const (
	CompArchive   = "archive"
	CompSearch    = "search"
	CompHighlight = "highlight"
	CompUI        = "ui"
	CompWeb       = "web"
	CompHTTP      = "http"
	CompSnapshot  = "snapshot"
	CompPerf      = "perf"
	CompCLI       = "cli"
)

// LogFileName is the active log file inside Config.LogDir.
const LogFileName = "tgarchive.log"

// Config holds logging configuration.
type Config struct {
	// LogDir is the directory for log files (e.g. ~/.tgarchive/logs)
	LogDir string

	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string

	// Format is "json" (default) or "text"
	Format string

	// MaxSizeMB is the max size in MB before rotation (default: 10)
	MaxSizeMB int

	// MaxBackups is rotated files to keep (default: 3)
	MaxBackups int

	// MaxAgeDays is days to keep rotated files (default: 7)
	MaxAgeDays int

	// Compress rotated files
	Compress bool

	// RingBufferSize is the in-memory crash buffer size in bytes (default: 2MB)
	RingBufferSize int

	// AggregateIntervalSecs is the summary flush interval (default: 30)
	AggregateIntervalSecs int

	// PprofEnabled starts a pprof server on localhost:6060
	PprofEnabled bool

	// Debug forces file logging even when LogDir is empty (uses the working dir)
	Debug bool
}

var (
	globalLogger *slog.Logger
	globalRing   *RingBuffer
	globalAgg    *Aggregator
	globalMu     sync.RWMutex
	rotator      *lumberjack.Logger
)

func (cfg *Config) applyDefaults() {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 3
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 7
	}
	if cfg.RingBufferSize <= 0 {
		cfg.RingBufferSize = 2 * 1024 * 1024
	}
	if cfg.AggregateIntervalSecs <= 0 {
		cfg.AggregateIntervalSecs = 30
	}
}

// ParseLevel maps a config level name to a slog level. Unknown names are info.
func ParseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init initializes the global logging system.
// Without a log dir and without debug, logs are discarded.
func Init(cfg Config) {
	globalMu.Lock()
	defer globalMu.Unlock()

	cfg.applyDefaults()

	if !cfg.Debug && cfg.LogDir == "" {
		globalLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))
		globalRing = NewRingBuffer(1024)
		globalAgg = NewAggregator(nil, cfg.AggregateIntervalSecs)
		return
	}

	rotator = &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, LogFileName),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	globalRing = NewRingBuffer(cfg.RingBufferSize)

	out := io.MultiWriter(rotator, globalRing)
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	globalLogger = slog.New(handler)

	globalAgg = NewAggregator(globalLogger, cfg.AggregateIntervalSecs)
	globalAgg.Start()

	if cfg.PprofEnabled {
		startPprof()
	}
}

// Logger returns the global logger. Safe to call before Init.
func Logger() *slog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return globalLogger
}

// ForComponent returns a logger tagged with the component name.
// The handler is resolved at log time, so package-level loggers created
// before Init still reach the configured output.
func ForComponent(name string) *slog.Logger {
	return slog.New(&dynamicHandler{component: name})
}

type dynamicHandler struct {
	component string
	attrs     []slog.Attr
	group     string
}

func (h *dynamicHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return Logger().Handler().Enabled(ctx, level)
}

func (h *dynamicHandler) Handle(ctx context.Context, r slog.Record) error {
	handler := Logger().Handler().WithAttrs([]slog.Attr{slog.String("component", h.component)})
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	if h.group != "" {
		handler = handler.WithGroup(h.group)
	}
	return handler.Handle(ctx, r)
}

func (h *dynamicHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &dynamicHandler{component: h.component, attrs: merged, group: h.group}
}

func (h *dynamicHandler) WithGroup(name string) slog.Handler {
	return &dynamicHandler{component: h.component, attrs: h.attrs, group: name}
}

// Aggregate records a high-frequency event for batched logging.
func Aggregate(component, event string, fields ...slog.Attr) {
	globalMu.RLock()
	agg := globalAgg
	globalMu.RUnlock()
	if agg != nil {
		agg.Record(component, event, fields...)
	}
}

// DumpRingBuffer writes the recent log lines to path.
func DumpRingBuffer(path string) error {
	globalMu.RLock()
	ring := globalRing
	globalMu.RUnlock()
	if ring == nil {
		return nil
	}
	return ring.DumpToFile(path)
}

// Shutdown flushes the aggregator and closes the rotating writer.
func Shutdown() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalAgg != nil {
		globalAgg.Stop()
		globalAgg = nil
	}
	if rotator != nil {
		_ = rotator.Close()
		rotator = nil
	}
	globalLogger = nil
	globalRing = nil
}
