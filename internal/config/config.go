// Package config loads the user configuration from ~/.tgarchive/config.toml.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	dark "github.com/thiagokokada/dark-mode-go"
)

// FileName is the TOML config file inside the home directory.
const FileName = "config.toml"

// HomeEnv overrides the home directory.
const HomeEnv = "TGARCHIVE_HOME"

// Config represents the user-facing configuration.
type Config struct {
	Archive ArchiveSettings `toml:"archive"`
	Search  SearchSettings  `toml:"search"`
	View    ViewSettings    `toml:"view"`
	Web     WebSettings     `toml:"web"`
	Logs    LogSettings     `toml:"logs"`
}

// ArchiveSettings locate the dataset.
type ArchiveSettings struct {
	// Data is the dataset file, URL or .db snapshot (default: messages.json)
	Data string `toml:"data"`

	// Index is the serialized search index (default: fuse-index.json)
	Index string `toml:"index"`

	// Images is the directory media paths are relative to (default: the
	// directory holding the dataset)
	Images string `toml:"images"`

	// Channel is the Telegram channel used for deep links
	Channel string `toml:"channel"`
}

// SearchSettings tune the fuzzy matcher.
type SearchSettings struct {
	// Threshold is the edit budget per pattern rune (default: 0.3).
	// 0 means exact substrings only.
	Threshold *float64 `toml:"threshold"`

	// Extended enables the extended query syntax (default: true)
	Extended *bool `toml:"extended"`
}

// GetThreshold returns the threshold, defaulting to 0.3.
func (s *SearchSettings) GetThreshold() float64 {
	if s.Threshold == nil || *s.Threshold < 0 {
		return 0.3
	}
	return *s.Threshold
}

// GetExtended returns whether extended syntax is on, defaulting to true.
func (s *SearchSettings) GetExtended() bool {
	if s.Extended == nil {
		return true
	}
	return *s.Extended
}

// ViewSettings configure the list views.
type ViewSettings struct {
	// RowEstimate is the assumed row height in terminal lines before a row
	// is measured (default: 4)
	RowEstimate int `toml:"row_estimate"`

	// RowEstimatePx is the assumed row height for the browser client
	// (default: 200)
	RowEstimatePx int `toml:"row_estimate_px"`

	// Overscan is the number of rows mounted past each viewport edge
	// (default: 5)
	Overscan *int `toml:"overscan"`

	// ResetScrollOnQuery scrolls back to the top when a new query changes
	// the result list (default: true)
	ResetScrollOnQuery *bool `toml:"reset_scroll_on_query"`

	// Highlight forces a highlighting strategy: "auto" (default), "ranges"
	// or "splice"
	Highlight string `toml:"highlight"`

	// Theme sets the colour scheme: "dark" (default), "light", or "system"
	Theme string `toml:"theme"`
}

// GetOverscan returns the overscan, defaulting to 5.
func (v *ViewSettings) GetOverscan() int {
	if v.Overscan == nil || *v.Overscan < 0 {
		return 5
	}
	return *v.Overscan
}

// GetResetScrollOnQuery returns the scroll reset policy, defaulting to true.
func (v *ViewSettings) GetResetScrollOnQuery() bool {
	if v.ResetScrollOnQuery == nil {
		return true
	}
	return *v.ResetScrollOnQuery
}

// WebSettings configure `tgarchive serve`.
type WebSettings struct {
	// Listen is the listen address (default: 127.0.0.1:8420)
	Listen string `toml:"listen"`

	// Token, when set, is required as a bearer token for API, websocket and
	// event routes
	Token string `toml:"token"`

	// Watch reloads the archive when the dataset files change
	Watch bool `toml:"watch"`

	// Rate is the inbound websocket frame rate per connection (default: 30)
	Rate float64 `toml:"rate"`
}

// LogSettings configure the debug log.
type LogSettings struct {
	// Enabled writes logs to ~/.tgarchive/logs (default: false)
	Enabled bool `toml:"enabled"`

	// Level is the minimum level: "debug", "info" (default), "warn", "error"
	Level string `toml:"level"`

	// Format is "json" (default) or "text"
	Format string `toml:"format"`

	// MaxSizeMB rotates the log after this size (default: 10)
	MaxSizeMB int `toml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep (default: 3)
	MaxBackups int `toml:"max_backups"`

	// MaxAgeDays is the retention for rotated files (default: 7)
	MaxAgeDays int `toml:"max_age_days"`

	// Compress gzips rotated files
	Compress bool `toml:"compress"`

	// Pprof starts a pprof server on localhost:6060
	Pprof bool `toml:"pprof"`
}

var defaultConfig = Config{}

var (
	cache   *Config
	cacheMu sync.RWMutex
)

// Dir returns the tgarchive home directory (~/.tgarchive or $TGARCHIVE_HOME).
func Dir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".tgarchive"), nil
}

// Path returns the config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// LogDir returns the directory for log files.
func LogDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// Load returns the user configuration, reading the file once and caching
// it. A missing file yields the defaults; a parse error yields the defaults
// and the error so callers can report it.
func Load() (*Config, error) {
	cacheMu.RLock()
	if cache != nil {
		defer cacheMu.RUnlock()
		return cache, nil
	}
	cacheMu.RUnlock()

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cache != nil {
		return cache, nil
	}

	path, err := Path()
	if err != nil {
		cache = &defaultConfig
		return cache, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cache = &defaultConfig
		return cache, nil
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		cache = &defaultConfig
		return cache, fmt.Errorf("config.toml parse error: %w", err)
	}
	cache = &cfg
	return cache, nil
}

// Reload drops the cache and reads the file again.
func Reload() (*Config, error) {
	ClearCache()
	return Load()
}

// ClearCache forgets the cached config.
func ClearCache() {
	cacheMu.Lock()
	cache = nil
	cacheMu.Unlock()
}

// Save writes cfg to the config file atomically and clears the cache.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# tgarchive configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize config save: %w", err)
	}
	ClearCache()
	return nil
}

// ArchiveDefaults returns the archive settings with defaults applied.
func (c *Config) ArchiveDefaults() ArchiveSettings {
	s := c.Archive
	if s.Data == "" {
		s.Data = "messages.json"
	}
	if s.Index == "" {
		s.Index = "fuse-index.json"
	}
	return s
}

// ViewDefaults returns the view settings with defaults applied.
func (c *Config) ViewDefaults() ViewSettings {
	v := c.View
	if v.RowEstimate <= 0 {
		v.RowEstimate = 4
	}
	if v.RowEstimatePx <= 0 {
		v.RowEstimatePx = 200
	}
	if v.Highlight == "" {
		v.Highlight = "auto"
	}
	return v
}

// WebDefaults returns the web settings with defaults applied.
func (c *Config) WebDefaults() WebSettings {
	w := c.Web
	if w.Listen == "" {
		w.Listen = "127.0.0.1:8420"
	}
	if w.Rate <= 0 {
		w.Rate = 30
	}
	return w
}

// LogDefaults returns the log settings with defaults applied.
func (c *Config) LogDefaults() LogSettings {
	l := c.Logs
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "json"
	}
	if l.MaxSizeMB <= 0 {
		l.MaxSizeMB = 10
	}
	if l.MaxBackups <= 0 {
		l.MaxBackups = 3
	}
	if l.MaxAgeDays <= 0 {
		l.MaxAgeDays = 7
	}
	return l
}

// Theme returns the configured theme name, falling back to "dark".
func (c *Config) Theme() string {
	switch c.View.Theme {
	case "dark", "light", "system":
		return c.View.Theme
	default:
		return "dark"
	}
}

// ResolveTheme resolves the configured theme to "dark" or "light". "system"
// asks the OS and falls back to "dark" when detection fails.
func (c *Config) ResolveTheme() string {
	theme := c.Theme()
	if theme != "system" {
		return theme
	}
	isDark, err := dark.IsDarkMode()
	if err != nil || isDark {
		return "dark"
	}
	return "light"
}
