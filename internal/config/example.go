package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const exampleConfig = `# tgarchive configuration
# Every key is optional; the values below are the defaults.

[archive]
# data = "messages.json"        # file, http(s) URL or .db snapshot
# index = "fuse-index.json"
# images = ""                   # defaults to the dataset directory
# channel = ""                  # used for https://t.me/<channel>/<id> links

[search]
# threshold = 0.3               # edits allowed per pattern character
# extended = true               # =exact 'include !not ^prefix suffix$ a | b

[view]
# row_estimate = 4              # terminal lines per row before measuring
# row_estimate_px = 200         # browser pixels per row before measuring
# overscan = 5
# reset_scroll_on_query = true
# highlight = "auto"            # auto, ranges or splice
# theme = "dark"                # dark, light or system

[web]
# listen = "127.0.0.1:8420"
# token = ""
# watch = false
# rate = 30                     # inbound websocket frames per second

[logs]
# enabled = false
# level = "info"
# format = "json"
# max_size_mb = 10
# max_backups = 3
# max_age_days = 7
# compress = false
# pprof = false
`

// CreateExample writes a commented config file unless one exists. It
// returns the path and whether a file was written.
func CreateExample() (string, bool, error) {
	path, err := Path()
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0o600); err != nil {
		return "", false, fmt.Errorf("failed to write example config: %w", err)
	}
	return path, true, nil
}
