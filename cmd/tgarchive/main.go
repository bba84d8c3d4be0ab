package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/tchow-twistedxcom/tgarchive/internal/config"
	"github.com/tchow-twistedxcom/tgarchive/internal/logging"
)

const Version = "0.3.0"

var cliLog = logging.ForComponent(logging.CompCLI)

// errUsage marks errors already explained by a usage message.
var errUsage = errors.New("usage")

func init() {
	initColorProfile()
}

// initColorProfile configures the lipgloss colour profile.
// TGARCHIVE_COLOR overrides detection: truecolor, 256, 16, none.
func initColorProfile() {
	if colorEnv := os.Getenv("TGARCHIVE_COLOR"); colorEnv != "" {
		if p, ok := parseColorProfile(colorEnv); ok {
			lipgloss.SetColorProfile(p)
			return
		}
	}

	colorTerm := os.Getenv("COLORTERM")
	if colorTerm == "truecolor" || colorTerm == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}
	if os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}

	term := os.Getenv("TERM")
	for _, t := range []string{"256color", "xterm-direct", "alacritty", "kitty", "wezterm"} {
		if strings.Contains(term, t) {
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		}
	}
	if os.Getenv("WT_SESSION") != "" || os.Getenv("ITERM_SESSION_ID") != "" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	// dumb terminals and pipes keep whatever termenv detected
	if term == "" || term == "dumb" {
		return
	}
	lipgloss.SetColorProfile(termenv.ANSI256)
}

func parseColorProfile(name string) (termenv.Profile, bool) {
	switch strings.ToLower(name) {
	case "truecolor", "true", "24bit":
		return termenv.TrueColor, true
	case "256", "ansi256":
		return termenv.ANSI256, true
	case "16", "ansi", "basic":
		return termenv.ANSI, true
	case "none", "off", "ascii":
		return termenv.Ascii, true
	}
	return termenv.Ascii, false
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, cfgErr := config.Load()
	shutdown := initLogging(cfg)
	defer shutdown()
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", cfgErr)
	}

	cmd := "help"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "version", "--version", "-v":
		fmt.Printf("tgarchive v%s\n", Version)
	case "help", "--help", "-h":
		printHelp()
	case "view":
		err = handleView(cfg, args)
	case "serve":
		err = handleServe(cfg, args)
	case "build-index":
		err = handleBuildIndex(cfg, args)
	case "search":
		err = handleSearch(cfg, os.Stdout, args)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", cmd)
		printHelp()
		return 1
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		cliLog.Error("command_failed", slog.String("command", cmd), slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
}

// initLogging wires the slog pipeline from the [logs] section. Without
// logs.enabled or TGARCHIVE_DEBUG, records are discarded so the TUI is not
// disturbed.
func initLogging(cfg *config.Config) func() {
	ls := cfg.LogDefaults()
	debug := os.Getenv("TGARCHIVE_DEBUG") != ""

	logCfg := logging.Config{
		Level:      ls.Level,
		Format:     ls.Format,
		MaxSizeMB:  ls.MaxSizeMB,
		MaxBackups: ls.MaxBackups,
		MaxAgeDays: ls.MaxAgeDays,
		Compress:   ls.Compress,
		Debug:      debug,
	}
	if debug {
		logCfg.Level = "debug"
	}
	logDir, err := config.LogDir()
	if ls.Enabled || debug {
		if err == nil {
			logCfg.LogDir = logDir
			logCfg.PprofEnabled = ls.Pprof
		}
	}
	logging.Init(logCfg)

	log.SetFlags(0)
	log.SetOutput(logging.NewBridgeWriter(logging.CompCLI))

	return func() {
		if r := recover(); r != nil {
			dumpCrash(logDir, r)
			logging.Shutdown()
			panic(r)
		}
		logging.Shutdown()
	}
}

func dumpCrash(logDir string, r any) {
	cliLog.Error("panic", slog.String("recover", fmt.Sprintf("%v", r)))
	if logDir == "" {
		return
	}
	path := filepath.Join(logDir, fmt.Sprintf("crash-dump-%d.jsonl", time.Now().Unix()))
	if err := logging.DumpRingBuffer(path); err != nil {
		fmt.Fprintf(os.Stderr, "crash dump failed: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "crash dump written to %s\n", path)
}

func printHelp() {
	fmt.Printf("tgarchive v%s\n", Version)
	fmt.Println("Search and browse an exported Telegram channel archive")
	fmt.Println()
	fmt.Println("Usage: tgarchive <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  view             Browse the archive in the terminal")
	fmt.Println("  serve            Serve the archive to browsers")
	fmt.Println("  build-index      Compute plainText and write the search index")
	fmt.Println("  search <query>   Run one query and print the ranked results")
	fmt.Println("  version          Show version")
	fmt.Println("  help             Show this help")
	fmt.Println()
	fmt.Println("Query syntax:")
	fmt.Println("  word             fuzzy match")
	fmt.Println("  'word            exact substring")
	fmt.Println("  ^word  word$     prefix / suffix")
	fmt.Println("  =word            whole field")
	fmt.Println("  !word            exclude")
	fmt.Println("  a b | c          AND binds tighter than OR")
	fmt.Println()
	fmt.Println("Configuration: ~/.tgarchive/config.toml (TGARCHIVE_HOME overrides the directory)")
	fmt.Println("Run 'tgarchive <command> -h' for command options.")
}
