// Package clipboard copies short strings, such as message deep links, to the
// system clipboard.
package clipboard

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/aymanbagabas/go-osc52/v2"

	"github.com/tchow-twistedxcom/tgarchive/internal/platform"
)

// ErrEmpty is returned when there is nothing to copy.
var ErrEmpty = errors.New("clipboard: nothing to copy")

// Result describes a successful copy.
type Result struct {
	Method string // "pbcopy", "wl-copy", "xclip", "xsel", "clip.exe" or "osc52"
	Bytes  int
}

type command struct {
	name string
	args []string
}

// Swapped in tests.
var (
	getenv   = os.Getenv
	lookPath = exec.LookPath
	runCmd   = func(c command, text string) error {
		cmd := exec.Command(c.name, c.args...)
		cmd.Stdin = strings.NewReader(text)
		return cmd.Run()
	}
	openTTY = func() (io.WriteCloser, error) {
		return os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	}
)

// Copy tries the platform clipboard tool first and falls back to an OSC 52
// escape sequence written to the controlling terminal, which also works over
// SSH.
func Copy(text string) (Result, error) {
	if text == "" {
		return Result{}, ErrEmpty
	}
	if c, ok := nativeCommand(platform.Detect()); ok {
		if err := runCmd(c, text); err == nil {
			return Result{Method: c.name, Bytes: len(text)}, nil
		}
	}

	tty, err := openTTY()
	if err != nil {
		return Result{}, fmt.Errorf("clipboard: no native tool and no terminal: %w", err)
	}
	defer tty.Close()
	if _, err := sequence(text).WriteTo(tty); err != nil {
		return Result{}, fmt.Errorf("clipboard: osc52: %w", err)
	}
	return Result{Method: "osc52", Bytes: len(text)}, nil
}

func nativeCommand(p platform.Platform) (command, bool) {
	switch p {
	case platform.PlatformMacOS:
		return command{name: "pbcopy"}, true
	case platform.PlatformWSL1, platform.PlatformWSL2, platform.PlatformWindows:
		return command{name: "clip.exe"}, true
	case platform.PlatformLinux:
		// Wayland first
		if getenv("WAYLAND_DISPLAY") != "" {
			if _, err := lookPath("wl-copy"); err == nil {
				return command{name: "wl-copy"}, true
			}
		}
		if _, err := lookPath("xclip"); err == nil {
			return command{name: "xclip", args: []string{"-selection", "clipboard"}}, true
		}
		if _, err := lookPath("xsel"); err == nil {
			return command{name: "xsel", args: []string{"--clipboard", "--input"}}, true
		}
	}
	return command{}, false
}

// sequence wraps the OSC 52 sequence for tmux and screen passthrough.
func sequence(text string) osc52.Sequence {
	seq := osc52.New(text)
	switch {
	case getenv("TMUX") != "":
		seq = seq.Tmux()
	case strings.HasPrefix(getenv("TERM"), "screen"):
		seq = seq.Screen()
	}
	return seq
}
