package platform

import (
	"fmt"
	"os/exec"
)

// OpenCommand returns the program and arguments that open target with the
// desktop's default handler.
func OpenCommand(target string) (string, []string) {
	switch Detect() {
	case PlatformMacOS:
		return "open", []string{target}
	case PlatformWindows:
		return "cmd", []string{"/c", "start", "", target}
	case PlatformWSL1, PlatformWSL2:
		if _, err := exec.LookPath("wslview"); err == nil {
			return "wslview", []string{target}
		}
		return "explorer.exe", []string{target}
	default:
		return "xdg-open", []string{target}
	}
}

// start launches the viewer and reaps it in the background. Replaced in
// tests.
var start = func(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// OpenFile opens a local image or a URL in an external viewer without
// waiting for it to exit.
func OpenFile(target string) error {
	if target == "" {
		return fmt.Errorf("open: empty target")
	}
	name, args := OpenCommand(target)
	if err := start(name, args...); err != nil {
		return fmt.Errorf("open %s with %s: %w", target, name, err)
	}
	return nil
}
