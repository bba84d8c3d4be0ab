package main

import (
	"os"
	"testing"
)

// TestMain points the config home at a scratch directory so tests never
// read or write the user's ~/.tgarchive.
func TestMain(m *testing.M) {
	home, err := os.MkdirTemp("", "tgarchive-cmd-test-")
	if err != nil {
		panic(err)
	}
	os.Setenv("TGARCHIVE_HOME", home)
	os.Unsetenv("TGARCHIVE_DEBUG")

	code := m.Run()

	os.RemoveAll(home)
	os.Exit(code)
}
