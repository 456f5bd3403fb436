// Package ui formats human-facing CLI output.
package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor honors NO_COLOR, CLICOLOR_FORCE and CLICOLOR, then falls back
// to whether stdout is a terminal.
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Width returns the terminal width of stdout, or fallback when it is not a terminal.
func Width(fallback int) int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}
