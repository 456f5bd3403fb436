package ui

import (
	"fmt"
	"strings"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

// Style wraps text in ANSI codes when color is enabled.
type Style struct {
	Color bool
}

// NewStyle detects color support for stdout.
func NewStyle() Style { return Style{Color: ShouldUseColor()} }

func (s Style) wrap(code, text string) string {
	if !s.Color {
		return text
	}
	return code + text + ansiReset
}

func (s Style) Bold(text string) string  { return s.wrap(ansiBold, text) }
func (s Style) Dim(text string) string   { return s.wrap(ansiDim, text) }
func (s Style) ID(text string) string    { return s.wrap(ansiCyan, text) }
func (s Style) Good(text string) string  { return s.wrap(ansiGreen, text) }
func (s Style) Warn(text string) string  { return s.wrap(ansiYellow, text) }
func (s Style) Error(text string) string { return s.wrap(ansiRed, text) }

// Score colors a 0..1 value: green from 0.7, yellow from 0.4, red below.
func (s Style) Score(v float64) string {
	text := fmt.Sprintf("%.2f", v)
	switch {
	case v >= 0.7:
		return s.Good(text)
	case v >= 0.4:
		return s.Warn(text)
	}
	return s.Error(text)
}

// Bar renders v (0..1) as a fixed-width block bar.
func Bar(v float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(v * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Truncate shortens s to max runes with a trailing ellipsis.
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}
