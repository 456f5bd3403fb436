// Package idgen mints node ids for callers that do not bring their own.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultPrefix is used when no kind prefix applies.
const DefaultPrefix = "node-"

// Alphabet keeps ids safe in paths, DOT identifiers and shell arguments.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the random part, excluding the prefix.
const Length = 12

func Generate() (string, error) {
	return GenerateWithPrefix(DefaultPrefix)
}

func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return prefix + id, nil
}

// ForKind prefixes the id with the node kind, e.g. "fact-3k9x...", falling back
// to DefaultPrefix when kind is empty or not a plain lowercase token.
func ForKind(kind string) (string, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" || len(kind) > 24 || strings.Trim(kind, "abcdefghijklmnopqrstuvwxyz0123456789_") != "" {
		return Generate()
	}
	return GenerateWithPrefix(kind + "-")
}
