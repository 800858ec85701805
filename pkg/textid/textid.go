// Package textid implements the identifier and hashing primitives shared by
// every source provider: text normalization, content hashing, and the
// RFC3339 timestamp convention used throughout the cache schema.
package textid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// Normalize collapses CRLF/CR line endings to LF, trims trailing whitespace
// from each line, and drops leading and trailing empty lines. Normalizing
// already-normalized text is a no-op.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}

	start := 0
	for start < len(lines) && lines[start] == "" {
		start++
	}

	end := len(lines)
	for end > start && lines[end-1] == "" {
		end--
	}

	return strings.Join(lines[start:end], "\n")
}

// ContentHash returns the lowercase hex sha256 digest of normalized text's
// UTF-8 bytes.
func ContentHash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))

	return hex.EncodeToString(sum[:])
}

// FormatTime renders t as RFC3339 UTC with a literal "Z" suffix.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTime parses an RFC3339 timestamp and converts it to UTC.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}

	return t.UTC(), nil
}

// FileSourceID converts an absolute or root-relative file path into the
// POSIX-style, forward-slash source id used as a file record's key.
func FileSourceID(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}

	return filepath.ToSlash(rel), nil
}
