package textutil

import (
	"strings"
	"unicode"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters and control characters are removed.
func SanitizeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(fileNameReplacer.Replace(name))
	return strings.Trim(name, ".")
}

// SanitizeKeySegment converts a name into a single object-key segment:
// sanitized like a file name, with whitespace runs collapsed to underscores.
// Returns fallback when nothing usable remains.
func SanitizeKeySegment(name, fallback string) string {
	fields := strings.Fields(SanitizeFileName(name))
	if len(fields) == 0 {
		return fallback
	}
	return strings.Join(fields, "_")
}
