// Package sanitize turns free-text receipt descriptions into short tokens that
// are safe to embed in archive filenames.
package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLen is the maximum length, in characters, of a cleaned description.
const MaxLen = 15

const (
	fallbackEmpty       = "unknown"
	fallbackUnderscores = "document"
)

// reserved are the characters no mainstream filesystem accepts in a name.
const reserved = `/\:*?"<>|`

// Letters that do not decompose into base letter + combining mark.
var ligatures = strings.NewReplacer(
	"ß", "ss", "ẞ", "SS",
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O",
	"đ", "d", "Đ", "D",
	"ð", "d", "Ð", "D",
	"ł", "l", "Ł", "L",
	"þ", "th", "Þ", "Th",
	"ı", "i",
)

// Clean returns a non-empty filename-safe token of at most MaxLen characters.
// Steps, in order: trim; transliterate Latin letters to ASCII; replace reserved
// characters with '_'; collapse runs of spaces/underscores to one '_'; fall back
// to "unknown" when empty; truncate; fall back to "document" when only
// underscores remain.
func Clean(description string) string {
	s := strings.TrimSpace(description)
	s = Transliterate(s)

	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if strings.ContainsRune(reserved, r) || unicode.IsControl(r) || r == utf8.RuneError {
			r = '_'
		}
		if r == '_' || unicode.IsSpace(r) {
			if !inRun {
				b.WriteByte('_')
				inRun = true
			}
			continue
		}
		inRun = false
		b.WriteRune(r)
	}
	s = b.String()

	if s == "" {
		return fallbackEmpty
	}
	s = truncateRunes(s, MaxLen)
	if strings.Trim(s, "_") == "" {
		return fallbackUnderscores
	}
	return s
}

// Transliterate strips diacritics from Latin letters ("café" -> "cafe") and
// expands ligatures ("Straße" -> "Strasse"). Characters without an ASCII
// equivalent are left as they are.
func Transliterate(s string) string {
	s = ligatures.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
