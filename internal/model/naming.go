package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics strips combining marks: "Crèmerie" becomes "Cremerie".
var foldDiacritics = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeName folds an establishment name for duplicate matching: lowercase,
// accents stripped, hyphens treated as spaces, runs of whitespace collapsed.
func NormalizeName(name string) string {
	s, _, err := transform.String(foldDiacritics, name)
	if err != nil {
		s = name
	}
	s = strings.ToLower(s)
	s = strings.NewReplacer("-", " ", "'", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Slugify derives a URL-safe identifier from a name. Uniqueness is the
// store's concern; it suffixes a counter on collision.
func Slugify(name string) string {
	s := NormalizeName(name)
	var b strings.Builder
	lastHyphen := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
