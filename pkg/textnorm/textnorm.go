// Package textnorm provides text normalization helpers for title matching
// and filesystem-safe naming. Czech source titles are full of diacritics
// and inconsistent whitespace; both matching and path building want the
// folded form.
package textnorm

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	space = regexp.MustCompile(`\s+`)

	// Characters that are unsafe in file names across filesystems.
	unsafePath = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

	folder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Fold strips diacritics: "Veselé příhody" becomes "Vesele prihody".
// Input that fails to transform is returned unchanged.
func Fold(s string) string {
	out, _, err := transform.String(folder, s)
	if err != nil {
		return s
	}
	return out
}

// CollapseWhitespace trims the string and squeezes internal whitespace
// runs to single spaces.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(space.ReplaceAllString(s, " "))
}

// Normalize produces the canonical comparison form: diacritics folded,
// lowercased, whitespace collapsed.
func Normalize(s string) string {
	return CollapseWhitespace(strings.ToLower(Fold(s)))
}

// SanitizeComponent makes a single path component filesystem-safe.
// Diacritics are folded, unsafe characters removed and the result
// trimmed of leading/trailing dots and spaces.
func SanitizeComponent(s string) string {
	s = Fold(s)
	s = unsafePath.ReplaceAllString(s, "")
	s = CollapseWhitespace(s)
	return strings.Trim(s, ". ")
}

// TruncateRunes caps a string at max runes without splitting a rune.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}

var (
	ordinalPre  = regexp.MustCompile(`(\d{1,3})\.\s*(?:dil|cast|epizoda)`)
	ordinalPost = regexp.MustCompile(`(?:dil|cast|epizoda)\s+(\d{1,3})(?:\D|$)`)
)

// EpisodeOrdinal extracts a Czech part number from a title: "3. díl",
// "12. část", "Díl 3". Returns false when the title names no part.
func EpisodeOrdinal(title string) (int, bool) {
	folded := Normalize(title)
	for _, re := range []*regexp.Regexp{ordinalPre, ordinalPost} {
		if m := re.FindStringSubmatch(folded); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return n, true
			}
		}
	}
	return 0, false
}
