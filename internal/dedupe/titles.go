package dedupe

import (
	"strings"

	"github.com/mujarchiv/rozhlasd/pkg/textnorm"
)

// Separators a series prefix may be glued to the episode title with.
var prefixSeparators = []string{":", " -", " –", " —"}

// NormalizeTitle prepares a title for fuzzy comparison: diacritics
// folded, series prefix removed, lowercased, whitespace collapsed.
func NormalizeTitle(title, series string) string {
	normalized := strings.TrimSpace(textnorm.Normalize(title))
	if series == "" {
		return normalized
	}
	prefix := strings.TrimSpace(textnorm.Normalize(series))
	if prefix == "" {
		return normalized
	}
	for _, sep := range prefixSeparators {
		if rest, ok := strings.CutPrefix(normalized, prefix+sep); ok {
			return strings.TrimSpace(rest)
		}
	}
	return normalized
}

// lcsRatio is 2*LCS/(len(a)+len(b)) over runes, the similarity measure
// the fuzzy tier thresholds at 0.90.
func lcsRatio(a, b string) float64 {
	runesA, runesB := []rune(a), []rune(b)
	if len(runesA) == 0 || len(runesB) == 0 {
		return 0
	}
	common := lcsLength(runesA, runesB)
	return 2 * float64(common) / float64(len(runesA)+len(runesB))
}

func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	previous := make([]int, len(b)+1)
	current := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				current[j] = previous[j-1] + 1
			} else if previous[j] >= current[j-1] {
				current[j] = previous[j]
			} else {
				current[j] = current[j-1]
			}
		}
		previous, current = current, previous
	}
	return previous[len(b)]
}
