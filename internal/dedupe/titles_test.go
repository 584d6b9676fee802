package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		series string
		want   string
	}{
		{
			name:  "diacritics folded and lowercased",
			title: "Příběh č. 01",
			want:  "pribeh c. 01",
		},
		{
			name:  "whitespace collapsed",
			title: "  Osudy \t dobrého   vojáka ",
			want:  "osudy dobreho vojaka",
		},
		{
			name:   "series prefix with colon",
			title:  "Osudy: Kapitola první",
			series: "Osudy",
			want:   "kapitola prvni",
		},
		{
			name:   "series prefix with hyphen",
			title:  "Osudy - Kapitola první",
			series: "Osudy",
			want:   "kapitola prvni",
		},
		{
			name:   "series prefix with en dash",
			title:  "Osudy – Kapitola první",
			series: "Osudy",
			want:   "kapitola prvni",
		},
		{
			name:   "series prefix with em dash",
			title:  "Osudy — Kapitola první",
			series: "Osudy",
			want:   "kapitola prvni",
		},
		{
			name:   "series with diacritics strips folded prefix",
			title:  "Četba na pokračování: 3. díl",
			series: "Cetba na pokracovani",
			want:   "3. dil",
		},
		{
			name:   "series mentioned mid-title survives",
			title:  "Kapitola první z cyklu Osudy",
			series: "Osudy",
			want:   "kapitola prvni z cyklu osudy",
		},
		{
			name:   "no separator after series keeps title",
			title:  "Osudy vojáka",
			series: "Osudy",
			want:   "osudy vojaka",
		},
		{
			name:  "empty title",
			title: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.title, tt.series))
		})
	}
}

func TestLCSRatio(t *testing.T) {
	assert.Equal(t, 1.0, lcsRatio("pribeh c. 01", "pribeh c. 01"))
	assert.Equal(t, 0.0, lcsRatio("", "pribeh"))
	assert.Equal(t, 0.0, lcsRatio("", ""))

	// One rune of drift on a 12-rune title stays above the threshold.
	assert.Greater(t, lcsRatio("pribeh c. 01", "pribeh c. 02"), fuzzyThreshold)

	// Unrelated titles fall far below it.
	assert.Less(t, lcsRatio("kapitola prvni", "vecerni zpravy"), fuzzyThreshold)
}
