package dedupe

import (
	"testing"

	"github.com/mujarchiv/rozhlasd/internal/discovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduper_ReairSuffixFolds(t *testing.T) {
	entries := []discovery.DiscoveredEpisode{
		{URL: "https://www.mujrozhlas.cz/show/slug", Title: "Nějaká epizoda"},
		{URL: "https://www.mujrozhlas.cz/show/slug-1234567", Title: "Nějaká epizoda (repríza)"},
	}

	result := New().Run(entries, nil)

	require.Len(t, result.Unique, 1)
	assert.Equal(t, "https://www.mujrozhlas.cz/show/slug", result.Unique[0].URL)

	require.Len(t, result.Groups, 1)
	group := result.Groups[0]
	assert.Equal(t, "https://www.mujrozhlas.cz/show/slug", group.CanonicalURL)
	require.Len(t, group.Members, 1)
	assert.Equal(t, ReasonURLReair, group.Members[0].Reason)
	assert.Equal(t, "https://www.mujrozhlas.cz/show/slug-1234567", group.Members[0].URL)
}

func TestDeduper_FuzzyTitleFolds(t *testing.T) {
	entries := []discovery.DiscoveredEpisode{
		{URL: "https://www.mujrozhlas.cz/show/a", Title: "Pribeh c. 01"},
		{URL: "https://www.mujrozhlas.cz/show/b", Title: "Příběh č. 01"},
	}

	result := New().Run(entries, nil)

	require.Len(t, result.Unique, 1)
	require.Len(t, result.Groups, 1)
	require.Len(t, result.Groups[0].Members, 1)
	assert.Equal(t, ReasonTitleFuzzy, result.Groups[0].Members[0].Reason)
}

func TestDeduper_ExtIDWinsOverURL(t *testing.T) {
	entries := []discovery.DiscoveredEpisode{
		{URL: "https://www.mujrozhlas.cz/show/a", ExtID: "xyz", Title: "První"},
		{URL: "https://www.mujrozhlas.cz/episode/xyz", ExtID: "xyz", Title: "Úplně jiný titulek"},
	}

	result := New().Run(entries, nil)

	require.Len(t, result.Unique, 1)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, ReasonExtID, result.Groups[0].Members[0].Reason)
}

func TestDeduper_SeriesPrefixStripped(t *testing.T) {
	entries := []discovery.DiscoveredEpisode{
		{URL: "https://www.mujrozhlas.cz/show/a", Title: "Osudy: kapitola prvni", Series: "Osudy"},
		{URL: "https://www.mujrozhlas.cz/show/b", Title: "Kapitola první"},
	}

	result := New().Run(entries, nil)

	require.Len(t, result.Unique, 1, "prefix-stripped titles compare equal")
	assert.Equal(t, ReasonTitleFuzzy, result.Groups[0].Members[0].Reason)
}

func TestDeduper_ShortTitlesNeverFuzzy(t *testing.T) {
	entries := []discovery.DiscoveredEpisode{
		{URL: "https://www.mujrozhlas.cz/show/a", Title: "Díl 1"},
		{URL: "https://www.mujrozhlas.cz/show/b", Title: "Dil 1"},
	}

	result := New().Run(entries, nil)
	assert.Len(t, result.Unique, 2, "five-rune titles are below the fuzzy floor")
	assert.Empty(t, result.Groups)
}

func TestDeduper_ExistingEpisodeKeptButRecorded(t *testing.T) {
	known := NewKnown()
	known.AddEpisode(42, "known-ext", "https://www.mujrozhlas.cz/show/existing", "Veselé příhody z natáčení")
	known.AddAliasURL(42, "https://www.mujrozhlas.cz/show/existing", "https://www.mujrozhlas.cz/show/existing-alias")

	tests := []struct {
		name  string
		entry discovery.DiscoveredEpisode
	}{
		{
			name:  "by ext id",
			entry: discovery.DiscoveredEpisode{URL: "https://www.mujrozhlas.cz/show/new-url", ExtID: "known-ext"},
		},
		{
			name:  "by exact url",
			entry: discovery.DiscoveredEpisode{URL: "https://www.mujrozhlas.cz/show/existing"},
		},
		{
			name:  "by alias url",
			entry: discovery.DiscoveredEpisode{URL: "https://www.mujrozhlas.cz/show/existing-alias"},
		},
		{
			name:  "by re-air of existing",
			entry: discovery.DiscoveredEpisode{URL: "https://www.mujrozhlas.cz/show/existing-7654321"},
		},
		{
			name:  "by fuzzy title",
			entry: discovery.DiscoveredEpisode{URL: "https://www.mujrozhlas.cz/show/very-new", Title: "Vesele prihody z nataceni"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := New().Run([]discovery.DiscoveredEpisode{tt.entry}, known)

			require.Len(t, result.Unique, 1, "catalog hits stay in the unique set")
			require.Len(t, result.Groups, 1)
			group := result.Groups[0]
			assert.Equal(t, uint(42), group.EpisodeID)
			assert.Equal(t, "https://www.mujrozhlas.cz/show/existing", group.CanonicalURL)
			require.Len(t, group.Members, 1)
			assert.Equal(t, ReasonExistingDB, group.Members[0].Reason)
		})
	}
}

func TestDeduper_IntraBatchBeatsCatalog(t *testing.T) {
	known := NewKnown()
	known.AddEpisode(7, "", "https://www.mujrozhlas.cz/show/slug", "")

	entries := []discovery.DiscoveredEpisode{
		{URL: "https://www.mujrozhlas.cz/show/slug", Title: "Epizoda"},
		{URL: "https://www.mujrozhlas.cz/show/slug/", Title: "Epizoda se lomítkem"},
	}

	result := New().Run(entries, known)

	require.Len(t, result.Unique, 1)
	require.Len(t, result.Groups, 2, "one catalog group, one batch group")

	var reasons []Reason
	for _, group := range result.Groups {
		for _, member := range group.Members {
			reasons = append(reasons, member.Reason)
		}
	}
	assert.ElementsMatch(t, []Reason{ReasonExistingDB, ReasonURLExact}, reasons)
}

func TestDeduper_DuplicateEnrichesCanonical(t *testing.T) {
	entries := []discovery.DiscoveredEpisode{
		{URL: "https://www.mujrozhlas.cz/show/slug", Title: "Epizoda", Sources: []string{"ajax"}},
		{URL: "https://www.mujrozhlas.cz/show/slug-1234567", ExtID: "fresh-ext", Description: "Popis", Sources: []string{"catalog-api"}},
	}

	result := New().Run(entries, nil)

	require.Len(t, result.Unique, 1)
	survivor := result.Unique[0]
	assert.Equal(t, "fresh-ext", survivor.ExtID, "duplicate fills the canonical's gaps")
	assert.Equal(t, "Popis", survivor.Description)
	assert.ElementsMatch(t, []string{"ajax", "catalog-api"}, survivor.Sources)
}
