package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apiDatum(id, title string, duration float64, since, serial string) apiEpisode {
	var datum apiEpisode
	datum.ID = id
	datum.Attributes.Title = title
	datum.Attributes.Duration = duration
	datum.Attributes.Since = since
	datum.Attributes.Serial.Title = serial
	return datum
}

func marshalPage(t *testing.T, data []apiEpisode) []byte {
	t.Helper()
	body, err := json.Marshal(apiEpisodePage{Data: data})
	require.NoError(t, err)
	return body
}

func TestCatalogAPISource_PaginatesShows(t *testing.T) {
	const showUUID = "11111111-2222-4333-8444-555555555555"
	showPage := fmt.Sprintf(`<html><head><meta content="%s" name="show"/></head></html>`, strings.ToUpper(showUUID))

	fullPage := make([]apiEpisode, 0, apiPageLimit)
	for i := 0; i < apiPageLimit; i++ {
		fullPage = append(fullPage, apiDatum(testUUID(i), fmt.Sprintf("Díl %d", i+1), 1700, "2024-03-01T18:30:00Z", "Osudy"))
	}
	lastPage := []apiEpisode{
		apiDatum(testUUID(apiPageLimit), "Poslední díl", 1700, "2024-03-02T18:30:00Z", "Osudy"),
	}

	var fetched []string
	fetcher := fetcherFunc(func(_ context.Context, rawURL string) ([]byte, error) {
		fetched = append(fetched, rawURL)
		switch {
		case rawURL == "https://plus.rozhlas.cz/osudy-9391766":
			return []byte(showPage), nil
		case strings.Contains(rawURL, "page[offset]=0"):
			return marshalPage(t, fullPage), nil
		case strings.Contains(rawURL, "page[offset]=50"):
			return marshalPage(t, lastPage), nil
		default:
			t.Fatalf("unexpected fetch %s", rawURL)
			return nil, nil
		}
	})

	source := NewCatalogAPISource(fetcher, CatalogAPIConfig{APIBase: "https://api.test"})
	episodes, err := source.Discover(context.Background(), Target{
		URL:      "https://www.mujrozhlas.cz/osudy",
		Original: "https://plus.rozhlas.cz/osudy-9391766",
	})
	require.NoError(t, err)

	require.Len(t, fetched, 3, "show page plus two listing pages")
	assert.Equal(t, fmt.Sprintf("https://api.test/shows/%s/episodes?page[limit]=50&page[offset]=0", showUUID), fetched[1])
	require.Len(t, episodes, apiPageLimit+1)

	first := episodes[0]
	assert.Equal(t, "https://www.mujrozhlas.cz/episode/"+testUUID(0), first.URL)
	assert.Equal(t, testUUID(0), first.ExtID)
	assert.Equal(t, "Díl 1", first.Title)
	assert.Equal(t, "Osudy", first.Series)
	assert.True(t, first.IsSeriesEpisode)
	require.NotNil(t, first.PublishedAt)
	assert.Equal(t, time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC), *first.PublishedAt)
}

func TestCatalogAPISource_NoUUIDInPage(t *testing.T) {
	fetcher := fetcherFunc(func(_ context.Context, _ string) ([]byte, error) {
		return []byte("<html><body>nothing here</body></html>"), nil
	})

	source := NewCatalogAPISource(fetcher, CatalogAPIConfig{})
	_, err := source.Discover(context.Background(), Target{
		URL:      "https://www.mujrozhlas.cz/osudy",
		Original: "https://plus.rozhlas.cz/osudy",
	})
	assert.ErrorIs(t, err, ErrNoShowUUID)
}

func TestExtractShowUUID(t *testing.T) {
	attrPage := `<div data-entity-uuid="AAAAAAAA-0000-4000-8000-000000000001"></div>
<script>var other = "bbbbbbbb-0000-4000-8000-000000000002";</script>`
	assert.Equal(t, "aaaaaaaa-0000-4000-8000-000000000001", extractShowUUID(attrPage),
		"attribute-scoped uuid beats bare ones")

	barePage := `<script>var uuid = "cccccccc-0000-4000-8000-000000000003";</script>`
	assert.Equal(t, "cccccccc-0000-4000-8000-000000000003", extractShowUUID(barePage))

	assert.Empty(t, extractShowUUID("<html>no uuid</html>"))
}
