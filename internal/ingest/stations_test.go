package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStation(t *testing.T) {
	tests := []struct {
		name     string
		uploader string
		wantCode string
	}{
		{name: "vltava with diacritics", uploader: "Český rozhlas Vltava", wantCode: "vltava"},
		{name: "radiozurnal", uploader: "ČRo Radiožurnál", wantCode: "radiozurnal"},
		{name: "sport beats radiozurnal", uploader: "Radiožurnál Sport", wantCode: "sport"},
		{name: "case insensitive", uploader: "CESKY ROZHLAS PLUS", wantCode: "plus"},
		{name: "d-dur", uploader: "ČRo D-dur", wantCode: "d-dur"},
		{name: "unknown uploader", uploader: "Nezávislé rádio", wantCode: AggregatorCode},
		{name: "generic cesky rozhlas", uploader: "Český rozhlas", wantCode: AggregatorCode},
		{name: "empty uploader", uploader: "", wantCode: AggregatorCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			station := ResolveStation(tt.uploader)
			assert.Equal(t, tt.wantCode, station.Code)
			assert.NotEmpty(t, station.Name)
		})
	}
}

func TestSeedStations(t *testing.T) {
	stations := SeedStations()
	require.NotEmpty(t, stations)

	codes := make(map[string]bool, len(stations))
	for _, station := range stations {
		assert.NotEmpty(t, station.Code)
		assert.NotEmpty(t, station.Name)
		assert.False(t, codes[station.Code], "duplicate code %s", station.Code)
		codes[station.Code] = true
	}
	assert.True(t, codes[AggregatorCode], "aggregator station is part of the seed")
}

func TestParseStationsYAML(t *testing.T) {
	doc := []byte(`
stations:
  - code: brno
    name: ČRo Brno
    website: https://brno.rozhlas.cz
  - code: ostrava
    name: ČRo Ostrava
`)
	stations, err := ParseStationsYAML(doc)
	require.NoError(t, err)
	require.Len(t, stations, 2)
	assert.Equal(t, "brno", stations[0].Code)
	assert.Equal(t, "ČRo Brno", stations[0].Name)
	assert.Equal(t, "https://brno.rozhlas.cz", stations[0].Website)
	assert.Equal(t, "ostrava", stations[1].Code)
	assert.Empty(t, stations[1].Website)
}

func TestParseStationsYAML_Invalid(t *testing.T) {
	_, err := ParseStationsYAML([]byte("stations:\n  - name: bez kódu\n"))
	assert.Error(t, err, "missing code is rejected")

	_, err = ParseStationsYAML([]byte("{not yaml"))
	assert.Error(t, err)
}
