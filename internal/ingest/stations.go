package ingest

import (
	"fmt"
	"strings"

	"github.com/mujarchiv/rozhlasd/internal/models"
	"github.com/mujarchiv/rozhlasd/pkg/textnorm"
	"gopkg.in/yaml.v3"
)

// AggregatorCode is the catch-all station. mujrozhlas.cz aggregates
// every Czech Radio channel, so uploads that name no recognizable
// station land here.
const AggregatorCode = "mujrozhlas"

// stationSeed couples one static station row with the folded uploader
// substrings that resolve to it.
type stationSeed struct {
	code    string
	name    string
	website string
	matches []string
}

var aggregatorSeed = stationSeed{code: AggregatorCode, name: "mujRozhlas", website: "https://www.mujrozhlas.cz"}

// Order matters: more specific matchers come first so that
// "Radiožurnál Sport" does not resolve to plain Radiožurnál.
var stationSeeds = []stationSeed{
	{code: "sport", name: "Radiožurnál Sport", website: "https://sport.rozhlas.cz", matches: []string{"radiozurnal sport", "sport"}},
	{code: "radiozurnal", name: "ČRo Radiožurnál", website: "https://radiozurnal.rozhlas.cz", matches: []string{"radiozurnal"}},
	{code: "dvojka", name: "ČRo Dvojka", website: "https://dvojka.rozhlas.cz", matches: []string{"dvojka"}},
	{code: "vltava", name: "ČRo Vltava", website: "https://vltava.rozhlas.cz", matches: []string{"vltava"}},
	{code: "plus", name: "ČRo Plus", website: "https://plus.rozhlas.cz", matches: []string{"plus"}},
	{code: "wave", name: "Radio Wave", website: "https://wave.rozhlas.cz", matches: []string{"wave"}},
	{code: "d-dur", name: "ČRo D-dur", website: "https://d-dur.rozhlas.cz", matches: []string{"d-dur", "ddur"}},
	{code: "jazz", name: "ČRo Jazz", website: "https://jazz.rozhlas.cz", matches: []string{"jazz"}},
	{code: "junior", name: "Rádio Junior", website: "https://junior.rozhlas.cz", matches: []string{"junior"}},
	{code: "pohoda", name: "ČRo Pohoda", website: "https://pohoda.rozhlas.cz", matches: []string{"pohoda"}},
	aggregatorSeed,
}

func (s stationSeed) station() models.Station {
	return models.Station{Code: s.code, Name: s.name, Website: s.website}
}

// ResolveStation maps an uploader string onto one of the seeded
// stations by case-insensitive substring over the folded form.
// Unknown or empty uploaders resolve to the aggregator.
func ResolveStation(uploader string) models.Station {
	folded := textnorm.Normalize(uploader)
	if folded != "" {
		for _, seed := range stationSeeds {
			for _, match := range seed.matches {
				if strings.Contains(folded, match) {
					return seed.station()
				}
			}
		}
	}
	return aggregatorSeed.station()
}

// SeedStations returns the static Czech Radio station table for
// idempotent seeding.
func SeedStations() []models.Station {
	out := make([]models.Station, 0, len(stationSeeds))
	for _, seed := range stationSeeds {
		out = append(out, seed.station())
	}
	return out
}

// ParseStationsYAML reads extra seed rows from a YAML document shaped
// like the seed-stations file:
//
//	stations:
//	  - code: brno
//	    name: ČRo Brno
//	    website: https://brno.rozhlas.cz
func ParseStationsYAML(data []byte) ([]models.Station, error) {
	var doc struct {
		Stations []struct {
			Code    string `yaml:"code"`
			Name    string `yaml:"name"`
			Website string `yaml:"website"`
		} `yaml:"stations"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing stations file: %w", err)
	}

	out := make([]models.Station, 0, len(doc.Stations))
	for _, s := range doc.Stations {
		if s.Code == "" || s.Name == "" {
			return nil, fmt.Errorf("parsing stations file: every station needs code and name")
		}
		out = append(out, models.Station{Code: s.Code, Name: s.Name, Website: s.Website})
	}
	return out, nil
}
