package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mujarchiv/rozhlasd/internal/ingest"
)

var seedStationsFile string

// seedStationsCmd represents the seed-stations command
var seedStationsCmd = &cobra.Command{
	Use:   "seed-stations",
	Short: "Upsert the built-in Czech Radio station table",
	Long: `Insert or refresh the static station rows (code, name, website) that
episode records hang off. Running it again merges updated names and
websites into the existing rows.

Extra stations can be appended from a YAML file:

  rozhlasd seed-stations --file regional.yaml

with the document shaped as:

  stations:
    - code: brno
      name: "ČRo Brno"
      website: https://brno.rozhlas.cz`,
	RunE: runSeedStations,
}

func init() {
	rootCmd.AddCommand(seedStationsCmd)

	seedStationsCmd.Flags().StringVar(&seedStationsFile, "file", "", "YAML file with extra stations to seed")
}

func runSeedStations(cmd *cobra.Command, args []string) error {
	_, repo, _, err := openCatalog()
	if err != nil {
		return err
	}

	stations := ingest.SeedStations()

	if seedStationsFile != "" {
		data, err := os.ReadFile(seedStationsFile)
		if err != nil {
			return fmt.Errorf("reading %s: %w", seedStationsFile, err)
		}
		extra, err := ingest.ParseStationsYAML(data)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", seedStationsFile, err)
		}
		stations = append(stations, extra...)
	}

	for i := range stations {
		station := stations[i]
		if err := repo.UpsertStation(cmd.Context(), &station); err != nil {
			return fmt.Errorf("seeding station %s: %w", station.Code, err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d stations\n", len(stations))
	return nil
}
