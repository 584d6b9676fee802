package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mujarchiv/rozhlasd/internal/ingest"
)

func TestSeedStationsCommand(t *testing.T) {
	t.Setenv("ROZHLASD_DB_URL", filepath.Join(t.TempDir(), "catalog.db"))

	builtin := len(ingest.SeedStations())

	out, err := runCLI(t, "seed-stations")
	if err != nil {
		t.Fatalf("seed-stations failed: %v", err)
	}
	if want := fmt.Sprintf("Seeded %d stations", builtin); !strings.Contains(out, want) {
		t.Errorf("Expected %q, got %q", want, out)
	}

	// Re-seeding merges into existing rows instead of failing.
	if _, err := runCLI(t, "seed-stations"); err != nil {
		t.Fatalf("re-seeding failed: %v", err)
	}

	// Extra stations from a YAML file are appended to the built-ins.
	extraFile := filepath.Join(t.TempDir(), "regional.yaml")
	yaml := `stations:
  - code: brno
    name: "ČRo Brno"
    website: https://brno.rozhlas.cz
  - code: ostrava
    name: "ČRo Ostrava"
    website: https://ostrava.rozhlas.cz
`
	if err := os.WriteFile(extraFile, []byte(yaml), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	out, err = runCLI(t, "seed-stations", "--file", extraFile)
	if err != nil {
		t.Fatalf("seed-stations --file failed: %v", err)
	}
	if want := fmt.Sprintf("Seeded %d stations", builtin+2); !strings.Contains(out, want) {
		t.Errorf("Expected %q, got %q", want, out)
	}
}

func TestSeedStationsMissingFile(t *testing.T) {
	t.Setenv("ROZHLASD_DB_URL", ":memory:")

	if _, err := runCLI(t, "seed-stations", "--file", "/nonexistent/stations.yaml"); err == nil {
		t.Error("Expected an error for a missing stations file")
	}
}
