package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mujarchiv/rozhlasd/internal/models"
)

var (
	targetAddURL      string
	targetAddKind     string
	targetAddInterval int
)

// targetAddCmd represents the target-add command
var targetAddCmd = &cobra.Command{
	Use:   "target-add",
	Short: "Register a URL for periodic crawling",
	Long: `Register a station, program or series URL as a crawl target. The
scheduler re-crawls every active target once its interval elapses.

Adding a URL that is already registered is a no-op and prints the
existing target.

Example:
  rozhlasd target-add --url https://www.mujrozhlas.cz/hra-na-nedeli
  rozhlasd target-add --url https://www.mujrozhlas.cz/vltava --kind station --interval 6`,
	RunE: runTargetAdd,
}

// targetListCmd represents the target-list command
var targetListCmd = &cobra.Command{
	Use:   "target-list",
	Short: "List registered crawl targets",
	RunE:  runTargetList,
}

// targetToggleCmd represents the target-toggle command
var targetToggleCmd = &cobra.Command{
	Use:   "target-toggle <id>",
	Short: "Pause or resume a crawl target",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetToggle,
}

func init() {
	rootCmd.AddCommand(targetAddCmd)
	rootCmd.AddCommand(targetListCmd)
	rootCmd.AddCommand(targetToggleCmd)

	targetAddCmd.Flags().StringVar(&targetAddURL, "url", "", "target URL (required)")
	targetAddCmd.Flags().StringVar(&targetAddKind, "kind", "program", "target kind: station, program or series")
	targetAddCmd.Flags().IntVar(&targetAddInterval, "interval", 24, "crawl interval in hours")
	_ = targetAddCmd.MarkFlagRequired("url")
}

func runTargetAdd(cmd *cobra.Command, args []string) error {
	kind := models.TargetKind(targetAddKind)
	switch kind {
	case models.TargetStation, models.TargetProgram, models.TargetSeries:
	default:
		return fmt.Errorf("unknown target kind %q (want station, program or series)", targetAddKind)
	}
	if targetAddInterval <= 0 {
		return fmt.Errorf("interval must be a positive number of hours")
	}

	_, repo, _, err := openCatalog()
	if err != nil {
		return err
	}

	target := models.CrawlTarget{
		URL:           targetAddURL,
		Kind:          kind,
		Active:        true,
		IntervalHours: targetAddInterval,
	}
	if err := repo.CreateTarget(cmd.Context(), &target); err != nil {
		return fmt.Errorf("adding target: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Target #%d: %s (%s, every %dh)\n",
		target.ID, target.URL, target.Kind, target.IntervalHours)
	return nil
}

func runTargetList(cmd *cobra.Command, args []string) error {
	_, repo, _, err := openCatalog()
	if err != nil {
		return err
	}

	targets, err := repo.ListTargets(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing targets: %w", err)
	}

	if len(targets) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No crawl targets registered")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tACTIVE\tINTERVAL\tLAST CRAWL\tURL")
	for _, t := range targets {
		last := "never"
		if t.LastCrawledAt != nil {
			last = t.LastCrawledAt.UTC().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%d\t%s\t%t\t%dh\t%s\t%s\n",
			t.ID, t.Kind, t.Active, t.IntervalHours, last, t.URL)
	}
	return w.Flush()
}

func runTargetToggle(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid target ID %q", args[0])
	}

	_, repo, _, err := openCatalog()
	if err != nil {
		return err
	}

	target, err := repo.ToggleTarget(cmd.Context(), uint(id))
	if err != nil {
		return fmt.Errorf("toggling target %d: %w", id, err)
	}

	state := "paused"
	if target.Active {
		state = "active"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Target #%d is now %s\n", target.ID, state)
	return nil
}
