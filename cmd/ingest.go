package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mujarchiv/rozhlasd/internal/catalog"
	"github.com/mujarchiv/rozhlasd/internal/ingest"
)

var ingestDryRun bool

// ingestURLCmd represents the ingest-url command
var ingestURLCmd = &cobra.Command{
	Use:   "ingest-url <url>",
	Short: "Discover and catalog the episodes behind one URL",
	Long: `Run a single URL through the discovery fan-out, fold duplicates and
reconcile the result into the catalog. New episodes get their download
jobs queued; run-jobs or a running scheduler drains them.

Example:
  rozhlasd ingest-url https://www.mujrozhlas.cz/cetba/osudy-dobreho-vojaka-svejka`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestURL,
}

// ingestProgramCmd represents the ingest-program command
var ingestProgramCmd = &cobra.Command{
	Use:   "ingest-program <url>",
	Short: "Discover and catalog a whole program page",
	Long: `Ingest a program or series page. The discovery sources paginate by
themselves, so deep archives come back in full.

With --dry-run the merged episode list is printed and nothing is
written to the catalog.

Example:
  rozhlasd ingest-program https://www.mujrozhlas.cz/hra-na-nedeli --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestProgram,
}

// crawlURLCmd represents the crawl-url command
var crawlURLCmd = &cobra.Command{
	Use:   "crawl-url <url>",
	Short: "Crawl one URL now, stamping its target if registered",
	Long: `Ingest a URL the way a scheduled crawl would. When the URL belongs to
a registered crawl target the target's crawl timestamps are advanced,
so the scheduler will not re-crawl it until its interval elapses.

Example:
  rozhlasd crawl-url https://www.mujrozhlas.cz/hra-na-nedeli`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawlURL,
}

func init() {
	rootCmd.AddCommand(ingestURLCmd)
	rootCmd.AddCommand(ingestProgramCmd)
	rootCmd.AddCommand(crawlURLCmd)

	ingestProgramCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "preview the merged episode list without writing")
}

func runIngestURL(cmd *cobra.Command, args []string) error {
	_, repo, cfg, err := openCatalog()
	if err != nil {
		return err
	}

	ingester := buildIngester(cfg, repo)
	outcome, err := ingester.IngestURL(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", args[0], err)
	}

	printOutcome(cmd.OutOrStdout(), outcome)
	return nil
}

func runIngestProgram(cmd *cobra.Command, args []string) error {
	_, repo, cfg, err := openCatalog()
	if err != nil {
		return err
	}

	ingester := buildIngester(cfg, repo)

	var outcome *ingest.Outcome
	if ingestDryRun {
		outcome, err = ingester.Preview(cmd.Context(), args[0])
	} else {
		outcome, err = ingester.IngestURL(cmd.Context(), args[0])
	}
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", args[0], err)
	}

	printOutcome(cmd.OutOrStdout(), outcome)
	return nil
}

func runCrawlURL(cmd *cobra.Command, args []string) error {
	_, repo, cfg, err := openCatalog()
	if err != nil {
		return err
	}

	ingester := buildIngester(cfg, repo)
	outcome, err := ingester.IngestURL(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("crawling %s: %w", args[0], err)
	}

	printOutcome(cmd.OutOrStdout(), outcome)

	target, err := repo.GetTargetByURL(cmd.Context(), args[0])
	switch {
	case err == nil:
		if err := repo.StampTargetCrawled(cmd.Context(), target.ID, time.Now().UTC()); err != nil {
			return fmt.Errorf("stamping target %d: %w", target.ID, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stamped target #%d, next crawl after %s\n",
			target.ID, time.Duration(target.IntervalHours)*time.Hour)
	case catalog.IsNotFound(err):
		// One-shot crawl of an unregistered URL, nothing to stamp.
	default:
		return fmt.Errorf("looking up target for %s: %w", args[0], err)
	}

	return nil
}

// printOutcome renders an ingest outcome the same way for every verb.
func printOutcome(out io.Writer, outcome *ingest.Outcome) {
	if outcome.DryRun {
		fmt.Fprintf(out, "Dry run: %d discovered, %d unique\n", outcome.Discovered, outcome.Unique)
		for _, entry := range outcome.Entries {
			title := entry.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Fprintf(out, "  %s  %s\n", title, entry.URL)
		}
	} else {
		fmt.Fprintf(out, "Discovered %d, unique %d: %d created, %d updated, %d revived, %d jobs queued",
			outcome.Discovered, outcome.Unique, outcome.Created, outcome.Updated, outcome.Revived, outcome.JobsQueued)
		if outcome.Failed > 0 {
			fmt.Fprintf(out, ", %d failed", outcome.Failed)
		}
		fmt.Fprintln(out)
	}

	for _, report := range outcome.Reports {
		if report.Err != "" {
			fmt.Fprintf(out, "  source %-14s failed: %s\n", report.Source, report.Err)
		} else {
			fmt.Fprintf(out, "  source %-14s %d episodes\n", report.Source, report.Episodes)
		}
	}
}
