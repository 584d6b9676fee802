package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runJobsLimit int

// runJobsCmd represents the run-jobs command
var runJobsCmd = &cobra.Command{
	Use:   "run-jobs",
	Short: "Drain one batch of pending download jobs",
	Long: `Claim up to --limit pending jobs, process them with the configured
parallelism and exit. An empty queue exits cleanly with a zero batch.

Example:
  rozhlasd run-jobs
  rozhlasd run-jobs --limit 3`,
	RunE: runRunJobs,
}

func init() {
	rootCmd.AddCommand(runJobsCmd)

	runJobsCmd.Flags().IntVar(&runJobsLimit, "limit", 0, "max jobs to claim (0 = configured batch size)")
}

func runRunJobs(cmd *cobra.Command, args []string) error {
	d, err := buildDaemon()
	if err != nil {
		return err
	}

	batch, err := d.executor.RunBatch(cmd.Context(), runJobsLimit)
	if err != nil {
		return fmt.Errorf("running jobs: %w", err)
	}

	if batch.Claimed == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Claimed %d: %d succeeded, %d failed, %d watching, %d handed off, %d skipped\n",
		batch.Claimed, batch.Succeeded, batch.Failed, batch.Watching, batch.Handed, batch.Skipped)
	return nil
}
