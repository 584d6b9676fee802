package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the periodic passes without the HTTP server",
	Long: `Run the crawl, download and availability loops headless.

Useful when a separate serve instance owns the control plane, or on
boxes that only churn through the download queue.`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	d, err := buildDaemon()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	d.sched.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Printf("[INFO] scheduler: received %s, shutting down", sig)
	case <-ctx.Done():
	}

	cancel()
	d.sched.Stop()
	return nil
}
