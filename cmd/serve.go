package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mujarchiv/rozhlasd/api"
	"github.com/mujarchiv/rozhlasd/api/types"
)

var (
	serverHost string
	serverPort int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the control-plane API server",
	Long: `Run the full daemon: periodic crawl, download and availability passes
plus the HTTP control plane with the live event stream.

Example:
  rozhlasd serve
  rozhlasd serve --port 9090
  rozhlasd serve --host 0.0.0.0 --port 8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server flags
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host (overrides config)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	d, err := buildDaemon()
	if err != nil {
		return err
	}

	host := d.cfg.WebHost
	if serverHost != "" {
		host = serverHost
	}
	port := d.cfg.WebPort
	if serverPort != 0 {
		port = serverPort
	}
	address := fmt.Sprintf("%s:%d", host, port)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	d.sched.Start(ctx)

	server := api.NewServer(address, &types.Dependencies{
		DB:        d.db,
		Repo:      d.repo,
		Ingester:  d.ingester,
		Submitter: d.sched,
		Bus:       d.bus,
		Notifier:  d.shelf,
		Version:   Version,
	})
	if err := server.Initialize(); err != nil {
		d.sched.Stop()
		return fmt.Errorf("initializing server: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	log.Printf("[INFO] serve: control plane listening on %s", address)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-stop:
		log.Printf("[INFO] serve: received %s, shutting down", sig)
	case err := <-serverErr:
		log.Printf("[ERROR] serve: %v", err)
		runErr = err
	case <-ctx.Done():
		log.Printf("[INFO] serve: context cancelled, shutting down")
	}

	cancel()
	d.sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] serve: forced shutdown: %v", err)
		if runErr == nil {
			runErr = err
		}
	}

	log.Printf("[INFO] serve: stopped")
	return runErr
}
