package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

// freePort grabs an ephemeral port and releases it for the server to
// re-bind. The window between close and re-bind is small enough for a
// test.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port
}

func TestServeCommandHelp(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"serve", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !strings.Contains(buf.String(), "Run the scheduler and the control-plane API server") {
		t.Errorf("Expected serve help text, got %q", buf.String())
	}
}

func TestServeCommandInvalidPort(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"serve", "--port", "invalid"})

	if err := cmd.Execute(); err == nil {
		t.Error("Expected an error for a non-numeric port")
	}
}

func TestServeCommandBootsAndStops(t *testing.T) {
	t.Setenv("ROZHLASD_DB_URL", ":memory:")

	port := freePort(t)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"serve", "--host", "127.0.0.1", "--port", fmt.Sprintf("%d", port)})

	// The command runs until its context ends, so give it one that
	// expires on its own.
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Execute() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after its context expired")
	}
}

func TestServeCommandFlags(t *testing.T) {
	cmd := NewRootCmd()
	serveCmd, _, err := cmd.Find([]string{"serve"})
	if err != nil {
		t.Fatalf("Failed to find serve command: %v", err)
	}

	// Test port flag
	portFlag := serveCmd.Flags().Lookup("port")
	if portFlag == nil {
		t.Error("Expected port flag to be registered")
	}

	// Test host flag
	hostFlag := serveCmd.Flags().Lookup("host")
	if hostFlag == nil {
		t.Error("Expected host flag to be registered")
	}
}
