package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		wantErr        bool
		expectedOutput string
	}{
		{
			name:           "root command without args shows help",
			args:           []string{},
			wantErr:        false,
			expectedOutput: "Czech Radio catalog",
		},
		{
			name:           "root command with --help",
			args:           []string{"--help"},
			wantErr:        false,
			expectedOutput: "Available Commands:",
		},
		{
			name:           "root command with invalid flag",
			args:           []string{"--invalid-flag"},
			wantErr:        true,
			expectedOutput: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create a new root command for testing
			cmd := NewRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.expectedOutput != "" && !strings.Contains(buf.String(), tt.expectedOutput) {
				t.Errorf("Expected output to contain %q, got %q", tt.expectedOutput, buf.String())
			}
		})
	}
}

func TestRootCommandListsVerbs(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, verb := range []string{
		"init", "seed-stations", "ingest-url", "ingest-program", "crawl-url",
		"target-add", "target-list", "target-toggle", "run-jobs", "scheduler",
		"serve", "version",
	} {
		if !strings.Contains(buf.String(), verb) {
			t.Errorf("Expected help to list verb %q", verb)
		}
	}
}

func TestVerboseFlag(t *testing.T) {
	cmd := NewRootCmd()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	if verboseFlag == nil {
		t.Fatal("Expected verbose flag to be registered")
	}

	if verboseFlag.DefValue != "false" {
		t.Errorf("Expected default verbose to be 'false', got %s", verboseFlag.DefValue)
	}

	if verboseFlag.Shorthand != "v" {
		t.Errorf("Expected verbose shorthand to be 'v', got %s", verboseFlag.Shorthand)
	}
}
