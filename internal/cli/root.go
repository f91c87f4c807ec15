// Package cli provides the command-line interface for profiled.
package cli

import (
	"fmt"
	"os"

	"github.com/raphaelgruber/profiled-go/internal/client"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	// apiClient talks to a running profiled server. Initialized for every
	// command except serve, which builds the full stack itself.
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "profiled",
	Short: "Conversation memory pipeline",
	Long: `Profiled turns raw user conversations into a durable memory profile.

A background job examines each conversation once, extracts long-term
insights with an LLM, and merges them into a single versioned profile
per user. The serve command runs the API server; the other commands
talk to it.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "serve" {
			return nil
		}
		apiClient = client.New(serverURL)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "server URL (default $PROFILED_SERVER_URL or http://localhost:8585)")
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
