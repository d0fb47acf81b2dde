// Registrator is a provisioning utility for student access-control
// terminals.
//
// It registers students onto face-recognition terminals, keeps the terminal
// roster in sync with a school backend, clones user records between devices,
// and manages the webhook and system configuration of each terminal. The
// tool communicates with terminals over HTTP and needs no vendor software.
//
// Usage:
//
//	registrator [command] [flags]
//
// See 'registrator --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/schoolpass/registrator/internal/logging"
	"github.com/schoolpass/registrator/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "registrator",
	Short: "Student Registration Utility for access-control terminals",
	Long: `A standalone utility for provisioning students onto access-control
terminals.

Registers students with face images across every paired terminal, keeps
provisioning records in sync with the school backend, and provides device
management, cloning, and webhook configuration commands.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Logging is silent unless REGISTRATOR_LOG_LEVEL is set, so the
		// curated command output stays clean.
		_ = logging.InitializeFromEnv()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("registrator %s (commit: %s)\n", version.Version, version.Commit)
	},
}
