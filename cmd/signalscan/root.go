// Package main provides the entry point for the signalscan CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for signalscan.
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultEnv())
}

func newRootCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signalscan",
		Short: "Authenticated crawler for the Signal investor directory",
		Long: `signalscan crawls the session-gated investor directory at signal.nfx.com.

It drives a real Chrome browser, reuses an encrypted saved session, asks you
to log in when the session has expired, expands every listing through its
"load more" control and extracts the investors it shows.

Results are written as CSV files and stored in a SQLite database so that
later runs can be compared.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(e.stdout)
	cmd.SetErr(e.stderr)

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: ./.signalscan, $XDG_CONFIG_HOME/signalscan/config.yaml or ~/.signalscan)")

	cmd.AddCommand(NewCrawlCmd(e))
	cmd.AddCommand(NewLoginCmd(e))
	cmd.AddCommand(NewProfileCmd(e))
	cmd.AddCommand(NewAnalyzeCmd(e))
	cmd.AddCommand(NewCompareCmd(e))
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
