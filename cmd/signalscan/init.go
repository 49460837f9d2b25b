package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/signalscan/internal/config"
)

//go:embed templates/signalscan.yaml
var configTemplate embed.FS

const templatePath = "templates/signalscan.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a signalscan configuration file",
		Long: `Init writes a commented .signalscan configuration file to the current
directory. It lists every setting with its default value: site URLs and
login markers, crawl limits and pacing, timeouts, delay windows, browser
options, session file locations and output directories.

Unless --config names a file, signalscan reads the first of
./.signalscan, $XDG_CONFIG_HOME/signalscan/config.yaml and ~/.signalscan.

Examples:
  # Create .signalscan in current directory
  signalscan init

  # Create config file at a specific path
  signalscan init -o configs/signalscan.yaml

  # Force overwrite existing file
  signalscan init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Adjust pacing and output directories in the file")
	fmt.Fprintln(out, "  2. Run 'signalscan login' once to save a session")
	fmt.Fprintln(out, "  3. Run 'signalscan crawl <listing-url>'")
	return nil
}
