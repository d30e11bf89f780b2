// Package cli implements the d3tect command-line interface using cobra.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/curtislbyrd/D3tectConvert/internal/config"
)

// Version is set at build time via ldflags.
var Version = "0.1.0-dev"

// Execute runs the root command.
func Execute() error {
	return rootCmd().Execute()
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "d3tect",
		Short: "ATT&CK to D3FEND countermeasure lookup service",
		Long: `D3tectConvert maps MITRE ATT&CK technique identifiers (or free-text
names) to their D3FEND countermeasures using MITRE's published mapping
dataset.

Quick start:
  d3tect fetch                          # download the upstream mappings file
  d3tect index                          # build the compact search index
  d3tect serve                          # serve the lookup API and UI
  d3tect serve --config d3tect.yaml`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		serveCmd(),
		fetchCmd(),
		indexCmd(),
		checkCmd(),
		versionCmd(),
	)

	return cmd
}

// loadConfig reads the config at path. When path is empty it falls back to
// d3tect.yaml in the working directory, then to built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return config.Load(defaultConfigFile)
	}
	return config.Defaults(), nil
}

const defaultConfigFile = "d3tect.yaml"
