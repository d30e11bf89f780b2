package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/curtislbyrd/D3tectConvert/internal/dataset"
	"github.com/curtislbyrd/D3tectConvert/internal/store"
)

func checkCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the config and dataset without serving",
		Long: `Check loads the configuration and the dataset it points at, builds the
index, and reports what the server would see at startup. Exit status is
non-zero when either fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			records, err := dataset.Load(cfg.Dataset.Path)
			if err != nil {
				return fmt.Errorf("loading dataset: %w", err)
			}
			st, stats, err := store.New(records)
			if err != nil {
				return fmt.Errorf("indexing dataset %s: %w", cfg.Dataset.Path, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config:           ok (listen %s)\n", cfg.Listen)
			fmt.Fprintf(out, "dataset:          %s\n", cfg.Dataset.Path)
			fmt.Fprintf(out, "techniques:       %d\n", stats.Loaded)
			fmt.Fprintf(out, "countermeasures:  %d\n", stats.Countermeasures)
			if stats.Skipped > 0 {
				fmt.Fprintf(out, "skipped rows:     %d\n", stats.Skipped)
			}
			if stats.Duplicates > 0 {
				fmt.Fprintf(out, "duplicate ids:    %d\n", stats.Duplicates)
			}
			fmt.Fprintf(out, "sample ids:       %v\n", st.SampleIDs(5))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")

	return cmd
}
