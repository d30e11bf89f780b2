package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/curtislbyrd/D3tectConvert/internal/dataset"
)

func fetchCmd() *cobra.Command {
	var configPath string
	var url string
	var out string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the upstream D3FEND mappings file",
		Long: `Fetch downloads the full ATT&CK/D3FEND mappings file from MITRE and
writes it atomically. Run it at build or deploy time, then "d3tect index"
to produce the compact search index the server loads.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if url == "" {
				url = cfg.Dataset.URL
			}

			start := time.Now()
			n, err := dataset.Fetch(cmd.Context(), url, out,
				time.Duration(cfg.Dataset.FetchTimeoutSeconds)*time.Second,
				int64(cfg.Dataset.MaxFetchMB)<<20)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s in %s\n", n, out, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&url, "url", "", "mappings URL (overrides config)")
	cmd.Flags().StringVarP(&out, "out", "o", "mappings.json", "output path")

	return cmd
}
