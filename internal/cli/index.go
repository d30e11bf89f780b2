package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/curtislbyrd/D3tectConvert/internal/dataset"
)

func indexCmd() *cobra.Command {
	var in string
	var out string
	var format string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build a search index from the raw mappings file",
		Long: `Index parses the raw mappings file and writes either a compact JSON
index or a SQLite artifact. The server loads any of the three forms, but
the compact forms start much faster than re-parsing the raw file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := dataset.Load(in)
			if err != nil {
				return err
			}

			var total int
			for _, rec := range data {
				total += len(rec.D3FEND)
			}

			switch format {
			case "json":
				err = dataset.WriteIndex(out, data)
			case "sqlite":
				err = dataset.WriteSQLite(out, data)
			default:
				return fmt.Errorf("invalid format %q: must be json or sqlite", format)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d techniques (%d countermeasures) to %s\n", len(data), total, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "mappings.json", "raw mappings file (or an existing index)")
	cmd.Flags().StringVarP(&out, "out", "o", "static/search_index.json", "output path")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or sqlite")

	return cmd
}
