package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kimjeppesen/Samlino-ai-pressence/internal/utils"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/export"
	"github.com/spf13/cobra"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export results as JSON or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		formatFlag, _ := cmd.Flags().GetString("format")
		format, err := export.ParseFormat(formatFlag)
		if err != nil {
			return err
		}

		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		results, err := selectResults(context.Background(), cmd, db)
		if err != nil {
			return err
		}

		var out io.Writer = os.Stdout
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
			defer utils.Log.Infof("Exported %d results to %s", len(results), path)
		}
		if err := export.Write(out, format, results); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	addResultFilterFlags(exportCmd)
	exportCmd.Flags().StringP("format", "f", "json", "Output format: json or csv")
	exportCmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
}
