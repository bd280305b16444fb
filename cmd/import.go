package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/acceslibre/erp-cli/internal/importer"
	"github.com/acceslibre/erp-cli/internal/model"
)

var (
	importCSVPath     string
	importSource      string
	importDryRun      bool
	importConcurrency int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import establishments from a partner CSV dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "import")
		if err != nil {
			return err
		}
		defer st.Close()

		f, err := os.Open(importCSVPath)
		if err != nil {
			return eris.Wrapf(err, "open %s", importCSVPath)
		}
		defer f.Close()

		concurrency := importConcurrency
		if concurrency == 0 {
			concurrency = cfg.Import.Concurrency
		}

		res, err := importer.ImportCSV(ctx, st, f, importer.Options{
			Source:      model.Source(importSource),
			Concurrency: concurrency,
			BatchSize:   cfg.Import.BatchSize,
			DryRun:      importDryRun,
		})
		if err != nil {
			return eris.Wrap(err, "import csv")
		}

		zap.L().Info("import complete",
			zap.String("csv", importCSVPath),
			zap.Int("rows", res.Rows),
			zap.Int("skipped", res.Skipped),
			zap.Int64("upserted", res.Upserted),
			zap.Int64("normalized", res.Normalized),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	importCmd.Flags().StringVar(&importSource, "source", "", "dataset source tag, e.g. gendarmerie (required)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "parse and validate without writing")
	importCmd.Flags().IntVar(&importConcurrency, "concurrency", 0, "batch write workers (default from config)")
	_ = importCmd.MarkFlagRequired("csv")
	_ = importCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(importCmd)
}
