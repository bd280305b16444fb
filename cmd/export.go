package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/acceslibre/erp-cli/internal/export"
)

var exportOutPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the published directory to CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "export")
		if err != nil {
			return err
		}
		defer st.Close()

		out := os.Stdout
		if exportOutPath != "" {
			f, err := os.Create(exportOutPath)
			if err != nil {
				return eris.Wrapf(err, "create %s", exportOutPath)
			}
			defer f.Close()
			out = f
		}

		n, err := export.WriteCSV(ctx, st, out)
		if err != nil {
			return eris.Wrap(err, "export csv")
		}

		if exportOutPath != "" {
			zap.L().Info("export written",
				zap.String("path", exportOutPath),
				zap.Int("rows", n),
			)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutPath, "out", "", "output path (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
