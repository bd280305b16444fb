package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/acceslibre/erp-cli/internal/dedupe"
)

var (
	dedupeWrite     bool
	dedupeReviewOut string
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Scan the directory for duplicate establishments and merge them",
	Long:  "Groups published establishments by commune and normalized name, merges unambiguous duplicates and writes ambiguous clusters to a review spreadsheet. Without --write the scan only reports.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "dedupe")
		if err != nil {
			return err
		}
		defer st.Close()

		engine := dedupe.New(st, dedupe.Config{
			Thresholds: dedupe.Thresholds{
				AutoMergeM: cfg.Dedupe.AutoMergeM,
				ReviewM:    cfg.Dedupe.ReviewM,
			},
			PageSize:          cfg.Dedupe.PageSize,
			ClustersPerSecond: cfg.Dedupe.ClustersPerSecond,
			Write:             dedupeWrite,
		})

		report, err := engine.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "dedupe run")
		}

		if dedupeReviewOut != "" && len(report.Review) > 0 {
			if err := dedupe.WriteReviewXLSX(dedupeReviewOut, report.Review); err != nil {
				return eris.Wrap(err, "write review file")
			}
			zap.L().Info("review file written",
				zap.String("path", dedupeReviewOut),
				zap.Int("clusters", len(report.Review)),
			)
		}

		zap.L().Info("dedupe complete",
			zap.Bool("write", dedupeWrite),
			zap.Int("scanned", report.Scanned),
			zap.Int("clusters", report.Clusters),
			zap.Int("merged", report.Merged),
			zap.Int("deleted", report.Deleted),
			zap.Int("subscriptions_moved", report.SubscriptionsMoved),
			zap.Int("needs_review", report.NeedsReview),
			zap.Int("distinct", report.Distinct),
			zap.Int("unhandled_multi", report.UnhandledMulti),
			zap.Int("skipped", report.Skipped),
		)
		return nil
	},
}

func init() {
	dedupeCmd.Flags().BoolVar(&dedupeWrite, "write", false, "apply merges (default dry run)")
	dedupeCmd.Flags().StringVar(&dedupeReviewOut, "review-out", "", "write clusters needing manual review to this .xlsx path")
	rootCmd.AddCommand(dedupeCmd)
}
