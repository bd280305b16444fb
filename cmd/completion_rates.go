package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var completionCmd = &cobra.Command{
	Use:   "completion",
	Short: "Recompute stored completion rates",
	Long:  "Recomputes the completion rate of every accessibility record and rewrites the ones that drifted, e.g. after a registry change.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "completion")
		if err != nil {
			return err
		}
		defer st.Close()

		updated, err := st.RecomputeCompletionRates(ctx)
		if err != nil {
			return eris.Wrap(err, "recompute completion rates")
		}

		zap.L().Info("completion rates recomputed", zap.Int("updated", updated))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
