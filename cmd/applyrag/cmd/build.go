package cmd

import (
	"github.com/spf13/cobra"

	"github.com/applyrag/applyrag/internal/output"
)

func newBuildCmd() *cobra.Command {
	var tracker string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Ingest the tracker CSV and rebuild the indexes",
		Long: `Build reads the application tracker, normalizes every row into a
record, and rebuilds the keyword index, the embedding index, and the
semantic memory snapshot. On a fresh install it also seeds the outcome
model from observed application statuses.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path, err := trackerPath(cfg, tracker)
			if err != nil {
				return err
			}

			svc, idx, err := openService(cfg)
			if err != nil {
				return err
			}
			defer idx.Close()

			res, err := svc.Build(cmd.Context(), path)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("indexed %d records from %s", res.Records, path)
			if res.Bootstrapped > 0 {
				out.Successf("seeded outcome model from %d records", res.Bootstrapped)
			}
			for _, e := range res.RowErrors {
				out.Warningf("%s", e)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&tracker, "tracker", "t", "", "Tracker CSV path (default from config)")
	return cmd
}
