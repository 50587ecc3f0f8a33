package cmd

import (
	"github.com/spf13/cobra"

	"github.com/applyrag/applyrag/internal/output"
)

func newRecommendCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Suggest categories and channels to focus on",
		Long: `Recommend samples the outcome model's posteriors and surfaces the
arms most worth pursuing next. Sampling keeps some exploration: an arm
with few observations can still win a draw.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, idx, err := openService(cfg)
			if err != nil {
				return err
			}
			defer idx.Close()

			output.New(cmd.OutOrStdout()).Arms("recommended focus", svc.Recommend(k))
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "limit", "k", 5, "Number of arms to recommend")
	return cmd
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the outcome model's arm statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, idx, err := openService(cfg)
			if err != nil {
				return err
			}
			defer idx.Close()

			output.New(cmd.OutOrStdout()).Arms("arm statistics", svc.ArmStats())
			return nil
		},
	}
	return cmd
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index and learning state counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, idx, err := openService(cfg)
			if err != nil {
				return err
			}
			defer idx.Close()

			output.New(cmd.OutOrStdout()).StatusDashboard(svc.SystemStatus())
			return nil
		},
	}
	return cmd
}
