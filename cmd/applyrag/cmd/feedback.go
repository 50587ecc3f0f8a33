package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/applyrag/applyrag/internal/bandit"
	"github.com/applyrag/applyrag/internal/output"
	"github.com/applyrag/applyrag/internal/search"
	"github.com/applyrag/applyrag/internal/tracker"
)

func newFeedbackCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "feedback <app-id> <outcome>",
		Short: "Record an application outcome",
		Long: fmt.Sprintf(`Feedback records what happened with an application. The outcome
updates the learned priors for the application's tags and method, and
leaves an episodic memory trace that boosts related results for a while.

Valid outcomes: %s`, strings.Join(bandit.Outcomes(), ", ")),
		Args: cobra.ExactArgs(2),
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

			if err := svc.Feedback(args[0], args[1], note); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("recorded %s for %s", args[1], args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&note, "note", "n", "", "Free-form note stored with the event")
	return cmd
}

func newThumbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thumb <up|down> <position>",
		Short: "Vote on a result from the last query",
		Long: `Thumb records quick feedback on the last retrieval by position:
'thumb up 2' marks the second result as having drawn a response,
'thumb down 2' marks it as silence.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var up bool
			switch strings.ToLower(args[0]) {
			case "up":
				up = true
			case "down":
				up = false
			default:
				return fmt.Errorf("vote must be up or down, got %q", args[0])
			}
			position, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("position must be a number, got %q", args[1])
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, idx, err := openService(cfg)
			if err != nil {
				return err
			}
			defer idx.Close()

			appID, err := svc.ThumbFeedback(position, up)
			if err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("recorded %s vote for %s", args[0], appID)
			return nil
		},
	}
	return cmd
}

func newFeedbackBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback-batch <file.json>",
		Short: "Apply a batch of outcomes from a JSON file",
		Long: `Feedback-batch reads a JSON array of {subject, outcome, note} entries
and applies them. Replays are safe: entries already applied are skipped,
so the same file can be re-run after adding new lines.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading batch file: %w", err)
			}
			var entries []search.BatchEntry
			if err := json.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("parsing batch file: %w", err)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, idx, err := openService(cfg)
			if err != nil {
				return err
			}
			defer idx.Close()

			res, err := svc.FeedbackBatch(entries)
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			out.Successf("applied %d, skipped %d already-seen", res.Applied, res.Skipped)
			for _, e := range res.Errors {
				out.Warningf("%s", e)
			}
			return nil
		},
	}
	return cmd
}

func newSyncFeedbackCmd() *cobra.Command {
	var trackerFlag string

	cmd := &cobra.Command{
		Use:   "sync-feedback",
		Short: "Derive outcomes from tracker columns",
		Long: `Sync-feedback scans the tracker's response and interview columns for
outcome signals (rejections, recruiter responses, interview stages) and
feeds the new ones into the outcome model. Each row state is applied at
most once across runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path, err := trackerPath(cfg, trackerFlag)
			if err != nil {
				return err
			}
			rows, err := tracker.LoadRows(path)
			if err != nil {
				return err
			}

			svc, idx, err := openService(cfg)
			if err != nil {
				return err
			}
			defer idx.Close()

			res, err := svc.SyncTrackerFeedback(rows)
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			out.Successf("synced %d outcomes, skipped %d already-seen", res.Applied, res.Skipped)
			for _, e := range res.Errors {
				out.Warningf("%s", e)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&trackerFlag, "tracker", "t", "", "Tracker CSV path (default from config)")
	return cmd
}

func newLogCmd() *cobra.Command {
	var note string
	var outcome string

	cmd := &cobra.Command{
		Use:   "log <app-id>",
		Short: "Append a memory note for an application",
		Long: `Log appends an episodic memory entry without training the outcome
model: use it for context like "recruiter mentioned hiring freeze".`,
		Args: cobra.ExactArgs(1),
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

			if err := svc.LogEvent(args[0], outcome, note); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("logged event for %s", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&note, "note", "n", "", "Note text")
	cmd.Flags().StringVarP(&outcome, "outcome", "o", "", "Optional outcome label for the memory trace")
	return cmd
}
