package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/applyrag/applyrag/internal/output"
	"github.com/applyrag/applyrag/internal/search"
)

type queryOptions struct {
	k      int
	status string
	method string
	tag    string
	format string
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:     "query <text>",
		Aliases: []string{"retrieve"},
		Short:   "Retrieve ranked applications for a query",
		Long: `Query runs hybrid retrieval over the indexed applications and ranks
the candidates by blending retrieval relevance with the learned outcome
prior and application memory.

Examples:
  applyrag query "senior ml engineer"
  applyrag query "golang backend" -k 5 --tag infra
  applyrag query "design roles" --status applied --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, idx, err := openService(cfg)
			if err != nil {
				return err
			}
			defer idx.Close()

			filters := search.Filters{
				Status: opts.status,
				Method: opts.method,
				Tag:    opts.tag,
			}
			results, err := svc.Retrieve(cmd.Context(), query, opts.k, filters)
			if err != nil {
				return err
			}

			if opts.format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			if opts.format != "text" {
				return fmt.Errorf("unknown format %q (text or json)", opts.format)
			}
			output.New(cmd.OutOrStdout()).Results(query, results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.k, "limit", "k", 10, "Maximum number of results")
	cmd.Flags().StringVar(&opts.status, "status", "", "Filter by status (e.g. applied, offer)")
	cmd.Flags().StringVar(&opts.method, "method", "", "Filter by application method (e.g. ashby, lever)")
	cmd.Flags().StringVar(&opts.tag, "tag", "", "Filter by tag")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	return cmd
}
