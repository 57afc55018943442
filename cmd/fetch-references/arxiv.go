package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helixir/citation-graph-service/internal/app"
	"github.com/helixir/citation-graph-service/internal/papersources/arxiv"
)

var arxivCmd = &cobra.Command{
	Use:   "arxiv <id>",
	Short: "Download an arXiv e-print and resolve its bibliographies",
	Long: `arxiv downloads the e-print source of the given identifier, extracts every
.bbl file in it and resolves them together. Later files win on duplicate
citations.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client := arxiv.New(app.ArXivConfig(cfg.ArXiv), nil)

		documents, err := client.FetchBibliographies(ctx, args[0])
		if err != nil {
			return fmt.Errorf("fetch e-print %s: %w", args[0], err)
		}
		logger.Debug().Str("arxiv_id", args[0]).Int("bibliographies", len(documents)).Msg("e-print downloaded")

		resolver, err := newResolver()
		if err != nil {
			return err
		}

		res, err := resolver.ResolveAll(ctx, documents)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", args[0], err)
		}
		return writeResolution(cmd.OutOrStdout(), res)
	},
}
