// Command fetch-references resolves the bibliography of a .bbl file or an
// arXiv e-print and prints the citation-to-identifier map as JSON.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/citation-graph-service/internal/app"
	"github.com/helixir/citation-graph-service/internal/citations"
	"github.com/helixir/citation-graph-service/internal/config"
	"github.com/helixir/citation-graph-service/internal/observability"
	"github.com/helixir/citation-graph-service/internal/papersources/crossref"
)

// options are the flags shared by every subcommand.
type options struct {
	matchURL string
	delatex  string
	noMatch  bool
	verbose  bool
}

var (
	opts   options
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fetch-references",
	Short: "Resolve bibliography entries to DOIs and arXiv identifiers",
	Long: `fetch-references segments a bibliography into citations and resolves each
one from embedded links, identifier patterns and, unless --no-match is given,
the CrossRef links service. The result maps every cleaned citation to its
identifier, or null when none was found.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if opts.matchURL != "" {
			loaded.Crossref.MatchURL = opts.matchURL
		}
		if opts.delatex != "" {
			loaded.Latex.Command = opts.delatex
		}
		cfg = loaded

		level := "warn"
		if opts.verbose {
			level = "debug"
		}
		logger = observability.NewLogger(observability.LoggingConfig{
			Level:      level,
			Format:     "console",
			Output:     "stderr",
			TimeFormat: time.RFC3339,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&opts.matchURL, "match-url", "", "citation matching endpoint (default: "+crossref.DefaultMatchURL+")")
	rootCmd.PersistentFlags().StringVar(&opts.delatex, "delatex", "", "markup converter command (default from config)")
	rootCmd.PersistentFlags().BoolVar(&opts.noMatch, "no-match", false, "skip the citation matching service")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to stderr")

	rootCmd.AddCommand(bblCmd, arxivCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newResolver assembles the resolver from the loaded configuration and flags.
func newResolver() (*citations.Resolver, error) {
	var matcher citations.CitationMatcher
	if !opts.noMatch {
		matcher = crossref.New(app.CrossrefConfig(cfg.Crossref), logger, nil)
	}
	return app.NewResolver(cfg, matcher, app.ResolverOptions{DisableMatching: opts.noMatch}, logger, nil)
}

// writeResolution prints res as indented JSON.
func writeResolution(w io.Writer, res citations.Resolution) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	return enc.Encode(res)
}
