// Package app assembles the citation pipeline from configuration. The server,
// worker and fetch-references commands share it.
package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-graph-service/internal/citations"
	"github.com/helixir/citation-graph-service/internal/config"
	"github.com/helixir/citation-graph-service/internal/events"
	"github.com/helixir/citation-graph-service/internal/graph"
	"github.com/helixir/citation-graph-service/internal/latex"
	"github.com/helixir/citation-graph-service/internal/observability"
	"github.com/helixir/citation-graph-service/internal/papersources/arxiv"
	"github.com/helixir/citation-graph-service/internal/papersources/crossref"
)

// Pipeline holds the assembled resolution and expansion components.
type Pipeline struct {
	ArXiv    *arxiv.Client
	Crossref *crossref.Client
	Resolver *citations.Resolver
	Creator  *graph.Creator
	Expander *graph.Expander
}

// ResolverOptions tweak resolver assembly for command-line use.
type ResolverOptions struct {
	// DisableMatching leaves citations without a link or pattern unresolved.
	DisableMatching bool
}

// NewPipeline builds the upstream clients, the resolver and the expander.
func NewPipeline(cfg *config.Config, opts ResolverOptions, logger zerolog.Logger, metrics *observability.Metrics) (*Pipeline, error) {
	arxivClient := arxiv.New(ArXivConfig(cfg.ArXiv), metrics)
	crossrefClient := crossref.New(CrossrefConfig(cfg.Crossref), logger, metrics)

	resolver, err := NewResolver(cfg, crossrefClient, opts, logger, metrics)
	if err != nil {
		return nil, err
	}

	creator := graph.NewCreator(arxivClient, logger)
	return &Pipeline{
		ArXiv:    arxivClient,
		Crossref: crossrefClient,
		Resolver: resolver,
		Creator:  creator,
		Expander: graph.NewExpander(arxivClient, resolver, creator, logger, metrics),
	}, nil
}

// NewResolver builds the segmenter, extractor and batch matcher around
// matcher. With opts.DisableMatching the matcher is not used.
func NewResolver(cfg *config.Config, matcher citations.CitationMatcher, opts ResolverOptions, logger zerolog.Logger, metrics *observability.Metrics) (*citations.Resolver, error) {
	stripper, err := latex.NewStripper(latex.Config{
		Command:        cfg.Latex.Command,
		Args:           cfg.Latex.Args,
		Timeout:        cfg.Latex.Timeout,
		FallbackNative: cfg.Latex.FallbackNative,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create markup stripper: %w", err)
	}

	patterns := citations.DefaultPatterns()
	var batch *citations.BatchMatcher
	if !opts.DisableMatching && matcher != nil {
		batch = citations.NewBatchMatcher(matcher, cfg.Crossref.BatchSize, metrics)
	}

	return citations.NewResolver(
		citations.NewSegmenter(patterns, stripper),
		citations.NewExtractor(patterns),
		batch,
		logger,
		metrics,
	), nil
}

// NewPublisher returns a Kafka publisher, or a no-op one when Kafka is off.
func NewPublisher(cfg config.KafkaConfig, logger zerolog.Logger, metrics *observability.Metrics) events.Publisher {
	if !cfg.Enabled {
		return events.NoopPublisher{}
	}
	return events.NewKafkaPublisher(events.KafkaConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
	}, logger, metrics)
}

// NewListener returns the paper request listener, or nil when Kafka is off or
// no ingest topic is configured.
func NewListener(cfg config.KafkaConfig, submitter events.PaperSubmitter, logger zerolog.Logger) *events.Listener {
	if !cfg.Enabled || cfg.IngestTopic == "" {
		return nil
	}
	return events.NewListener(events.ListenerConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.IngestTopic,
		GroupID: cfg.GroupID,
	}, submitter, logger)
}

// ArXivConfig maps configuration onto the arXiv client.
func ArXivConfig(cfg config.ArXivConfig) arxiv.Config {
	return arxiv.Config{
		BaseURL:        cfg.BaseURL,
		ExportURL:      cfg.ExportURL,
		Timeout:        cfg.Timeout,
		RateLimit:      cfg.RateLimit,
		BurstSize:      cfg.Burst,
		MaxRetries:     cfg.MaxRetries,
		MaxArchiveSize: cfg.MaxArchiveSize,
	}
}

// CrossrefConfig maps configuration onto the CrossRef client.
func CrossrefConfig(cfg config.CrossrefConfig) crossref.Config {
	return crossref.Config{
		MatchURL:   cfg.MatchURL,
		Mailto:     cfg.Mailto,
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		MaxRetries: cfg.MaxRetries,
		Breaker: crossref.BreakerConfig{
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
			MinRequests:      cfg.Breaker.MinRequests,
		},
	}
}

// LoggingConfig maps configuration onto the logger.
func LoggingConfig(cfg config.LoggingConfig, service string) observability.LoggingConfig {
	return observability.LoggingConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		AddSource:  cfg.AddSource,
		TimeFormat: cfg.TimeFormat,
		Service:    service,
	}
}

// TracingConfig maps configuration onto the tracer provider.
func TracingConfig(cfg config.TracingConfig) observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     cfg.Enabled,
		Endpoint:    cfg.Endpoint,
		Insecure:    cfg.Insecure,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		SampleRatio: cfg.SampleRate,
	}
}
