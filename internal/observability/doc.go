// Package observability provides logging, metrics, and tracing support for
// the citation graph service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithPaperContext(logger, paper.ID, paper.ArXivID, paper.DOI)
//
// # Metrics
//
//	metrics := observability.NewMetrics("citegraph")
//	metrics.RecordCitationsResolved("pattern", 3)
//
// # Tracing
//
//	shutdown, err := observability.InitTracing(ctx, cfg.Tracing)
//	defer shutdown(ctx)
//	ctx, span := observability.StartSpan(ctx, "resolver.resolve")
//	defer func() { observability.EndSpan(span, err) }()
//
// # Standard Fields
//
//   - request_id, correlation_id: HTTP request identifiers
//   - paper_id, arxiv_id, doi: paper identity
//   - queue_entry_id: processing queue entry
//   - trace_id, span_id: distributed trace identifiers
//
// All components are safe for concurrent use from multiple goroutines.
package observability
