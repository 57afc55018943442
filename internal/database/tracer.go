package database

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type queryStartKey struct{}

type queryStart struct {
	sql   string
	start time.Time
}

// QueryTracer logs every query at trace level and slow or failed queries at
// warn level.
type QueryTracer struct {
	logger        zerolog.Logger
	slowThreshold time.Duration
	now           func() time.Time
}

var _ pgx.QueryTracer = (*QueryTracer)(nil)

// NewQueryTracer creates a QueryTracer. A zero threshold disables slow query warnings.
func NewQueryTracer(logger zerolog.Logger, slowThreshold time.Duration) *QueryTracer {
	return &QueryTracer{
		logger:        logger.With().Str("component", "pgx").Logger(),
		slowThreshold: slowThreshold,
		now:           time.Now,
	}
}

// TraceQueryStart implements pgx.QueryTracer.
func (t *QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{sql: data.SQL, start: t.now()})
}

// TraceQueryEnd implements pgx.QueryTracer.
func (t *QueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qs, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	elapsed := t.now().Sub(qs.start)

	switch {
	case data.Err != nil:
		t.logger.Warn().
			Err(data.Err).
			Str("sql", compactSQL(qs.sql)).
			Dur("duration", elapsed).
			Msg("query failed")
	case t.slowThreshold > 0 && elapsed >= t.slowThreshold:
		t.logger.Warn().
			Str("sql", compactSQL(qs.sql)).
			Dur("duration", elapsed).
			Int64("rows", data.CommandTag.RowsAffected()).
			Msg("slow query")
	default:
		t.logger.Trace().
			Str("sql", compactSQL(qs.sql)).
			Dur("duration", elapsed).
			Msg("query")
	}
}

func compactSQL(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}
