package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/citation-graph-service/internal/observability"
)

// Header names.
const (
	headerCorrelationID = "X-Correlation-ID"
	headerContentType   = "Content-Type"
)

// correlationIDMiddleware ensures every request has a correlation ID and
// stores it with the request ID on the context.
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())

		correlationID := r.Header.Get(headerCorrelationID)
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		w.Header().Set(headerCorrelationID, correlationID)
		ctx := observability.WithCorrelationID(r.Context(), correlationID)
		if requestID != "" {
			ctx = observability.WithRequestID(ctx, requestID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// jsonAPIContentTypeMiddleware sets the JSON:API media type on all responses.
func jsonAPIContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSONAPI)
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ctx := r.Context()
			evt := logger.Info()
			if status >= http.StatusInternalServerError {
				evt = logger.Error()
			}
			evt.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", observability.RequestIDFromContext(ctx)).
				Str("correlation_id", observability.CorrelationIDFromContext(ctx)).
				Msg("http request")
		})
	}
}
