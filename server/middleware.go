package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const traceHeader = "X-Trace-ID"

// LoggerMiddleware tags each request with a trace id, stores a request
// scoped logger in the context, and logs start and finish.
func LoggerMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(traceHeader)
			if traceID == "" {
				traceID = uuid.New().String()
			}

			reqLogger := logger.With().Str("trace_id", traceID).Logger()
			httpLogger := reqLogger.With().
				Str("http_method", r.Method).
				Str("http_path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Logger()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Header().Set(traceHeader, traceID)
			start := time.Now()

			httpLogger.Debug().Msg("Request started")

			next.ServeHTTP(ww, r.WithContext(reqLogger.WithContext(r.Context())))

			httpLogger.Info().
				Int("status_code", ww.Status()).
				Int("bytes_written", ww.BytesWritten()).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Msg("Request finished")
		})
	}
}
