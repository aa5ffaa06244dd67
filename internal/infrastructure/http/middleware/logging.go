package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	ctxutil "vnexim/mavach/internal/infrastructure/context"
)

// RequestLogger logs one line per request with method, path, status, duration
// and size. The chi request ID doubles as the correlation ID, so handler and
// scheduler log lines triggered by the same control call share one ID. Level
// follows the status class: 4xx warns, 5xx errors, everything else is info.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chimw.GetReqID(r.Context())
			ctx := ctxutil.WithCorrelationID(r.Context(), requestID)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds()) / 1e3,
				"bytes", ww.BytesWritten(),
			}
			if requestID != "" {
				attrs = append(attrs, "correlation_id", requestID)
			}
			if ua := r.Header.Get("User-Agent"); ua != "" {
				attrs = append(attrs, "user_agent", ua)
			}

			logAt(log, status)("HTTP request", attrs...)
		})
	}
}

func logAt(log *slog.Logger, status int) func(msg string, args ...any) {
	switch {
	case status >= 500:
		return log.Error
	case status >= 400:
		return log.Warn
	default:
		return log.Info
	}
}
