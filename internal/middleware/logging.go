package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestInfo is filled in by inner middleware (RequireAuth sets the
// username) so the outer request log can include it.
type requestInfo struct {
	username string
}

type requestInfoKey struct{}

func noteUsername(ctx context.Context, username string) {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.username = username
	}
}

// RequestLogger returns middleware that logs each HTTP request with method,
// path, status code, duration, remote IP, and the authenticated username
// when one is resolved. Websocket upgrades stay open for the lifetime of
// the dashboard tab, so they log at debug to keep the request log readable.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := &requestInfo{}
			r = r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info))
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", duration),
				slog.String("remote", RealIP(r)),
			}
			if info.username != "" {
				attrs = append(attrs, slog.String("user", info.username))
			}

			switch {
			case rec.status >= 500:
				logger.LogAttrs(r.Context(), slog.LevelError, "request", attrs...)
			case rec.status >= 400:
				logger.LogAttrs(r.Context(), slog.LevelWarn, "request", attrs...)
			case r.URL.Path == "/ws":
				logger.LogAttrs(r.Context(), slog.LevelDebug, "request", attrs...)
			default:
				logger.LogAttrs(r.Context(), slog.LevelInfo, "request", attrs...)
			}
		})
	}
}
