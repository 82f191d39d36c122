// Package middleware provides HTTP middleware for the import server.
package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/activity-import/internal/logging"
)

type fieldsKey struct{}

type logFields struct {
	mu   sync.Mutex
	args []any
}

// AddLogFields attaches key/value pairs to the request log line written by
// Logger. Handlers further down the chain use it for values Logger cannot
// see, such as the import session id.
func AddLogFields(ctx context.Context, args ...any) {
	f, ok := ctx.Value(fieldsKey{}).(*logFields)
	if !ok {
		return
	}
	f.mu.Lock()
	f.args = append(f.args, args...)
	f.mu.Unlock()
}

// Logger logs one structured entry per request with method, path, status,
// bytes written, duration_ms and client ip. The entry carries request_id
// through logging.FromContext.
//
// Server errors are logged at error level, client errors at warn.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		fields := &logFields{}
		r = r.WithContext(context.WithValue(r.Context(), fieldsKey{}, fields))

		next.ServeHTTP(ww, r)

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"bytes", ww.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", ClientIP(r),
		}
		fields.mu.Lock()
		args = append(args, fields.args...)
		fields.mu.Unlock()

		logger := logging.FromContext(r.Context())
		switch {
		case ww.status >= 500:
			logger.Error("request", args...)
		case ww.status >= 400:
			logger.Warn("request", args...)
		default:
			logger.Info("request", args...)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap provides access to the underlying ResponseWriter.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
