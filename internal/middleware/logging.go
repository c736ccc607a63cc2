package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// loggedResponse captures the status code and response size for the access log.
type loggedResponse struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *loggedResponse) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggedResponse) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

// RequestLogger returns middleware that writes one access-log line per
// request. 4xx responses log at warn and 5xx at error, so client mistakes
// and server faults separate cleanly in the stream.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lw := &loggedResponse{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(lw, r)

			level := slog.LevelInfo
			switch {
			case lw.status >= 500:
				level = slog.LevelError
			case lw.status >= 400:
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", lw.status,
				"bytes", lw.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote", RealIP(r),
			)
		})
	}
}
