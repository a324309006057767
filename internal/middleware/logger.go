package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Logger writes one access log line per request: client errors at warn,
// server errors at error and everything else at debug level.
func Logger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				level := zerolog.DebugLevel
				switch {
				case status >= http.StatusInternalServerError:
					level = zerolog.ErrorLevel
				case status >= http.StatusBadRequest:
					level = zerolog.WarnLevel
				}
				l.WithLevel(level).
					Str("request_id", RequestIDFromContext(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", status).
					Int("bytes", ww.BytesWritten()).
					Dur("took", time.Since(start)).
					Msg("http: request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
