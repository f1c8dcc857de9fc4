package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"
)

// responseWriter captures the status code and byte count of a response;
// uploads can be large, so the byte count matters in the access log.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// pathTenant pulls the tenant segment out of /v1/{tenant}/... paths so the
// access log carries it even for requests auth rejected.
func pathTenant(path string) string {
	rest, ok := strings.CutPrefix(path, "/v1/")
	if !ok {
		return "-"
	}
	if i := strings.IndexByte(rest, '/'); i > 0 {
		return rest[:i]
	}
	if rest != "" {
		return rest
	}
	return "-"
}

// LoggingMiddleware writes one access-log line per request with the tenant,
// status and response size.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		log.Printf(
			"method=%s path=%s tenant=%s status=%d duration=%s bytes=%d ip=%s user_agent=%s",
			r.Method,
			r.URL.Path,
			pathTenant(r.URL.Path),
			wrapped.statusCode,
			time.Since(start),
			wrapped.written,
			r.RemoteAddr,
			r.UserAgent(),
		)
	})
}
