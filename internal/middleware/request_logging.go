package middleware

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"camfleet-backend/internal/monitoring"
)

// RequestLogging logs API requests and feeds the HTTP request counter. The
// metric is labelled with the mux route template, not the raw path, so
// per-resource ids do not explode the cardinality.
type RequestLogging struct {
	metrics *monitoring.Metrics
}

// responseWriter captures the status code for logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func NewRequestLogging(metrics *monitoring.Metrics) *RequestLogging {
	return &RequestLogging{metrics: metrics}
}

func (m *RequestLogging) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipLogging(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		path := routeTemplate(r)

		if m.metrics != nil {
			m.metrics.HTTPRequests.WithLabelValues(
				r.Method, path, strconv.Itoa(wrapped.statusCode),
			).Inc()
		}

		log.Printf("[API] %s %s %d %s %s", r.Method, path, wrapped.statusCode, duration.Round(time.Millisecond), clientIP(r))
	})
}

// routeTemplate returns the matched mux pattern, falling back to the raw
// path for unrouted requests.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return sanitizePath(r.URL.Path)
}

func shouldSkipLogging(path string) bool {
	skipPaths := []string{
		"/healthz",
		"/metrics",
		"/favicon.ico",
	}
	for _, skip := range skipPaths {
		if strings.HasPrefix(path, skip) {
			return true
		}
	}
	return false
}

func sanitizePath(path string) string {
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	if len(path) > 200 {
		path = path[:200]
	}
	return path
}

// clientIP resolves the originating address behind proxies.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
