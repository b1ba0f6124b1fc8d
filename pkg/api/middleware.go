package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nacoslite/nacoslite/pkg/log"
	"github.com/nacoslite/nacoslite/pkg/metrics"
)

// statusRecorder captures the status code a handler wrote
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument wraps a route with request logging, metrics and panic
// recovery. Handlers never surface a stack trace to the client.
func instrument(path string, next http.HandlerFunc) http.HandlerFunc {
	logger := log.WithComponent("api")
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				logger.Error().Any("panic", p).Str("path", path).Msg("handler panicked")
				writeText(rec, http.StatusInternalServerError, "internal server error")
			}
			elapsed := time.Since(start)
			metrics.APIRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
			metrics.APIRequestDuration.WithLabelValues(r.Method, path).Observe(elapsed.Seconds())
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("elapsed", elapsed).
				Msg("request")
		}()

		next(rec, r)
	}
}

// bearerToken extracts the access token from the Authorization header
// or the accessToken parameter (the Nacos SDK uses both).
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer"))
	}
	return r.FormValue("accessToken")
}

// requireAuth guards console routes with bearer-token validation when
// auth is enabled. With auth disabled (the Nacos default) the console
// is open.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authEnabled {
			if _, err := s.auth.Validate(r.Context(), bearerToken(r)); err != nil {
				writeError(w, err)
				return
			}
		}
		next(w, r)
	}
}

// clientIP returns the remote host without the port
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// clientPort returns the remote port, 0 when unknown
func clientPort(r *http.Request) int {
	_, port, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(port)
	return n
}
