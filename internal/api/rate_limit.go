package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.rateLimiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !shouldRateLimit(r) {
			next.ServeHTTP(w, r)
			return
		}

		subject := clientSubject(r, s.rateLimitClientHeader)
		subject = subject + ":" + routeLabel(r.URL.Path)

		decision, err := s.rateLimiter.Allow(r.Context(), subject)
		if err != nil {
			s.logger.WithError(err).WithField("subject", subject).Warn("rate limiter check failed")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := int(decision.RetryAfter.Round(time.Second).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		s.metrics.rateLimitRejected.WithLabelValues(routeLabel(r.URL.Path)).Inc()
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error": "rate limit exceeded",
		})
	})
}

// shouldRateLimit covers the routes that decode or encode images.
func shouldRateLimit(r *http.Request) bool {
	switch {
	case r.Method == http.MethodPost:
		return r.URL.Path == "/upload" || r.URL.Path == "/convert"
	case r.Method == http.MethodGet:
		return strings.HasPrefix(r.URL.Path, "/download/")
	default:
		return false
	}
}

// clientSubject identifies the caller by header, falling back to the remote
// host.
func clientSubject(r *http.Request, header string) string {
	if header != "" {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
			return v
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return "anonymous"
	}
	return host
}
