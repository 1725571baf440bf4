package http

import (
	"net"
	"net/http"
	"net/netip"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"parkwise-booking-core/internal/config"
	"parkwise-booking-core/internal/logger"
	"parkwise-booking-core/internal/security"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// AuthMiddleware resolves the caller from a bearer token and enforces the access level of the
// matched route. Routes are named after their gRPC method so both transports share one policy.
func AuthMiddleware(tm security.TokenManager) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := ""
			if route := mux.CurrentRoute(r); route != nil {
				name = route.GetName()
			}
			level := config.GetAccessLevel(name)
			if level == config.AccessPublic {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				writeStatus(w, http.StatusUnauthorized, "unauthenticated", "authorization token is not provided")
				return
			}
			claims, err := tm.ValidateToken(token)
			if err != nil {
				writeStatus(w, http.StatusUnauthorized, "unauthenticated", err.Error())
				return
			}
			actor, err := claims.Actor()
			if err != nil {
				writeStatus(w, http.StatusUnauthorized, "unauthenticated", err.Error())
				return
			}
			if !level.Permits(actor.Role) {
				logger.Warn("Access denied", "route", name, "actor", actor.String())
				writeStatus(w, http.StatusForbidden, "forbidden", "staff role required")
				return
			}
			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
		})
	}
}

// RateLimiter keeps one token bucket per caller: the actor when authenticated, else the client IP.
// X-Forwarded-For is only read when the connection comes from a trusted proxy.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	idle    time.Duration
	proxies []netip.Prefix

	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	lastSweep time.Time
	now       func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	proxies, err := cfg.ProxyPrefixes()
	if err != nil {
		logger.Warn("Ignoring trusted proxies", "error", err)
		proxies = nil
	}
	return &RateLimiter{
		limit:    rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.Burst,
		idle:     10 * time.Minute,
		proxies:  proxies,
		limiters: make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

func (l *RateLimiter) getLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > time.Minute {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > l.idle {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + l.clientIP(r)
		if actor, ok := ActorFromContext(r.Context()); ok {
			key = "actor:" + actor.String()
		}
		if !l.getLimiter(key).Allow() {
			logger.Warn("Rate limit exceeded", "key", key, "path", r.URL.Path)
			w.Header().Set("Retry-After", "1")
			writeStatus(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the connection address, or, behind a trusted proxy, the right-most
// X-Forwarded-For hop that is not itself a trusted proxy.
func (l *RateLimiter) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !l.trusted(peer) {
		return host
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		if !l.trusted(hop) {
			return hop.String()
		}
	}
	return host
}

func (l *RateLimiter) trusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range l.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs every request and turns handler panics into 500s.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if p := recover(); p != nil {
				logger.ErrorContext(r.Context(), "HTTP handler panicked", "path", r.URL.Path, "panic", p, "stack", string(debug.Stack()))
				writeStatus(rec, http.StatusInternalServerError, "internal", "internal server error")
			}
			logger.InfoContext(r.Context(), "HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}()
		next.ServeHTTP(rec, r)
	})
}
