package http_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	httpapi "parkwise-booking-core/internal/api/http"
	"parkwise-booking-core/internal/config"

	"github.com/stretchr/testify/assert"
)

func limitedHandler(cfg config.RateLimitConfig) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	return httpapi.NewRateLimiter(cfg).Middleware(ok)
}

func send(h http.Handler, remoteAddr, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/availability", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiter_IgnoresForwardedForFromUntrustedPeers(t *testing.T) {
	h := limitedHandler(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})

	assert.Equal(t, http.StatusNoContent, send(h, "198.51.100.7:5000", "10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, send(h, "198.51.100.7:5001", "10.0.0.2"))
	assert.Equal(t, http.StatusTooManyRequests, send(h, "198.51.100.7:5002", "10.0.0.3"))

	// A different connection address is a different caller.
	assert.Equal(t, http.StatusNoContent, send(h, "198.51.100.8:5000", ""))
}

func TestRateLimiter_TrustedProxy(t *testing.T) {
	cfg := config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1, TrustedProxies: []string{"10.1.0.0/16", "192.0.2.10"}}

	tests := []struct {
		name   string
		remote string
		xff    string
		// second request from the same apparent client, expected to be limited
		sameClientXFF string
	}{
		{"Client behind one proxy", "10.1.2.3:443", "203.0.113.5", "203.0.113.5"},
		{"Spoofed left-most hop is ignored", "10.1.2.3:443", "1.1.1.1, 203.0.113.6", "2.2.2.2, 203.0.113.6"},
		{"Chain of trusted proxies", "192.0.2.10:443", "203.0.113.7, 10.1.9.9", "203.0.113.7, 10.1.4.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := limitedHandler(cfg)
			assert.Equal(t, http.StatusNoContent, send(h, tt.remote, tt.xff))
			assert.Equal(t, http.StatusTooManyRequests, send(h, tt.remote, tt.sameClientXFF))
		})
	}

	t.Run("Distinct clients behind the proxy", func(t *testing.T) {
		h := limitedHandler(cfg)
		for i := 1; i <= 3; i++ {
			assert.Equal(t, http.StatusNoContent, send(h, "10.1.2.3:443", fmt.Sprintf("203.0.113.%d", i)))
		}
	})
}
