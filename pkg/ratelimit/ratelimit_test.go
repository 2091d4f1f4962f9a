package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMiddlewareLimitsPerIP(t *testing.T) {
	l := New(2, time.Hour)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(addr, method string) int {
		req := httptest.NewRequest(method, "/api/auth/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1234", http.MethodPost))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:5678", http.MethodPost))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1234", http.MethodPost))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1234", http.MethodOptions), "preflight is not limited")
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1234", http.MethodPost))
}

func TestSweepDropsIdleVisitors(t *testing.T) {
	l := New(5, time.Minute)
	now := time.Now()
	l.now = func() time.Time { return now }

	l.allow("10.0.0.1")
	l.allow("10.0.0.2")

	now = now.Add(2 * time.Minute)
	l.allow("10.0.0.2")
	now = now.Add(2 * time.Minute)
	l.sweep()

	assert.Len(t, l.visitors, 1)
	assert.Contains(t, l.visitors, "10.0.0.2")
}
