package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/stockwatch/backend/internal/config"
	"github.com/stockwatch/backend/internal/models"
)

type fakeCounterStore struct {
	mu     sync.Mutex
	counts map[string]int64
	ttls   map[string]time.Duration
	fail   bool
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{
		counts: make(map[string]int64),
		ttls:   make(map[string]time.Duration),
	}
}

func (s *fakeCounterStore) Incr(_ context.Context, key string) (int64, error) {
	if s.fail {
		return 0, errors.New("connection refused")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[key]++
	return s.counts[key], nil
}

func (s *fakeCounterStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttls[key] = ttl
	return nil
}

func (s *fakeCounterStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttls[key], nil
}

var testSecret = []byte("test-secret")

func testRateLimitConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Window:        time.Minute,
		AnonPerWindow: 2,
		AuthPerWindow: 5,
	}
}

func signTestToken(t *testing.T, tokenType, username string, ttl time.Duration) string {
	t.Helper()
	claims := &models.Claims{
		Username:  username,
		TokenType: tokenType,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(ttl).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCallerScope(t *testing.T) {
	cfg := testRateLimitConfig()

	newRequest := func(token, remoteAddr, forwarded string) *http.Request {
		req := httptest.NewRequest("GET", "/api/companies/search?q=x", nil)
		req.RemoteAddr = remoteAddr
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		return req
	}

	// No token: anonymous bucket keyed by client IP
	scope, identity, limit := callerScope(newRequest("", "10.1.2.3:5555", ""), testSecret, cfg)
	if scope != "anon" || identity != "10.1.2.3" || limit != cfg.AnonPerWindow {
		t.Errorf("No token: got (%s, %s, %d)", scope, identity, limit)
	}

	// X-Forwarded-For wins over RemoteAddr, first hop only
	scope, identity, _ = callerScope(newRequest("", "10.1.2.3:5555", "1.2.3.4, 5.6.7.8"), testSecret, cfg)
	if scope != "anon" || identity != "1.2.3.4" {
		t.Errorf("Forwarded: got (%s, %s)", scope, identity)
	}

	// Valid access token: authenticated bucket keyed by username
	access := signTestToken(t, models.TokenTypeAccess, "alice", time.Hour)
	scope, identity, limit = callerScope(newRequest(access, "10.1.2.3:5555", ""), testSecret, cfg)
	if scope != "user" || identity != "alice" || limit != cfg.AuthPerWindow {
		t.Errorf("Access token: got (%s, %s, %d)", scope, identity, limit)
	}

	// Refresh tokens, garbage and expired tokens all fall back to anonymous
	for name, token := range map[string]string{
		"refresh": signTestToken(t, models.TokenTypeRefresh, "alice", time.Hour),
		"garbage": "not-a-token",
		"expired": signTestToken(t, models.TokenTypeAccess, "alice", -time.Minute),
	} {
		scope, identity, limit = callerScope(newRequest(token, "10.1.2.3:5555", ""), testSecret, cfg)
		if scope != "anon" || identity != "10.1.2.3" || limit != cfg.AnonPerWindow {
			t.Errorf("%s token: got (%s, %s, %d)", name, scope, identity, limit)
		}
	}
}

func TestRateLimitRejectsOverQuota(t *testing.T) {
	store := newFakeCounterStore()
	handler := rateLimit(store, testSecret, testRateLimitConfig())(okHandler())

	var recorder *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/api/companies/search?q=x", nil)
		req.RemoteAddr = "10.1.2.3:5555"
		recorder = httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if i < 2 && recorder.Code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i+1, recorder.Code)
		}
	}

	if recorder.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429 over quota, got %d", recorder.Code)
	}
	if recorder.Header().Get("Retry-After") != "60" {
		t.Errorf("Expected Retry-After 60, got %q", recorder.Header().Get("Retry-After"))
	}
	body := recorder.Body.String()
	if !strings.Contains(body, "Request quota exceeded") || !strings.Contains(body, "retry_after") {
		t.Errorf("Unexpected 429 body: %s", body)
	}
}

func TestRateLimitSeparatesBuckets(t *testing.T) {
	store := newFakeCounterStore()
	cfg := testRateLimitConfig()
	cfg.AnonPerWindow = 1
	handler := rateLimit(store, testSecret, cfg)(okHandler())

	send := func(token, remoteAddr string) int {
		req := httptest.NewRequest("GET", "/api/companies/search?q=x", nil)
		req.RemoteAddr = remoteAddr
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		return recorder.Code
	}

	// Exhaust the anonymous quota for one IP
	if code := send("", "10.1.2.3:5555"); code != http.StatusOK {
		t.Fatalf("First anon request: expected 200, got %d", code)
	}
	if code := send("", "10.1.2.3:5555"); code != http.StatusTooManyRequests {
		t.Fatalf("Second anon request: expected 429, got %d", code)
	}

	// A different IP has its own anonymous window
	if code := send("", "10.9.9.9:5555"); code != http.StatusOK {
		t.Errorf("Other IP: expected 200, got %d", code)
	}

	// An authenticated caller from the throttled IP uses the per-user bucket
	access := signTestToken(t, models.TokenTypeAccess, "alice", time.Hour)
	if code := send(access, "10.1.2.3:5555"); code != http.StatusOK {
		t.Errorf("Authenticated caller: expected 200, got %d", code)
	}
}

func TestRateLimitFailsOpenOnStoreError(t *testing.T) {
	store := newFakeCounterStore()
	store.fail = true
	handler := rateLimit(store, testSecret, testRateLimitConfig())(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/api/companies/search?q=x", nil)
		req.RemoteAddr = "10.1.2.3:5555"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusOK {
			t.Fatalf("Expected fail-open 200, got %d", recorder.Code)
		}
	}
}

func TestRateLimitDisabledWithoutRedis(t *testing.T) {
	cfg := testRateLimitConfig()
	cfg.AnonPerWindow = 1
	handler := RateLimitMiddleware(nil, testSecret, cfg)(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/api/companies/search?q=x", nil)
		req.RemoteAddr = "10.1.2.3:5555"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusOK {
			t.Fatalf("Expected limiting disabled, got %d", recorder.Code)
		}
	}
}
