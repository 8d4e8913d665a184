package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-redis/redis/v8"

	"github.com/stockwatch/backend/internal/config"
	"github.com/stockwatch/backend/internal/models"
)

// counterStore is the fixed-window accounting the rate limiter needs.
// Redis backs it in production; tests supply an in-memory implementation.
type counterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}

type redisCounterStore struct {
	client *redis.Client
}

func (s redisCounterStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s redisCounterStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s redisCounterStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.client.TTL(ctx, key).Result()
}

// RateLimitMiddleware enforces a fixed-window request quota in Redis before
// any handler logic runs. Callers presenting a valid access token are
// counted per username against the authenticated quota; everyone else is
// counted per client IP against the anonymous one. A nil client disables
// limiting, and a Redis outage fails open rather than taking the API down.
func RateLimitMiddleware(redisClient *redis.Client, jwtSecretKey []byte, cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	var store counterStore
	if redisClient != nil {
		store = redisCounterStore{client: redisClient}
	}
	return rateLimit(store, jwtSecretKey, cfg)
}

func rateLimit(store counterStore, jwtSecretKey []byte, cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil {
				next.ServeHTTP(w, r)
				return
			}

			scope, identity, limit := callerScope(r, jwtSecretKey, cfg)
			key := fmt.Sprintf("ratelimit:%s:%s", scope, identity)
			ctx := r.Context()

			count, err := store.Incr(ctx, key)
			if err != nil {
				log.Printf("rate limit: counter store unavailable: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				store.Expire(ctx, key, cfg.Window)
			}

			if count > int64(limit) {
				retryAfter := cfg.Window
				if ttl, err := store.TTL(ctx, key); err == nil && ttl > 0 {
					retryAfter = ttl
				}
				seconds := int(retryAfter.Seconds())
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error":       "Request quota exceeded",
					"retry_after": seconds,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// callerScope decides which quota applies. A valid access token moves the
// caller into the per-user authenticated bucket; an invalid or missing one
// falls back to the per-IP anonymous bucket without rejecting the request,
// since protected routes fail it later anyway.
func callerScope(r *http.Request, jwtSecretKey []byte, cfg config.RateLimitConfig) (string, string, int) {
	authorizationHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authorizationHeader, "Bearer ") {
		claims := &models.Claims{}
		token, err := jwt.ParseWithClaims(strings.TrimPrefix(authorizationHeader, "Bearer "), claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return jwtSecretKey, nil
		})
		if err == nil && token.Valid && claims.TokenType == models.TokenTypeAccess && claims.Username != "" {
			return "user", claims.Username, cfg.AuthPerWindow
		}
	}
	return "anon", clientIP(r), cfg.AnonPerWindow
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
