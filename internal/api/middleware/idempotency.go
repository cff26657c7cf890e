package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	lockTimeout       = 10 * time.Second
	cacheKeyPrefix    = "idempotency:"
	lockKeyPrefix     = "idempotency-lock:"
)

// CachedResponse is a stored response replayed for a repeated key.
type CachedResponse struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyStore keeps responses and in-flight locks by key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (CachedResponse, bool, error)
	Save(ctx context.Context, key string, resp CachedResponse, ttl time.Duration) error
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// RedisIdempotencyStore implements IdempotencyStore on Redis.
type RedisIdempotencyStore struct {
	rdb *redis.Client
}

func NewRedisIdempotencyStore(rdb *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{rdb: rdb}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (CachedResponse, bool, error) {
	raw, err := s.rdb.Get(ctx, cacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return CachedResponse{}, false, nil
	}
	if err != nil {
		return CachedResponse{}, false, err
	}
	var resp CachedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return CachedResponse{}, false, fmt.Errorf("decode cached response: %w", err)
	}
	return resp, true, nil
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, resp CachedResponse, ttl time.Duration) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, cacheKeyPrefix+key, raw, ttl).Err()
}

func (s *RedisIdempotencyStore) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, lockKeyPrefix+key, "processing", ttl).Result()
}

func (s *RedisIdempotencyStore) Unlock(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, lockKeyPrefix+key).Err()
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rw *responseRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a repeated Idempotency-Key and
// rejects a repeat that arrives while the first is still running. Keys are
// scoped to the authenticated user, so it must run after Authenticate. Only
// 2xx responses are stored.
func Idempotency(store IdempotencyStore, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if actor, ok := ActorFrom(r.Context()); ok {
				key = actor.UserID + ":" + key
			}
			ctx := r.Context()

			cached, hit, err := store.Get(ctx, key)
			if err != nil {
				logger.Error("Idempotency lookup failed", "error", err)
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if hit {
				w.Header().Set("Content-Type", cached.ContentType)
				w.Header().Set("X-Idempotency-Hit", "true")
				w.WriteHeader(cached.StatusCode)
				_, _ = w.Write(cached.Body)
				return
			}

			acquired, err := store.Lock(ctx, key, lockTimeout)
			if err != nil {
				logger.Error("Idempotency lock failed", "error", err)
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if !acquired {
				writeJSONError(w, http.StatusConflict, "a request with this idempotency key is currently being processed")
				return
			}
			defer func() {
				if err := store.Unlock(context.WithoutCancel(ctx), key); err != nil {
					logger.Warn("Failed to release idempotency lock", "error", err)
				}
			}()

			rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= 200 && rec.statusCode < 300 {
				resp := CachedResponse{
					StatusCode:  rec.statusCode,
					ContentType: rec.Header().Get("Content-Type"),
					Body:        rec.body.Bytes(),
				}
				if err := store.Save(context.WithoutCancel(ctx), key, resp, ttl); err != nil {
					logger.Warn("Failed to cache idempotent response", "error", err)
				}
			}
		})
	}
}
