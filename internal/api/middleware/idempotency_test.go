package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"cryptocard-ledger/internal/domain"
	"cryptocard-ledger/internal/util"
)

// memoryIdempotencyStore is a process-local IdempotencyStore for tests.
type memoryIdempotencyStore struct {
	mu        sync.Mutex
	responses map[string]CachedResponse
	locks     map[string]bool
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{responses: map[string]CachedResponse{}, locks: map[string]bool{}}
}

func (s *memoryIdempotencyStore) Get(ctx context.Context, key string) (CachedResponse, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.responses[key]
	return resp, ok, nil
}

func (s *memoryIdempotencyStore) Save(ctx context.Context, key string, resp CachedResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[key] = resp
	return nil
}

func (s *memoryIdempotencyStore) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[key] {
		return false, nil
	}
	s.locks[key] = true
	return true, nil
}

func (s *memoryIdempotencyStore) Unlock(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
	return nil
}

func countingHandler(calls *atomic.Int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"call":%d}`, n)
	})
}

func doRequest(h http.Handler, key, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/transactions", nil)
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	if userID != "" {
		req = req.WithContext(WithActor(req.Context(), domain.Actor{UserID: userID}))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_ReplaysSuccessfulResponse(t *testing.T) {
	var calls atomic.Int32
	h := Idempotency(newMemoryIdempotencyStore(), time.Hour, util.DiscardLogger())(countingHandler(&calls, http.StatusCreated))

	first := doRequest(h, "k1", "1")
	second := doRequest(h, "k1", "1")

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, `{"call":1}`, second.Body.String())
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Hit"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotency_KeysAreScopedPerUser(t *testing.T) {
	var calls atomic.Int32
	h := Idempotency(newMemoryIdempotencyStore(), time.Hour, util.DiscardLogger())(countingHandler(&calls, http.StatusCreated))

	doRequest(h, "k1", "1")
	other := doRequest(h, "k1", "2")
	assert.JSONEq(t, `{"call":2}`, other.Body.String())
}

func TestIdempotency_NoKeyOrFailureIsNotCached(t *testing.T) {
	var calls atomic.Int32
	h := Idempotency(newMemoryIdempotencyStore(), time.Hour, util.DiscardLogger())(countingHandler(&calls, http.StatusBadRequest))

	doRequest(h, "", "1")
	doRequest(h, "", "1")
	doRequest(h, "k1", "1")
	doRequest(h, "k1", "1")
	assert.Equal(t, int32(4), calls.Load())
}

func TestIdempotency_ConcurrentDuplicateIsRejected(t *testing.T) {
	store := newMemoryIdempotencyStore()
	_, err := store.Lock(context.Background(), "1:k1", time.Second)
	require.NoError(t, err)

	var calls atomic.Int32
	h := Idempotency(store, time.Hour, util.DiscardLogger())(countingHandler(&calls, http.StatusCreated))

	rec := doRequest(h, "k1", "1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Zero(t, calls.Load())
}

func TestRedisIdempotencyStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Redis integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewRedisIdempotencyStore(rdb)

	_, hit, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)

	ok, err := store.Lock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Lock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, store.Unlock(ctx, "k"))

	want := CachedResponse{StatusCode: http.StatusCreated, ContentType: "application/json", Body: []byte(`{"id":"t1"}`)}
	require.NoError(t, store.Save(ctx, "k", want, time.Minute))
	got, hit, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, got)
}
