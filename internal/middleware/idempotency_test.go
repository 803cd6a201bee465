// internal/middleware/idempotency_test.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryIdempotencyStore struct {
	mu        sync.Mutex
	locks     map[string]struct{}
	responses map[string]IdempotencyResponse
	lockErr   error
	saved     chan string
	deleted   chan string
}

func newMemoryStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{
		locks:     make(map[string]struct{}),
		responses: make(map[string]IdempotencyResponse),
		saved:     make(chan string, 8),
		deleted:   make(chan string, 8),
	}
}

func (s *memoryIdempotencyStore) Lock(_ context.Context, key string) (bool, error) {
	if s.lockErr != nil {
		return false, s.lockErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.responses[key]; exists {
		return false, nil
	}
	if _, exists := s.locks[key]; exists {
		return false, nil
	}

	s.locks[key] = struct{}{}
	return true, nil
}

func (s *memoryIdempotencyStore) GetResponse(_ context.Context, key string) (*IdempotencyResponse, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, ok := s.responses[key]
	if !ok {
		return nil, false, nil
	}
	return &resp, true, nil
}

func (s *memoryIdempotencyStore) SaveResponse(_ context.Context, key string, resp IdempotencyResponse) error {
	s.mu.Lock()
	s.responses[key] = resp
	s.mu.Unlock()

	s.saved <- key
	return nil
}

func (s *memoryIdempotencyStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.locks, key)
	delete(s.responses, key)
	s.mu.Unlock()

	s.deleted <- key
	return nil
}

func newIdempotencyRouter(store IdempotencyStore, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/v1/listings", Idempotency(store), handler)
	return r
}

func awaitKey(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case key := <-ch:
		return key
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for store write")
		return ""
	}
}

func TestIdempotencyPassThroughWithoutHeader(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	r := newIdempotencyRouter(store, func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"id": "abc"})
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/listings", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusCreated, w.Code)
	}

	// Both executed; nothing captured.
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.responses)
}

func TestIdempotencyFirstRunStoresAndReplays(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	r := newIdempotencyRouter(store, func(c *gin.Context) {
		calls++
		c.Header("Location", "/v1/listings/abc")
		c.JSON(http.StatusCreated, gin.H{"id": "abc"})
	})

	w1 := httptest.NewRecorder()
	req1 := httptest.NewRequest(http.MethodPost, "/v1/listings", nil)
	req1.Header.Set("Idempotency-Key", "key-1")
	r.ServeHTTP(w1, req1)

	require.Equal(t, http.StatusCreated, w1.Code)
	assert.Empty(t, w1.Header().Get("X-Idempotency-Hit"))
	awaitKey(t, store.saved)

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/v1/listings", nil)
	req2.Header.Set("Idempotency-Key", "key-1")
	r.ServeHTTP(w2, req2)

	// Replay: same status, same body, no second execution.
	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, w2.Code)
	assert.Equal(t, w1.Body.String(), w2.Body.String())
	assert.Equal(t, "true", w2.Header().Get("X-Idempotency-Hit"))
	assert.Equal(t, "/v1/listings/abc", w2.Header().Get("Location"))
}

func TestIdempotencyInFlightDuplicateConflicts(t *testing.T) {
	store := newMemoryStore()
	r := newIdempotencyRouter(store, func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"id": "abc"})
	})

	// Simulate the first request still holding the lock.
	acquired, err := store.Lock(context.Background(), "key-2")
	require.NoError(t, err)
	require.True(t, acquired)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/listings", nil)
	req.Header.Set("Idempotency-Key", "key-2")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "CONFLICT")
}

func TestIdempotencyServerErrorNotPersisted(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusTooManyRequests} {
		store := newMemoryStore()
		r := newIdempotencyRouter(store, func(c *gin.Context) {
			c.JSON(status, gin.H{"error": "boom"})
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/listings", nil)
		req.Header.Set("Idempotency-Key", "key-3")
		r.ServeHTTP(w, req)

		assert.Equal(t, status, w.Code)

		// The key is released so the client can retry with it.
		awaitKey(t, store.deleted)
		store.mu.Lock()
		assert.Empty(t, store.responses)
		assert.Empty(t, store.locks)
		store.mu.Unlock()
	}
}

func TestIdempotencyClientErrorIsPersisted(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	r := newIdempotencyRouter(store, func(c *gin.Context) {
		calls++
		c.JSON(http.StatusBadRequest, gin.H{"error_code": "INVALID_INPUT"})
	})

	req := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		rq := httptest.NewRequest(http.MethodPost, "/v1/listings", nil)
		rq.Header.Set("Idempotency-Key", "key-4")
		r.ServeHTTP(w, rq)
		return w
	}

	w1 := req()
	require.Equal(t, http.StatusBadRequest, w1.Code)
	awaitKey(t, store.saved)

	w2 := req()
	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusBadRequest, w2.Code)
	assert.Equal(t, "true", w2.Header().Get("X-Idempotency-Hit"))
}

func TestIdempotencyStoreFailureFailsClosed(t *testing.T) {
	store := newMemoryStore()
	store.lockErr = errors.New("redis down")

	calls := 0
	r := newIdempotencyRouter(store, func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"id": "abc"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/listings", nil)
	req.Header.Set("Idempotency-Key", "key-5")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 0, calls)
}
