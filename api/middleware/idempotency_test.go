package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type fakeIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]string
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{entries: map[string]string{}}
}

func (s *fakeIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[key], nil
}

func (s *fakeIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; exists {
		return false, nil
	}
	s.entries[key] = value.(string)
	return true, nil
}

func (s *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (s *fakeIdempotencyStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

func newSalesRouter(store *fakeIdempotencyStore, calls *int) http.Handler {
	r := chi.NewRouter()
	r.Use(Idempotency(store, nil))
	r.Post("/api/v1/sales", func(w http.ResponseWriter, _ *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"sale_number":"SL-KLA-1"}}`))
	})
	r.Get("/api/v1/sales", func(w http.ResponseWriter, _ *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	t.Parallel()
	store := newFakeIdempotencyStore()
	calls := 0
	router := newSalesRouter(store, &calls)

	body := `{"lines":[{"product_id":1,"quantity":2}]}`
	first := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(body))
	first.Header.Set("Idempotency-Key", "key-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, first)
	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, 1, calls)

	second := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(body))
	second.Header.Set("Idempotency-Key", "key-1")
	replay := httptest.NewRecorder()
	router.ServeHTTP(replay, second)
	require.Equal(t, http.StatusCreated, replay.Code)
	require.Equal(t, resp.Body.String(), replay.Body.String())
	require.Equal(t, 1, calls)
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	t.Parallel()
	store := newFakeIdempotencyStore()
	calls := 0
	router := newSalesRouter(store, &calls)

	first := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(`{"a":1}`))
	first.Header.Set("Idempotency-Key", "key-2")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, first)
	require.Equal(t, http.StatusCreated, resp.Code)

	second := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(`{"a":2}`))
	second.Header.Set("Idempotency-Key", "key-2")
	conflict := httptest.NewRecorder()
	router.ServeHTTP(conflict, second)
	require.Equal(t, http.StatusConflict, conflict.Code)
	require.Equal(t, 1, calls)
}

func TestIdempotencyRequiresHeaderOnGuardedRoutes(t *testing.T) {
	t.Parallel()
	store := newFakeIdempotencyStore()
	calls := 0
	router := newSalesRouter(store, &calls)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Zero(t, calls)
}

func TestIdempotencyIgnoresUnguardedRoutes(t *testing.T) {
	t.Parallel()
	store := newFakeIdempotencyStore()
	calls := 0
	router := newSalesRouter(store, &calls)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 1, calls)
}
