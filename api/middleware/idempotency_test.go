package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]string{}}
}

func (s *fakeStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.records[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (s *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; ok {
		return false, nil
	}
	s.records[key] = fmt.Sprint(value)
	return true, nil
}

func (s *fakeStore) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

func newIdempotencyHandler(store *fakeStore, calls *int) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"data":{"attempt":%d}}`, *calls)
	})
	return Idempotency(store, nil)(inner)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := newIdempotencyHandler(store, &calls)

	body := `{"user_id":"u1"}`
	first := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	first.Header.Set("Idempotency-Key", "key-1")
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, first)

	if rec1.Code != http.StatusCreated {
		t.Fatalf("first call: status %d", rec1.Code)
	}
	if calls != 1 {
		t.Fatalf("expected 1 handler call, got %d", calls)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	second.Header.Set("Idempotency-Key", "key-1")
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, second)

	if calls != 1 {
		t.Fatalf("expected replay without a second handler call, got %d calls", calls)
	}
	if rec2.Code != http.StatusCreated {
		t.Fatalf("replay: status %d", rec2.Code)
	}
	if rec1.Body.String() != rec2.Body.String() {
		t.Fatalf("expected identical bodies, got %q vs %q", rec1.Body.String(), rec2.Body.String())
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := newIdempotencyHandler(store, &calls)

	first := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"a":1}`))
	first.Header.Set("Idempotency-Key", "key-1")
	handler.ServeHTTP(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"a":2}`))
	second.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, second)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for body mismatch, got %d", rec.Code)
	}
	if calls != 1 {
		t.Fatalf("expected no second handler call, got %d", calls)
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := newIdempotencyHandler(store, &calls)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without header, got %d", rec.Code)
	}
	if calls != 0 {
		t.Fatalf("expected handler untouched, got %d calls", calls)
	}
}

func TestIdempotencyIgnoresUnprotectedRoutes(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := newIdempotencyHandler(store, &calls)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if calls != 1 {
		t.Fatalf("expected handler call for unprotected route, got %d", calls)
	}
}
