package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/entryledger/internal/domain"
)

// memoryIdempotencyStore mirrors the redis store's claim semantics.
type memoryIdempotencyStore struct {
	mu       sync.Mutex
	values   map[string][]byte
	released []string
	err      error
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{values: map[string][]byte{}}
}

func (s *memoryIdempotencyStore) CheckAndSet(_ context.Context, key string, placeholder []byte, _ time.Duration) (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, nil, s.err
	}
	if v, ok := s.values[key]; ok {
		return true, v, nil
	}
	s.values[key] = placeholder
	return false, nil, nil
}

func (s *memoryIdempotencyStore) Update(_ context.Context, key string, response []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = response
	return nil
}

func (s *memoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	s.released = append(s.released, key)
	return nil
}

func postWithKey(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", bytes.NewBufferString(body))
	req.Header.Set(IdempotencyKeyHeader, key)
	return req
}

func TestIdempotencyMiddleware_StoreErrorIs500(t *testing.T) {
	store := newMemoryIdempotencyStore()
	store.err = context.DeadlineExceeded
	mw := NewIdempotencyMiddleware(store, time.Minute, zerolog.Nop())

	called := false
	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rr, postWithKey("key-err", `{}`))

	if called {
		t.Fatalf("handler should not be called when store errors")
	}
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_SkipsNonMutatingRequests(t *testing.T) {
	mw := NewIdempotencyMiddleware(newMemoryIdempotencyStore(), time.Minute, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	req.Header.Set(IdempotencyKeyHeader, "key")
	rr := httptest.NewRecorder()

	called := false
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rr, req)

	if !called {
		t.Fatalf("expected next handler to be called")
	}
}

func TestIdempotencyMiddleware_ReplaysFinalResponse(t *testing.T) {
	store := newMemoryIdempotencyStore()
	mw := NewIdempotencyMiddleware(store, time.Minute, zerolog.Nop())

	calls := 0
	h := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"insufficient funds","transaction_id":"tx-1"}`))
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, postWithKey("key-1", `{"amount":"500"}`))

	second := httptest.NewRecorder()
	h.ServeHTTP(second, postWithKey("key-1", `{"amount":"500"}`))

	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if second.Code != http.StatusUnprocessableEntity || second.Header().Get(IdempotencyReplayHeader) != "true" {
		t.Fatalf("expected replayed 422, got %d replay=%q", second.Code, second.Header().Get(IdempotencyReplayHeader))
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body differs: %s vs %s", second.Body.String(), first.Body.String())
	}
}

func TestIdempotencyMiddleware_ReleasesKeyOnServerError(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusConflict} {
		store := newMemoryIdempotencyStore()
		mw := NewIdempotencyMiddleware(store, time.Minute, zerolog.Nop())

		rr := httptest.NewRecorder()
		mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})).ServeHTTP(rr, postWithKey("key-fail", `{}`))

		if len(store.released) != 1 {
			t.Fatalf("status %d: expected key to be released", status)
		}
		if len(store.values) != 0 {
			t.Fatalf("status %d: expected no stored response", status)
		}
	}
}

func TestIdempotencyMiddleware_RejectsReusedKeyWithDifferentBody(t *testing.T) {
	store := newMemoryIdempotencyStore()
	mw := NewIdempotencyMiddleware(store, time.Minute, zerolog.Nop())
	h := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))

	h.ServeHTTP(httptest.NewRecorder(), postWithKey("key-2", `{"amount":"1"}`))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, postWithKey("key-2", `{"amount":"2"}`))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for reused key, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_InFlightRequestIsConflict(t *testing.T) {
	store := newMemoryIdempotencyStore()
	mw := NewIdempotencyMiddleware(store, time.Minute, zerolog.Nop())

	req := postWithKey("key-3", `{}`)
	placeholder, _ := json.Marshal(storedResponse{Fingerprint: fingerprintRequest(req, []byte(`{}`))})
	store.values["anonymous:key-3"] = placeholder

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run while the first request is in flight")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_KeysAreScopedToCaller(t *testing.T) {
	store := newMemoryIdempotencyStore()
	mw := NewIdempotencyMiddleware(store, time.Minute, zerolog.Nop())

	calls := 0
	h := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for _, subject := range []string{"alice", "bob"} {
		req := postWithKey("shared", `{}`)
		req = req.WithContext(WithPrincipal(req.Context(), domain.Principal{Subject: subject, Role: domain.RoleOperator}))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls != 2 {
		t.Fatalf("expected each caller to get its own key, handler ran %d times", calls)
	}
}

func TestIdempotencyMiddleware_HandlerSeesFullBody(t *testing.T) {
	mw := NewIdempotencyMiddleware(newMemoryIdempotencyStore(), time.Minute, zerolog.Nop())

	var seen string
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r.Body)
		seen = buf.String()
	})).ServeHTTP(httptest.NewRecorder(), postWithKey("key-4", `{"amount":"7"}`))

	if seen != `{"amount":"7"}` {
		t.Fatalf("expected body to be restored, got %q", seen)
	}
}

func TestIdempotencyMiddleware_PanicReleasesKey(t *testing.T) {
	store := newMemoryIdempotencyStore()
	mw := NewIdempotencyMiddleware(store, time.Minute, zerolog.Nop())

	calls := 0
	h := Recovery(zerolog.Nop())(mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		w.WriteHeader(http.StatusCreated)
	})))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, postWithKey("key-panic", `{}`))
	if first.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", first.Code)
	}
	if len(store.released) != 1 || store.released[0] != "anonymous:key-panic" {
		t.Fatalf("expected key to be released, got %v", store.released)
	}

	retry := httptest.NewRecorder()
	h.ServeHTTP(retry, postWithKey("key-panic", `{}`))
	if calls != 2 {
		t.Fatalf("expected retry to reach the handler, handler ran %d times", calls)
	}
	if retry.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", retry.Code)
	}
}

func TestIdempotencyMiddleware_RoleRejectionIsNotCached(t *testing.T) {
	store := newMemoryIdempotencyStore()
	mw := NewIdempotencyMiddleware(store, time.Minute, zerolog.Nop())

	calls := 0
	h := mw.Wrap(RequireRole(domain.RoleOperator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})))

	send := func(role domain.Role) *httptest.ResponseRecorder {
		req := postWithKey("key-role", `{}`)
		req = req.WithContext(WithPrincipal(req.Context(), domain.Principal{Subject: "carol", Role: role}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	if rr := send(domain.RoleViewer); rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}

	rr := send(domain.RoleOperator)
	if rr.Code != http.StatusCreated || rr.Header().Get(IdempotencyReplayHeader) != "" {
		t.Fatalf("expected a fresh 201 after the role was raised, got %d", rr.Code)
	}
	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
}
