package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func post(h http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/confirm", strings.NewReader("{}"))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestResponseRecorderCapturesResponse(t *testing.T) {
	w := httptest.NewRecorder()
	rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}

	rec.Header().Set("Content-Type", "application/json")
	rec.WriteHeader(http.StatusCreated)
	rec.WriteHeader(http.StatusInternalServerError)
	rec.Write([]byte(`{"ticket_id":"t-1"}`))

	if rec.status != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.status, http.StatusCreated)
	}
	if w.Code != http.StatusCreated {
		t.Errorf("client status = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := rec.body.String(); got != `{"ticket_id":"t-1"}` {
		t.Errorf("captured body = %q", got)
	}
	if got := w.Body.String(); got != `{"ticket_id":"t-1"}` {
		t.Errorf("client body = %q", got)
	}
}

func TestReplayRestoresStoredResponse(t *testing.T) {
	w := httptest.NewRecorder()
	replay(w, storedResponse{Status: http.StatusCreated, ContentType: "application/json", Body: []byte(`{"duplicate":false}`)})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if w.Header().Get("X-Idempotency-Hit") != "true" {
		t.Error("missing X-Idempotency-Hit header")
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
	if w.Body.String() != `{"duplicate":false}` {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestIdempotencyWithoutRedisPassesThrough(t *testing.T) {
	calls := 0
	h := Idempotency(nil, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/confirm", strings.NewReader("{}"))
		req.Header.Set("Idempotency-Key", "k-1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
		}
	}
	if calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
}

func TestIdempotencyStoresByStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantStore bool
	}{
		{"created", http.StatusCreated, true},
		{"duplicate", http.StatusOK, true},
		{"payment required", http.StatusPaymentRequired, true},
		{"bad request", http.StatusBadRequest, true},
		{"internal error", http.StatusInternalServerError, false},
		{"gateway unavailable", http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr, client := newRedis(t)
			calls := 0
			h := Idempotency(client, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"call":1}`))
			}))

			first := post(h, "k1")
			if first.Code != tt.status {
				t.Fatalf("first status = %d, want %d", first.Code, tt.status)
			}

			if got := mr.Exists("idempotency:k1"); got != tt.wantStore {
				t.Fatalf("key stored = %v, want %v", got, tt.wantStore)
			}
			if !tt.wantStore {
				post(h, "k1")
				if calls != 2 {
					t.Errorf("handler calls = %d, want 2 after a server error", calls)
				}
				return
			}

			if ttl := mr.TTL("idempotency:k1"); ttl != responseTTL {
				t.Errorf("TTL = %v, want %v", ttl, responseTTL)
			}
			raw, _ := mr.Get("idempotency:k1")
			var stored storedResponse
			if err := json.Unmarshal([]byte(raw), &stored); err != nil || stored.Status != tt.status {
				t.Errorf("stored = %s", raw)
			}

			second := post(h, "k1")
			if calls != 1 {
				t.Errorf("handler calls = %d, want 1", calls)
			}
			if second.Code != tt.status || second.Header().Get("X-Idempotency-Hit") != "true" {
				t.Errorf("replay = %d hit=%q", second.Code, second.Header().Get("X-Idempotency-Hit"))
			}
			if second.Body.String() != `{"call":1}` || second.Header().Get("Content-Type") != "application/json" {
				t.Errorf("replay body = %q, Content-Type %q", second.Body.String(), second.Header().Get("Content-Type"))
			}
		})
	}
}

func TestIdempotencyRetriesAfterServerError(t *testing.T) {
	_, client := newRedis(t)
	calls := 0
	h := Idempotency(client, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	if w := post(h, "k1"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("first status = %d, want 503", w.Code)
	}
	w := post(h, "k1")
	if w.Code != http.StatusCreated || w.Header().Get("X-Idempotency-Hit") != "" {
		t.Errorf("retry = %d hit=%q, want fresh 201", w.Code, w.Header().Get("X-Idempotency-Hit"))
	}
	if w := post(h, "k1"); w.Code != http.StatusCreated || w.Header().Get("X-Idempotency-Hit") != "true" {
		t.Errorf("third = %d hit=%q, want replayed 201", w.Code, w.Header().Get("X-Idempotency-Hit"))
	}
}

func TestIdempotencyInProgressConflict(t *testing.T) {
	mr, client := newRedis(t)
	mr.Set("idempotency:k1", inProgress)

	calls := 0
	h := Idempotency(client, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	if w := post(h, "k1"); w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	if calls != 0 {
		t.Errorf("handler calls = %d, want 0", calls)
	}

	mr.FastForward(lockTTL + time.Second)
	if w := post(h, "k1"); w.Code != http.StatusOK || calls != 1 {
		t.Errorf("after lock expiry status = %d calls = %d", w.Code, calls)
	}
}

func TestIdempotencyRecordsAfterRequestContextEnds(t *testing.T) {
	mr, client := newRedis(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The handler finishes just as the request deadline fires.
	h := Idempotency(client, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cancel()
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/confirm", strings.NewReader("{}")).WithContext(ctx)
	req.Header.Set("Idempotency-Key", "k1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	raw, err := mr.Get("idempotency:k1")
	if err != nil {
		t.Fatalf("key missing: %v", err)
	}
	if raw == inProgress {
		t.Error("key left in progress after the request context was cancelled")
	}
}

func TestIdempotencySkipsRequestsWithoutKey(t *testing.T) {
	mr, client := newRedis(t)
	calls := 0
	h := Idempotency(client, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	post(h, "")
	post(h, "")
	if calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("keys = %v, want none", keys)
	}
}
