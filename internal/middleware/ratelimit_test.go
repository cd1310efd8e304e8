package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWindowLimiterTake(t *testing.T) {
	l := newWindowLimiter(2, time.Minute)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	steps := []struct {
		name          string
		key           string
		at            time.Duration
		wantOK        bool
		wantRemaining int
	}{
		{name: "first", key: "a", wantOK: true, wantRemaining: 1},
		{name: "second", key: "a", at: time.Second, wantOK: true, wantRemaining: 0},
		{name: "over limit", key: "a", at: 2 * time.Second, wantOK: false, wantRemaining: 0},
		{name: "other key independent", key: "b", at: 3 * time.Second, wantOK: true, wantRemaining: 1},
		{name: "window reset", key: "a", at: time.Minute, wantOK: true, wantRemaining: 1},
	}
	for _, st := range steps {
		remaining, _, ok := l.take(st.key, start.Add(st.at))
		if ok != st.wantOK || remaining != st.wantRemaining {
			t.Fatalf("%s: take = (%d, %v), want (%d, %v)", st.name, remaining, ok, st.wantRemaining, st.wantOK)
		}
	}
}

func TestWindowLimiterSweepsExpired(t *testing.T) {
	l := newWindowLimiter(1, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.take("a", now)
	l.take("b", now)
	l.take("c", now.Add(2*time.Minute))
	if len(l.windows) != 1 {
		t.Fatalf("windows = %d, want 1 after sweep", len(l.windows))
	}
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	h := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	var last *httptest.ResponseRecorder
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/image-generator", nil)
		req.RemoteAddr = "198.51.100.7:5555"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
	if last.Header().Get("Retry-After") == "" || last.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("headers = %v", last.Header())
	}

	other := httptest.NewRequest(http.MethodPost, "/image-generator", nil)
	other.RemoteAddr = "198.51.100.8:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("other client code = %d", rec.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimit(0, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate-stream", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d code = %d", i, rec.Code)
		}
	}
}
