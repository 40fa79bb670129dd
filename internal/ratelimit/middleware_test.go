package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var ok200 = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// ---------------------------------------------------------------------------
// 1. Requests within the limit pass through
// ---------------------------------------------------------------------------

func TestMiddleware_WithinLimit(t *testing.T) {
	m := New(Limits{{Pattern: "/execute", Limit: 2}}, time.Minute)
	handler := m.Wrap(ok200)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/execute", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
}

// ---------------------------------------------------------------------------
// 2. Exceeding the limit returns 429
// ---------------------------------------------------------------------------

func TestMiddleware_ExceedsLimit(t *testing.T) {
	m := New(Limits{{Pattern: "/execute", Limit: 1}}, time.Minute)
	handler := m.Wrap(ok200)

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/execute", nil)
		r.RemoteAddr = "10.0.0.2:5555"
		return r
	}

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req())
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec1.Code)
	}

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req())
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be limited, got %d", rec2.Code)
	}
}

// ---------------------------------------------------------------------------
// 3. Unconfigured paths pass through unthrottled
// ---------------------------------------------------------------------------

func TestMiddleware_UnconfiguredPathPassesThrough(t *testing.T) {
	m := New(Limits{{Pattern: "/execute", Limit: 1}}, time.Minute)
	handler := m.Wrap(ok200)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/pricing", nil)
		req.RemoteAddr = "10.0.0.3:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 on unconfigured path, got %d", i, rec.Code)
		}
	}
}

// ---------------------------------------------------------------------------
// 4. Task polling requests are keyed by buyer secret, not IP
// ---------------------------------------------------------------------------

func TestMiddleware_TaskPollingKeyedBySecret(t *testing.T) {
	m := New(Limits{{Pattern: "/tasks/", Limit: 1}}, time.Minute)
	handler := m.Wrap(ok200)

	makeReq := func(ip, secret string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/tasks/abc123", nil)
		r.RemoteAddr = ip
		if secret != "" {
			r.Header.Set("X-Buyer-Secret", secret)
		}
		return r
	}

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, makeReq("10.0.0.4:1111", "secret-a"))
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first poll to pass, got %d", rec1.Code)
	}

	// Same secret, different IP -> still limited (keyed by secret).
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, makeReq("10.0.0.5:2222", "secret-a"))
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second poll with same secret to be limited, got %d", rec2.Code)
	}

	// Different secret, even from the first IP -> independent counter.
	rec3 := httptest.NewRecorder()
	handler.ServeHTTP(rec3, makeReq("10.0.0.4:1111", "secret-b"))
	if rec3.Code != http.StatusOK {
		t.Fatalf("expected poll with a different secret to pass, got %d", rec3.Code)
	}
}

// ---------------------------------------------------------------------------
// 5. Pattern precedence: exact match first, then first-match-wins in
// configuration order (spec.md §9) — a prefix pattern configured before a
// regex pattern beats it even on a path both would match.
// ---------------------------------------------------------------------------

func TestPatternLookup_Precedence(t *testing.T) {
	pl := newPatternLookup(Limits{
		{Pattern: "/execute", Limit: 5},
		{Pattern: "^/exec.*$", Limit: 10},
		{Pattern: "/exec", Limit: 1},
	})

	limit, ok := pl.lookup("/execute")
	if !ok || limit != 5 {
		t.Fatalf("expected exact match to win with limit 5, got %d (ok=%v)", limit, ok)
	}

	// "/execute/sub" matches both the "/execute" prefix pattern and the
	// "^/exec.*$" regex pattern; the prefix pattern is configured first, so
	// it wins per first-match-wins-in-configuration-order.
	limit, ok = pl.lookup("/execute/sub")
	if !ok || limit != 5 {
		t.Fatalf("expected the earlier-configured prefix match to win with limit 5, got %d (ok=%v)", limit, ok)
	}

	limit, ok = pl.lookup("/exec-other")
	if !ok || limit != 10 {
		t.Fatalf("expected the regex pattern (configured before the /exec prefix) to win with limit 10, got %d (ok=%v)", limit, ok)
	}

	if _, ok := pl.lookup("/unrelated"); ok {
		t.Fatalf("expected no match for unrelated path")
	}
}

// ---------------------------------------------------------------------------
// 5b. Reordering the same patterns changes which one wins
// ---------------------------------------------------------------------------

func TestPatternLookup_ConfigurationOrderControlsPrecedence(t *testing.T) {
	pl := newPatternLookup(Limits{
		{Pattern: "^/exec.*$", Limit: 10},
		{Pattern: "/execute", Limit: 5},
	})

	// With the regex pattern configured first, it now wins over the prefix
	// pattern for a path both match — the opposite of
	// TestPatternLookup_Precedence, proving order (not pattern kind) decides.
	limit, ok := pl.lookup("/execute/sub")
	if !ok || limit != 10 {
		t.Fatalf("expected the earlier-configured regex match to win with limit 10, got %d (ok=%v)", limit, ok)
	}
}

// ---------------------------------------------------------------------------
// 6. A stale window resets the counter
// ---------------------------------------------------------------------------

func TestMiddleware_WindowResets(t *testing.T) {
	m := New(Limits{{Pattern: "/execute", Limit: 1}}, 10*time.Millisecond)
	handler := m.Wrap(ok200)

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/execute", nil)
		r.RemoteAddr = "10.0.0.6:5555"
		return r
	}

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req())
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec1.Code)
	}

	time.Sleep(20 * time.Millisecond)

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req())
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected request after window reset to pass, got %d", rec2.Code)
	}
}
