package registration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// 1. Disabled registration is a no-op success
// ---------------------------------------------------------------------------

func TestClient_Register_DisabledSkips(t *testing.T) {
	c := New(Settings{Enabled: false}, nil, nil)
	if !c.Register(t.Context()) {
		t.Fatalf("expected disabled registration to report success")
	}
}

// ---------------------------------------------------------------------------
// 2. A 200 response marks the client registered on the first attempt
// ---------------------------------------------------------------------------

func TestClient_Register_SuccessOnFirstAttempt(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"agent_id": "agent-1"})
	}))
	defer server.Close()

	c := New(Settings{
		Enabled:             true,
		AgentName:           "test",
		SellerBaseURL:       "https://seller.example.com",
		MarketplaceBaseURL:  server.URL,
		RetryAttempts:       3,
		RetryDelay:          time.Millisecond,
	}, nil, nil)

	if !c.Register(t.Context()) {
		t.Fatalf("expected registration to succeed")
	}
	if !c.IsRegistered() {
		t.Fatalf("expected IsRegistered to be true")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

// ---------------------------------------------------------------------------
// 3. A 409 is treated as success ("already registered")
// ---------------------------------------------------------------------------

func TestClient_Register_ConflictIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	c := New(Settings{
		Enabled:            true,
		MarketplaceBaseURL: server.URL,
		RetryAttempts:      2,
		RetryDelay:         time.Millisecond,
	}, nil, nil)

	if !c.Register(t.Context()) {
		t.Fatalf("expected 409 to be treated as success")
	}
}

// ---------------------------------------------------------------------------
// 4. Transient failures are retried, then succeed
// ---------------------------------------------------------------------------

func TestClient_Register_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"agent_id": "agent-1"})
	}))
	defer server.Close()

	c := New(Settings{
		Enabled:            true,
		MarketplaceBaseURL: server.URL,
		RetryAttempts:      5,
		RetryDelay:         time.Millisecond,
	}, nil, nil)

	if !c.Register(t.Context()) {
		t.Fatalf("expected registration to eventually succeed")
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected exactly 3 calls, got %d", calls)
	}
}

// ---------------------------------------------------------------------------
// 5. Exhausting all attempts returns false without panicking
// ---------------------------------------------------------------------------

func TestClient_Register_ExhaustsAttemptsReturnsFalse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(Settings{
		Enabled:            true,
		MarketplaceBaseURL: server.URL,
		RetryAttempts:      2,
		RetryDelay:         time.Millisecond,
	}, nil, nil)

	if c.Register(t.Context()) {
		t.Fatalf("expected registration to fail after exhausting attempts")
	}
	if c.IsRegistered() {
		t.Fatalf("expected IsRegistered to be false")
	}
}
