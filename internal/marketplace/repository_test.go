package marketplace

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agents.json")
	repo, err := NewRepository(path)
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}
	return repo
}

// ---------------------------------------------------------------------------
// 1. Create and retrieve an agent
// ---------------------------------------------------------------------------

func TestRepository_CreateAndGetAgent(t *testing.T) {
	repo := newTestRepo(t)
	profile := AgentProfile{AgentID: "agent-1", BaseURL: "https://a.example.com", RegisteredAt: time.Now()}

	if err := repo.CreateAgent(profile); err != nil {
		t.Fatalf("CreateAgent returned error: %v", err)
	}

	got, err := repo.GetAgent("agent-1")
	if err != nil {
		t.Fatalf("GetAgent returned error: %v", err)
	}
	if got.BaseURL != profile.BaseURL {
		t.Fatalf("expected base_url to round-trip, got %q", got.BaseURL)
	}
}

// ---------------------------------------------------------------------------
// 2. Duplicate base_url, duplicate agent_name, and duplicate agent_id are rejected
// ---------------------------------------------------------------------------

func TestRepository_CreateAgent_RejectsDuplicateBaseURL(t *testing.T) {
	repo := newTestRepo(t)
	_ = repo.CreateAgent(AgentProfile{AgentID: "agent-1", BaseURL: "https://a.example.com", RegisteredAt: time.Now()})

	err := repo.CreateAgent(AgentProfile{AgentID: "agent-2", BaseURL: "https://a.example.com", RegisteredAt: time.Now()})
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered for duplicate base_url, got %v", err)
	}
}

func TestRepository_CreateAgent_RejectsDuplicateAgentName(t *testing.T) {
	repo := newTestRepo(t)
	_ = repo.CreateAgent(AgentProfile{AgentID: "agent-1", AgentName: "News", BaseURL: "https://a.example.com", RegisteredAt: time.Now()})

	err := repo.CreateAgent(AgentProfile{AgentID: "agent-2", AgentName: "News", BaseURL: "https://b.example.com", RegisteredAt: time.Now()})
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered for duplicate agent_name, got %v", err)
	}
}

func TestRepository_CreateAgent_RejectsDuplicateAgentID(t *testing.T) {
	repo := newTestRepo(t)
	_ = repo.CreateAgent(AgentProfile{AgentID: "agent-1", BaseURL: "https://a.example.com", RegisteredAt: time.Now()})

	err := repo.CreateAgent(AgentProfile{AgentID: "agent-1", BaseURL: "https://b.example.com", RegisteredAt: time.Now()})
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered for duplicate agent_id, got %v", err)
	}
}

func TestRepository_CreateAgent_EmptyAgentNameIsNotUnique(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.CreateAgent(AgentProfile{AgentID: "agent-1", BaseURL: "https://a.example.com", RegisteredAt: time.Now()}); err != nil {
		t.Fatalf("CreateAgent returned error: %v", err)
	}
	if err := repo.CreateAgent(AgentProfile{AgentID: "agent-2", BaseURL: "https://b.example.com", RegisteredAt: time.Now()}); err != nil {
		t.Fatalf("expected two agents with empty agent_name to coexist, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// 3. Persistence survives a reload from disk
// ---------------------------------------------------------------------------

func TestRepository_PersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.json")
	repo, err := NewRepository(path)
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}
	if err := repo.CreateAgent(AgentProfile{AgentID: "agent-1", BaseURL: "https://a.example.com", RegisteredAt: time.Now()}); err != nil {
		t.Fatalf("CreateAgent returned error: %v", err)
	}

	reloaded, err := NewRepository(path)
	if err != nil {
		t.Fatalf("NewRepository (reload) returned error: %v", err)
	}
	if !reloaded.AgentExists("agent-1") {
		t.Fatalf("expected agent-1 to survive reload from disk")
	}
}

// ---------------------------------------------------------------------------
// 4. ListAgents paginates newest-first
// ---------------------------------------------------------------------------

func TestRepository_ListAgents_NewestFirstWithPagination(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Now()
	_ = repo.CreateAgent(AgentProfile{AgentID: "a", BaseURL: "https://a.example.com", RegisteredAt: base})
	_ = repo.CreateAgent(AgentProfile{AgentID: "b", BaseURL: "https://b.example.com", RegisteredAt: base.Add(time.Second)})
	_ = repo.CreateAgent(AgentProfile{AgentID: "c", BaseURL: "https://c.example.com", RegisteredAt: base.Add(2 * time.Second)})

	page := repo.ListAgents(2, 0)
	if len(page) != 2 || page[0].AgentID != "c" || page[1].AgentID != "b" {
		t.Fatalf("expected [c, b], got %+v", page)
	}

	page2 := repo.ListAgents(2, 2)
	if len(page2) != 1 || page2[0].AgentID != "a" {
		t.Fatalf("expected [a], got %+v", page2)
	}
}
