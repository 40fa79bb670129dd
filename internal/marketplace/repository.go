package marketplace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrAlreadyRegistered is returned when a registration collides with an
// existing agent by id, base_url, or agent_name, matching the source's
// AgentAlreadyRegisteredError.
var ErrAlreadyRegistered = errors.New("agent already registered")

// ErrNotFound is returned by GetAgent when agent_id does not exist.
var ErrNotFound = errors.New("agent not found")

// Repository is a JSON-file-backed, mutex-guarded agent directory. Every
// mutation is persisted via a temp-file-then-rename write so a crash mid-save
// never corrupts the file (grounded on JsonAgentRepository._save_agents).
type Repository struct {
	mu       sync.Mutex
	filePath string
	agents   map[string]AgentProfile
}

// NewRepository opens (or creates) filePath and loads any existing agents.
// A missing or unparseable file starts empty rather than failing, matching
// the source's _load_agents.
func NewRepository(filePath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("create agents directory: %w", err)
	}

	r := &Repository{filePath: filePath, agents: make(map[string]AgentProfile)}
	r.load()
	return r, nil
}

func (r *Repository) load() {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		return
	}
	var list []AgentProfile
	if err := json.Unmarshal(data, &list); err != nil {
		return
	}
	for _, p := range list {
		r.agents[p.AgentID] = p
	}
}

func (r *Repository) save() error {
	list := make([]AgentProfile, 0, len(r.agents))
	for _, p := range r.agents {
		list = append(list, p)
	}

	raw, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal agents: %w", err)
	}

	tmpPath := r.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o644); err != nil {
		return fmt.Errorf("write temp agents file: %w", err)
	}
	if err := os.Rename(tmpPath, r.filePath); err != nil {
		return fmt.Errorf("rename temp agents file: %w", err)
	}
	return nil
}

// CreateAgent enforces the source's uniqueness constraints before inserting:
// no two agents may share a base_url; no two agents may share a non-empty
// agent_name; agent_id must not already exist.
func (r *Repository) CreateAgent(profile AgentProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.agents {
		if existing.BaseURL == profile.BaseURL {
			return fmt.Errorf("%w: base_url %s already registered by agent %s", ErrAlreadyRegistered, profile.BaseURL, existing.AgentID)
		}
		if profile.AgentName != "" && existing.AgentName == profile.AgentName && existing.AgentID != profile.AgentID {
			return fmt.Errorf("%w: agent_name %q already taken by agent %s", ErrAlreadyRegistered, profile.AgentName, existing.AgentID)
		}
	}
	if _, exists := r.agents[profile.AgentID]; exists {
		return fmt.Errorf("%w: agent %s already registered", ErrAlreadyRegistered, profile.AgentID)
	}

	r.agents[profile.AgentID] = profile
	return r.save()
}

// GetAgent returns the stored profile for agentID, or ErrNotFound.
func (r *Repository) GetAgent(agentID string) (AgentProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.agents[agentID]
	if !ok {
		return AgentProfile{}, ErrNotFound
	}
	return p, nil
}

// ListAgents returns agents sorted newest-registered-first, paginated by
// limit/offset, matching list_agents.
func (r *Repository) ListAgents(limit, offset int) []AgentProfile {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]AgentProfile, 0, len(r.agents))
	for _, p := range r.agents {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].RegisteredAt.After(all[j].RegisteredAt) })

	if offset >= len(all) {
		return []AgentProfile{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

// AgentExists reports whether agentID is registered.
func (r *Repository) AgentExists(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.agents[agentID]
	return ok
}
