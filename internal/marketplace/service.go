package marketplace

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidRequest is returned when a registration request fails field
// validation (invalid agent_id UUID or base_url).
var ErrInvalidRequest = errors.New("invalid registration request")

// Service implements agent registration and discovery on top of Repository.
type Service struct {
	repo *Repository
}

// NewService wires a Repository into a Service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// RegisterAgent validates and stores a new agent, generating an agent_id
// when the caller did not supply one (matching AgentService.register_agent).
func (s *Service) RegisterAgent(req RegistrationRequest) (RegistrationResponse, error) {
	agentID := req.AgentID
	if agentID == "" {
		agentID = uuid.New().String()
	} else if !ValidUUID(agentID) {
		return RegistrationResponse{}, fmt.Errorf("%w: invalid UUID format: %s", ErrInvalidRequest, agentID)
	}

	if !ValidBaseURL(req.BaseURL) {
		return RegistrationResponse{}, fmt.Errorf("%w: invalid HTTPS URL: %s", ErrInvalidRequest, req.BaseURL)
	}

	now := time.Now().UTC()
	profile := AgentProfile{
		AgentID:       agentID,
		AgentName:     req.AgentName,
		BaseURL:       req.BaseURL,
		Description:   req.Description,
		Tags:          req.Tags,
		Version:       1,
		RegisteredAt:  now,
		LastUpdatedAt: now,
	}

	if err := s.repo.CreateAgent(profile); err != nil {
		return RegistrationResponse{}, err
	}

	return RegistrationResponse{Status: "success", AgentID: profile.AgentID, Version: profile.Version}, nil
}

// GetAgent returns the profile for agentID.
func (s *Service) GetAgent(agentID string) (AgentProfile, error) {
	return s.repo.GetAgent(agentID)
}

// ListAgents returns a page of agents for buyer discovery.
func (s *Service) ListAgents(limit, offset int) []AgentProfile {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListAgents(limit, offset)
}
