// Package marketplace implements the Marketplace registry of spec.md §4.9:
// a JSON-file-backed agent directory that Sellers register into at startup
// and Buyers poll for discovery.
package marketplace

import "time"

// AgentProfile is the stored, persisted record for a registered seller.
type AgentProfile struct {
	AgentID       string    `json:"agent_id"`
	AgentName     string    `json:"agent_name"`
	BaseURL       string    `json:"base_url"`
	Description   string    `json:"description"`
	Tags          []string  `json:"tags"`
	Version       int       `json:"version"`
	RegisteredAt  time.Time `json:"registered_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// RegistrationRequest is the wire-format POST /register body.
type RegistrationRequest struct {
	AgentName   string   `json:"agent_name"`
	AgentID     string   `json:"agent_id,omitempty"`
	BaseURL     string   `json:"base_url"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// RegistrationResponse is the wire-format POST /register success body.
type RegistrationResponse struct {
	Status  string `json:"status"`
	AgentID string `json:"agent_id"`
	Version int    `json:"version"`
}

// ErrorResponse is the wire-format body for a failed registration.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}
