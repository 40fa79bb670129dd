package marketplace

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
)

// Handler exposes the Marketplace registry's HTTP surface (spec.md §4.9,
// §6): POST /register, GET /register/new_entries, GET /health.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler wires a Service into a Handler.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// Register implements POST /register: returns 409 if the seller is already
// registered by id, name, or base_url; 400 on a malformed request; 200 with
// the assigned agent_id otherwise (matching router.py::register_agent).
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body")
		return
	}
	if req.AgentName == "" || req.BaseURL == "" || req.Description == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "agent_name, base_url, and description are required")
		return
	}

	resp, err := h.svc.RegisterAgent(req)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyRegistered):
			writeError(w, http.StatusConflict, "AGENT_ALREADY_REGISTERED", err.Error())
		case errors.Is(err, ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		default:
			h.log.Error("register agent failed", "err", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to register agent")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// NewEntries implements GET /register/new_entries: returns a paginated list
// of registered seller profiles for buyer discovery.
func (h *Handler) NewEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	agents := h.svc.ListAgents(limit, offset)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(agents)
}

// Health implements GET /health (SPEC_FULL.md §6, recovered from the e2e
// test suite's health check for the Marketplace).
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{ErrorCode: code, Message: message})
}
