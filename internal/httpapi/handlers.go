// Package httpapi exposes the Seller node's HTTP surface (spec.md §4,
// SPEC_FULL.md §2): POST /execute, GET /tasks/{id}, GET /pricing, GET
// /health, GET /openapi.json, wired through the rate-limit and payment
// middleware chain in that order.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/xy-market/seller-node/internal/execution"
	"github.com/xy-market/seller-node/internal/payment"
	"github.com/xy-market/seller-node/internal/schemaval"
	"github.com/xy-market/seller-node/internal/task"
)

// Handler exposes the Seller node's task and pricing endpoints.
type Handler struct {
	svc             *execution.Service
	validator       *schemaval.Validator
	pricing         payment.PricingTable
	defaultDeadline time.Duration
	log             *slog.Logger
}

// NewHandler wires an execution.Service and the optional operation schema
// validator into a Handler. validator may be nil (no operations have a
// schema, so every request passes).
func NewHandler(svc *execution.Service, validator *schemaval.Validator, pricing payment.PricingTable, defaultDeadline time.Duration, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if validator == nil {
		validator, _ = schemaval.NewValidator("")
	}
	return &Handler{svc: svc, validator: validator, pricing: pricing, defaultDeadline: defaultDeadline, log: log}
}

type executeRequest struct {
	TaskDescription string            `json:"task_description"`
	Context         map[string]any    `json:"context,omitempty"`
	Secrets         map[string]string `json:"secrets,omitempty"`
	OperationID     string            `json:"operation_id,omitempty"`
	DeadlineSeconds int               `json:"deadline_seconds,omitempty"`
}

// taskEnvelope is the wire shape of both the /execute 202 response and the
// GET /tasks/{id} polling response (spec.md §4.6/§4.7, matching the source's
// ExecutionResult model). buyer_secret is only ever populated on creation —
// never on a subsequent poll (spec.md §3 invariant: "buyer_secret is never
// returned outside the initial creation response").
type taskEnvelope struct {
	TaskID          string         `json:"task_id"`
	BuyerSecret     string         `json:"buyer_secret,omitempty"`
	Status          string         `json:"status"`
	Data            map[string]any `json:"data"`
	ExecutionTimeMs *int64         `json:"execution_time_ms"`
	Error           *task.Error    `json:"error"`
	CreatedAt       time.Time      `json:"created_at"`
	DeadlineAt      time.Time      `json:"deadline_at"`
}

// Execute implements POST /execute (spec.md §8 scenario 1): validates the
// request body, optionally validates context against an operation schema,
// creates the task, and returns 202 with the capability token immediately
// without waiting for execution.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "malformed JSON body")
		return
	}
	if req.TaskDescription == "" {
		writeError(w, http.StatusBadRequest, "ValidationError", "task_description is required")
		return
	}

	if err := h.validator.Validate(req.OperationID, req.Context); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "ValidationError", err.Error())
		return
	}

	deadline := h.defaultDeadline
	if req.DeadlineSeconds > 0 {
		deadline = time.Duration(req.DeadlineSeconds) * time.Second
	}

	taskID, buyerSecret, createdAt, deadlineAt, err := h.svc.CreateTask(task.Request{
		TaskDescription: req.TaskDescription,
		Context:         req.Context,
		Secrets:         req.Secrets,
	}, deadline)
	if err != nil {
		h.log.Error("create task failed", "err", err)
		writeError(w, http.StatusInternalServerError, "EXECUTION_FAILED", "failed to create task")
		return
	}

	writeJSON(w, http.StatusAccepted, taskEnvelope{
		TaskID:      taskID,
		BuyerSecret: buyerSecret,
		Status:      string(task.StatusInProgress),
		Data:        map[string]any{},
		CreatedAt:   createdAt,
		DeadlineAt:  deadlineAt,
	})
}

// GetTask implements GET /tasks/{id} (spec.md §8 scenarios 1–3): the
// X-Buyer-Secret header is the sole proof of ownership. A header that is
// entirely absent is a 422 (spec.md §7 Unauthorized: "historical artifact"
// from the source's required-header validation); a present-but-wrong secret
// is indistinguishable from an unknown id, both yielding 404 TASK_NOT_FOUND.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	taskID := r.PathValue("id")
	if _, present := r.Header["X-Buyer-Secret"]; !present {
		writeError(w, http.StatusUnprocessableEntity, "Unauthorized", "X-Buyer-Secret header is required")
		return
	}
	buyerSecret := r.Header.Get("X-Buyer-Secret")

	snapshot, err := h.svc.GetTask(taskID, buyerSecret)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeError(w, http.StatusNotFound, "TASK_NOT_FOUND", "task not found")
			return
		}
		h.log.Error("get task failed", "err", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to fetch task")
		return
	}

	// data is the runner's own result map, not a result nested inside it
	// (source: to_execution_result sets data = self.result or {}), with
	// tools_used merged in if the runner didn't already report one under
	// that key.
	data := snapshot.Result
	if data == nil {
		data = map[string]any{}
	}
	if _, present := data["tools_used"]; !present {
		toolsUsed := snapshot.ToolsUsed
		if toolsUsed == nil {
			toolsUsed = []string{}
		}
		data["tools_used"] = toolsUsed
	}

	writeJSON(w, http.StatusOK, taskEnvelope{
		TaskID:          snapshot.TaskID,
		Status:          string(snapshot.Status),
		Data:            data,
		ExecutionTimeMs: snapshot.ExecutionTimeMs,
		Error:           snapshot.Error,
		CreatedAt:       snapshot.CreatedAt,
		DeadlineAt:      snapshot.ExpiresAt,
	})
}

// Pricing implements GET /pricing: exposes the pricing table so a Buyer can
// discover the cost of an operation before calling it.
func (h *Handler) Pricing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.pricing)
}

// Health implements GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"type": errType, "message": message},
	})
}
