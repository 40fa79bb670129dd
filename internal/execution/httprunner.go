package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/xy-market/seller-node/internal/task"
)

// HTTPRunner implements TaskRunner by delegating to an external "agent
// brain" service over HTTP — the LLM tool-calling graph spec.md §9 calls
// out as a plug-in ("abstract it as an interface with a single run method;
// the core knows nothing about LLMs"). This is the concrete, real-world
// wiring of that interface: the brain service receives the task request as
// JSON and returns a result plus the tools it used.
type HTTPRunner struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPRunner builds an HTTPRunner against baseURL (the agent brain's
// /run endpoint is assumed at baseURL + "/run").
func NewHTTPRunner(baseURL string, httpClient *http.Client) *HTTPRunner {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &HTTPRunner{baseURL: baseURL, httpClient: httpClient}
}

type brainRequest struct {
	TaskDescription string            `json:"task_description"`
	Context         map[string]any    `json:"context,omitempty"`
	Secrets         map[string]string `json:"secrets,omitempty"`
}

type brainResponse struct {
	Result    map[string]any `json:"result"`
	ToolsUsed []string       `json:"tools_used"`
	Error     string         `json:"error,omitempty"`
}

// Run implements TaskRunner.
func (h *HTTPRunner) Run(ctx context.Context, req task.Request) (Outcome, error) {
	body, err := json.Marshal(brainRequest{
		TaskDescription: req.TaskDescription,
		Context:         req.Context,
		Secrets:         req.Secrets,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("encode brain request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("build brain request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return Outcome{}, &Failure{Message: fmt.Sprintf("agent brain unreachable: %v", err)}
	}
	defer resp.Body.Close()

	var decoded brainResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Outcome{}, &Failure{Message: fmt.Sprintf("agent brain returned invalid response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK || decoded.Error != "" {
		msg := decoded.Error
		if msg == "" {
			msg = fmt.Sprintf("agent brain returned status %d", resp.StatusCode)
		}
		return Outcome{}, &Failure{Message: msg}
	}

	return Outcome{Result: decoded.Result, ToolsUsed: decoded.ToolsUsed}, nil
}
