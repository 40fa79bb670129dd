// Package task implements the in-memory async task repository described in
// spec §3 and §4.1: a capability-secured, single-writer table keyed by task
// id, with deadline tracking and terminal-state semantics.
package task

import "time"

// Status is one of the three states a task can occupy. It is monotonic into
// a terminal state only from StatusInProgress (spec §3 invariant).
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// ErrorKind names the reason a task entered StatusFailed. The constants
// below mirror the error kinds of spec §7; a runner failure instead carries
// the runner error's Go type name, or the Kind of an execution.Failure when
// one is set (see execution.errorKind).
type ErrorKind string

const (
	ErrorKindExecutionFailed  ErrorKind = "ExecutionFailed"
	ErrorKindDeadlineExceeded ErrorKind = "DeadlineExceeded"
)

// Request is the immutable task description a buyer submits to /execute.
// Secrets must never be logged; callers are responsible for scrubbing before
// any log sink sees a Request (see internal/logging).
type Request struct {
	TaskDescription string                 `json:"task_description"`
	Context         map[string]any         `json:"context,omitempty"`
	Secrets         map[string]string      `json:"secrets,omitempty"`
	Metadata        map[string]any         `json:"-"`
}

// Error is the structured failure reason populated when Status is
// StatusFailed.
type Error struct {
	Kind    ErrorKind `json:"type"`
	Message string    `json:"message"`
}

// Task is the full server-side record. TaskID and BuyerSecret are drawn from
// independent 122-bit-or-better CSPRNG sources (spec §3, §8).
type Task struct {
	TaskID          string         `json:"task_id"`
	BuyerSecret     string         `json:"-"`
	Status          Status         `json:"status"`
	Request         Request        `json:"-"`
	Result          map[string]any `json:"result,omitempty"`
	Error           *Error         `json:"error,omitempty"`
	ToolsUsed       []string       `json:"tools_used,omitempty"`
	ExecutionTimeMs *int64         `json:"execution_time_ms,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	ExpiresAt       time.Time      `json:"expires_at"`
}

// Snapshot is a defensive copy safe to hand to callers outside the
// repository's lock. It never carries BuyerSecret: only Repository.Create
// returns the secret, and the /execute handler puts it in the creation
// response itself (spec §3 invariant).
type Snapshot struct {
	Task
}

func (t Task) snapshot() Snapshot {
	out := t
	out.BuyerSecret = ""
	if len(t.Result) > 0 {
		out.Result = make(map[string]any, len(t.Result))
		for k, v := range t.Result {
			out.Result[k] = v
		}
	}
	if len(t.ToolsUsed) > 0 {
		out.ToolsUsed = append([]string(nil), t.ToolsUsed...)
	}
	if t.Error != nil {
		errCopy := *t.Error
		out.Error = &errCopy
	}
	return Snapshot{Task: out}
}
