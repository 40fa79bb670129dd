// Package execution drives asynchronous task execution: create_task returns
// immediately with status in_progress while a background worker invokes the
// configured TaskRunner (the "agent brain" — spec.md §4.1 calls it an
// external collaborator) and records the outcome.
package execution

import (
	"context"

	"github.com/xy-market/seller-node/internal/task"
)

// Outcome is what a TaskRunner produces on success.
type Outcome struct {
	Result    map[string]any
	ToolsUsed []string
}

// Failure is returned by a TaskRunner when execution fails for a reason that
// should be reported to the buyer rather than treated as a bug in this
// service (spec.md §7 ErrorKind: ExecutionFailed). Kind is optional; when set
// it overrides the default type-name-derived error kind (spec.md §4.2) with
// a label the runner considers more meaningful (e.g. a remote brain's own
// error type).
type Failure struct {
	Kind    string
	Message string
}

func (f *Failure) Error() string { return f.Message }

// TaskRunner executes a single task's described work. Implementations plug
// in the actual "agent brain" (an LLM agent graph in the source system);
// this package only owns the scheduling and bookkeeping around it.
type TaskRunner interface {
	Run(ctx context.Context, req task.Request) (Outcome, error)
}

// TaskRunnerFunc adapts a function to TaskRunner.
type TaskRunnerFunc func(ctx context.Context, req task.Request) (Outcome, error)

// Run implements TaskRunner.
func (f TaskRunnerFunc) Run(ctx context.Context, req task.Request) (Outcome, error) {
	return f(ctx, req)
}
