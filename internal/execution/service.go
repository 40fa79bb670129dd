package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/xy-market/seller-node/internal/task"
)

// DefaultMaxConcurrentTasks matches the teacher's sizing instinct for a
// single-process worker pool, generalized from a fixed job-queue concurrency
// to spec.md §5's "max_concurrent_tasks (default 256)".
const DefaultMaxConcurrentTasks = 256

// Service is the in-process analogue of the source's ExecutionService: it
// owns the task repository and a bounded pool of background goroutines, one
// per in-flight task.
type Service struct {
	repo   *task.Repository
	runner TaskRunner
	log    *slog.Logger

	sem *semaphore.Weighted
	grp *errgroup.Group
	ctx context.Context
}

// NewService wires a repository and TaskRunner together. maxConcurrent <= 0
// uses DefaultMaxConcurrentTasks.
func NewService(ctx context.Context, repo *task.Repository, runner TaskRunner, maxConcurrent int64, log *slog.Logger) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentTasks
	}
	if log == nil {
		log = slog.Default()
	}
	grp, grpCtx := errgroup.WithContext(ctx)
	return &Service{
		repo:   repo,
		runner: runner,
		log:    log,
		sem:    semaphore.NewWeighted(maxConcurrent),
		grp:    grp,
		ctx:    grpCtx,
	}
}

// CreateTask creates a task and dispatches its execution to a background
// worker, returning the initial in_progress snapshot immediately (spec.md
// §4.1: create_task never blocks on execution).
//
// If the concurrency budget is exhausted, the task is still created and
// marked in_progress — the worker goroutine blocks on the semaphore until a
// slot frees, matching the source's unbounded asyncio.create_task fire-and-
// forget model while still capping real parallelism.
func (s *Service) CreateTask(req task.Request, deadline time.Duration) (taskID, buyerSecret string, createdAt, expiresAt time.Time, err error) {
	taskID, buyerSecret, createdAt, expiresAt, err = s.repo.Create(req, deadline)
	if err != nil {
		return "", "", time.Time{}, time.Time{}, err
	}

	s.grp.Go(func() error {
		s.execute(taskID, req)
		return nil
	})

	return taskID, buyerSecret, createdAt, expiresAt, nil
}

// GetTask is a thin pass-through to the repository, kept here so callers
// depend on Service rather than reaching into the repository directly.
func (s *Service) GetTask(taskID, buyerSecret string) (task.Snapshot, error) {
	return s.repo.Get(taskID, buyerSecret)
}

// SweepExpired delegates to the repository; exposed so the janitor can drive
// it through Service rather than holding a repository reference of its own.
func (s *Service) SweepExpired() int {
	return s.repo.SweepExpired()
}

// Shutdown waits up to grace for in-flight workers to finish, then returns
// without further waiting (spec.md §5: "await in-flight workers up to a
// grace period; then forcibly abandon").
func (s *Service) Shutdown(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		_ = s.grp.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		s.log.Warn("shutdown grace period elapsed with workers still running")
	}
}

func (s *Service) execute(taskID string, req task.Request) {
	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		// Context cancelled (shutdown in progress) before a slot freed.
		s.repo.Update(taskID, task.StatusFailed, nil,
			&task.Error{Kind: task.ErrorKindExecutionFailed, Message: "execution cancelled before start"}, nil, nil)
		return
	}
	defer s.sem.Release(1)

	start := time.Now()
	outcome, err := s.runner.Run(s.ctx, req)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		s.log.Error("task execution failed", "task_id", taskID, "err", err)
		s.repo.Update(taskID, task.StatusFailed, nil,
			&task.Error{Kind: errorKind(err), Message: err.Error()}, &elapsed, nil)
		return
	}

	s.repo.Update(taskID, task.StatusDone, outcome.Result, nil, &elapsed, outcome.ToolsUsed)
}

// errorKind labels a runner failure with the name of its underlying Go type
// (spec.md §4.2: "arbitrary exceptions classified ... with a kind label
// equal to the exception's type name" — the source does this literally via
// Python's type(e).__name__). A *Failure with an explicit Kind set always
// wins; otherwise the unqualified Go type name of err is used.
func errorKind(err error) task.ErrorKind {
	var failure *Failure
	if errors.As(err, &failure) && failure.Kind != "" {
		return task.ErrorKind(failure.Kind)
	}
	name := fmt.Sprintf("%T", err)
	name = strings.TrimPrefix(name, "*")
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return task.ErrorKind(name)
}
