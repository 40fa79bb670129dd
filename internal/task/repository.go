package task

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/xy-market/seller-node/internal/auditsink"
)

// DefaultDeadline is used when a caller does not override the deadline
// (spec §6 Configuration: "default deadline seconds (default 300)").
const DefaultDeadline = 300 * time.Second

// Repository is a concurrent, mutex-guarded table of Task keyed by task id.
// It is the sole source of truth for task state (spec §3, §9): no database
// backs it. An optional audit sink receives best-effort, non-authoritative
// lifecycle notifications (see internal/auditsink and SPEC_FULL.md §4.13).
//
// RejectTerminalTransition controls the §9 open question ("update of
// terminal task"): when false (the default, matching the source's
// documented behavior) a later Update on an already-terminal task
// overwrites it; when true such updates are silently dropped.
type Repository struct {
	mu                       sync.Mutex
	tasks                    map[string]*Task
	defaultDeadline          time.Duration
	audit                    auditsink.Sink
	RejectTerminalTransition bool
}

// NewRepository constructs an empty Repository. A nil sink is replaced with
// auditsink.NoOp.
func NewRepository(defaultDeadline time.Duration, sink auditsink.Sink) *Repository {
	if defaultDeadline <= 0 {
		defaultDeadline = DefaultDeadline
	}
	if sink == nil {
		sink = auditsink.NoOp{}
	}
	return &Repository{
		tasks:           make(map[string]*Task),
		defaultDeadline: defaultDeadline,
		audit:           sink,
	}
}

// newID returns a 128-bit CSPRNG-derived hex string, giving at least the
// 122 bits of entropy spec §3/§8 require. task_id and buyer_secret are drawn
// from independent calls, so they carry independent entropy even though both
// ultimately read crypto/rand.
func newID() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}

// Create allocates a new task, returning its id and buyer secret. deadline
// of zero uses the repository default.
func (r *Repository) Create(req Request, deadline time.Duration) (taskID, buyerSecret string, createdAt, expiresAt time.Time, err error) {
	taskID, err = newID()
	if err != nil {
		return "", "", time.Time{}, time.Time{}, err
	}
	buyerSecret, err = newID()
	if err != nil {
		return "", "", time.Time{}, time.Time{}, err
	}
	if deadline <= 0 {
		deadline = r.defaultDeadline
	}
	now := time.Now().UTC()
	exp := now.Add(deadline)

	t := &Task{
		TaskID:      taskID,
		BuyerSecret: buyerSecret,
		Status:      StatusInProgress,
		Request:     req,
		CreatedAt:   now,
		ExpiresAt:   exp,
	}

	r.mu.Lock()
	r.tasks[taskID] = t
	r.mu.Unlock()

	r.audit.Record(auditsink.Event{TaskID: taskID, Event: "created", Status: string(StatusInProgress), OccurredAt: now})
	return taskID, buyerSecret, now, exp, nil
}

// ErrNotFound is a sentinel used by Get; callers should present it to buyers
// identically whether the id is unknown or the secret is wrong (spec §3, §8:
// the two cases must be indistinguishable externally).
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "task not found" }

// Get returns a defensive snapshot of the task if taskID exists and
// buyerSecret matches. Both failure modes return ErrNotFound identically.
// The snapshot is taken while r.mu is still held so a concurrent Update or
// SweepExpired on the same task can never be observed mid-write (spec §3,
// §4.1: "all observers see a consistent Task snapshot; no torn reads across
// fields").
func (r *Repository) Get(taskID, buyerSecret string) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok || !secretsEqual(t.BuyerSecret, buyerSecret) {
		return Snapshot{}, ErrNotFound
	}
	return t.snapshot(), nil
}

// Update applies a single authoritative terminal (or no-op in-progress)
// transition. Updates to a nonexistent id are silent no-ops (spec §4.1).
func (r *Repository) Update(taskID string, status Status, result map[string]any, taskErr *Error, executionTimeMs *int64, toolsUsed []string) {
	r.mu.Lock()
	t, ok := r.tasks[taskID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if r.RejectTerminalTransition && t.Status != StatusInProgress {
		r.mu.Unlock()
		return
	}
	t.Status = status
	t.Result = result
	t.Error = taskErr
	t.ExecutionTimeMs = executionTimeMs
	t.ToolsUsed = toolsUsed
	r.mu.Unlock()

	r.audit.Record(auditsink.Event{TaskID: taskID, Event: "updated", Status: string(status), OccurredAt: time.Now().UTC()})
}

// SweepExpired transitions every in-progress task whose deadline has passed
// to StatusFailed with ErrorKindDeadlineExceeded, returning the count
// transitioned (spec §4.1, §8 scenario 3).
func (r *Repository) SweepExpired() int {
	now := time.Now().UTC()
	var expired []string

	r.mu.Lock()
	for id, t := range r.tasks {
		if t.Status == StatusInProgress && !now.Before(t.ExpiresAt) {
			t.Status = StatusFailed
			t.Error = &Error{Kind: ErrorKindDeadlineExceeded, Message: "task deadline exceeded"}
			expired = append(expired, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		r.audit.Record(auditsink.Event{TaskID: id, Event: "expired", Status: string(StatusFailed), OccurredAt: now})
	}
	return len(expired)
}

// secretsEqual performs a length-revealing but constant-time-per-length
// comparison, recommended but not required by spec §9.
func secretsEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := 0; i < len(a); i++ {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
