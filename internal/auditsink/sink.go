// Package auditsink mirrors task lifecycle events to an optional durable
// store for observability. It is never a read path: the in-memory task
// repository remains the sole source of truth, and every Sink implementation
// here is best-effort — a failing or absent sink must never block or fail a
// task operation (SPEC_FULL.md §4.13).
package auditsink

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event is the supplemental AuditEvent record of SPEC_FULL.md §3.
type Event struct {
	TaskID     string
	Event      string
	Status     string
	OccurredAt time.Time
}

// Sink receives best-effort notifications. Record must not block its caller
// for long and must never panic.
type Sink interface {
	Record(Event)
}

// NoOp discards every event. It is the default Sink when no durable store is
// configured, and the Sink used throughout tests.
type NoOp struct{}

// Record implements Sink.
func (NoOp) Record(Event) {}

// PostgresSink mirrors events into a `task_audit_events` table via pgx. Writes
// run on a short-lived timeout in a detached goroutine so a slow or down
// database never adds latency to the task path it is observing.
type PostgresSink struct {
	pool   *pgxpool.Pool
	log    *slog.Logger
	timeout time.Duration
}

// NewPostgresSink wraps an already-connected pool. Callers are responsible
// for running the `task_audit_events` migration ahead of time.
func NewPostgresSink(pool *pgxpool.Pool, log *slog.Logger) *PostgresSink {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresSink{pool: pool, log: log, timeout: 2 * time.Second}
}

// Record implements Sink. Failures are logged at warn level and otherwise
// swallowed — the audit trail is additive, never authoritative.
func (s *PostgresSink) Record(ev Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		_, err := s.pool.Exec(ctx, `
			INSERT INTO task_audit_events (task_id, event, status, occurred_at)
			VALUES ($1, $2, $3, $4)
		`, ev.TaskID, ev.Event, ev.Status, ev.OccurredAt)
		if err != nil {
			s.log.Warn("audit sink write failed", "task_id", ev.TaskID, "event", ev.Event, "err", err)
		}
	}()
}
