// Package syncqueue is the durable deferred-operation queue used on the
// client side of the app: photo uploads, item edits and generation
// requests survive restarts in a local SQLite file and drain when
// connectivity returns.
package syncqueue

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// Handler executes one deferred operation. A nil return removes the
// operation; an error reschedules it with backoff.
type Handler func(ctx context.Context, payload []byte) error

// backoffSchedule spaces retries out; attempts beyond the table reuse the
// last delay.
var backoffSchedule = []time.Duration{
	0,
	2 * time.Second,
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
	5 * time.Minute,
}

const defaultMaxAttempts = 8

const schemaSQL = `
create table if not exists ops (
	id         integer primary key autoincrement,
	kind       text    not null,
	payload    blob    not null,
	attempts   integer not null default 0,
	not_before integer not null default 0,
	last_error text,
	created_at integer not null
);
create index if not exists ops_kind_idx on ops (kind, id);
`

// Queue is a single-writer persistent op queue. Handlers are registered
// per kind before the first Flush.
type Queue struct {
	db          *sql.DB
	logger      *slog.Logger
	maxAttempts int
	now         func() time.Time

	mu       sync.Mutex
	handlers map[string]Handler
	draining atomic.Bool
}

// Open creates or reopens the queue file. ":memory:" works for tests.
func Open(path string, logger *slog.Logger) (*Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sync queue: %w", err)
	}
	// the queue is inherently single-writer
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sync queue schema: %w", err)
	}
	return &Queue{
		db:          db,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
		handlers:    make(map[string]Handler),
	}, nil
}

func (q *Queue) Close() error { return q.db.Close() }

// Register binds a handler to an operation kind. Ops of unregistered
// kinds stay queued untouched.
func (q *Queue) Register(kind string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = h
}

// Enqueue persists one operation and returns its id. The op becomes
// eligible immediately.
func (q *Queue) Enqueue(ctx context.Context, kind string, payload []byte) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		insert into ops (kind, payload, created_at) values (?, ?, ?)`,
		kind, payload, q.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	q.logger.Debug("syncqueue.enqueued", "op_id", id, "kind", kind)
	return id, nil
}

// Pending counts queued operations, due or not.
func (q *Queue) Pending(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `select count(*) from ops`).Scan(&n)
	return n, err
}

// Draining reports whether a Flush is currently running, for UI state.
func (q *Queue) Draining() bool { return q.draining.Load() }

type op struct {
	id       int64
	kind     string
	payload  []byte
	attempts int
}

// Flush drains every due operation in insertion order. Operations of the
// same kind stay strictly ordered: one failure parks the rest of its kind
// until the next flush. Returns the number of ops that succeeded.
func (q *Queue) Flush(ctx context.Context) (int, error) {
	if !q.draining.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer q.draining.Store(false)

	nowMs := q.now().UnixMilli()
	rows, err := q.db.QueryContext(ctx, `
		select id, kind, payload, attempts
		  from ops
		 where not_before <= ?
		 order by id asc`, nowMs)
	if err != nil {
		return 0, fmt.Errorf("select due ops: %w", err)
	}
	var due []op
	for rows.Next() {
		var o op
		if err := rows.Scan(&o.id, &o.kind, &o.payload, &o.attempts); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan op: %w", err)
		}
		due = append(due, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	done := 0
	blocked := make(map[string]bool)
	for _, o := range due {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if blocked[o.kind] {
			continue
		}
		q.mu.Lock()
		h, ok := q.handlers[o.kind]
		q.mu.Unlock()
		if !ok {
			continue
		}

		if err := h(ctx, o.payload); err != nil {
			blocked[o.kind] = true
			if rerr := q.reschedule(ctx, o, err); rerr != nil {
				return done, rerr
			}
			continue
		}
		if _, err := q.db.ExecContext(ctx, `delete from ops where id = ?`, o.id); err != nil {
			return done, fmt.Errorf("delete op %d: %w", o.id, err)
		}
		done++
	}
	if done > 0 || len(blocked) > 0 {
		q.logger.Info("syncqueue.flush", "done", done, "blocked_kinds", len(blocked))
	}
	return done, nil
}

func (q *Queue) reschedule(ctx context.Context, o op, cause error) error {
	attempts := o.attempts + 1
	if attempts >= q.maxAttempts {
		q.logger.Error("syncqueue.op_dropped", "op_id", o.id, "kind", o.kind,
			"attempts", attempts, "error", cause)
		_, err := q.db.ExecContext(ctx, `delete from ops where id = ?`, o.id)
		return err
	}
	delay := delayFor(attempts)
	notBefore := q.now().Add(delay).UnixMilli()
	q.logger.Warn("syncqueue.op_retry", "op_id", o.id, "kind", o.kind,
		"attempts", attempts, "delay", delay.String(), "error", cause)
	_, err := q.db.ExecContext(ctx, `
		update ops set attempts = ?, not_before = ?, last_error = ? where id = ?`,
		attempts, notBefore, cause.Error(), o.id)
	return err
}

// delayFor maps an attempt count onto the backoff schedule.
func delayFor(attempt int) time.Duration {
	if attempt < 0 {
		return backoffSchedule[0]
	}
	if attempt >= len(backoffSchedule) {
		return backoffSchedule[len(backoffSchedule)-1]
	}
	return backoffSchedule[attempt]
}
