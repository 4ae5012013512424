package syncqueue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := Open(filepath.Join(t.TempDir(), "sync.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestFlushRunsHandlersInOrder(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	var got []string
	q.Register("upload", func(ctx context.Context, payload []byte) error {
		got = append(got, string(payload))
		return nil
	})

	for _, p := range []string{"a", "b", "c"} {
		if _, err := q.Enqueue(ctx, "upload", []byte(p)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	done, err := q.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if done != 3 {
		t.Fatalf("done = %d, want 3", done)
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("order = %v, want [a b c]", got)
	}
	if n, _ := q.Pending(ctx); n != 0 {
		t.Fatalf("pending = %d after drain, want 0", n)
	}
}

func TestFlushFailureBlocksSameKindOnly(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	var uploads, edits int
	q.Register("upload", func(ctx context.Context, payload []byte) error {
		uploads++
		return errors.New("offline")
	})
	q.Register("edit", func(ctx context.Context, payload []byte) error {
		edits++
		return nil
	})

	for i := 0; i < 2; i++ {
		if _, err := q.Enqueue(ctx, "upload", []byte("p")); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if _, err := q.Enqueue(ctx, "edit", []byte("e")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	done, err := q.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if uploads != 1 {
		t.Fatalf("uploads = %d, want 1 (second blocked to preserve order)", uploads)
	}
	if edits != 1 || done != 1 {
		t.Fatalf("edits = %d done = %d, want independent kind to drain", edits, done)
	}
	if n, _ := q.Pending(ctx); n != 2 {
		t.Fatalf("pending = %d, want 2 retained uploads", n)
	}
}

func TestBackoffDefersRetry(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	base := time.Now()
	q.now = func() time.Time { return base }

	calls := 0
	q.Register("upload", func(ctx context.Context, payload []byte) error {
		calls++
		return errors.New("offline")
	})
	if _, err := q.Enqueue(ctx, "upload", []byte("p")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := q.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	// still inside the 2s backoff window: op is not due
	if _, err := q.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 before backoff elapses", calls)
	}

	q.now = func() time.Time { return base.Add(3 * time.Second) }
	if _, err := q.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 after backoff", calls)
	}
}

func TestAttemptCapDropsOp(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()
	q.maxAttempts = 3

	clock := time.Now()
	q.now = func() time.Time { return clock }

	calls := 0
	q.Register("upload", func(ctx context.Context, payload []byte) error {
		calls++
		return errors.New("offline")
	})
	if _, err := q.Enqueue(ctx, "upload", []byte("p")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	for i := 0; i < 6; i++ {
		if _, err := q.Flush(ctx); err != nil {
			t.Fatalf("Flush: %v", err)
		}
		clock = clock.Add(10 * time.Minute)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want capped at 3", calls)
	}
	if n, _ := q.Pending(ctx); n != 0 {
		t.Fatalf("pending = %d, want exhausted op dropped", n)
	}
}

func TestDelaySchedule(t *testing.T) {
	want := []time.Duration{0, 2 * time.Second, 5 * time.Second, 15 * time.Second, 60 * time.Second, 5 * time.Minute}
	for i, w := range want {
		if got := delayFor(i); got != w {
			t.Fatalf("delayFor(%d) = %v, want %v", i, got, w)
		}
	}
	if got := delayFor(99); got != 5*time.Minute {
		t.Fatalf("delayFor(99) = %v, want clamp to 5m", got)
	}
}

func TestUnregisteredKindStaysQueued(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "mystery", []byte("p")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	done, err := q.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if done != 0 {
		t.Fatalf("done = %d, want 0", done)
	}
	if n, _ := q.Pending(ctx); n != 1 {
		t.Fatalf("pending = %d, want op retained", n)
	}
}
