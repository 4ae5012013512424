package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/contractor-tools/estimator/constants"
	"github.com/contractor-tools/estimator/internal/common"
	"github.com/contractor-tools/estimator/internal/entity"
	"github.com/contractor-tools/estimator/internal/estimate"
)

type fakeQueue struct {
	mu        sync.Mutex
	pending   []*entity.QueueEntry
	completed []uuid.UUID
	released  []string
	failed    []string
}

func (f *fakeQueue) Enqueue(ctx context.Context, jobID, workspaceID uuid.UUID, maxAttempts int) (*entity.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := &entity.QueueEntry{
		ID:          uuid.New(),
		JobID:       jobID,
		WorkspaceID: workspaceID,
		Status:      constants.QueueStatusPending,
		MaxAttempts: maxAttempts,
	}
	f.pending = append(f.pending, e)
	return e, nil
}

func (f *fakeQueue) ClaimNext(ctx context.Context) (*entity.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return nil, nil
	}
	e := f.pending[0]
	f.pending = f.pending[1:]
	e.Status = constants.QueueStatusRunning
	e.Attempts++
	return e, nil
}

func (f *fakeQueue) ClaimByJob(ctx context.Context, jobID uuid.UUID) (*entity.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.pending {
		if e.JobID == jobID {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			e.Status = constants.QueueStatusRunning
			e.Attempts++
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeQueue) Complete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeQueue) Release(ctx context.Context, id uuid.UUID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, message)
	return nil
}

func (f *fakeQueue) Fail(ctx context.Context, id uuid.UUID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, message)
	return nil
}

type fakeGen struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeGen) GenerateLeased(ctx context.Context, jobID uuid.UUID) (*estimate.Generation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &estimate.Generation{}, nil
}

func entry(attempts, maxAttempts int) *entity.QueueEntry {
	return &entity.QueueEntry{
		ID:          uuid.New(),
		JobID:       uuid.New(),
		WorkspaceID: uuid.New(),
		Status:      constants.QueueStatusRunning,
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
	}
}

func TestProcessSuccessDeletesEntry(t *testing.T) {
	q := &fakeQueue{}
	g := &fakeGen{}
	r := NewRunner(q, g, Config{}, nil)

	e := entry(1, 3)
	r.process(context.Background(), e)

	if len(q.completed) != 1 || q.completed[0] != e.ID {
		t.Fatalf("completed = %v, want entry deleted", q.completed)
	}
	if len(q.released) != 0 || len(q.failed) != 0 {
		t.Fatalf("unexpected release/fail on success")
	}
}

func TestProcessRetryableErrorReleases(t *testing.T) {
	q := &fakeQueue{}
	g := &fakeGen{err: errors.New("llm timeout")}
	r := NewRunner(q, g, Config{}, nil)

	r.process(context.Background(), entry(1, 3))

	if len(q.released) != 1 {
		t.Fatalf("released = %v, want one retry release", q.released)
	}
	if len(q.failed) != 0 {
		t.Fatalf("entry failed permanently before budget exhausted")
	}
}

func TestProcessBudgetExhaustedFails(t *testing.T) {
	q := &fakeQueue{}
	g := &fakeGen{err: errors.New("llm timeout")}
	r := NewRunner(q, g, Config{}, nil)

	r.process(context.Background(), entry(3, 3))

	if len(q.failed) != 1 {
		t.Fatalf("failed = %v, want permanent failure at attempt budget", q.failed)
	}
	if len(q.released) != 0 {
		t.Fatalf("entry released past its attempt budget")
	}
}

func TestProcessPermanentErrorSkipsRetry(t *testing.T) {
	q := &fakeQueue{}
	g := &fakeGen{err: common.NewAppError("SUBSCRIPTION_REQUIRED", "no access", common.ErrPaymentRequired)}
	r := NewRunner(q, g, Config{}, nil)

	r.process(context.Background(), entry(1, 3))

	if len(q.failed) != 1 {
		t.Fatalf("failed = %v, want immediate permanent failure", q.failed)
	}
	if len(q.released) != 0 {
		t.Fatalf("non-retryable error was retried")
	}
}

func TestProcessJobDirectMode(t *testing.T) {
	q := &fakeQueue{}
	g := &fakeGen{}
	r := NewRunner(q, g, Config{}, nil)

	jobID := uuid.New()
	if _, err := q.Enqueue(context.Background(), jobID, uuid.New(), 3); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	ran, err := r.ProcessJob(context.Background(), jobID)
	if err != nil || !ran {
		t.Fatalf("ProcessJob = (%v, %v), want (true, nil)", ran, err)
	}
	if g.calls != 1 {
		t.Fatalf("generator calls = %d, want 1", g.calls)
	}

	ran, err = r.ProcessJob(context.Background(), jobID)
	if err != nil || ran {
		t.Fatalf("second ProcessJob = (%v, %v), want (false, nil) with nothing pending", ran, err)
	}
}

func TestRunDrainsThenIdles(t *testing.T) {
	q := &fakeQueue{}
	g := &fakeGen{}
	r := NewRunner(q, g, Config{PollInterval: 5 * time.Millisecond}, nil)

	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(context.Background(), uuid.New(), uuid.New(), 3); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		q.mu.Lock()
		n := len(q.completed)
		q.mu.Unlock()
		if n == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("runner did not drain queue, completed=%d", n)
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}
