package repository

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contractor-tools/estimator/internal/entity"
)

// These tests need a real Postgres because the single-flight guarantees
// under test live in the SQL (the partial unique pending index and the
// FOR UPDATE SKIP LOCKED claim), not in Go code. Set TEST_DB_URL to run
// them; migrations are applied on the target database.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_URL")
	if dsn == "" {
		t.Skip("TEST_DB_URL not set; skipping database integration test")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool, err := Open(context.Background(), Config{
		DSN:             dsn,
		MaxConns:        8,
		MinConns:        1,
		MaxConnLifetime: time.Minute,
		MaxConnIdleTime: time.Minute,
		DialTimeout:     3 * time.Second,
	}, logger)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := Migrate(pool, "../../db/migrations", logger); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return pool
}

func seedJob(t *testing.T, pool *pgxpool.Pool) (workspaceID, jobID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	workspaceID, jobID = uuid.New(), uuid.New()
	if _, err := pool.Exec(ctx,
		`insert into workspaces (id, name, subscription_active) values ($1, 'queue test', true)`,
		workspaceID); err != nil {
		t.Fatalf("seeding workspace: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`insert into jobs (id, workspace_id, title) values ($1, $2, 'single flight')`,
		jobID, workspaceID); err != nil {
		t.Fatalf("seeding job: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `delete from estimate_queue where job_id = $1`, jobID)
		_, _ = pool.Exec(ctx, `delete from jobs where id = $1`, jobID)
		_, _ = pool.Exec(ctx, `delete from workspaces where id = $1`, workspaceID)
	})
	return workspaceID, jobID
}

func pendingCount(t *testing.T, pool *pgxpool.Pool, jobID uuid.UUID) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(),
		`select count(*) from estimate_queue where job_id = $1 and status = 'pending'`,
		jobID).Scan(&n)
	if err != nil {
		t.Fatalf("counting pending entries: %v", err)
	}
	return n
}

func TestEnqueueDedupsConcurrently(t *testing.T) {
	pool := openTestPool(t)
	workspaceID, jobID := seedJob(t, pool)
	repo := NewQueueRepository(pool, nil)
	ctx := context.Background()

	const racers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		entries []*entity.QueueEntry
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := repo.Enqueue(ctx, jobID, workspaceID, 3)
			if err != nil {
				t.Errorf("Enqueue: %v", err)
				return
			}
			mu.Lock()
			entries = append(entries, entry)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(entries) != racers {
		t.Fatalf("got %d entries, want %d", len(entries), racers)
	}
	for _, e := range entries {
		if e.ID != entries[0].ID {
			t.Fatalf("enqueue returned two distinct entries for one job: %s and %s", entries[0].ID, e.ID)
		}
	}
	if n := pendingCount(t, pool, jobID); n != 1 {
		t.Fatalf("pending entries = %d, want 1", n)
	}
}

func TestClaimByJobSingleWinner(t *testing.T) {
	pool := openTestPool(t)
	workspaceID, jobID := seedJob(t, pool)
	repo := NewQueueRepository(pool, nil)
	ctx := context.Background()

	if _, err := repo.Enqueue(ctx, jobID, workspaceID, 3); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	const racers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed []*entity.QueueEntry
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := repo.ClaimByJob(ctx, jobID)
			if err != nil {
				t.Errorf("ClaimByJob: %v", err)
				return
			}
			if entry != nil {
				mu.Lock()
				claimed = append(claimed, entry)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(claimed) != 1 {
		t.Fatalf("claims won = %d, want exactly 1", len(claimed))
	}
	if claimed[0].Attempts != 1 {
		t.Fatalf("attempts = %d, want 1 after first lease", claimed[0].Attempts)
	}

	// The lease is held; a second pass must find nothing to claim.
	entry, err := repo.ClaimByJob(ctx, jobID)
	if err != nil {
		t.Fatalf("ClaimByJob after lease: %v", err)
	}
	if entry != nil {
		t.Fatalf("claimed a running entry: %+v", entry)
	}
}
