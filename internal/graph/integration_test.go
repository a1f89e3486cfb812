package graph

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/onnwee/forcemap/internal/db"
)

// integrationQueries opens the test database or skips. The caller gets a
// graph created for it and cleaned up afterwards.
func integrationQueries(t *testing.T) (*db.Queries, db.Graph) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	q := db.New(conn)
	ctx := context.Background()
	g, err := q.CreateGraph(ctx, db.CreateGraphParams{
		Name:       fmt.Sprintf("integration-%s", uuid.NewString()),
		Dimensions: 2,
	})
	if err != nil {
		t.Fatalf("create graph: %v", err)
	}
	t.Cleanup(func() {
		if err := q.DeleteGraph(context.Background(), g.ID); err != nil {
			t.Logf("cleanup: delete graph: %v", err)
		}
	})
	return q, g
}

func seedRing(t *testing.T, q *db.Queries, graphID uuid.UUID, n int) {
	t.Helper()
	ctx := context.Background()
	nodes := make([]db.NodeUpsert, 0, n)
	links := make([]db.LinkInsert, 0, n)
	for i := 0; i < n; i++ {
		nodes = append(nodes, db.NodeUpsert{ID: fmt.Sprintf("n%d", i), Size: 1})
		links = append(links, db.LinkInsert{
			Source: fmt.Sprintf("n%d", i),
			Target: fmt.Sprintf("n%d", (i+1)%n),
			Weight: 1,
		})
	}
	if err := q.BatchUpsertGraphNodes(ctx, graphID, nodes, 0); err != nil {
		t.Fatalf("insert nodes: %v", err)
	}
	if err := q.BatchInsertGraphLinks(ctx, graphID, links, 0); err != nil {
		t.Fatalf("insert links: %v", err)
	}
}

// TestIntegration_FullLayoutRun drives a run end to end against a real
// database: enqueue, compute, positions persisted, run and version recorded.
func TestIntegration_FullLayoutRun(t *testing.T) {
	q, g := integrationQueries(t)
	seedRing(t, q, g.ID, 5)
	ctx := context.Background()

	svc := NewService(q, nil, nil)
	run, err := svc.EnqueueLayout(ctx, g.ID, nil)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if run.Status != StatusPending {
		t.Fatalf("expected pending run, got %q", run.Status)
	}

	if err := svc.ComputeLayout(ctx, run); err != nil {
		t.Fatalf("compute: %v", err)
	}

	finished, err := q.GetLayoutRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if finished.Status != StatusCompleted {
		t.Errorf("expected completed run, got %q (error: %v)", finished.Status, finished.Error)
	}
	if finished.Iterations <= 0 {
		t.Errorf("expected positive iteration count, got %d", finished.Iterations)
	}

	positioned, err := q.CountPositionedNodes(ctx, g.ID)
	if err != nil {
		t.Fatalf("count positioned: %v", err)
	}
	if positioned != 5 {
		t.Errorf("expected 5 positioned nodes, got %d", positioned)
	}

	version, err := q.GetLatestLayoutVersion(ctx, g.ID)
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	if version.Version != 1 {
		t.Errorf("expected version 1, got %d", version.Version)
	}
	if version.NodeCount != 5 {
		t.Errorf("expected node count 5, got %d", version.NodeCount)
	}
}

// TestIntegration_RelayoutAll exercises the batch path the periodic job uses.
func TestIntegration_RelayoutAll(t *testing.T) {
	q, g := integrationQueries(t)
	seedRing(t, q, g.ID, 4)
	ctx := context.Background()

	svc := NewService(q, nil, nil)
	if err := svc.RelayoutAll(ctx); err != nil {
		t.Fatalf("relayout all: %v", err)
	}

	run, err := q.GetLatestLayoutRun(ctx, g.ID)
	if err != nil {
		t.Fatalf("get latest run: %v", err)
	}
	if run.Status != StatusCompleted {
		t.Errorf("expected completed run, got %q (error: %v)", run.Status, run.Error)
	}
}
