package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/forcemap/internal/db"
	"github.com/onnwee/forcemap/internal/graph"
)

// fakeLayoutService records enqueue calls and signals background computes.
type fakeLayoutService struct {
	run        db.LayoutRun
	enqueueErr error

	capturedGraphID   uuid.UUID
	capturedOverrides *graph.RunOverrides

	computed chan uuid.UUID
}

func newFakeLayoutService(run db.LayoutRun) *fakeLayoutService {
	return &fakeLayoutService{run: run, computed: make(chan uuid.UUID, 1)}
}

func (f *fakeLayoutService) EnqueueLayout(ctx context.Context, graphID uuid.UUID, overrides *graph.RunOverrides) (db.LayoutRun, error) {
	f.capturedGraphID = graphID
	f.capturedOverrides = overrides
	if f.enqueueErr != nil {
		return db.LayoutRun{}, f.enqueueErr
	}
	return f.run, nil
}

func (f *fakeLayoutService) ComputeLayout(ctx context.Context, run db.LayoutRun) error {
	f.computed <- run.ID
	return nil
}

func pendingRun(graphID uuid.UUID) db.LayoutRun {
	return db.LayoutRun{
		ID:        uuid.New(),
		GraphID:   graphID,
		Status:    graph.StatusPending,
		CreatedAt: time.Now(),
	}
}

func TestTriggerLayout(t *testing.T) {
	graphID := uuid.New()
	svc := newFakeLayoutService(pendingRun(graphID))
	h := NewLayoutHandler(svc, newFakeStore())

	rr := httptest.NewRecorder()
	h.TriggerLayout(rr, requestWithVars(http.MethodPost, "/graphs/"+graphID.String()+"/layout", nil, map[string]string{"id": graphID.String()}))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var out LayoutRunResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ID != svc.run.ID || out.GraphID != graphID || out.Status != graph.StatusPending {
		t.Errorf("unexpected run response: %+v", out)
	}
	if svc.capturedGraphID != graphID {
		t.Errorf("enqueued the wrong graph: %s", svc.capturedGraphID)
	}
	if svc.capturedOverrides != nil {
		t.Errorf("empty body should enqueue with nil overrides, got %+v", svc.capturedOverrides)
	}

	// The compute happens on a background goroutine after the 202.
	select {
	case id := <-svc.computed:
		if id != svc.run.ID {
			t.Errorf("computed wrong run: %s", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("background compute never started")
	}
}

func TestTriggerLayout_WithOverrides(t *testing.T) {
	graphID := uuid.New()
	svc := newFakeLayoutService(pendingRun(graphID))
	h := NewLayoutHandler(svc, newFakeStore())

	body := []byte(`{"iterations": 50, "gravity": 2.5, "barnes_hut": false}`)
	rr := httptest.NewRecorder()
	h.TriggerLayout(rr, requestWithVars(http.MethodPost, "/graphs/"+graphID.String()+"/layout", body, map[string]string{"id": graphID.String()}))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}

	o := svc.capturedOverrides
	if o == nil {
		t.Fatal("overrides were not passed through")
	}
	if o.Iterations == nil || *o.Iterations != 50 {
		t.Errorf("iterations override lost: %+v", o)
	}
	if o.Gravity == nil || *o.Gravity != 2.5 {
		t.Errorf("gravity override lost: %+v", o)
	}
	if o.BarnesHut == nil || *o.BarnesHut {
		t.Errorf("barnes_hut override lost: %+v", o)
	}

	select {
	case <-svc.computed:
	case <-time.After(2 * time.Second):
		t.Fatal("background compute never started")
	}
}

func TestTriggerLayout_BadBody(t *testing.T) {
	graphID := uuid.New()
	svc := newFakeLayoutService(pendingRun(graphID))
	h := NewLayoutHandler(svc, newFakeStore())

	rr := httptest.NewRecorder()
	h.TriggerLayout(rr, requestWithVars(http.MethodPost, "/graphs/"+graphID.String()+"/layout", []byte(`{nope`), map[string]string{"id": graphID.String()}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if got := errorCode(t, rr.Body); got != "LAYOUT_INVALID_CONFIG" {
		t.Errorf("expected LAYOUT_INVALID_CONFIG, got %s", got)
	}
}

func TestTriggerLayout_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"graph missing", sql.ErrNoRows, http.StatusNotFound, "GRAPH_NOT_FOUND"},
		{"run already active", fmt.Errorf("enqueue: %w", graph.ErrRunActive), http.StatusConflict, "LAYOUT_CONFLICT"},
		{"graph empty", graph.ErrGraphEmpty, http.StatusBadRequest, "GRAPH_INVALID"},
		{"graph too large", graph.ErrTooManyNodes, http.StatusBadRequest, "GRAPH_INVALID"},
		{"queue failure", fmt.Errorf("db went away"), http.StatusInternalServerError, "LAYOUT_QUEUE_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graphID := uuid.New()
			svc := newFakeLayoutService(pendingRun(graphID))
			svc.enqueueErr = tt.err
			h := NewLayoutHandler(svc, newFakeStore())

			rr := httptest.NewRecorder()
			h.TriggerLayout(rr, requestWithVars(http.MethodPost, "/graphs/"+graphID.String()+"/layout", nil, map[string]string{"id": graphID.String()}))

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if got := errorCode(t, rr.Body); got != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, got)
			}

			select {
			case <-svc.computed:
				t.Error("failed enqueue must not start a compute")
			case <-time.After(50 * time.Millisecond):
			}
		})
	}
}

func TestGetLayoutRun(t *testing.T) {
	fs := newFakeStore()
	run := pendingRun(uuid.New())
	run.Status = graph.StatusCompleted
	run.Converged = true
	run.Iterations = 300
	run.StartedAt = sql.NullTime{Time: time.Now().Add(-time.Minute), Valid: true}
	run.FinishedAt = sql.NullTime{Time: time.Now(), Valid: true}
	fs.runs[run.ID] = run
	h := NewLayoutHandler(newFakeLayoutService(run), fs)

	rr := httptest.NewRecorder()
	h.GetLayoutRun(rr, requestWithVars(http.MethodGet, "/layouts/"+run.ID.String(), nil, map[string]string{"id": run.ID.String()}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var out LayoutRunResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ID != run.ID || out.Status != graph.StatusCompleted || !out.Converged || out.Iterations != 300 {
		t.Errorf("unexpected response: %+v", out)
	}
	if out.StartedAt == nil || out.FinishedAt == nil {
		t.Errorf("timestamps should be set: %+v", out)
	}
}

func TestGetLayoutRun_NotFound(t *testing.T) {
	h := NewLayoutHandler(newFakeLayoutService(db.LayoutRun{}), newFakeStore())
	id := uuid.NewString()

	rr := httptest.NewRecorder()
	h.GetLayoutRun(rr, requestWithVars(http.MethodGet, "/layouts/"+id, nil, map[string]string{"id": id}))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if got := errorCode(t, rr.Body); got != "LAYOUT_NOT_FOUND" {
		t.Errorf("expected LAYOUT_NOT_FOUND, got %s", got)
	}
}

func TestGetLayoutRun_InvalidID(t *testing.T) {
	h := NewLayoutHandler(newFakeLayoutService(db.LayoutRun{}), newFakeStore())

	rr := httptest.NewRecorder()
	h.GetLayoutRun(rr, requestWithVars(http.MethodGet, "/layouts/nope", nil, map[string]string{"id": "nope"}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestListRuns(t *testing.T) {
	fs := newFakeStore()
	graphID := uuid.New()
	base := time.Now()
	for i := 0; i < 3; i++ {
		run := pendingRun(graphID)
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		fs.runs[run.ID] = run
	}
	// A run on another graph must not leak in.
	other := pendingRun(uuid.New())
	fs.runs[other.ID] = other

	h := NewLayoutHandler(newFakeLayoutService(db.LayoutRun{}), fs)

	rr := httptest.NewRecorder()
	h.ListRuns(rr, requestWithVars(http.MethodGet, "/graphs/"+graphID.String()+"/runs?limit=2", nil, map[string]string{"id": graphID.String()}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var out []LayoutRunResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(out))
	}
	if !out[0].CreatedAt.After(out[1].CreatedAt) {
		t.Error("runs should be newest first")
	}
	for _, run := range out {
		if run.GraphID != graphID {
			t.Errorf("run from another graph leaked in: %+v", run)
		}
	}
}
