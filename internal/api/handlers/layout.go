package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/onnwee/forcemap/internal/apierr"
	"github.com/onnwee/forcemap/internal/db"
	"github.com/onnwee/forcemap/internal/graph"
	"github.com/onnwee/forcemap/internal/logger"
)

// LayoutService triggers and executes layout runs. *graph.Service satisfies it.
type LayoutService interface {
	EnqueueLayout(ctx context.Context, graphID uuid.UUID, overrides *graph.RunOverrides) (db.LayoutRun, error)
	ComputeLayout(ctx context.Context, run db.LayoutRun) error
}

// RunReader reads layout run rows. *db.Queries satisfies it.
type RunReader interface {
	GetLayoutRun(ctx context.Context, id uuid.UUID) (db.LayoutRun, error)
	ListLayoutRuns(ctx context.Context, arg db.ListLayoutRunsParams) ([]db.LayoutRun, error)
}

// LayoutHandler handles layout run endpoints.
type LayoutHandler struct {
	service LayoutService
	runs    RunReader
}

// NewLayoutHandler creates a new layout handler.
func NewLayoutHandler(service LayoutService, runs RunReader) *LayoutHandler {
	return &LayoutHandler{service: service, runs: runs}
}

// LayoutRunResponse is the JSON shape of a layout run.
type LayoutRunResponse struct {
	ID         uuid.UUID       `json:"id"`
	GraphID    uuid.UUID       `json:"graph_id"`
	Status     string          `json:"status"`
	Config     json.RawMessage `json:"config,omitempty"`
	Iterations int32           `json:"iterations"`
	Converged  bool            `json:"converged"`
	Error      string          `json:"error,omitempty"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TriggerLayout enqueues a layout run and computes it in the background.
// POST /graphs/{id}/layout
func (h *LayoutHandler) TriggerLayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := parseGraphID(w, r)
	if !ok {
		return
	}

	// The body is an optional parameter override document.
	var overrides *graph.RunOverrides
	body, err := io.ReadAll(r.Body)
	if err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidJSON())
		return
	}
	if len(body) > 0 {
		overrides = &graph.RunOverrides{}
		if err := json.Unmarshal(body, overrides); err != nil {
			apierr.WriteErrorWithContext(w, r, apierr.LayoutInvalidConfig("request body is not a valid parameter document"))
			return
		}
	}

	run, err := h.service.EnqueueLayout(ctx, id, overrides)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			apierr.WriteErrorWithContext(w, r, apierr.GraphNotFound())
		case errors.Is(err, graph.ErrRunActive):
			apierr.WriteErrorWithContext(w, r, apierr.LayoutConflict(err.Error()))
		case errors.Is(err, graph.ErrGraphEmpty):
			apierr.WriteErrorWithContext(w, r, apierr.GraphInvalid("graph has no nodes"))
		case errors.Is(err, graph.ErrTooManyNodes):
			apierr.WriteErrorWithContext(w, r, apierr.GraphInvalid("graph exceeds the configured node limit"))
		default:
			logger.ErrorContext(ctx, "Failed to enqueue layout run", "error", err, "graph_id", id)
			apierr.WriteErrorWithContext(w, r, apierr.LayoutQueueFailed("Failed to enqueue layout run"))
		}
		return
	}

	// The run outlives the request. Errors are recorded on the run row, so
	// the goroutine only logs.
	go func() {
		if err := h.service.ComputeLayout(context.Background(), run); err != nil {
			logger.Error("Background layout run failed", "error", err, "run_id", run.ID, "graph_id", run.GraphID)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(runResponse(run))
}

// GetLayoutRun returns a single layout run by ID.
// GET /layouts/{id}
func (h *LayoutHandler) GetLayoutRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("id", "must be a UUID"))
		return
	}

	run, err := h.runs.GetLayoutRun(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apierr.WriteErrorWithContext(w, r, apierr.LayoutNotFound())
			return
		}
		logger.ErrorContext(ctx, "Failed to fetch layout run", "error", err, "run_id", id)
		apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to fetch layout run"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(runResponse(run))
}

// ListRuns returns recent layout runs for a graph, newest first.
// GET /graphs/{id}/runs?limit=N
func (h *LayoutHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := parseGraphID(w, r)
	if !ok {
		return
	}

	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	if limit < 1 || limit > 200 {
		limit = 20
	}

	runs, err := h.runs.ListLayoutRuns(ctx, db.ListLayoutRunsParams{GraphID: id, Limit: int32(limit)})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list layout runs", "error", err, "graph_id", id)
		apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to list layout runs"))
		return
	}

	out := make([]LayoutRunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse(run))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func runResponse(run db.LayoutRun) LayoutRunResponse {
	out := LayoutRunResponse{
		ID:         run.ID,
		GraphID:    run.GraphID,
		Status:     run.Status,
		Iterations: run.Iterations,
		Converged:  run.Converged,
		CreatedAt:  run.CreatedAt,
	}
	if run.Config.Valid {
		out.Config = json.RawMessage(run.Config.RawMessage)
	}
	if run.Error.Valid {
		out.Error = run.Error.String
	}
	if run.StartedAt.Valid {
		t := run.StartedAt.Time
		out.StartedAt = &t
	}
	if run.FinishedAt.Valid {
		t := run.FinishedAt.Time
		out.FinishedAt = &t
	}
	return out
}
