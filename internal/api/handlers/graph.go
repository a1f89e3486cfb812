package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/onnwee/forcemap/internal/apierr"
	"github.com/onnwee/forcemap/internal/cache"
	"github.com/onnwee/forcemap/internal/config"
	"github.com/onnwee/forcemap/internal/db"
	"github.com/onnwee/forcemap/internal/logger"
	"github.com/onnwee/forcemap/internal/metrics"
	"github.com/onnwee/forcemap/internal/middleware"
)

// GraphStore abstracts graph persistence for the HTTP handlers.
// *db.Queries satisfies it.
type GraphStore interface {
	CreateGraph(ctx context.Context, arg db.CreateGraphParams) (db.Graph, error)
	GetGraph(ctx context.Context, id uuid.UUID) (db.Graph, error)
	ListGraphs(ctx context.Context, arg db.ListGraphsParams) ([]db.Graph, error)
	DeleteGraph(ctx context.Context, id uuid.UUID) error
	GetGraphNodes(ctx context.Context, graphID uuid.UUID) ([]db.GraphNode, error)
	GetGraphLinks(ctx context.Context, graphID uuid.UUID) ([]db.GraphLink, error)
	BatchUpsertGraphNodes(ctx context.Context, graphID uuid.UUID, nodes []db.NodeUpsert, batchSize int) error
	BatchInsertGraphLinks(ctx context.Context, graphID uuid.UUID, links []db.LinkInsert, batchSize int) error
}

// GraphHandler handles graph CRUD and payload requests.
type GraphHandler struct {
	store GraphStore
	cache cache.Cache
}

// NewGraphHandler creates a new graph handler.
func NewGraphHandler(store GraphStore, c cache.Cache) *GraphHandler {
	return &GraphHandler{store: store, cache: c}
}

// NodePayload is a node in ingest requests and payload responses.
// Positions are output-only: layout runs assign them.
type NodePayload struct {
	ID    string   `json:"id"`
	Label string   `json:"label,omitempty"`
	Size  float64  `json:"size"`
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
	Z     *float64 `json:"z,omitempty"`
}

// LinkPayload is an edge in ingest requests and payload responses.
type LinkPayload struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// CreateGraphRequest is the body of POST /graphs.
type CreateGraphRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Dimensions  int32         `json:"dimensions"`
	Nodes       []NodePayload `json:"nodes"`
	Links       []LinkPayload `json:"links"`
}

// GraphSummary is the list/create response shape.
type GraphSummary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Dimensions  int32     `json:"dimensions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GraphPayload is the full graph response: nodes with any computed
// positions, plus links.
type GraphPayload struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Dimensions  int32         `json:"dimensions"`
	Nodes       []NodePayload `json:"nodes"`
	Links       []LinkPayload `json:"links"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

var sanitize = &middleware.SanitizeInput{}

// CreateGraph ingests a new graph with its nodes and links.
// POST /graphs
func (h *GraphHandler) CreateGraph(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := config.Load()

	var req CreateGraphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidJSON())
		return
	}

	if err := sanitize.ValidateGraphName(req.Name); err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("name", err.Error()))
		return
	}
	if req.Dimensions == 0 {
		req.Dimensions = 2
	}
	if req.Dimensions != 2 && req.Dimensions != 3 {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("dimensions", "must be 2 or 3"))
		return
	}
	if len(req.Nodes) == 0 {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("nodes"))
		return
	}
	if len(req.Nodes) > cfg.LayoutMaxNodes {
		apierr.WriteErrorWithContext(w, r, apierr.GraphInvalid("graph exceeds the configured node limit"))
		return
	}

	nodes := make([]db.NodeUpsert, 0, len(req.Nodes))
	for _, n := range req.Nodes {
		if err := sanitize.ValidateNodeID(n.ID); err != nil {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("nodes", err.Error()))
			return
		}
		size := n.Size
		if size <= 0 {
			size = 1
		}
		label := sanitize.SanitizeString(n.Label, 500)
		nodes = append(nodes, db.NodeUpsert{
			ID:    n.ID,
			Label: sql.NullString{String: label, Valid: label != ""},
			Size:  size,
		})
	}

	links := make([]db.LinkInsert, 0, len(req.Links))
	for _, l := range req.Links {
		if l.Source == "" || l.Target == "" {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("links", "source and target are required"))
			return
		}
		weight := l.Weight
		if weight <= 0 {
			weight = 1
		}
		links = append(links, db.LinkInsert{Source: l.Source, Target: l.Target, Weight: weight})
	}

	g, err := h.store.CreateGraph(ctx, db.CreateGraphParams{
		Name:        sanitize.SanitizeString(req.Name, 200),
		Description: sql.NullString{String: req.Description, Valid: req.Description != ""},
		Dimensions:  req.Dimensions,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create graph", "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to create graph"))
		return
	}

	if err := h.store.BatchUpsertGraphNodes(ctx, g.ID, nodes, cfg.LayoutBatchSize); err != nil {
		logger.ErrorContext(ctx, "Failed to insert graph nodes", "error", err, "graph_id", g.ID)
		apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to store graph nodes"))
		return
	}
	if err := h.store.BatchInsertGraphLinks(ctx, g.ID, links, cfg.LayoutBatchSize); err != nil {
		logger.ErrorContext(ctx, "Failed to insert graph links", "error", err, "graph_id", g.ID)
		apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to store graph links"))
		return
	}

	h.cache.Delete(cache.GraphListKey)

	logger.InfoContext(ctx, "Graph created",
		"graph_id", g.ID, "name", g.Name, "nodes", len(nodes), "links", len(links))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(summarize(g))
}

// ListGraphs returns a page of graphs, newest first.
// GET /graphs?limit=N&offset=N
func (h *GraphHandler) ListGraphs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	// Only the default first page is cached; it is the hot path.
	cacheable := limit == 50 && offset == 0
	if cacheable {
		if cached, found := h.cache.Get(cache.GraphListKey); found {
			metrics.APICacheHits.WithLabelValues("graph_list").Inc()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			_, _ = w.Write(cached)
			return
		}
		metrics.APICacheMisses.WithLabelValues("graph_list").Inc()
	}

	graphs, err := h.store.ListGraphs(ctx, db.ListGraphsParams{Limit: int32(limit), Offset: int32(offset)})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list graphs", "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to list graphs"))
		return
	}

	out := make([]GraphSummary, 0, len(graphs))
	for _, g := range graphs {
		out = append(out, summarize(g))
	}

	data, err := json.Marshal(out)
	if err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.SystemInternal("Failed to serialize response"))
		return
	}
	if cacheable {
		h.cache.Set(cache.GraphListKey, data, 60*time.Second)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	_, _ = w.Write(data)
}

// GetGraph returns the full graph payload with computed positions.
// GET /graphs/{id}
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := parseGraphID(w, r)
	if !ok {
		return
	}

	key := cache.GraphPayloadKey(id.String())
	if cached, found := h.cache.Get(key); found {
		metrics.APICacheHits.WithLabelValues("graph_payload").Inc()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		_, _ = w.Write(cached)
		return
	}
	metrics.APICacheMisses.WithLabelValues("graph_payload").Inc()

	g, err := h.store.GetGraph(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apierr.WriteErrorWithContext(w, r, apierr.GraphNotFound())
			return
		}
		logger.ErrorContext(ctx, "Failed to fetch graph", "error", err, "graph_id", id)
		apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to fetch graph"))
		return
	}

	nodes, err := h.store.GetGraphNodes(ctx, id)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to fetch graph nodes", "error", err, "graph_id", id)
		apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to fetch graph nodes"))
		return
	}
	links, err := h.store.GetGraphLinks(ctx, id)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to fetch graph links", "error", err, "graph_id", id)
		apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to fetch graph links"))
		return
	}

	payload := GraphPayload{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description.String,
		Dimensions:  g.Dimensions,
		Nodes:       make([]NodePayload, 0, len(nodes)),
		Links:       make([]LinkPayload, 0, len(links)),
		UpdatedAt:   g.UpdatedAt,
	}
	for _, n := range nodes {
		payload.Nodes = append(payload.Nodes, nodePayload(n))
	}
	for _, l := range links {
		payload.Links = append(payload.Links, LinkPayload{Source: l.Source, Target: l.Target, Weight: l.Weight})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.SystemInternal("Failed to serialize response"))
		return
	}
	h.cache.Set(key, data, 5*time.Minute)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	_, _ = w.Write(data)
}

// DeleteGraph removes a graph and all dependent rows.
// DELETE /graphs/{id}
func (h *GraphHandler) DeleteGraph(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := parseGraphID(w, r)
	if !ok {
		return
	}

	if _, err := h.store.GetGraph(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apierr.WriteErrorWithContext(w, r, apierr.GraphNotFound())
			return
		}
		logger.ErrorContext(ctx, "Failed to fetch graph for deletion", "error", err, "graph_id", id)
		apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to fetch graph"))
		return
	}

	if err := h.store.DeleteGraph(ctx, id); err != nil {
		logger.ErrorContext(ctx, "Failed to delete graph", "error", err, "graph_id", id)
		apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to delete graph"))
		return
	}

	h.cache.Delete(cache.GraphPayloadKey(id.String()))
	h.cache.Delete(cache.GraphListKey)

	logger.InfoContext(ctx, "Graph deleted", "graph_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func summarize(g db.Graph) GraphSummary {
	return GraphSummary{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description.String,
		Dimensions:  g.Dimensions,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

func nodePayload(n db.GraphNode) NodePayload {
	out := NodePayload{ID: n.ID, Label: n.Label.String, Size: n.Size}
	if n.PosX.Valid {
		x := n.PosX.Float64
		out.X = &x
	}
	if n.PosY.Valid {
		y := n.PosY.Float64
		out.Y = &y
	}
	if n.PosZ.Valid {
		z := n.PosZ.Float64
		out.Z = &z
	}
	return out
}

// parseGraphID extracts and validates the {id} path variable. On failure it
// writes the error response and returns false.
func parseGraphID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("id", "must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
