package handlers

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/onnwee/forcemap/internal/apierr"
	"github.com/onnwee/forcemap/internal/db"
	"github.com/onnwee/forcemap/internal/logger"
	"github.com/onnwee/forcemap/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// ExportHandler streams a graph as a JSON or CSV download.
type ExportHandler struct {
	store GraphStore
}

// NewExportHandler creates a new export handler.
func NewExportHandler(store GraphStore) *ExportHandler {
	return &ExportHandler{store: store}
}

// ExportGraph handles GET /graphs/{id}/export?format=json|csv.
func (h *ExportHandler) ExportGraph(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "handlers.ExportGraph")
	defer span.End()

	id, ok := parseGraphID(w, r)
	if !ok {
		return
	}

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("format", "must be json or csv"))
		return
	}

	span.SetAttributes(
		attribute.String("graph_id", id.String()),
		attribute.String("format", format),
	)

	g, err := h.store.GetGraph(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apierr.WriteErrorWithContext(w, r, apierr.GraphNotFound())
			return
		}
		logger.ErrorContext(ctx, "Failed to fetch graph for export", "error", err, "graph_id", id)
		apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to fetch graph"))
		return
	}

	nodes, err := h.store.GetGraphNodes(ctx, id)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to fetch nodes for export", "error", err, "graph_id", id)
		apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to fetch graph nodes"))
		return
	}
	links, err := h.store.GetGraphLinks(ctx, id)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to fetch links for export", "error", err, "graph_id", id)
		apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to fetch graph links"))
		return
	}

	span.SetAttributes(
		attribute.Int("node_count", len(nodes)),
		attribute.Int("link_count", len(links)),
	)

	filename := fmt.Sprintf("%s_export.%s", sanitizeFilename(g.Name), format)
	if format == "csv" {
		exportCSV(w, filename, nodes, links)
		return
	}
	exportJSON(w, filename, g, nodes, links)
}

func exportJSON(w http.ResponseWriter, filename string, g db.Graph, nodes []db.GraphNode, links []db.GraphLink) {
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

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	_ = json.NewEncoder(w).Encode(payload)
}

func exportCSV(w http.ResponseWriter, filename string, nodes []db.GraphNode, links []db.GraphLink) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)

	writer := csv.NewWriter(w)
	defer writer.Flush()

	_ = writer.Write([]string{"data_type", "id", "label", "size", "x", "y", "z", "source", "target", "weight"})

	for _, n := range nodes {
		record := []string{
			"node", n.ID, n.Label.String,
			strconv.FormatFloat(n.Size, 'g', -1, 64),
			nullFloatString(n.PosX), nullFloatString(n.PosY), nullFloatString(n.PosZ),
			"", "", "",
		}
		if err := writer.Write(record); err != nil {
			logger.Error("Failed to write CSV node row", "error", err)
			return
		}
	}
	for _, l := range links {
		record := []string{
			"link", "", "", "", "", "", "",
			l.Source, l.Target, strconv.FormatFloat(l.Weight, 'g', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			logger.Error("Failed to write CSV link row", "error", err)
			return
		}
	}
}

func nullFloatString(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'g', -1, 64)
}

// sanitizeFilename keeps download names header-safe.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteRune(c)
		case c == ' ':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "graph"
	}
	return b.String()
}
