package handlers

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/onnwee/forcemap/internal/db"
)

func TestExportGraph_JSON(t *testing.T) {
	fs := newFakeStore()
	g := fs.addGraph("My Graph!", 2)
	fs.nodes[g.ID] = []db.GraphNode{
		{GraphID: g.ID, ID: "a", Size: 1,
			PosX: sql.NullFloat64{Float64: 0.5, Valid: true},
			PosY: sql.NullFloat64{Float64: -0.5, Valid: true}},
	}
	fs.links[g.ID] = []db.GraphLink{{GraphID: g.ID, Source: "a", Target: "a", Weight: 2}}
	h := NewExportHandler(fs)

	rr := httptest.NewRecorder()
	h.ExportGraph(rr, requestWithVars(http.MethodGet, "/graphs/"+g.ID.String()+"/export", nil, map[string]string{"id": g.ID.String()}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("expected JSON content type, got %q", got)
	}
	disposition := rr.Header().Get("Content-Disposition")
	if !strings.Contains(disposition, "attachment") || !strings.Contains(disposition, "My_Graph_export.json") {
		t.Errorf("unexpected disposition: %q", disposition)
	}

	var payload GraphPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.ID != g.ID || len(payload.Nodes) != 1 || len(payload.Links) != 1 {
		t.Errorf("unexpected payload: %+v", payload)
	}
	if payload.Nodes[0].X == nil || *payload.Nodes[0].X != 0.5 {
		t.Errorf("node position lost: %+v", payload.Nodes[0])
	}
}

func TestExportGraph_CSV(t *testing.T) {
	fs := newFakeStore()
	g := fs.addGraph("csv graph", 2)
	fs.nodes[g.ID] = []db.GraphNode{
		{GraphID: g.ID, ID: "a", Label: sql.NullString{String: "Alpha", Valid: true}, Size: 2,
			PosX: sql.NullFloat64{Float64: 1, Valid: true},
			PosY: sql.NullFloat64{Float64: 2, Valid: true}},
		{GraphID: g.ID, ID: "b", Size: 1},
	}
	fs.links[g.ID] = []db.GraphLink{{GraphID: g.ID, Source: "a", Target: "b", Weight: 1.5}}
	h := NewExportHandler(fs)

	rr := httptest.NewRecorder()
	h.ExportGraph(rr, requestWithVars(http.MethodGet, "/graphs/"+g.ID.String()+"/export?format=csv", nil, map[string]string{"id": g.ID.String()}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "text/csv" {
		t.Errorf("expected CSV content type, got %q", got)
	}

	records, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse CSV: %v", err)
	}
	// Header + 2 nodes + 1 link
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d: %v", len(records), records)
	}
	if records[0][0] != "data_type" {
		t.Errorf("unexpected header: %v", records[0])
	}
	if records[1][0] != "node" || records[1][1] != "a" || records[1][2] != "Alpha" || records[1][4] != "1" {
		t.Errorf("unexpected node row: %v", records[1])
	}
	// Unpositioned node leaves coordinate columns empty
	if records[2][1] != "b" || records[2][4] != "" {
		t.Errorf("unexpected unpositioned node row: %v", records[2])
	}
	if records[3][0] != "link" || records[3][7] != "a" || records[3][8] != "b" || records[3][9] != "1.5" {
		t.Errorf("unexpected link row: %v", records[3])
	}
}

func TestExportGraph_InvalidFormat(t *testing.T) {
	fs := newFakeStore()
	g := fs.addGraph("g", 2)
	h := NewExportHandler(fs)

	rr := httptest.NewRecorder()
	h.ExportGraph(rr, requestWithVars(http.MethodGet, "/graphs/"+g.ID.String()+"/export?format=xml", nil, map[string]string{"id": g.ID.String()}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestExportGraph_NotFound(t *testing.T) {
	h := NewExportHandler(newFakeStore())
	id := uuid.NewString()

	rr := httptest.NewRecorder()
	h.ExportGraph(rr, requestWithVars(http.MethodGet, "/graphs/"+id+"/export", nil, map[string]string{"id": id}))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"simple", "simple"},
		{"My Graph", "My_Graph"},
		{"weird/../name", "weirdname"},
		{"héllo wörld", "hllo_wrld"},
		{"!!!", "graph"},
		{"", "graph"},
	}

	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
