package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/forcemap/internal/cache"
	"github.com/onnwee/forcemap/internal/db"
)

func (f *fakeStore) addVersion(graphID uuid.UUID, version, nodeCount, linkCount int32) db.LayoutVersion {
	v := db.LayoutVersion{
		ID:        f.nextVersionID,
		GraphID:   graphID,
		Version:   version,
		NodeCount: nodeCount,
		LinkCount: linkCount,
		CreatedAt: time.Now(),
	}
	f.nextVersionID++
	f.versions[graphID] = append(f.versions[graphID], v)
	return v
}

func (f *fakeStore) addDiff(versionID int64, nodeID, changeType string, newX, newY float64) {
	d := db.LayoutDiff{
		VersionID:  versionID,
		NodeID:     nodeID,
		ChangeType: changeType,
	}
	if changeType != "remove" {
		d.NewX = sql.NullFloat64{Float64: newX, Valid: true}
		d.NewY = sql.NullFloat64{Float64: newY, Valid: true}
	}
	if changeType != "add" {
		d.OldX = sql.NullFloat64{Float64: newX - 1, Valid: true}
		d.OldY = sql.NullFloat64{Float64: newY - 1, Valid: true}
	}
	f.diffs[versionID] = append(f.diffs[versionID], d)
}

func TestListVersions(t *testing.T) {
	fs := newFakeStore()
	g := fs.addGraph("versioned", 2)
	fs.addVersion(g.ID, 1, 10, 9)
	fs.addVersion(g.ID, 2, 12, 11)
	fs.addVersion(g.ID, 3, 12, 12)
	h := NewVersionHandler(fs, cache.NewMockCache())

	rr := httptest.NewRecorder()
	h.ListVersions(rr, requestWithVars(http.MethodGet, "/graphs/"+g.ID.String()+"/versions", nil, map[string]string{"id": g.ID.String()}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var out []LayoutVersionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(out))
	}
	if out[0].Version != 3 || out[1].Version != 2 || out[2].Version != 1 {
		t.Errorf("versions should be newest first: %+v", out)
	}
	if out[0].NodeCount != 12 || out[0].LinkCount != 12 {
		t.Errorf("counts lost: %+v", out[0])
	}
}

func TestListVersions_Limit(t *testing.T) {
	fs := newFakeStore()
	g := fs.addGraph("versioned", 2)
	for i := int32(1); i <= 5; i++ {
		fs.addVersion(g.ID, i, 10, 9)
	}
	h := NewVersionHandler(fs, cache.NewMockCache())

	rr := httptest.NewRecorder()
	h.ListVersions(rr, requestWithVars(http.MethodGet, "/graphs/"+g.ID.String()+"/versions?limit=2", nil, map[string]string{"id": g.ID.String()}))

	var out []LayoutVersionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 || out[0].Version != 5 {
		t.Errorf("expected the 2 newest versions, got %+v", out)
	}
}

func TestGetDiffSince(t *testing.T) {
	fs := newFakeStore()
	g := fs.addGraph("diffed", 2)
	fs.addVersion(g.ID, 1, 2, 1)
	v2 := fs.addVersion(g.ID, 2, 3, 2)
	v3 := fs.addVersion(g.ID, 3, 3, 2)
	fs.addDiff(v2.ID, "c", "add", 1.0, 2.0)
	fs.addDiff(v3.ID, "a", "update", 4.0, 5.0)
	fs.addDiff(v3.ID, "b", "remove", 0, 0)
	c := cache.NewMockCache()
	h := NewVersionHandler(fs, c)

	rr := httptest.NewRecorder()
	h.GetDiffSince(rr, requestWithVars(http.MethodGet, "/graphs/"+g.ID.String()+"/diff?since=1", nil, map[string]string{"id": g.ID.String()}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("expected X-Cache MISS, got %q", got)
	}

	var out LayoutDiffResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SinceVersion != 1 || out.CurrentVersion != 3 {
		t.Errorf("unexpected version bounds: %+v", out)
	}
	if out.TotalChanges != 3 || len(out.Changes) != 3 {
		t.Fatalf("expected 3 changes, got %+v", out)
	}
	if out.NodesAdded != 1 || out.NodesUpdated != 1 || out.NodesRemoved != 1 {
		t.Errorf("unexpected change counts: %+v", out)
	}

	// Changes are ordered oldest version first so clients can replay them.
	if out.Changes[0].Version != 2 || out.Changes[0].NodeID != "c" || out.Changes[0].ChangeType != "add" {
		t.Errorf("unexpected first change: %+v", out.Changes[0])
	}
	if out.Changes[0].NewX == nil || *out.Changes[0].NewX != 1.0 {
		t.Errorf("add should carry new position: %+v", out.Changes[0])
	}
	if out.Changes[0].OldX != nil {
		t.Errorf("add should not carry old position: %+v", out.Changes[0])
	}
	if out.Changes[2].ChangeType != "remove" || out.Changes[2].NewX != nil || out.Changes[2].OldX == nil {
		t.Errorf("remove should carry only old position: %+v", out.Changes[2])
	}

	// Second request is served from cache.
	rr2 := httptest.NewRecorder()
	h.GetDiffSince(rr2, requestWithVars(http.MethodGet, "/graphs/"+g.ID.String()+"/diff?since=1", nil, map[string]string{"id": g.ID.String()}))
	if got := rr2.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("expected X-Cache HIT, got %q", got)
	}
}

func TestGetDiffSince_MissingParam(t *testing.T) {
	fs := newFakeStore()
	g := fs.addGraph("diffed", 2)
	h := NewVersionHandler(fs, cache.NewMockCache())

	rr := httptest.NewRecorder()
	h.GetDiffSince(rr, requestWithVars(http.MethodGet, "/graphs/"+g.ID.String()+"/diff", nil, map[string]string{"id": g.ID.String()}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if got := errorCode(t, rr.Body); got != "VALIDATION_MISSING_FIELD" {
		t.Errorf("expected VALIDATION_MISSING_FIELD, got %s", got)
	}
}

func TestGetDiffSince_AtCurrentVersion(t *testing.T) {
	fs := newFakeStore()
	g := fs.addGraph("diffed", 2)
	fs.addVersion(g.ID, 1, 2, 1)
	h := NewVersionHandler(fs, cache.NewMockCache())

	rr := httptest.NewRecorder()
	h.GetDiffSince(rr, requestWithVars(http.MethodGet, "/graphs/"+g.ID.String()+"/diff?since=1", nil, map[string]string{"id": g.ID.String()}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestGetDiffSince_NoVersions(t *testing.T) {
	fs := newFakeStore()
	g := fs.addGraph("fresh", 2)
	h := NewVersionHandler(fs, cache.NewMockCache())

	rr := httptest.NewRecorder()
	h.GetDiffSince(rr, requestWithVars(http.MethodGet, "/graphs/"+g.ID.String()+"/diff?since=0", nil, map[string]string{"id": g.ID.String()}))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if got := errorCode(t, rr.Body); got != "RESOURCE_NOT_FOUND" {
		t.Errorf("expected RESOURCE_NOT_FOUND, got %s", got)
	}
}

func TestGetDiffSince_PrunedHistory(t *testing.T) {
	fs := newFakeStore()
	g := fs.addGraph("pruned", 2)
	// Retention removed versions 1 through 10.
	fs.addVersion(g.ID, 11, 5, 4)
	fs.addVersion(g.ID, 12, 5, 4)
	h := NewVersionHandler(fs, cache.NewMockCache())

	rr := httptest.NewRecorder()
	h.GetDiffSince(rr, requestWithVars(http.MethodGet, "/graphs/"+g.ID.String()+"/diff?since=5", nil, map[string]string{"id": g.ID.String()}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := errorCode(t, rr.Body); got != "VALIDATION_INVALID_VALUE" {
		t.Errorf("expected VALIDATION_INVALID_VALUE, got %s", got)
	}
}

func TestGetDiffSince_TooFarBehind(t *testing.T) {
	fs := newFakeStore()
	g := fs.addGraph("ancient", 2)
	fs.addVersion(g.ID, 150, 5, 4)
	h := NewVersionHandler(fs, cache.NewMockCache())

	rr := httptest.NewRecorder()
	h.GetDiffSince(rr, requestWithVars(http.MethodGet, "/graphs/"+g.ID.String()+"/diff?since=5", nil, map[string]string{"id": g.ID.String()}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}
