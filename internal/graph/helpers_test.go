package graph

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/forcemap/internal/config"
	"github.com/onnwee/forcemap/internal/db"
)

// fakeStore is an in-memory Store for service and versioning tests.
// All methods lock so tests can poll while a run executes in a goroutine.
type fakeStore struct {
	mu sync.Mutex

	graphs   map[uuid.UUID]db.Graph
	nodes    map[uuid.UUID]map[string]*db.GraphNode
	links    map[uuid.UUID][]db.GraphLink
	runs     map[uuid.UUID][]db.LayoutRun
	versions map[uuid.UUID][]db.LayoutVersion
	diffs    map[int64][]db.DiffInsert

	nextVersionID int64
	touched       int

	lastBatchSize     int
	lastEpsilon       float64
	deleteBeforeCalls []db.DeleteLayoutVersionsBeforeParams

	failPositionWrite error
	failNodeLoad      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		graphs:        make(map[uuid.UUID]db.Graph),
		nodes:         make(map[uuid.UUID]map[string]*db.GraphNode),
		links:         make(map[uuid.UUID][]db.GraphLink),
		runs:          make(map[uuid.UUID][]db.LayoutRun),
		versions:      make(map[uuid.UUID][]db.LayoutVersion),
		diffs:         make(map[int64][]db.DiffInsert),
		nextVersionID: 1,
	}
}

func (f *fakeStore) addGraph(name string, dimensions int32) db.Graph {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := db.Graph{
		ID:         uuid.New(),
		Name:       name,
		Dimensions: dimensions,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	f.graphs[g.ID] = g
	f.nodes[g.ID] = make(map[string]*db.GraphNode)
	return g
}

func (f *fakeStore) addNode(graphID uuid.UUID, id string, size float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[graphID][id] = &db.GraphNode{GraphID: graphID, ID: id, Size: size}
}

func (f *fakeStore) addLink(graphID uuid.UUID, source, target string, weight float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[graphID] = append(f.links[graphID], db.GraphLink{
		GraphID: graphID, Source: source, Target: target, Weight: weight,
	})
}

func (f *fakeStore) setPosition(graphID uuid.UUID, id string, x, y, z float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.nodes[graphID][id]
	n.PosX = sql.NullFloat64{Float64: x, Valid: true}
	n.PosY = sql.NullFloat64{Float64: y, Valid: true}
	n.PosZ = sql.NullFloat64{Float64: z, Valid: true}
}

func (f *fakeStore) latestRun(t *testing.T, graphID uuid.UUID) db.LayoutRun {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	runs := f.runs[graphID]
	if len(runs) == 0 {
		t.Fatalf("no runs recorded for graph %s", graphID)
	}
	return runs[len(runs)-1]
}

func (f *fakeStore) GetGraph(ctx context.Context, id uuid.UUID) (db.Graph, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.graphs[id]
	if !ok {
		return db.Graph{}, sql.ErrNoRows
	}
	return g, nil
}

func (f *fakeStore) ListGraphs(ctx context.Context, arg db.ListGraphsParams) ([]db.Graph, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]db.Graph, 0, len(f.graphs))
	for _, g := range f.graphs {
		all = append(all, g)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	start := int(arg.Offset)
	if start >= len(all) {
		return nil, nil
	}
	end := start + int(arg.Limit)
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (f *fakeStore) TouchGraph(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched++
	return nil
}

func (f *fakeStore) GetGraphNodes(ctx context.Context, graphID uuid.UUID) ([]db.GraphNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNodeLoad != nil {
		return nil, f.failNodeLoad
	}
	out := make([]db.GraphNode, 0, len(f.nodes[graphID]))
	for _, n := range f.nodes[graphID] {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetGraphLinks(ctx context.Context, graphID uuid.UUID) ([]db.GraphLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.links[graphID], nil
}

func (f *fakeStore) CountGraphNodes(ctx context.Context, graphID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.nodes[graphID])), nil
}

func (f *fakeStore) CreateLayoutRun(ctx context.Context, arg db.CreateLayoutRunParams) (db.LayoutRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run := db.LayoutRun{
		ID:        uuid.New(),
		GraphID:   arg.GraphID,
		Status:    StatusPending,
		Config:    arg.Config,
		CreatedAt: time.Now(),
	}
	f.runs[arg.GraphID] = append(f.runs[arg.GraphID], run)
	return run, nil
}

func (f *fakeStore) GetLatestLayoutRun(ctx context.Context, graphID uuid.UUID) (db.LayoutRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	runs := f.runs[graphID]
	if len(runs) == 0 {
		return db.LayoutRun{}, sql.ErrNoRows
	}
	return runs[len(runs)-1], nil
}

func (f *fakeStore) MarkLayoutRunRunning(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run := f.findRun(id)
	if run == nil {
		return sql.ErrNoRows
	}
	run.Status = StatusRunning
	run.StartedAt = sql.NullTime{Time: time.Now(), Valid: true}
	return nil
}

func (f *fakeStore) FinishLayoutRun(ctx context.Context, arg db.FinishLayoutRunParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run := f.findRun(arg.ID)
	if run == nil {
		return sql.ErrNoRows
	}
	run.Status = arg.Status
	run.Iterations = arg.Iterations
	run.Converged = arg.Converged
	run.Error = arg.Error
	run.FinishedAt = sql.NullTime{Time: time.Now(), Valid: true}
	return nil
}

// findRun walks every graph's runs. Callers hold f.mu.
func (f *fakeStore) findRun(id uuid.UUID) *db.LayoutRun {
	for graphID := range f.runs {
		for i := range f.runs[graphID] {
			if f.runs[graphID][i].ID == id {
				return &f.runs[graphID][i]
			}
		}
	}
	return nil
}

func (f *fakeStore) BatchUpdateGraphNodePositions(ctx context.Context, graphID uuid.UUID, ids []string, x, y, z []float64, batchSize int, epsilon float64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPositionWrite != nil {
		return 0, f.failPositionWrite
	}
	f.lastBatchSize = batchSize
	f.lastEpsilon = epsilon

	updated := 0
	for i, id := range ids {
		n, ok := f.nodes[graphID][id]
		if !ok {
			continue
		}
		n.PosX = sql.NullFloat64{Float64: x[i], Valid: true}
		n.PosY = sql.NullFloat64{Float64: y[i], Valid: true}
		n.PosZ = sql.NullFloat64{Float64: z[i], Valid: true}
		updated++
	}
	return updated, nil
}

func (f *fakeStore) GetNodePositions(ctx context.Context, graphID uuid.UUID) ([]db.GetNodePositionsRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]db.GetNodePositionsRow, 0)
	for _, n := range f.nodes[graphID] {
		if !n.PosX.Valid {
			continue
		}
		out = append(out, db.GetNodePositionsRow{ID: n.ID, PosX: n.PosX, PosY: n.PosY, PosZ: n.PosZ})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetLatestLayoutVersion(ctx context.Context, graphID uuid.UUID) (db.LayoutVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	versions := f.versions[graphID]
	if len(versions) == 0 {
		return db.LayoutVersion{}, sql.ErrNoRows
	}
	return versions[len(versions)-1], nil
}

func (f *fakeStore) CreateLayoutVersion(ctx context.Context, arg db.CreateLayoutVersionParams) (db.LayoutVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := db.LayoutVersion{
		ID:        f.nextVersionID,
		GraphID:   arg.GraphID,
		Version:   arg.Version,
		NodeCount: arg.NodeCount,
		LinkCount: arg.LinkCount,
		CreatedAt: time.Now(),
	}
	f.nextVersionID++
	f.versions[arg.GraphID] = append(f.versions[arg.GraphID], v)
	return v, nil
}

func (f *fakeStore) BatchInsertLayoutDiffs(ctx context.Context, versionID int64, diffs []db.DiffInsert, batchSize int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.diffs[versionID] = append(f.diffs[versionID], diffs...)
	return nil
}

func (f *fakeStore) DeleteLayoutVersionsBefore(ctx context.Context, arg db.DeleteLayoutVersionsBeforeParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteBeforeCalls = append(f.deleteBeforeCalls, arg)

	kept := f.versions[arg.GraphID][:0]
	var deleted int64
	for _, v := range f.versions[arg.GraphID] {
		if v.Version < arg.Version {
			deleted++
			continue
		}
		kept = append(kept, v)
	}
	f.versions[arg.GraphID] = kept
	return deleted, nil
}

// recordingSink captures progress events in order.
type recordingSink struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (r *recordingSink) Publish(ev ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func resetConfig(t *testing.T) {
	t.Helper()
	config.ResetForTest()
	t.Cleanup(config.ResetForTest)
}
