package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/onnwee/forcemap/internal/cache"
	"github.com/onnwee/forcemap/internal/config"
	"github.com/onnwee/forcemap/internal/db"
	"github.com/onnwee/forcemap/internal/errorreporting"
	"github.com/onnwee/forcemap/internal/layout"
	"github.com/onnwee/forcemap/internal/logger"
	"github.com/onnwee/forcemap/internal/metrics"
	"github.com/onnwee/forcemap/internal/tracing"
)

// Run statuses, mirroring the layout_runs.status values.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	// Nodes without stored positions are scattered in a cube whose radius
	// grows with graph size; stacking everything at the origin degenerates
	// repulsion.
	initialRadiusScale = 10.0

	// Graphs under this size collapse into a clump at the stock scaling
	// ratio, so the service spreads them out unless the ratio was tuned.
	smallGraphNodeLimit    = 100
	smallGraphScalingRatio = 10.0
	stockScalingRatio      = 2.0

	// Iteration events are published every progressEvery iterations plus
	// the final one.
	progressEvery = 10
)

var (
	ErrRunActive    = errors.New("a layout run is already active for this graph")
	ErrGraphEmpty   = errors.New("graph has no nodes")
	ErrTooManyNodes = errors.New("graph exceeds the configured node limit")
)

// RunOverrides are per-run engine parameters carried in the layout_runs
// config column. Nil fields fall back to the LAYOUT_* environment defaults.
type RunOverrides struct {
	Iterations          *int     `json:"iterations,omitempty"`
	Theta               *float64 `json:"theta,omitempty"`
	Gravity             *float64 `json:"gravity,omitempty"`
	StrongGravity       *bool    `json:"strong_gravity,omitempty"`
	ScalingRatio        *float64 `json:"scaling_ratio,omitempty"`
	EdgeWeightInfluence *float64 `json:"edge_weight_influence,omitempty"`
	PreventOverlap      *bool    `json:"prevent_overlap,omitempty"`
	LinLog              *bool    `json:"linlog,omitempty"`
	OutboundAttraction  *bool    `json:"outbound_attraction,omitempty"`
	BarnesHut           *bool    `json:"barnes_hut,omitempty"`
	Threshold           *float64 `json:"threshold,omitempty"`
	JitterTolerance     *float64 `json:"jitter_tolerance,omitempty"`
	MaxDisplacement     *float64 `json:"max_displacement,omitempty"`
	Seed                *int64   `json:"seed,omitempty"`
}

// Store is the database surface the layout service needs. *db.Queries
// satisfies it.
type Store interface {
	VersionStore

	GetGraph(ctx context.Context, id uuid.UUID) (db.Graph, error)
	ListGraphs(ctx context.Context, arg db.ListGraphsParams) ([]db.Graph, error)
	TouchGraph(ctx context.Context, id uuid.UUID) error
	GetGraphNodes(ctx context.Context, graphID uuid.UUID) ([]db.GraphNode, error)
	GetGraphLinks(ctx context.Context, graphID uuid.UUID) ([]db.GraphLink, error)
	CountGraphNodes(ctx context.Context, graphID uuid.UUID) (int64, error)

	CreateLayoutRun(ctx context.Context, arg db.CreateLayoutRunParams) (db.LayoutRun, error)
	GetLatestLayoutRun(ctx context.Context, graphID uuid.UUID) (db.LayoutRun, error)
	MarkLayoutRunRunning(ctx context.Context, id uuid.UUID) error
	FinishLayoutRun(ctx context.Context, arg db.FinishLayoutRunParams) error

	BatchUpdateGraphNodePositions(ctx context.Context, graphID uuid.UUID, ids []string, x, y, z []float64, batchSize int, epsilon float64) (int, error)
}

// Service orchestrates layout runs: load a graph, run the simulation, write
// positions back, and record a version diff.
type Service struct {
	store    Store
	cache    cache.Cache
	progress ProgressSink
}

// NewService creates a layout service. cache and sink may be nil; a nil sink
// discards progress events.
func NewService(store Store, c cache.Cache, sink ProgressSink) *Service {
	if sink == nil {
		sink = NoopSink{}
	}
	return &Service{store: store, cache: c, progress: sink}
}

// EnqueueLayout validates the graph and creates a pending layout run. The
// caller decides whether to execute it synchronously or in a goroutine.
// sql.ErrNoRows from the graph lookup passes through for not-found mapping.
func (s *Service) EnqueueLayout(ctx context.Context, graphID uuid.UUID, overrides *RunOverrides) (db.LayoutRun, error) {
	if _, err := s.store.GetGraph(ctx, graphID); err != nil {
		return db.LayoutRun{}, err
	}

	latest, err := s.store.GetLatestLayoutRun(ctx, graphID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return db.LayoutRun{}, fmt.Errorf("failed to check latest run: %w", err)
	}
	if err == nil && (latest.Status == StatusPending || latest.Status == StatusRunning) {
		return db.LayoutRun{}, fmt.Errorf("%w: run %s is %s", ErrRunActive, latest.ID, latest.Status)
	}

	count, err := s.store.CountGraphNodes(ctx, graphID)
	if err != nil {
		return db.LayoutRun{}, fmt.Errorf("failed to count nodes: %w", err)
	}
	if count == 0 {
		return db.LayoutRun{}, ErrGraphEmpty
	}
	cfg := config.Load()
	if count > int64(cfg.LayoutMaxNodes) {
		return db.LayoutRun{}, fmt.Errorf("%w: %d nodes, limit %d", ErrTooManyNodes, count, cfg.LayoutMaxNodes)
	}

	var raw pqtype.NullRawMessage
	if overrides != nil {
		data, err := json.Marshal(overrides)
		if err != nil {
			return db.LayoutRun{}, fmt.Errorf("failed to encode run config: %w", err)
		}
		raw = pqtype.NullRawMessage{RawMessage: data, Valid: true}
	}

	run, err := s.store.CreateLayoutRun(ctx, db.CreateLayoutRunParams{GraphID: graphID, Config: raw})
	if err != nil {
		return db.LayoutRun{}, fmt.Errorf("failed to create layout run: %w", err)
	}

	logger.Info("layout run enqueued", "run_id", run.ID, "graph_id", graphID, "nodes", count)
	return run, nil
}

// ComputeLayout executes a created run end to end. It marks the run running,
// simulates, writes positions, finishes the run, and records a version diff.
// The returned error is also recorded on the run row.
func (s *Service) ComputeLayout(ctx context.Context, run db.LayoutRun) error {
	ctx, span := tracing.StartSpan(ctx, "layout.run")
	defer span.End()

	start := time.Now()

	if err := s.store.MarkLayoutRunRunning(ctx, run.ID); err != nil {
		return fmt.Errorf("failed to mark layout run %s running: %w", run.ID, err)
	}
	s.progress.Publish(ProgressEvent{RunID: run.ID, GraphID: run.GraphID, Status: StatusRunning})

	g, err := s.store.GetGraph(ctx, run.GraphID)
	if err != nil {
		return s.failRun(ctx, run, start, fmt.Errorf("failed to load graph: %w", err))
	}

	overrides, err := parseOverrides(run)
	if err != nil {
		return s.failRun(ctx, run, start, err)
	}

	// Positions before the run, for the version diff.
	snapshot, err := CapturePositionSnapshot(ctx, s.store, run.GraphID)
	if err != nil {
		return s.failRun(ctx, run, start, err)
	}

	nodes, links, err := s.loadGraph(ctx, g, resolveSeed(overrides))
	if err != nil {
		return s.failRun(ctx, run, start, err)
	}

	engineCfg := buildEngineConfig(g, len(nodes), overrides)
	engineCfg.OnIteration = s.iterationHook(run, engineCfg.Iterations)

	simCtx, simSpan := tracing.StartSpan(ctx, "layout.simulate")
	result, err := layout.Layout(simCtx, nodes, links, engineCfg)
	simSpan.End()
	if err != nil {
		return s.failRun(ctx, run, start, fmt.Errorf("layout failed: %w", err))
	}

	written, err := s.writePositions(ctx, run.GraphID, int(g.Dimensions), result)
	if err != nil {
		return s.failRun(ctx, run, start, fmt.Errorf("failed to write positions: %w", err))
	}

	if err := s.store.FinishLayoutRun(ctx, db.FinishLayoutRunParams{
		ID:         run.ID,
		Status:     StatusCompleted,
		Iterations: int32(result.Iterations),
		Converged:  result.Converged,
	}); err != nil {
		return fmt.Errorf("failed to finish layout run %s: %w", run.ID, err)
	}

	// Versioning is best-effort: a failed diff must not fail a finished run.
	if _, err := RecordLayoutVersion(ctx, s.store, run.GraphID, int32(len(nodes)), int32(len(links)), snapshot, result.Positions); err != nil {
		logger.Warn("failed to record layout version", "graph_id", run.GraphID, "error", err)
	} else if err := CleanupOldVersions(ctx, s.store, run.GraphID); err != nil {
		logger.Warn("failed to clean up old layout versions", "graph_id", run.GraphID, "error", err)
	}

	if err := s.store.TouchGraph(ctx, run.GraphID); err != nil {
		logger.Warn("failed to touch graph", "graph_id", run.GraphID, "error", err)
	}

	s.invalidate(run.GraphID)

	duration := time.Since(start)
	metrics.LayoutRunsTotal.WithLabelValues(StatusCompleted).Inc()
	metrics.LayoutRunDuration.WithLabelValues(StatusCompleted).Observe(duration.Seconds())
	metrics.LayoutRunNodes.Observe(float64(len(nodes)))
	metrics.LayoutPositionsWritten.Add(float64(written))

	s.progress.Publish(ProgressEvent{
		RunID:     run.ID,
		GraphID:   run.GraphID,
		Status:    StatusCompleted,
		Iteration: result.Iterations,
		Total:     engineCfg.Iterations,
	})
	logger.Info("layout run completed",
		"run_id", run.ID,
		"graph_id", run.GraphID,
		"nodes", len(nodes),
		"links", len(links),
		"iterations", result.Iterations,
		"converged", result.Converged,
		"positions_written", written,
		"duration", duration)
	return nil
}

// RelayoutAll sweeps every graph and recomputes its layout with the default
// parameters. Graphs with an active run or no nodes are skipped; per-graph
// failures are logged so one bad graph does not stop the sweep.
func (s *Service) RelayoutAll(ctx context.Context) error {
	const pageSize = 100
	var completed, failed int

	for offset := int32(0); ; offset += pageSize {
		graphs, err := s.store.ListGraphs(ctx, db.ListGraphsParams{Limit: pageSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("failed to list graphs: %w", err)
		}
		if len(graphs) == 0 {
			break
		}

		for _, g := range graphs {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			run, err := s.EnqueueLayout(ctx, g.ID, nil)
			if err != nil {
				if errors.Is(err, ErrRunActive) || errors.Is(err, ErrGraphEmpty) {
					continue
				}
				logger.Warn("skipping graph in relayout sweep", "graph_id", g.ID, "error", err)
				failed++
				continue
			}
			if err := s.ComputeLayout(ctx, run); err != nil {
				logger.Error("relayout failed", "graph_id", g.ID, "run_id", run.ID, "error", err)
				failed++
				continue
			}
			completed++
		}

		if len(graphs) < pageSize {
			break
		}
	}

	logger.Info("relayout sweep finished", "completed", completed, "failed", failed)
	return nil
}

func (s *Service) failRun(ctx context.Context, run db.LayoutRun, start time.Time, cause error) error {
	if err := s.store.FinishLayoutRun(ctx, db.FinishLayoutRunParams{
		ID:     run.ID,
		Status: StatusFailed,
		Error:  sql.NullString{String: cause.Error(), Valid: true},
	}); err != nil {
		logger.Error("failed to record layout run failure", "run_id", run.ID, "error", err)
	}

	metrics.LayoutRunsTotal.WithLabelValues(StatusFailed).Inc()
	metrics.LayoutRunDuration.WithLabelValues(StatusFailed).Observe(time.Since(start).Seconds())
	errorreporting.CaptureErrorWithContext(cause, map[string]string{
		"run_id":   run.ID.String(),
		"graph_id": run.GraphID.String(),
	}, nil)

	s.progress.Publish(ProgressEvent{RunID: run.ID, GraphID: run.GraphID, Status: StatusFailed, Error: cause.Error()})
	logger.Error("layout run failed", "run_id", run.ID, "graph_id", run.GraphID, "error", cause)
	return cause
}

// loadGraph converts stored rows into engine inputs. Nodes without a full
// stored position are scattered deterministically from seed.
func (s *Service) loadGraph(ctx context.Context, g db.Graph, seed int64) ([]layout.Node, []layout.Edge, error) {
	ctx, span := tracing.StartSpan(ctx, "layout.load")
	defer span.End()

	cfg := config.Load()
	dim := int(g.Dimensions)

	dbStart := time.Now()
	rows, err := s.store.GetGraphNodes(ctx, g.ID)
	observeDB("get_graph_nodes", dbStart, err)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load nodes: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, ErrGraphEmpty
	}
	if len(rows) > cfg.LayoutMaxNodes {
		return nil, nil, fmt.Errorf("%w: %d nodes, limit %d", ErrTooManyNodes, len(rows), cfg.LayoutMaxNodes)
	}

	rng := rand.New(rand.NewSource(seed))
	radius := initialRadiusScale * math.Sqrt(float64(len(rows)))

	nodes := make([]layout.Node, 0, len(rows))
	for _, r := range rows {
		n := layout.Node{ID: r.ID, Size: r.Size}
		if r.PosX.Valid && r.PosY.Valid && (dim == 2 || r.PosZ.Valid) {
			pos := make([]float64, dim)
			pos[0] = r.PosX.Float64
			pos[1] = r.PosY.Float64
			if dim == 3 {
				pos[2] = r.PosZ.Float64
			}
			n.Pos = pos
		} else {
			pos := make([]float64, dim)
			for d := range pos {
				pos[d] = (rng.Float64()*2 - 1) * radius
			}
			n.Pos = pos
		}
		nodes = append(nodes, n)
	}

	dbStart = time.Now()
	linkRows, err := s.store.GetGraphLinks(ctx, g.ID)
	observeDB("get_graph_links", dbStart, err)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load links: %w", err)
	}

	links := make([]layout.Edge, 0, len(linkRows))
	for _, l := range linkRows {
		links = append(links, layout.Edge{Source: l.Source, Target: l.Target, Weight: l.Weight})
	}

	return nodes, links, nil
}

func (s *Service) writePositions(ctx context.Context, graphID uuid.UUID, dim int, result *layout.Result) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "layout.write")
	defer span.End()

	cfg := config.Load()

	ids := make([]string, 0, len(result.Positions))
	xs := make([]float64, 0, len(result.Positions))
	ys := make([]float64, 0, len(result.Positions))
	zs := make([]float64, 0, len(result.Positions))
	for id, pos := range result.Positions {
		ids = append(ids, id)
		xs = append(xs, pos[0])
		ys = append(ys, pos[1])
		if dim == 3 {
			zs = append(zs, pos[2])
		} else {
			zs = append(zs, 0)
		}
	}

	dbStart := time.Now()
	written, err := s.store.BatchUpdateGraphNodePositions(ctx, graphID, ids, xs, ys, zs, cfg.LayoutBatchSize, cfg.LayoutEpsilon)
	observeDB("batch_update_positions", dbStart, err)
	return written, err
}

// iterationHook observes per-iteration timing and publishes throttled
// progress events.
func (s *Service) iterationHook(run db.LayoutRun, total int) func(layout.IterationStats) {
	last := time.Now()
	return func(st layout.IterationStats) {
		now := time.Now()
		metrics.LayoutIterationDuration.Observe(now.Sub(last).Seconds())
		last = now

		if st.Iteration%progressEvery != 0 && st.Iteration != total {
			return
		}
		s.progress.Publish(ProgressEvent{
			RunID:     run.ID,
			GraphID:   run.GraphID,
			Status:    StatusRunning,
			Iteration: st.Iteration,
			Total:     total,
			Speed:     st.Speed,
			MaxMove:   st.MaxMove,
		})
	}
}

func (s *Service) invalidate(graphID uuid.UUID) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(cache.GraphPayloadKey(graphID.String()))
	s.cache.Delete(cache.GraphListKey)
}

func parseOverrides(run db.LayoutRun) (*RunOverrides, error) {
	if !run.Config.Valid {
		return nil, nil
	}
	var ov RunOverrides
	if err := json.Unmarshal(run.Config.RawMessage, &ov); err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}
	return &ov, nil
}

// resolveSeed picks the scatter seed: per-run override, then LAYOUT_SEED,
// then the clock.
func resolveSeed(ov *RunOverrides) int64 {
	if ov != nil && ov.Seed != nil {
		return *ov.Seed
	}
	if seed := config.Load().LayoutSeed; seed != 0 {
		return seed
	}
	return time.Now().UnixNano()
}

// buildEngineConfig merges environment defaults with per-run overrides. The
// graph row decides the dimension count.
func buildEngineConfig(g db.Graph, nodeCount int, ov *RunOverrides) layout.Config {
	cfg := config.Load()

	lc := layout.Config{
		Iterations:                     cfg.LayoutIterations,
		Theta:                          cfg.LayoutTheta,
		Gravity:                        cfg.LayoutGravity,
		StrongGravity:                  cfg.LayoutStrongGravity,
		ScalingRatio:                   cfg.LayoutScalingRatio,
		EdgeWeightInfluence:            cfg.LayoutEdgeWeightInfluence,
		PreventOverlap:                 cfg.LayoutPreventOverlap,
		LinLogMode:                     cfg.LayoutLinLog,
		OutboundAttractionDistribution: cfg.LayoutOutboundAttraction,
		BarnesHutOptimize:              cfg.LayoutBarnesHut,
		Threshold:                      cfg.LayoutThreshold,
		ThreadCount:                    cfg.LayoutThreads,
		Dimensions:                     int(g.Dimensions),
		JitterTolerance:                cfg.LayoutJitterTolerance,
		MaxDisplacement:                cfg.LayoutMaxDisplacement,
	}

	if ov != nil {
		if ov.Iterations != nil {
			lc.Iterations = *ov.Iterations
		}
		if ov.Theta != nil {
			lc.Theta = *ov.Theta
		}
		if ov.Gravity != nil {
			lc.Gravity = *ov.Gravity
		}
		if ov.StrongGravity != nil {
			lc.StrongGravity = *ov.StrongGravity
		}
		if ov.ScalingRatio != nil {
			lc.ScalingRatio = *ov.ScalingRatio
		}
		if ov.EdgeWeightInfluence != nil {
			lc.EdgeWeightInfluence = *ov.EdgeWeightInfluence
		}
		if ov.PreventOverlap != nil {
			lc.PreventOverlap = *ov.PreventOverlap
		}
		if ov.LinLog != nil {
			lc.LinLogMode = *ov.LinLog
		}
		if ov.OutboundAttraction != nil {
			lc.OutboundAttractionDistribution = *ov.OutboundAttraction
		}
		if ov.BarnesHut != nil {
			lc.BarnesHutOptimize = *ov.BarnesHut
		}
		if ov.Threshold != nil {
			lc.Threshold = *ov.Threshold
		}
		if ov.JitterTolerance != nil {
			lc.JitterTolerance = *ov.JitterTolerance
		}
		if ov.MaxDisplacement != nil {
			lc.MaxDisplacement = *ov.MaxDisplacement
		}
	}

	if (ov == nil || ov.ScalingRatio == nil) && lc.ScalingRatio == stockScalingRatio && nodeCount < smallGraphNodeLimit {
		lc.ScalingRatio = smallGraphScalingRatio
	}

	return lc
}

func observeDB(operation string, start time.Time, err error) {
	metrics.DBOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DBOperationErrors.WithLabelValues(operation).Inc()
	}
}
