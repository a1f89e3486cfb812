package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/onnwee/forcemap/internal/config"
	"github.com/onnwee/forcemap/internal/db"
	"github.com/onnwee/forcemap/internal/metrics"
)

// Position changes smaller than this do not produce a diff row.
const diffEpsilon = 0.0001

// PositionSnapshot maps node IDs to stored coordinates at a point in time.
// Only positioned nodes appear; z is 0 for 2D graphs.
type PositionSnapshot map[string][3]float64

// VersionStore defines the operations needed for layout version tracking.
type VersionStore interface {
	GetNodePositions(ctx context.Context, graphID uuid.UUID) ([]db.GetNodePositionsRow, error)
	GetLatestLayoutVersion(ctx context.Context, graphID uuid.UUID) (db.LayoutVersion, error)
	CreateLayoutVersion(ctx context.Context, arg db.CreateLayoutVersionParams) (db.LayoutVersion, error)
	BatchInsertLayoutDiffs(ctx context.Context, versionID int64, diffs []db.DiffInsert, batchSize int) error
	DeleteLayoutVersionsBefore(ctx context.Context, arg db.DeleteLayoutVersionsBeforeParams) (int64, error)
}

// CapturePositionSnapshot reads the currently stored positions of one graph
// for later diff comparison.
func CapturePositionSnapshot(ctx context.Context, store VersionStore, graphID uuid.UUID) (PositionSnapshot, error) {
	rows, err := store.GetNodePositions(ctx, graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch node positions: %w", err)
	}

	snapshot := make(PositionSnapshot, len(rows))
	for _, row := range rows {
		if !row.PosX.Valid || !row.PosY.Valid {
			continue
		}
		var z float64
		if row.PosZ.Valid {
			z = row.PosZ.Float64
		}
		snapshot[row.ID] = [3]float64{row.PosX.Float64, row.PosY.Float64, z}
	}

	log.Printf("📸 Captured position snapshot for graph %s: %d positioned nodes", graphID, len(snapshot))
	return snapshot, nil
}

// CalculateDiffs compares a snapshot against freshly computed positions.
// Nodes gaining a position are adds, moved nodes are updates, and snapshot
// nodes missing from the result are removes.
func CalculateDiffs(old PositionSnapshot, result map[string][]float64) []db.DiffInsert {
	diffs := make([]db.DiffInsert, 0, len(result))

	for id, pos := range result {
		np := padPosition(pos)
		op, exists := old[id]
		if !exists {
			diffs = append(diffs, db.DiffInsert{
				NodeID:     id,
				ChangeType: "add",
				NewX:       sql.NullFloat64{Float64: np[0], Valid: true},
				NewY:       sql.NullFloat64{Float64: np[1], Valid: true},
				NewZ:       sql.NullFloat64{Float64: np[2], Valid: true},
			})
			continue
		}
		if positionMoved(op, np) {
			diffs = append(diffs, db.DiffInsert{
				NodeID:     id,
				ChangeType: "update",
				OldX:       sql.NullFloat64{Float64: op[0], Valid: true},
				OldY:       sql.NullFloat64{Float64: op[1], Valid: true},
				OldZ:       sql.NullFloat64{Float64: op[2], Valid: true},
				NewX:       sql.NullFloat64{Float64: np[0], Valid: true},
				NewY:       sql.NullFloat64{Float64: np[1], Valid: true},
				NewZ:       sql.NullFloat64{Float64: np[2], Valid: true},
			})
		}
	}

	for id, op := range old {
		if _, exists := result[id]; !exists {
			diffs = append(diffs, db.DiffInsert{
				NodeID:     id,
				ChangeType: "remove",
				OldX:       sql.NullFloat64{Float64: op[0], Valid: true},
				OldY:       sql.NullFloat64{Float64: op[1], Valid: true},
				OldZ:       sql.NullFloat64{Float64: op[2], Valid: true},
			})
		}
	}

	return diffs
}

// RecordLayoutVersion creates the next layout version for a graph and stores
// the position diffs against the previous state.
func RecordLayoutVersion(ctx context.Context, store VersionStore, graphID uuid.UUID, nodeCount, linkCount int32, old PositionSnapshot, result map[string][]float64) (db.LayoutVersion, error) {
	next := int32(1)
	latest, err := store.GetLatestLayoutVersion(ctx, graphID)
	switch {
	case err == nil:
		next = latest.Version + 1
	case errors.Is(err, sql.ErrNoRows):
		// first version
	default:
		return db.LayoutVersion{}, fmt.Errorf("failed to look up latest version: %w", err)
	}

	version, err := store.CreateLayoutVersion(ctx, db.CreateLayoutVersionParams{
		GraphID:   graphID,
		Version:   next,
		NodeCount: nodeCount,
		LinkCount: linkCount,
	})
	if err != nil {
		return db.LayoutVersion{}, fmt.Errorf("failed to create layout version: %w", err)
	}

	diffs := CalculateDiffs(old, result)
	if err := store.BatchInsertLayoutDiffs(ctx, version.ID, diffs, config.Load().LayoutBatchSize); err != nil {
		return db.LayoutVersion{}, fmt.Errorf("failed to store layout diffs: %w", err)
	}

	var adds, updates, removes int
	for _, d := range diffs {
		switch d.ChangeType {
		case "add":
			adds++
		case "update":
			updates++
		case "remove":
			removes++
		}
	}
	log.Printf("📊 Layout version %d for graph %s: +%d ~%d -%d", version.Version, graphID, adds, updates, removes)

	metrics.LayoutVersionsCreated.Inc()
	metrics.LayoutDiffRows.Add(float64(len(diffs)))

	return version, nil
}

// CleanupOldVersions deletes versions beyond the retention window.
func CleanupOldVersions(ctx context.Context, store VersionStore, graphID uuid.UUID) error {
	retention := int32(config.Load().VersionRetention)

	latest, err := store.GetLatestLayoutVersion(ctx, graphID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up latest version: %w", err)
	}
	if latest.Version <= retention {
		return nil
	}

	cutoff := latest.Version - retention + 1
	deleted, err := store.DeleteLayoutVersionsBefore(ctx, db.DeleteLayoutVersionsBeforeParams{
		GraphID: graphID,
		Version: cutoff,
	})
	if err != nil {
		return fmt.Errorf("failed to delete old versions: %w", err)
	}

	if deleted > 0 {
		log.Printf("🧹 Deleted %d old layout versions for graph %s (keeping %d)", deleted, graphID, retention)
	}
	return nil
}

// padPosition widens a 2D or 3D coordinate slice to a fixed triple.
func padPosition(pos []float64) [3]float64 {
	var p [3]float64
	copy(p[:], pos)
	return p
}

// positionMoved reports whether any coordinate changed beyond diffEpsilon.
func positionMoved(a, b [3]float64) bool {
	for d := 0; d < 3; d++ {
		diff := a[d] - b[d]
		if diff < 0 {
			diff = -diff
		}
		if diff >= diffEpsilon {
			return true
		}
	}
	return false
}
