package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// NodeUpsert is one row for BatchUpsertGraphNodes.
type NodeUpsert struct {
	ID    string
	Label sql.NullString
	Size  float64
}

// LinkInsert is one row for BatchInsertGraphLinks.
type LinkInsert struct {
	Source string
	Target string
	Weight float64
}

// DiffInsert is one row for BatchInsertLayoutDiffs.
type DiffInsert struct {
	NodeID     string
	ChangeType string
	OldX       sql.NullFloat64
	OldY       sql.NullFloat64
	OldZ       sql.NullFloat64
	NewX       sql.NullFloat64
	NewY       sql.NullFloat64
	NewZ       sql.NullFloat64
}

// BatchUpsertGraphNodes performs a multi-row upsert into graph_nodes for one
// graph. It is a no-op for an empty slice. Batch size limits the number of
// rows per statement.
func (q *Queries) BatchUpsertGraphNodes(ctx context.Context, graphID uuid.UUID, nodes []NodeUpsert, batchSize int) error {
	if len(nodes) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	for start := 0; start < len(nodes); start += batchSize {
		end := start + batchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		batch := nodes[start:end]
		var sb strings.Builder
		sb.WriteString("INSERT INTO graph_nodes (graph_id,id,label,size) VALUES ")
		args := make([]any, 0, len(batch)*3+1)
		args = append(args, graphID)
		for i, n := range batch {
			if i > 0 {
				sb.WriteByte(',')
			}
			idx := i*3 + 2
			sb.WriteString(fmt.Sprintf("($1,$%d,$%d,$%d)", idx, idx+1, idx+2))
			args = append(args, n.ID, n.Label, n.Size)
		}
		sb.WriteString(" ON CONFLICT (graph_id,id) DO UPDATE SET label=EXCLUDED.label,size=EXCLUDED.size,updated_at=now()")
		if _, err := q.db.ExecContext(ctx, sb.String(), args...); err != nil {
			return err
		}
	}
	return nil
}

// BatchInsertGraphLinks inserts many graph_links rows with ON CONFLICT DO
// NOTHING semantics in batches. It de-duplicates (source,target) pairs
// client-side and joins against graph_nodes so rows referencing missing
// endpoints are dropped instead of failing the batch.
func (q *Queries) BatchInsertGraphLinks(ctx context.Context, graphID uuid.UUID, links []LinkInsert, batchSize int) error {
	if len(links) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 2000
	}
	seen := make(map[string]struct{}, len(links))
	dedup := make([]LinkInsert, 0, len(links))
	for _, l := range links {
		key := l.Source + "\x00" + l.Target
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dedup = append(dedup, l)
	}
	for start := 0; start < len(dedup); start += batchSize {
		end := start + batchSize
		if end > len(dedup) {
			end = len(dedup)
		}
		batch := dedup[start:end]
		var sb strings.Builder
		sb.WriteString("WITH vals(source, target, weight) AS (VALUES ")
		args := make([]any, 0, len(batch)*3+1)
		args = append(args, graphID)
		for i, l := range batch {
			if i > 0 {
				sb.WriteByte(',')
			}
			idx := i*3 + 2
			if i == 0 {
				sb.WriteString(fmt.Sprintf("($%d::text,$%d::text,$%d::float8)", idx, idx+1, idx+2))
			} else {
				sb.WriteString(fmt.Sprintf("($%d,$%d,$%d)", idx, idx+1, idx+2))
			}
			args = append(args, l.Source, l.Target, l.Weight)
		}
		sb.WriteString(") INSERT INTO graph_links (graph_id, source, target, weight) ")
		sb.WriteString("SELECT $1, v.source, v.target, v.weight FROM vals v ")
		sb.WriteString("JOIN graph_nodes s ON s.graph_id = $1 AND s.id = v.source ")
		sb.WriteString("JOIN graph_nodes t ON t.graph_id = $1 AND t.id = v.target ")
		sb.WriteString("ON CONFLICT (graph_id, source, target) DO NOTHING")
		if _, err := q.db.ExecContext(ctx, sb.String(), args...); err != nil {
			return err
		}
	}
	return nil
}

// BatchUpdateGraphNodePositions updates positions for multiple nodes in
// chunks to avoid large array binds. Nodes whose position moved less than
// epsilon are skipped when epsilon > 0. Returns the number of nodes updated.
func (q *Queries) BatchUpdateGraphNodePositions(ctx context.Context, graphID uuid.UUID, ids []string, x, y, z []float64, batchSize int, epsilon float64) (int, error) {
	if len(ids) == 0 || len(ids) != len(x) || len(ids) != len(y) || len(ids) != len(z) {
		return 0, fmt.Errorf("ids, x, y, z arrays must have the same non-zero length")
	}
	if batchSize <= 0 {
		batchSize = 5000
	}

	filtered := make([]int, 0, len(ids))
	if epsilon > 0 {
		query := "SELECT id, pos_x, pos_y, pos_z FROM graph_nodes WHERE graph_id = $1 AND id = ANY($2)"
		rows, err := q.db.QueryContext(ctx, query, graphID, pq.Array(ids))
		if err != nil {
			return 0, fmt.Errorf("failed to query existing positions: %w", err)
		}
		defer rows.Close()

		existing := make(map[string][3]float64)
		for rows.Next() {
			var id string
			var px, py, pz sql.NullFloat64
			if err := rows.Scan(&id, &px, &py, &pz); err != nil {
				return 0, fmt.Errorf("failed to scan position: %w", err)
			}
			if px.Valid && py.Valid && pz.Valid {
				existing[id] = [3]float64{px.Float64, py.Float64, pz.Float64}
			}
		}
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("failed to read existing positions: %w", err)
		}

		for i := range ids {
			if old, ok := existing[ids[i]]; ok {
				dx := x[i] - old[0]
				dy := y[i] - old[1]
				dz := z[i] - old[2]
				if dx*dx+dy*dy+dz*dz < epsilon*epsilon {
					continue
				}
			}
			filtered = append(filtered, i)
		}
	} else {
		for i := range ids {
			filtered = append(filtered, i)
		}
	}

	if len(filtered) == 0 {
		return 0, nil
	}

	totalUpdated := 0
	for start := 0; start < len(filtered); start += batchSize {
		end := start + batchSize
		if end > len(filtered) {
			end = len(filtered)
		}

		batchIDs := make([]string, end-start)
		batchX := make([]float64, end-start)
		batchY := make([]float64, end-start)
		batchZ := make([]float64, end-start)
		for i := start; i < end; i++ {
			idx := filtered[i]
			batchIDs[i-start] = ids[idx]
			batchX[i-start] = x[idx]
			batchY[i-start] = y[idx]
			batchZ[i-start] = z[idx]
		}

		if err := q.UpdateGraphNodePositions(ctx, UpdateGraphNodePositionsParams{
			GraphID: graphID,
			Column2: batchIDs,
			Column3: batchX,
			Column4: batchY,
			Column5: batchZ,
		}); err != nil {
			return totalUpdated, fmt.Errorf("failed to update batch %d-%d: %w", start, end, err)
		}
		totalUpdated += len(batchIDs)
	}

	return totalUpdated, nil
}

// BatchInsertLayoutDiffs inserts position change records for one layout
// version in batches.
func (q *Queries) BatchInsertLayoutDiffs(ctx context.Context, versionID int64, diffs []DiffInsert, batchSize int) error {
	if len(diffs) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	for start := 0; start < len(diffs); start += batchSize {
		end := start + batchSize
		if end > len(diffs) {
			end = len(diffs)
		}
		batch := diffs[start:end]
		var sb strings.Builder
		sb.WriteString("INSERT INTO layout_diffs (version_id,node_id,change_type,old_x,old_y,old_z,new_x,new_y,new_z) VALUES ")
		args := make([]any, 0, len(batch)*8+1)
		args = append(args, versionID)
		for i, d := range batch {
			if i > 0 {
				sb.WriteByte(',')
			}
			idx := i*8 + 2
			sb.WriteString(fmt.Sprintf("($1,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
				idx, idx+1, idx+2, idx+3, idx+4, idx+5, idx+6, idx+7))
			args = append(args, d.NodeID, d.ChangeType, d.OldX, d.OldY, d.OldZ, d.NewX, d.NewY, d.NewZ)
		}
		if _, err := q.db.ExecContext(ctx, sb.String(), args...); err != nil {
			return err
		}
	}
	return nil
}
