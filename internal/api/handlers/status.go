package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/onnwee/forcemap/internal/apierr"
	"github.com/onnwee/forcemap/internal/db"
	"github.com/onnwee/forcemap/internal/logger"
)

// StatsReader reads aggregate counts. *db.Queries satisfies it.
type StatsReader interface {
	GetGraphStats(ctx context.Context) (db.GetGraphStatsRow, error)
	GetLayoutRunStats(ctx context.Context) (db.GetLayoutRunStatsRow, error)
}

type graphStats struct {
	Graphs          int64 `json:"graphs"`
	Nodes           int64 `json:"nodes"`
	Links           int64 `json:"links"`
	PositionedNodes int64 `json:"positioned_nodes"`
}

type runStats struct {
	Pending   int64 `json:"pending"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// GetStatus reports stored graph totals and layout run counts.
// GET /status
func GetStatus(q StatsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		graphs, err := q.GetGraphStats(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to fetch graph stats", "error", err)
			apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to fetch graph stats"))
			return
		}
		runs, err := q.GetLayoutRunStats(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to fetch layout run stats", "error", err)
			apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to fetch layout run stats"))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"graphs": graphStats{
				Graphs:          graphs.GraphCount,
				Nodes:           graphs.NodeCount,
				Links:           graphs.LinkCount,
				PositionedNodes: graphs.PositionedNodeCount,
			},
			"layout_runs": runStats{
				Pending:   runs.PendingRuns,
				Running:   runs.RunningRuns,
				Completed: runs.CompletedRuns,
				Failed:    runs.FailedRuns,
			},
		})
	}
}
