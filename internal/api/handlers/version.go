package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/forcemap/internal/apierr"
	"github.com/onnwee/forcemap/internal/cache"
	"github.com/onnwee/forcemap/internal/db"
	"github.com/onnwee/forcemap/internal/logger"
)

// maxDiffSpan caps how many versions a single diff request may cross.
// Clients further behind refetch the full payload instead.
const maxDiffSpan = 100

// VersionReader reads layout version and diff rows. *db.Queries satisfies it.
type VersionReader interface {
	GetLatestLayoutVersion(ctx context.Context, graphID uuid.UUID) (db.LayoutVersion, error)
	ListLayoutVersions(ctx context.Context, arg db.ListLayoutVersionsParams) ([]db.LayoutVersion, error)
	GetLayoutDiffs(ctx context.Context, versionID int64) ([]db.LayoutDiff, error)
}

// VersionHandler handles layout version history endpoints.
type VersionHandler struct {
	queries VersionReader
	cache   cache.Cache
}

// NewVersionHandler creates a new version handler.
func NewVersionHandler(q VersionReader, c cache.Cache) *VersionHandler {
	return &VersionHandler{queries: q, cache: c}
}

// LayoutVersionResponse is one recorded layout version.
type LayoutVersionResponse struct {
	ID        int64     `json:"id"`
	Version   int32     `json:"version"`
	NodeCount int32     `json:"node_count"`
	LinkCount int32     `json:"link_count"`
	CreatedAt time.Time `json:"created_at"`
}

// LayoutDiffEntry is a single node position change.
type LayoutDiffEntry struct {
	Version    int32    `json:"version"`
	NodeID     string   `json:"node_id"`
	ChangeType string   `json:"change_type"` // add, update, remove
	OldX       *float64 `json:"old_x,omitempty"`
	OldY       *float64 `json:"old_y,omitempty"`
	OldZ       *float64 `json:"old_z,omitempty"`
	NewX       *float64 `json:"new_x,omitempty"`
	NewY       *float64 `json:"new_y,omitempty"`
	NewZ       *float64 `json:"new_z,omitempty"`
}

// LayoutDiffResponse lists position changes since a version.
type LayoutDiffResponse struct {
	GraphID        uuid.UUID         `json:"graph_id"`
	SinceVersion   int32             `json:"since_version"`
	CurrentVersion int32             `json:"current_version"`
	Changes        []LayoutDiffEntry `json:"changes"`
	TotalChanges   int               `json:"total_changes"`
	NodesAdded     int               `json:"nodes_added"`
	NodesUpdated   int               `json:"nodes_updated"`
	NodesRemoved   int               `json:"nodes_removed"`
}

// ListVersions returns recorded layout versions for a graph, newest first.
// GET /graphs/{id}/versions?limit=N
func (h *VersionHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := parseGraphID(w, r)
	if !ok {
		return
	}

	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	if limit < 1 || limit > 200 {
		limit = 20
	}

	versions, err := h.queries.ListLayoutVersions(ctx, db.ListLayoutVersionsParams{GraphID: id, Limit: int32(limit)})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list layout versions", "error", err, "graph_id", id)
		apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to list layout versions"))
		return
	}

	out := make([]LayoutVersionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, LayoutVersionResponse{
			ID:        v.ID,
			Version:   v.Version,
			NodeCount: v.NodeCount,
			LinkCount: v.LinkCount,
			CreatedAt: v.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// GetDiffSince returns node position changes since a specific version.
// GET /graphs/{id}/diff?since=N
func (h *VersionHandler) GetDiffSince(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := parseGraphID(w, r)
	if !ok {
		return
	}

	sinceStr := r.URL.Query().Get("since")
	if sinceStr == "" {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("since"))
		return
	}
	since := parseIntDefault(sinceStr, -1)
	if since < 0 {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("since", "must be a non-negative integer"))
		return
	}
	sinceVersion := int32(since)

	latest, err := h.queries.GetLatestLayoutVersion(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apierr.WriteErrorWithContext(w, r, apierr.ResourceNotFound("layout version"))
			return
		}
		logger.ErrorContext(ctx, "Failed to get latest layout version", "error", err, "graph_id", id)
		apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to fetch layout version"))
		return
	}

	if sinceVersion >= latest.Version {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("since", "must be less than the current version"))
		return
	}
	if latest.Version-sinceVersion > maxDiffSpan {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("since",
			"version is too far behind; refetch the full graph payload"))
		return
	}

	// The current version is part of the key so a new layout run naturally
	// invalidates cached diffs.
	cacheKey := fmt.Sprintf("graph:%s:diff:since:%d:current:%d", id, sinceVersion, latest.Version)
	if cached, found := h.cache.Get(cacheKey); found {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		_, _ = w.Write(cached)
		return
	}

	span := latest.Version - sinceVersion
	versions, err := h.queries.ListLayoutVersions(ctx, db.ListLayoutVersionsParams{GraphID: id, Limit: span})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list layout versions for diff", "error", err, "graph_id", id)
		apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to fetch layout versions"))
		return
	}

	// Oldest first so later changes override earlier ones on the client.
	wanted := make([]db.LayoutVersion, 0, len(versions))
	for _, v := range versions {
		if v.Version > sinceVersion {
			wanted = append(wanted, v)
		}
	}
	sort.Slice(wanted, func(i, j int) bool { return wanted[i].Version < wanted[j].Version })

	// Retention may have pruned versions immediately after sinceVersion.
	if len(wanted) == 0 || wanted[0].Version != sinceVersion+1 {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("since",
			"version is no longer available; refetch the full graph payload"))
		return
	}

	response := LayoutDiffResponse{
		GraphID:        id,
		SinceVersion:   sinceVersion,
		CurrentVersion: latest.Version,
		Changes:        make([]LayoutDiffEntry, 0),
	}

	for _, v := range wanted {
		diffs, err := h.queries.GetLayoutDiffs(ctx, v.ID)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to fetch layout diffs", "error", err, "version_id", v.ID)
			apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase("Failed to fetch layout diffs"))
			return
		}
		for _, d := range diffs {
			entry := LayoutDiffEntry{
				Version:    v.Version,
				NodeID:     d.NodeID,
				ChangeType: d.ChangeType,
			}
			entry.OldX = nullFloatPtr(d.OldX)
			entry.OldY = nullFloatPtr(d.OldY)
			entry.OldZ = nullFloatPtr(d.OldZ)
			entry.NewX = nullFloatPtr(d.NewX)
			entry.NewY = nullFloatPtr(d.NewY)
			entry.NewZ = nullFloatPtr(d.NewZ)

			switch d.ChangeType {
			case "add":
				response.NodesAdded++
			case "update":
				response.NodesUpdated++
			case "remove":
				response.NodesRemoved++
			}
			response.Changes = append(response.Changes, entry)
		}
	}
	response.TotalChanges = len(response.Changes)

	data, err := json.Marshal(response)
	if err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.SystemInternal("Failed to serialize response"))
		return
	}
	h.cache.Set(cacheKey, data, 5*time.Minute)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	_, _ = w.Write(data)
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
