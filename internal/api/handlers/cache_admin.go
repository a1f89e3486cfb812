package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/forcemap/internal/cache"
)

// CacheAdminHandler exposes the response cache to operators. Layout runs
// invalidate their own keys, so flushing is only needed after out-of-band
// database edits.
type CacheAdminHandler struct {
	cache cache.Cache
}

func NewCacheAdminHandler(c cache.Cache) *CacheAdminHandler {
	return &CacheAdminHandler{cache: c}
}

// FlushCache clears all cached graph payloads.
// POST /admin/cache/flush
func (h *CacheAdminHandler) FlushCache(w http.ResponseWriter, r *http.Request) {
	h.cache.Clear()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"message": "Cache flushed successfully",
	})
}

// GetCacheStats returns current cache statistics.
// GET /admin/cache/stats
func (h *CacheAdminHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	stats := h.cache.Stats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"keysAdded": stats.KeysAdded,
		"evictions": stats.Evictions,
		"sizeBytes": stats.Size,
		"items":     stats.Items,
	})
}
