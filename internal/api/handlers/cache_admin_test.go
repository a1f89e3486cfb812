package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onnwee/forcemap/internal/cache"
)

func TestFlushCache(t *testing.T) {
	c := cache.NewMockCache()
	c.Set(cache.GraphPayloadKey("g1"), []byte(`{"nodes":[]}`), time.Minute)
	c.Set(cache.GraphListKey, []byte(`[]`), time.Minute)

	h := NewCacheAdminHandler(c)
	req := httptest.NewRequest(http.MethodPost, "/admin/cache/flush", nil)
	rec := httptest.NewRecorder()
	h.FlushCache(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, ok := c.Get(cache.GraphPayloadKey("g1")); ok {
		t.Error("payload key survived the flush")
	}
	if _, ok := c.Get(cache.GraphListKey); ok {
		t.Error("list key survived the flush")
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestGetCacheStats(t *testing.T) {
	c := cache.NewMockCache()
	c.Set(cache.GraphPayloadKey("g1"), []byte(`{"nodes":[]}`), time.Minute)
	c.Get(cache.GraphPayloadKey("g1"))
	c.Get(cache.GraphPayloadKey("missing"))

	h := NewCacheAdminHandler(c)
	req := httptest.NewRequest(http.MethodGet, "/admin/cache/stats", nil)
	rec := httptest.NewRecorder()
	h.GetCacheStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]float64
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["hits"] != 1 {
		t.Errorf("expected 1 hit, got %v", body["hits"])
	}
	if body["misses"] != 1 {
		t.Errorf("expected 1 miss, got %v", body["misses"])
	}
	if body["items"] != 1 {
		t.Errorf("expected 1 item, got %v", body["items"])
	}
}
