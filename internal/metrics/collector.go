package metrics

import (
	"context"
	"log"
	"time"

	"github.com/onnwee/forcemap/internal/cache"
	"github.com/onnwee/forcemap/internal/db"
)

// Collector periodically refreshes gauge metrics from the database and cache.
type Collector struct {
	queries  *db.Queries
	cache    cache.Cache
	interval time.Duration
	stop     chan struct{}
}

// NewCollector creates a collector. A nil cache skips cache stats collection.
func NewCollector(queries *db.Queries, c cache.Cache, interval time.Duration) *Collector {
	return &Collector{
		queries:  queries,
		cache:    c,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start begins periodic metric collection. Blocks until the context is
// canceled or Stop is called, so run it in a goroutine.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Collect immediately on startup
	c.collectMetrics(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.collectMetrics(ctx)
		}
	}
}

// Stop halts the collection loop.
func (c *Collector) Stop() {
	close(c.stop)
}

func (c *Collector) collectMetrics(ctx context.Context) {
	c.collectGraphStats(ctx)
	c.collectLayoutRunStats(ctx)
	c.collectCacheStats()
}

func (c *Collector) collectGraphStats(ctx context.Context) {
	stats, err := c.queries.GetGraphStats(ctx)
	if err != nil {
		log.Printf("⚠️ Failed to collect graph stats: %v", err)
		MetricsCollectionErrors.WithLabelValues("graph").Inc()
		// Signal staleness rather than freezing the last good value
		GraphsTotal.Set(-1)
		GraphNodesTotal.Set(-1)
		GraphLinksTotal.Set(-1)
		GraphNodesPositioned.Set(-1)
		return
	}

	GraphsTotal.Set(float64(stats.GraphCount))
	GraphNodesTotal.Set(float64(stats.NodeCount))
	GraphLinksTotal.Set(float64(stats.LinkCount))
	GraphNodesPositioned.Set(float64(stats.PositionedNodeCount))
}

func (c *Collector) collectLayoutRunStats(ctx context.Context) {
	stats, err := c.queries.GetLayoutRunStats(ctx)
	if err != nil {
		log.Printf("⚠️ Failed to collect layout run stats: %v", err)
		MetricsCollectionErrors.WithLabelValues("layout_runs").Inc()
		LayoutRunsPending.Set(-1)
		LayoutRunsRunning.Set(-1)
		LayoutRunsCompleted.Set(-1)
		LayoutRunsFailed.Set(-1)
		return
	}

	LayoutRunsPending.Set(float64(stats.PendingRuns))
	LayoutRunsRunning.Set(float64(stats.RunningRuns))
	LayoutRunsCompleted.Set(float64(stats.CompletedRuns))
	LayoutRunsFailed.Set(float64(stats.FailedRuns))
}

func (c *Collector) collectCacheStats() {
	if c.cache == nil {
		return
	}

	stats := c.cache.Stats()
	APICacheSize.Set(float64(stats.Size))
	APICacheItems.Set(float64(stats.Items))
	APICacheEvictions.Set(float64(stats.Evictions))
}
