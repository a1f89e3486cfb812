package config

import (
	"os"
	"strings"
	"time"

	"github.com/onnwee/forcemap/internal/utils"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	ServerAddr         string
	GraphQueryTimeout  time.Duration
	DBStatementTimeout time.Duration
	// Layout engine defaults; per-run request parameters override these.
	LayoutIterations          int
	LayoutTheta               float64
	LayoutGravity             float64
	LayoutStrongGravity       bool
	LayoutScalingRatio        float64
	LayoutEdgeWeightInfluence float64
	LayoutPreventOverlap      bool
	LayoutLinLog              bool
	LayoutOutboundAttraction  bool
	LayoutBarnesHut           bool
	LayoutThreshold           float64
	LayoutThreads             int
	LayoutDimensions          int
	LayoutJitterTolerance     float64
	LayoutMaxDisplacement     float64
	LayoutSeed                int64
	// Layout service settings
	LayoutMaxNodes  int     // maximum nodes to include in one layout computation
	LayoutBatchSize int     // batch size for position updates
	LayoutEpsilon   float64 // minimum movement before a position is rewritten (0 = write all)
	// Background relayout job control
	DisableLayoutJob  bool
	LayoutJobInterval time.Duration
	StaleRunAfter     time.Duration // running layout_runs older than this are marked failed
	VersionRetention  int           // layout versions kept per graph
	// Admin API token for gating mutating endpoints (Bearer token)
	AdminAPIToken string
	// Security settings
	RateLimitGlobal      float64  // requests per second globally
	RateLimitGlobalBurst int      // burst size for global rate limit
	RateLimitPerIP       float64  // requests per second per IP
	RateLimitPerIPBurst  int      // burst size for per-IP rate limit
	CORSAllowedOrigins   []string // allowed CORS origins
	EnableRateLimit      bool     // enable rate limiting middleware
	// Response cache settings
	CacheMaxSizeMB int
	CacheMaxItems  int
	CacheTTL       time.Duration
	// Observability settings
	LogLevel          string  // log level: debug, info, warn, error
	OTELEnabled       bool    // enable OpenTelemetry tracing
	OTELEndpoint      string  // OpenTelemetry collector endpoint
	OTELSampleRate    float64 // trace sampling rate (0.0 to 1.0)
	SentryDSN         string  // Sentry DSN for error reporting
	SentryEnvironment string  // Sentry environment (dev, staging, production)
	SentryRelease     string  // Sentry release version
	SentrySampleRate  float64 // Sentry error sampling rate (0.0 to 1.0)
}

var cached *Config

// Load reads env vars once and caches them.
func Load() *Config {
	if cached != nil {
		return cached
	}
	addr := strings.TrimSpace(os.Getenv("SERVER_ADDR"))
	if addr == "" {
		addr = ":8000"
	}
	cached = &Config{
		ServerAddr:         addr,
		GraphQueryTimeout:  time.Duration(utils.GetEnvAsInt("GRAPH_QUERY_TIMEOUT_MS", 30000)) * time.Millisecond,
		DBStatementTimeout: time.Duration(utils.GetEnvAsInt("DB_STATEMENT_TIMEOUT_MS", 25000)) * time.Millisecond,
		// Engine defaults mirror layout.DefaultConfig, overridable per deployment.
		LayoutIterations:          utils.GetEnvAsInt("LAYOUT_ITERATIONS", 100),
		LayoutTheta:               utils.GetEnvAsFloat("LAYOUT_THETA", 1.2),
		LayoutGravity:             utils.GetEnvAsFloat("LAYOUT_GRAVITY", 1.0),
		LayoutStrongGravity:       utils.GetEnvAsBool("LAYOUT_STRONG_GRAVITY", false),
		LayoutScalingRatio:        utils.GetEnvAsFloat("LAYOUT_SCALING_RATIO", 2.0),
		LayoutEdgeWeightInfluence: utils.GetEnvAsFloat("LAYOUT_EDGE_WEIGHT_INFLUENCE", 1.0),
		LayoutPreventOverlap:      utils.GetEnvAsBool("LAYOUT_PREVENT_OVERLAP", false),
		LayoutLinLog:              utils.GetEnvAsBool("LAYOUT_LINLOG", false),
		LayoutOutboundAttraction:  utils.GetEnvAsBool("LAYOUT_OUTBOUND_ATTRACTION", false),
		LayoutBarnesHut:           utils.GetEnvAsBool("LAYOUT_BARNES_HUT", true),
		LayoutThreshold:           utils.GetEnvAsFloat("LAYOUT_THRESHOLD", 0),
		LayoutThreads:             utils.GetEnvAsInt("LAYOUT_THREADS", 0),
		LayoutDimensions:          utils.GetEnvAsInt("LAYOUT_DIMENSIONS", 2),
		LayoutJitterTolerance:     utils.GetEnvAsFloat("LAYOUT_JITTER_TOLERANCE", 1.0),
		LayoutMaxDisplacement:     utils.GetEnvAsFloat("LAYOUT_MAX_DISPLACEMENT", 10.0),
		LayoutSeed:                int64(utils.GetEnvAsInt("LAYOUT_SEED", 0)),
		LayoutMaxNodes:            utils.GetEnvAsInt("LAYOUT_MAX_NODES", 100000),
		LayoutBatchSize:           utils.GetEnvAsInt("LAYOUT_BATCH_SIZE", 5000),
		LayoutEpsilon:             utils.GetEnvAsFloat("LAYOUT_EPSILON", 0.0),
		DisableLayoutJob:          utils.GetEnvAsBool("DISABLE_LAYOUT_JOB", false),
		LayoutJobInterval:         time.Duration(utils.GetEnvAsInt("LAYOUT_JOB_INTERVAL_MIN", 60)) * time.Minute,
		StaleRunAfter:             time.Duration(utils.GetEnvAsInt("STALE_RUN_AFTER_MIN", 15)) * time.Minute,
		VersionRetention:          utils.GetEnvAsInt("LAYOUT_VERSION_RETENTION", 10),
		AdminAPIToken:             strings.TrimSpace(os.Getenv("ADMIN_API_TOKEN")),
		// Security settings with sensible defaults
		RateLimitGlobal:      utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", 100.0),
		RateLimitGlobalBurst: utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", 200),
		RateLimitPerIP:       utils.GetEnvAsFloat("RATE_LIMIT_PER_IP", 10.0),
		RateLimitPerIPBurst:  utils.GetEnvAsInt("RATE_LIMIT_PER_IP_BURST", 20),
		EnableRateLimit:      utils.GetEnvAsBool("ENABLE_RATE_LIMIT", true),
		CORSAllowedOrigins: utils.GetEnvAsSlice("CORS_ALLOWED_ORIGINS",
			[]string{"http://localhost:5173", "http://localhost:3000"}, ","),
		CacheMaxSizeMB: utils.GetEnvAsInt("CACHE_MAX_SIZE_MB", 64),
		CacheMaxItems:  utils.GetEnvAsInt("CACHE_MAX_ITEMS", 1000),
		CacheTTL:       time.Duration(utils.GetEnvAsInt("CACHE_TTL_SEC", 60)) * time.Second,
		// Observability settings
		LogLevel:          strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
		OTELEnabled:       utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSampleRate:    utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		SentryEnvironment: strings.TrimSpace(os.Getenv("SENTRY_ENVIRONMENT")),
		SentryRelease:     strings.TrimSpace(os.Getenv("SENTRY_RELEASE")),
		SentrySampleRate:  utils.GetEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
	}
	if cached.LogLevel == "" {
		cached.LogLevel = "info"
	}
	if cached.SentryEnvironment == "" {
		if env := os.Getenv("ENV"); env != "" {
			cached.SentryEnvironment = env
		} else {
			cached.SentryEnvironment = "development"
		}
	}

	return cached
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }

// GetEnvBool reads a boolean environment variable with a default.
// Use this when you need to check a flag not present in the cached config.
func (c *Config) GetEnvBool(key string, def bool) bool {
	return utils.GetEnvAsBool(key, def)
}
