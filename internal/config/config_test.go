package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// ensure defaults kick in with empty env
	os.Unsetenv("SERVER_ADDR")
	os.Unsetenv("LAYOUT_ITERATIONS")
	os.Unsetenv("LAYOUT_THETA")
	os.Unsetenv("LAYOUT_SCALING_RATIO")
	os.Unsetenv("LAYOUT_BATCH_SIZE")
	os.Unsetenv("LAYOUT_JOB_INTERVAL_MIN")
	ResetForTest()

	cfg := Load()
	if cfg.ServerAddr != ":8000" {
		t.Fatalf("expected default addr :8000, got %q", cfg.ServerAddr)
	}
	if cfg.LayoutIterations != 100 {
		t.Fatalf("expected default iterations=100, got %d", cfg.LayoutIterations)
	}
	if cfg.LayoutTheta != 1.2 || cfg.LayoutScalingRatio != 2.0 {
		t.Fatalf("unexpected engine defaults: theta=%v scaling=%v", cfg.LayoutTheta, cfg.LayoutScalingRatio)
	}
	if cfg.LayoutBatchSize != 5000 {
		t.Fatalf("expected default batch size=5000, got %d", cfg.LayoutBatchSize)
	}
	if cfg.LayoutJobInterval != time.Hour {
		t.Fatalf("expected default job interval=1h, got %v", cfg.LayoutJobInterval)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	os.Setenv("LAYOUT_ITERATIONS", "250")
	os.Setenv("LAYOUT_DIMENSIONS", "3")
	os.Setenv("LAYOUT_LINLOG", "true")
	os.Setenv("LAYOUT_EPSILON", "0.5")
	os.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Cleanup(func() {
		os.Unsetenv("LAYOUT_ITERATIONS")
		os.Unsetenv("LAYOUT_DIMENSIONS")
		os.Unsetenv("LAYOUT_LINLOG")
		os.Unsetenv("LAYOUT_EPSILON")
		os.Unsetenv("CORS_ALLOWED_ORIGINS")
		ResetForTest()
	})
	ResetForTest()

	cfg := Load()
	if cfg.LayoutIterations != 250 {
		t.Fatalf("expected iterations=250, got %d", cfg.LayoutIterations)
	}
	if cfg.LayoutDimensions != 3 {
		t.Fatalf("expected dimensions=3, got %d", cfg.LayoutDimensions)
	}
	if !cfg.LayoutLinLog {
		t.Fatal("expected linlog mode enabled")
	}
	if cfg.LayoutEpsilon != 0.5 {
		t.Fatalf("expected epsilon=0.5, got %v", cfg.LayoutEpsilon)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected CORS origins: %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadCaches(t *testing.T) {
	ResetForTest()
	first := Load()
	os.Setenv("LAYOUT_ITERATIONS", "999")
	t.Cleanup(func() {
		os.Unsetenv("LAYOUT_ITERATIONS")
		ResetForTest()
	})
	second := Load()
	if first != second {
		t.Fatal("expected Load to return the cached config")
	}
	if second.LayoutIterations == 999 {
		t.Fatal("cached config should not see env changes after first Load")
	}
}
