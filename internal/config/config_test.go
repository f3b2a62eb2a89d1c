package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Sync.SourceKind != SourceRedis {
		t.Errorf("Expected redis source by default, got %s", cfg.Sync.SourceKind)
	}
	if cfg.Sync.Trending.PollInterval != 3*time.Second {
		t.Errorf("Expected 3s trending poll interval, got %v", cfg.Sync.Trending.PollInterval)
	}
	if !cfg.Sync.Streams.PatchFromEvents {
		t.Error("Expected streams list to patch from events by default")
	}
	if cfg.Sync.Trending.PatchFromEvents {
		t.Error("Expected trending list to refetch by default")
	}
	if cfg.API.RateLimitRPS != 100 {
		t.Errorf("Expected default rate limit 100, got %d", cfg.API.RateLimitRPS)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SYNC_TRENDING_POLL_INTERVAL", "10s")
	t.Setenv("GATEWAY_MAX_CONNECTIONS", "50")
	t.Setenv("SYNC_STREAMS_PATCH_FROM_EVENTS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Sync.Trending.PollInterval != 10*time.Second {
		t.Errorf("Expected overridden poll interval, got %v", cfg.Sync.Trending.PollInterval)
	}
	if cfg.Gateway.MaxConnections != 50 {
		t.Errorf("Expected overridden max connections, got %d", cfg.Gateway.MaxConnections)
	}
	if cfg.Sync.Streams.PatchFromEvents {
		t.Error("Expected patch-from-events disabled via env")
	}
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_PORT", "not-a-number")
	t.Setenv("SYNC_EXPLORE_POLL_INTERVAL", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Redis.Port != 6379 {
		t.Errorf("Expected fallback redis port, got %d", cfg.Redis.Port)
	}
	if cfg.Sync.Explore.PollInterval != 30*time.Second {
		t.Errorf("Expected fallback poll interval, got %v", cfg.Sync.Explore.PollInterval)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		return cfg
	}

	cfg := base()
	cfg.Sync.SourceKind = "memory"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for unknown source kind")
	}

	cfg = base()
	cfg.Sync.SourceKind = SourcePostgres
	cfg.Database.Host = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for postgres source without DB host")
	}

	cfg = base()
	cfg.Sync.Trending.PollInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero poll interval")
	}
}
