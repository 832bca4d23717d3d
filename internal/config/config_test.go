package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleethours.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Report.Timezone != "UTC" {
		t.Errorf("Expected timezone UTC, got %s", cfg.Report.Timezone)
	}
	if cfg.Storage.Redis.Port != 6379 {
		t.Errorf("Expected Redis port 6379, got %d", cfg.Storage.Redis.Port)
	}
	if cfg.Scheduler.RunTime != "00:15" {
		t.Errorf("Expected run time 00:15, got %s", cfg.Scheduler.RunTime)
	}
	if len(cfg.Scheduler.Kinds) != 2 {
		t.Errorf("Expected 2 scheduler kinds, got %v", cfg.Scheduler.Kinds)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
events:
  mongo:
    uri: mongodb://events.internal:27017
    database: freeride
report:
  timezone: America/Los_Angeles
  locations: [loc-1, loc-2]
scheduler:
  enabled: true
  run_time: "02:30"
  kinds: [vehicles]
`)
	t.Setenv("FLEETHOURS_STORAGE_REDIS_HOST", "redis.internal")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Events.Mongo.URI != "mongodb://events.internal:27017" {
		t.Errorf("Unexpected mongo uri: %s", cfg.Events.Mongo.URI)
	}
	if cfg.Events.Mongo.Collection != "events" {
		t.Errorf("Expected default collection, got %s", cfg.Events.Mongo.Collection)
	}
	if len(cfg.Report.Locations) != 2 {
		t.Errorf("Expected 2 locations, got %v", cfg.Report.Locations)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.RunTime != "02:30" {
		t.Errorf("Unexpected scheduler config: %+v", cfg.Scheduler)
	}
	if cfg.Storage.Redis.Host != "redis.internal" {
		t.Errorf("Expected env override for redis host, got %s", cfg.Storage.Redis.Host)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"bad timezone", "report:\n  timezone: Mars/Olympus\n", "report.timezone"},
		{"bad run time", "scheduler:\n  run_time: \"25:00\"\n", "run_time"},
		{"bad kind", "scheduler:\n  kinds: [trucks]\n", "scheduler kind"},
		{"bad duration", "report:\n  fetch_timeout: soon\n", "report.fetch_timeout"},
		{"bad port", "server:\n  metrics_port: 70000\n", "metrics port"},
		{"bad format", "logging:\n  format: xml\n", "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseRunTime(t *testing.T) {
	h, m, err := ParseRunTime("07:45")
	if err != nil {
		t.Fatalf("ParseRunTime failed: %v", err)
	}
	if h != 7 || m != 45 {
		t.Errorf("Expected 07:45, got %02d:%02d", h, m)
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	for _, key := range []string{"events.mongo.uri", "storage.redis.report_ttl", "scheduler.kinds", "logging.format"} {
		if !keys[key] {
			t.Errorf("Expected %s to be a known key", key)
		}
	}
	if keys["storage.type"] {
		t.Error("storage.type should not be a known key")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Events.Mongo.Collection != "events" {
		t.Errorf("Expected default collection events, got %s", cfg.Events.Mongo.Collection)
	}
	if cfg.Identity.CacheSize != 10000 {
		t.Errorf("Expected cache size 10000, got %d", cfg.Identity.CacheSize)
	}
}
