package app

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

var configEnvVars = []string{
	"CONFIG_FILE", "HTTP_HOST", "HTTP_PORT", "WORKER_COUNT", "MEDIA_ROOT",
	"OPTIMIZED_ROOT", "IDLE_TIMEOUT_SECONDS", "ACCEPT_RATE", "ACCEPT_BURST",
	"ADMIN_ADDR", "LOG_LEVEL", "LOG_FORMAT", "INDEX_BACKEND",
	"MONGO_URI", "MONGO_DB", "MONGO_COLLECTION", "REDIS_URL", "REDIS_PREFIX",
	"SCAN_ON_START", "OTEL_SERVICE_NAME", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_TRACE_SAMPLE_RATE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"HTTPHost", cfg.HTTPHost, "0.0.0.0"},
		{"HTTPPort", cfg.HTTPPort, 8080},
		{"WorkerCount", cfg.WorkerCount, runtime.NumCPU()},
		{"MediaRoot", cfg.MediaRoot, "media"},
		{"OptimizedRoot", cfg.OptimizedRoot, "media/optimized"},
		{"IdleTimeout", cfg.IdleTimeout, 30 * time.Second},
		{"AcceptRate", cfg.AcceptRate, 0.0},
		{"AcceptBurst", cfg.AcceptBurst, 64},
		{"AdminAddr", cfg.AdminAddr, ":9090"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, "text"},
		{"IndexBackend", cfg.IndexBackend, "memory"},
		{"MongoURI", cfg.MongoURI, "mongodb://localhost:27017"},
		{"MongoDatabase", cfg.MongoDatabase, "videostream"},
		{"MongoCollection", cfg.MongoCollection, "media"},
		{"RedisURL", cfg.RedisURL, "redis://localhost:6379/0"},
		{"RedisPrefix", cfg.RedisPrefix, "videostream:"},
		{"ScanOnStart", cfg.ScanOnStart, true},
		{"ServiceName", cfg.ServiceName, "videostream"},
		{"OTLPEndpoint", cfg.OTLPEndpoint, ""},
		{"TraceSampleRate", cfg.TraceSampleRate, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearEnv(t)
	setEnvs(t, map[string]string{
		"HTTP_HOST":                   "127.0.0.1",
		"HTTP_PORT":                   "9000",
		"WORKER_COUNT":                "3",
		"MEDIA_ROOT":                  "/srv/videos",
		"IDLE_TIMEOUT_SECONDS":        "5",
		"ACCEPT_RATE":                 "250.5",
		"ACCEPT_BURST":                "10",
		"ADMIN_ADDR":                  "",
		"LOG_LEVEL":                   "DEBUG",
		"INDEX_BACKEND":               "Redis",
		"SCAN_ON_START":               "false",
		"OTEL_SERVICE_NAME":           "vs-edge",
		"OTEL_EXPORTER_OTLP_ENDPOINT": " http://otel:4318 ",
		"OTEL_TRACE_SAMPLE_RATE":      "0.5",
	})

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9000" {
		t.Fatalf("Addr = %q", cfg.Addr())
	}
	if cfg.WorkerCount != 3 || cfg.MediaRoot != "/srv/videos" {
		t.Fatalf("unexpected cfg %+v", cfg)
	}
	if cfg.IdleTimeout != 5*time.Second {
		t.Fatalf("IdleTimeout = %s", cfg.IdleTimeout)
	}
	if cfg.AcceptRate != 250.5 || cfg.AcceptBurst != 10 {
		t.Fatalf("accept pacing = %v/%d", cfg.AcceptRate, cfg.AcceptBurst)
	}
	if cfg.AdminAddr != "" {
		t.Fatalf("empty ADMIN_ADDR should disable the admin listener, got %q", cfg.AdminAddr)
	}
	if cfg.LogLevel != "debug" || cfg.IndexBackend != "redis" {
		t.Fatalf("values should be lower-cased: %q %q", cfg.LogLevel, cfg.IndexBackend)
	}
	if cfg.ScanOnStart {
		t.Fatalf("ScanOnStart should be false")
	}
	if cfg.ServiceName != "vs-edge" || cfg.OTLPEndpoint != "http://otel:4318" || cfg.TraceSampleRate != 0.5 {
		t.Fatalf("tracing settings = %q %q %v", cfg.ServiceName, cfg.OTLPEndpoint, cfg.TraceSampleRate)
	}
}

func TestLoadConfigInvalidNumbersFallBack(t *testing.T) {
	clearEnv(t)
	setEnvs(t, map[string]string{
		"HTTP_PORT":              "abc",
		"WORKER_COUNT":           "-4",
		"ACCEPT_RATE":            "-1",
		"SCAN_ON_START":          "maybe",
		"OTEL_TRACE_SAMPLE_RATE": "abc",
	})

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Fatalf("HTTPPort = %d, want fallback 8080", cfg.HTTPPort)
	}
	if cfg.WorkerCount != runtime.NumCPU() {
		t.Fatalf("WorkerCount = %d, want fallback", cfg.WorkerCount)
	}
	if cfg.AcceptRate != 0 {
		t.Fatalf("AcceptRate = %v, want fallback 0", cfg.AcceptRate)
	}
	if !cfg.ScanOnStart {
		t.Fatalf("ScanOnStart should fall back to true")
	}
	if cfg.TraceSampleRate != 0.1 {
		t.Fatalf("TraceSampleRate = %v, want fallback 0.1", cfg.TraceSampleRate)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "videostream.yaml")
	content := `
httpPort: 7000
mediaRoot: /data/media
idleTimeoutSeconds: 12
adminAddr: ""
indexBackend: mongo
mongo:
  uri: mongodb://db:27017
  database: vs
redis:
  prefix: "vs:"
scanOnStart: false
tracing:
  endpoint: collector:4318
  sampleRate: 0.25
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	setEnvs(t, map[string]string{
		"CONFIG_FILE": path,
		"HTTP_PORT":   "7001",
	})

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPPort != 7001 {
		t.Fatalf("env should override file: HTTPPort = %d", cfg.HTTPPort)
	}
	if cfg.MediaRoot != "/data/media" || cfg.IdleTimeout != 12*time.Second {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.AdminAddr != "" {
		t.Fatalf("AdminAddr = %q, want disabled", cfg.AdminAddr)
	}
	if cfg.IndexBackend != BackendMongo || cfg.MongoURI != "mongodb://db:27017" || cfg.MongoDatabase != "vs" {
		t.Fatalf("mongo settings not applied: %+v", cfg)
	}
	if cfg.MongoCollection != "media" {
		t.Fatalf("unset file field should keep default, got %q", cfg.MongoCollection)
	}
	if cfg.RedisPrefix != "vs:" || cfg.ScanOnStart {
		t.Fatalf("redis/scan settings not applied: %+v", cfg)
	}
	if cfg.OTLPEndpoint != "collector:4318" || cfg.TraceSampleRate != 0.25 || cfg.ServiceName != "videostream" {
		t.Fatalf("tracing settings not applied: %+v", cfg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadConfigMalformedFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("httpPort: [not a number"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port zero", func(c *Config) { c.HTTPPort = 0 }, "http port"},
		{"port too high", func(c *Config) { c.HTTPPort = 70000 }, "http port"},
		{"negative workers", func(c *Config) { c.WorkerCount = -1 }, "worker count"},
		{"negative burst", func(c *Config) { c.AcceptBurst = -1 }, "accept burst"},
		{"empty media root", func(c *Config) { c.MediaRoot = " " }, "media root"},
		{"sample rate above one", func(c *Config) { c.TraceSampleRate = 1.5 }, "trace sample rate"},
		{"unknown backend", func(c *Config) { c.IndexBackend = "sqlite" }, "unknown index backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
