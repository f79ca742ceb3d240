package app

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
)

type Config struct {
	HTTPHost        string
	HTTPPort        int
	WorkerCount     int
	MediaRoot       string
	OptimizedRoot   string
	IdleTimeout     time.Duration
	AcceptRate      float64 // accepted connections per second; 0 = unlimited
	AcceptBurst     int
	AdminAddr       string // empty disables the admin listener
	LogLevel        string
	LogFormat       string
	IndexBackend    string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	RedisURL        string
	RedisPrefix     string
	ScanOnStart     bool
	ServiceName     string
	OTLPEndpoint    string  // empty disables tracing
	TraceSampleRate float64 // 0..1
}

// fileConfig mirrors Config for the optional YAML file. Nil fields keep the
// default.
type fileConfig struct {
	HTTPHost           *string  `yaml:"httpHost"`
	HTTPPort           *int     `yaml:"httpPort"`
	WorkerCount        *int     `yaml:"workerCount"`
	MediaRoot          *string  `yaml:"mediaRoot"`
	OptimizedRoot      *string  `yaml:"optimizedRoot"`
	IdleTimeoutSeconds *int64   `yaml:"idleTimeoutSeconds"`
	AcceptRate         *float64 `yaml:"acceptRate"`
	AcceptBurst        *int     `yaml:"acceptBurst"`
	AdminAddr          *string  `yaml:"adminAddr"`
	LogLevel           *string  `yaml:"logLevel"`
	LogFormat          *string  `yaml:"logFormat"`
	IndexBackend       *string  `yaml:"indexBackend"`
	Mongo              struct {
		URI        *string `yaml:"uri"`
		Database   *string `yaml:"database"`
		Collection *string `yaml:"collection"`
	} `yaml:"mongo"`
	Redis struct {
		URL    *string `yaml:"url"`
		Prefix *string `yaml:"prefix"`
	} `yaml:"redis"`
	ScanOnStart *bool `yaml:"scanOnStart"`
	Tracing     struct {
		ServiceName *string  `yaml:"serviceName"`
		Endpoint    *string  `yaml:"endpoint"`
		SampleRate  *float64 `yaml:"sampleRate"`
	} `yaml:"tracing"`
}

func DefaultConfig() Config {
	return Config{
		HTTPHost:        "0.0.0.0",
		HTTPPort:        8080,
		WorkerCount:     runtime.NumCPU(),
		MediaRoot:       "media",
		OptimizedRoot:   "media/optimized",
		IdleTimeout:     30 * time.Second,
		AcceptRate:      0,
		AcceptBurst:     64,
		AdminAddr:       ":9090",
		LogLevel:        "info",
		LogFormat:       "text",
		IndexBackend:    BackendMemory,
		MongoURI:        "mongodb://localhost:27017",
		MongoDatabase:   "videostream",
		MongoCollection: "media",
		RedisURL:        "redis://localhost:6379/0",
		RedisPrefix:     "videostream:",
		ScanOnStart:     true,
		ServiceName:     "videostream",
		TraceSampleRate: 0.1,
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file
// named by CONFIG_FILE (if any), then environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	cfg.HTTPHost = getEnv("HTTP_HOST", cfg.HTTPHost)
	cfg.HTTPPort = int(getEnvInt64("HTTP_PORT", int64(cfg.HTTPPort)))
	cfg.WorkerCount = int(getEnvInt64("WORKER_COUNT", int64(cfg.WorkerCount)))
	cfg.MediaRoot = getEnv("MEDIA_ROOT", cfg.MediaRoot)
	cfg.OptimizedRoot = getEnv("OPTIMIZED_ROOT", cfg.OptimizedRoot)
	cfg.IdleTimeout = time.Duration(getEnvInt64("IDLE_TIMEOUT_SECONDS", int64(cfg.IdleTimeout/time.Second))) * time.Second
	cfg.AcceptRate = getEnvFloat("ACCEPT_RATE", cfg.AcceptRate)
	cfg.AcceptBurst = int(getEnvInt64("ACCEPT_BURST", int64(cfg.AcceptBurst)))
	if addr, ok := os.LookupEnv("ADMIN_ADDR"); ok {
		cfg.AdminAddr = strings.TrimSpace(addr)
	}
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", cfg.LogFormat))
	cfg.IndexBackend = strings.ToLower(getEnv("INDEX_BACKEND", cfg.IndexBackend))
	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDatabase = getEnv("MONGO_DB", cfg.MongoDatabase)
	cfg.MongoCollection = getEnv("MONGO_COLLECTION", cfg.MongoCollection)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.RedisPrefix = getEnv("REDIS_PREFIX", cfg.RedisPrefix)
	cfg.ScanOnStart = getEnvBool("SCAN_ON_START", cfg.ScanOnStart)
	cfg.ServiceName = getEnv("OTEL_SERVICE_NAME", cfg.ServiceName)
	cfg.OTLPEndpoint = strings.TrimSpace(getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint))
	cfg.TraceSampleRate = getEnvFloat("OTEL_TRACE_SAMPLE_RATE", cfg.TraceSampleRate)

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http port %d out of range 1..65535", c.HTTPPort))
	}
	if c.WorkerCount < 0 {
		errs = append(errs, fmt.Errorf("worker count %d is negative", c.WorkerCount))
	}
	if c.AcceptRate < 0 {
		errs = append(errs, fmt.Errorf("accept rate %v is negative", c.AcceptRate))
	}
	if c.AcceptBurst < 0 {
		errs = append(errs, fmt.Errorf("accept burst %d is negative", c.AcceptBurst))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("idle timeout %s is negative", c.IdleTimeout))
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		errs = append(errs, fmt.Errorf("trace sample rate %v outside 0..1", c.TraceSampleRate))
	}
	if strings.TrimSpace(c.MediaRoot) == "" {
		errs = append(errs, errors.New("media root is empty"))
	}
	switch c.IndexBackend {
	case BackendMemory, BackendMongo, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown index backend %q", c.IndexBackend))
	}
	return errors.Join(errs...)
}

// Addr is the host:port the media listener binds.
func (c Config) Addr() string {
	return c.HTTPHost + ":" + strconv.Itoa(c.HTTPPort)
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.HTTPHost, fc.HTTPHost)
	setInt(&cfg.HTTPPort, fc.HTTPPort)
	setInt(&cfg.WorkerCount, fc.WorkerCount)
	setString(&cfg.MediaRoot, fc.MediaRoot)
	setString(&cfg.OptimizedRoot, fc.OptimizedRoot)
	if fc.IdleTimeoutSeconds != nil {
		cfg.IdleTimeout = time.Duration(*fc.IdleTimeoutSeconds) * time.Second
	}
	if fc.AcceptRate != nil {
		cfg.AcceptRate = *fc.AcceptRate
	}
	setInt(&cfg.AcceptBurst, fc.AcceptBurst)
	setString(&cfg.AdminAddr, fc.AdminAddr)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	setString(&cfg.IndexBackend, fc.IndexBackend)
	setString(&cfg.MongoURI, fc.Mongo.URI)
	setString(&cfg.MongoDatabase, fc.Mongo.Database)
	setString(&cfg.MongoCollection, fc.Mongo.Collection)
	setString(&cfg.RedisURL, fc.Redis.URL)
	setString(&cfg.RedisPrefix, fc.Redis.Prefix)
	if fc.ScanOnStart != nil {
		cfg.ScanOnStart = *fc.ScanOnStart
	}
	setString(&cfg.ServiceName, fc.Tracing.ServiceName)
	setString(&cfg.OTLPEndpoint, fc.Tracing.Endpoint)
	if fc.Tracing.SampleRate != nil {
		cfg.TraceSampleRate = *fc.Tracing.SampleRate
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.IndexBackend = strings.ToLower(cfg.IndexBackend)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
