package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	apihttp "videostream/internal/api/http"
	"videostream/internal/app"
	"videostream/internal/domain/ports"
	"videostream/internal/metrics"
	mongorepo "videostream/internal/repository/mongo"
	redisrepo "videostream/internal/repository/redis"
	"videostream/internal/storage/memory"
	"videostream/internal/telemetry"
	"videostream/internal/usecase"
)

// version is reported on traces and in the startup log.
const version = "1.0"

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("config load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg app.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
		IndexBackend:   cfg.IndexBackend,
	}, logger)
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", cfg.ServiceName),
		slog.String("version", version),
		slog.String("addr", cfg.Addr()),
		slog.Int("workers", cfg.WorkerCount),
		slog.String("mediaRoot", cfg.MediaRoot),
		slog.String("optimizedRoot", cfg.OptimizedRoot),
		slog.String("indexBackend", cfg.IndexBackend),
		slog.String("adminAddr", cfg.AdminAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	repo, closeRepo, err := buildRepository(connectCtx, cfg, logger)
	cancel()
	if err != nil {
		return err
	}
	defer closeRepo()

	if err := os.MkdirAll(cfg.MediaRoot, 0o755); err != nil {
		return fmt.Errorf("create media root: %w", err)
	}

	hub := apihttp.NewWSHub(logger)
	go hub.Run()
	defer hub.Close()

	svc := usecase.MediaService{
		Repo:     repo,
		Root:     cfg.MediaRoot,
		Observer: hub,
		Logger:   logger,
	}

	if cfg.ScanOnStart {
		if _, err := svc.ScanMediaDirectory(rootCtx, cfg.MediaRoot); err != nil {
			logger.Warn("initial scan failed", slog.String("error", err.Error()))
		}
	}

	srv := apihttp.NewServer(svc,
		apihttp.WithLogger(logger),
		apihttp.WithIdleTimeout(cfg.IdleTimeout),
		apihttp.WithAcceptRate(cfg.AcceptRate, cfg.AcceptBurst),
	)
	if err := srv.Start(cfg.HTTPHost, cfg.HTTPPort, cfg.WorkerCount); err != nil {
		return err
	}
	defer srv.Stop()

	errCh := make(chan error, 1)
	var admin *http.Server
	if cfg.AdminAddr != "" {
		admin = &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           apihttp.NewAdminHandler(svc, hub, prometheus.DefaultGatherer, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			errCh <- admin.ListenAndServe()
		}()
		logger.Info("admin server started", slog.String("addr", cfg.AdminAddr))
	}

	var runErr error
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("admin server: %w", err)
		}
	}

	srv.Stop()
	if admin != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := admin.Shutdown(shutdownCtx); err != nil {
			logger.Warn("admin shutdown error", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
	return runErr
}

// buildRepository opens the configured index backend. The returned close
// function releases its connections.
func buildRepository(ctx context.Context, cfg app.Config, logger *slog.Logger) (ports.MediaRepository, func(), error) {
	switch cfg.IndexBackend {
	case app.BackendMongo:
		client, err := mongorepo.Connect(ctx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("mongo ping: %w", err)
		}
		repo := mongorepo.NewRepository(client, cfg.MongoDatabase, cfg.MongoCollection, mongorepo.WithLogger(logger))
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
		}
		logger.Info("mongo index connected",
			slog.String("database", cfg.MongoDatabase),
			slog.String("collection", cfg.MongoCollection),
		)
		return repo, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
			}
		}, nil

	case app.BackendRedis:
		client, err := redisrepo.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("redis index connected", slog.String("prefix", cfg.RedisPrefix))
		repo := redisrepo.NewRepository(client, cfg.RedisPrefix, redisrepo.WithLogger(logger))
		return repo, func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close error", slog.String("error", err.Error()))
			}
		}, nil

	case app.BackendMemory, "":
		return memory.NewIndex(memory.WithLogger(logger)), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
