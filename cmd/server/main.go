package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/schedimport/internal/blob"
	"github.com/JonMunkholm/schedimport/internal/config"
	"github.com/JonMunkholm/schedimport/internal/core"
	"github.com/JonMunkholm/schedimport/internal/logging"
	"github.com/JonMunkholm/schedimport/internal/metrics"
	"github.com/JonMunkholm/schedimport/internal/store"
	"github.com/JonMunkholm/schedimport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"blob_local", cfg.Blob.Local,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	if cfg.Database.AutoMigrate {
		if err := store.Migrate(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		slog.Info("database migrated", "path", cfg.Database.MigrationsPath)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	blobs, err := openBlobStore(ctx, cfg.Blob)
	if err != nil {
		slog.Error("failed to open blob store", "error", err)
		os.Exit(1)
	}

	st := store.New(pool)
	scanner := blob.NewScanner(blobs, uint64(cfg.Import.ScanMaxRetries), cfg.Import.ScanRetryDelay)
	service := core.NewService(st, blobs, scanner, st, core.Options{
		MaxFileSize:      cfg.Import.MaxFileSize,
		MaxConcurrent:    cfg.Import.MaxConcurrent,
		MaxWait:          cfg.Import.MaxWaitTime,
		JobTimeout:       cfg.Import.JobTimeout,
		CommitMaxElapsed: cfg.Import.CommitMaxElapsed,
		JobRetention:     cfg.Import.JobRetention,
	})

	var collector *metrics.PoolStatsCollector
	if cfg.Metrics.Enabled {
		collector = metrics.NewPoolStatsCollector(pool)
		collector.Start(cfg.Metrics.PoolInterval)
	}

	server := web.NewServer(service, st, cfg)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Running imports keep their own timeout; wait for them to commit or fail.
		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.Shutdown(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if collector != nil {
			collector.Stop()
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openBlobStore returns the in-memory store for local runs, MinIO otherwise.
func openBlobStore(ctx context.Context, cfg config.BlobConfig) (blob.Store, error) {
	if cfg.Local {
		slog.Warn("using in-memory blob store, uploads are marked safe without scanning")
		return blob.NewMemoryStore(true), nil
	}

	s, err := blob.NewMinioStore(blob.MinioConfig{
		Endpoint:         cfg.Endpoint,
		AccessKey:        cfg.AccessKey,
		SecretKey:        cfg.SecretKey,
		UseSSL:           cfg.UseSSL,
		Region:           cfg.Region,
		Bucket:           cfg.Bucket,
		QuarantineBucket: cfg.QuarantineBucket,
	})
	if err != nil {
		return nil, err
	}
	if err := s.EnsureBuckets(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
