package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"agrokoperasi/backend/internal/audit"
	sqlitejournal "agrokoperasi/backend/internal/audit/sqlite"
	"agrokoperasi/backend/internal/cache"
	"agrokoperasi/backend/internal/config"
	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/export"
	"agrokoperasi/backend/internal/httpapi"
	"agrokoperasi/backend/internal/logger"
	"agrokoperasi/backend/internal/metrics"
	"agrokoperasi/backend/internal/service"
	"agrokoperasi/backend/internal/store"
	"agrokoperasi/backend/internal/store/memory"
	pgstore "agrokoperasi/backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zlog := logger.Must(logger.New(cfg.LogLevel, cfg.LogDevelopment))
	defer func() { _ = zlog.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		zlog.Fatal("invalid security configuration", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 4)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			zlog.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		if err := pg.Migrate(ctx); err != nil {
			zlog.Fatal("apply schema", zap.Error(err))
		}
		repo = pg
		closers = append(closers, pg.Close)
		zlog.Info("repository: postgres")
	} else if cfg.SeedDemo {
		repo = memory.NewSeeded(logger.Named(zlog, "store"))
		zlog.Info("repository: in-memory (seeded)")
	} else {
		repo = memory.New()
		zlog.Info("repository: in-memory")
	}

	m := metrics.New()

	recorder := audit.NewRecorder(logger.Named(zlog, "audit"), m, repo)
	if cfg.AuditJournalPath != "" {
		journal, err := sqlitejournal.Open(cfg.AuditJournalPath)
		if err != nil {
			zlog.Warn("audit journal unavailable, continuing without it", zap.Error(err))
		} else {
			recorder = recorder.WithJournal("sqlite", journal)
			closers = append(closers, journal.Close)
			zlog.Info("audit journal: sqlite", zap.String("path", cfg.AuditJournalPath))
		}
	}

	reports := cache.ReportCache(cache.NoopReportCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			zlog.Warn("redis unavailable, using noop report cache", zap.Error(err))
			_ = redisCache.Close()
		} else {
			reports = redisCache
			closers = append(closers, redisCache.Close)
			zlog.Info("report cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		zlog.Info("report cache: noop")
	}

	archiver := export.Archiver(export.NoopArchiver{})
	if cfg.ExportBucket != "" {
		s3Archiver, err := export.NewS3Archiver(ctx, export.S3Config{
			Bucket:    cfg.ExportBucket,
			Region:    cfg.ExportRegion,
			Endpoint:  cfg.ExportEndpoint,
			PathStyle: cfg.ExportPathStyle,
		})
		if err != nil {
			zlog.Warn("export archive unavailable", zap.Error(err))
		} else {
			archiver = s3Archiver
			zlog.Info("export archive: s3", zap.String("bucket", cfg.ExportBucket))
		}
	}

	svc := service.New(repo, service.Options{
		Audit:          recorder,
		Reports:        reports,
		ReportCacheTTL: cfg.ReportCacheTTL,
		Archiver:       archiver,
		Metrics:        m,
		Logger:         logger.Named(zlog, "service"),
		LoginDomain:    cfg.LoginDomain,
	})

	if cfg.BootstrapAdminUsername != "" {
		if err := svc.EnsureUser(ctx, cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword, domain.RoleSuperAdmin); err != nil {
			zlog.Fatal("bootstrap administrator", zap.Error(err))
		}
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL, svc)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Logger:        logger.Named(zlog, "http"),
		Metrics:       m,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zlog.Info("cooperative backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			zlog.Error("close error", zap.Error(err))
		}
	}

	zlog.Info("server stopped")
}

var placeholderSecrets = []string{"changeme", "change-me", "your-secret", "secret", "replace-me", "example"}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	lowered := strings.ToLower(cfg.AuthSecret)
	for _, placeholder := range placeholderSecrets {
		if strings.HasPrefix(lowered, placeholder) {
			return fmt.Errorf("AUTH_SECRET looks like a placeholder value")
		}
	}
	if cfg.BootstrapAdminUsername != "" && len(cfg.BootstrapAdminPassword) < 8 {
		return fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD must be at least 8 characters")
	}
	if cfg.DatabaseURL != "" && cfg.BootstrapAdminUsername == "" {
		return fmt.Errorf("BOOTSTRAP_ADMIN_USERNAME is required with DATABASE_URL")
	}
	return nil
}
