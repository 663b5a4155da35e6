package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/estimate-export-api/api/swagger"
	"github.com/noah-isme/estimate-export-api/internal/handler"
	"github.com/noah-isme/estimate-export-api/internal/repository"
	"github.com/noah-isme/estimate-export-api/internal/service"
	"github.com/noah-isme/estimate-export-api/pkg/cache"
	"github.com/noah-isme/estimate-export-api/pkg/config"
	"github.com/noah-isme/estimate-export-api/pkg/database"
	"github.com/noah-isme/estimate-export-api/pkg/logger"
	"github.com/noah-isme/estimate-export-api/pkg/ratelimit"
	"github.com/noah-isme/estimate-export-api/pkg/storage"
	"github.com/noah-isme/estimate-export-api/pkg/telemetry"
)

var version = "dev"

// @title Estimate Export API
// @version 1.0.0
// @description Exports lead estimates as Xactimate XML, Symbility JSON and a downloadable bundle.
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	flush, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.Sentry.DSN,
		Environment:      cfg.Env,
		Release:          version,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
	}, logr)
	if err != nil {
		logr.Fatal("failed to init sentry", zap.Error(err))
	}
	defer flush()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	store, err := newObjectStore(ctx, cfg)
	if err != nil {
		logr.Fatal("failed to init storage", zap.Error(err))
	}

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, "estimate", logr),
		metrics, cfg.Export.OrgCacheTTL, logr, redisClient != nil,
	)

	archiveSvc := service.NewArchiveService(store, repository.NewGeneratedReportRepository(db), metrics, logr, service.ArchiveServiceConfig{
		ArchiveTTL:      cfg.Export.ArchiveTTL,
		CleanupInterval: cfg.Export.CleanupInterval,
	})
	exportSvc := service.NewExportService(
		repository.NewOrganizationRepository(db),
		repository.NewLeadRepository(db),
		repository.NewEstimateDraftRepository(db),
		repository.NewEstimateExportRepository(db),
		archiveSvc,
		cacheSvc,
		metrics,
		logr,
		service.ExportServiceConfig{IncludeReports: cfg.Export.IncludeReports, OrgCacheTTL: cfg.Export.OrgCacheTTL},
	)
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	router := handler.NewRouter(handler.RouterConfig{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Metrics:        metrics,
		Auth:           authSvc,
		Limiter:        newLimiter(ctx, cfg, redisClient),
		Exports:        handler.NewEstimateExportHandler(exportSvc, archiveSvc),
		Health:         handler.NewMetricsHandler(metrics, db),
	})

	go archiveSvc.RunCleanup(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

func newObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	if cfg.Storage.Driver == config.StorageDriverS3 {
		s3cfg := cfg.Storage.S3
		return storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:             s3cfg.Endpoint,
			Region:               s3cfg.Region,
			AccessKeyID:          s3cfg.AccessKeyID,
			SecretAccessKey:      s3cfg.SecretAccessKey,
			Bucket:               s3cfg.Bucket,
			UsePathStyle:         s3cfg.UsePathStyle,
			PresignTTL:           s3cfg.PresignTTL,
			ServerSideEncryption: s3cfg.ServerSideEncryption,
		})
	}
	disk, err := storage.NewLocalStorage(cfg.Storage.LocalDir)
	if err != nil {
		return nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
	return storage.NewFileStore(disk, signer, cfg.PublicBaseURL+cfg.APIPrefix+"/estimate/download"), nil
}

func newLimiter(ctx context.Context, cfg *config.Config, client *redis.Client) ratelimit.Limiter {
	rules := ratelimit.Rules{ratelimit.CategoryAPI: {Requests: cfg.RateLimit.APIRequests, Window: cfg.RateLimit.APIWindow}}
	if client != nil {
		return ratelimit.NewRedisLimiter(client, rules, "ratelimit")
	}
	limiter := ratelimit.NewMemoryLimiter(rules, nil)
	go func() {
		ticker := time.NewTicker(cfg.RateLimit.APIWindow)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Prune()
			}
		}
	}()
	return limiter
}
