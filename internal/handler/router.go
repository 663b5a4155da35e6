package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/estimate-export-api/internal/middleware"
	"github.com/noah-isme/estimate-export-api/internal/service"
	appErrors "github.com/noah-isme/estimate-export-api/pkg/errors"
	"github.com/noah-isme/estimate-export-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/estimate-export-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/estimate-export-api/pkg/middleware/requestid"
	"github.com/noah-isme/estimate-export-api/pkg/ratelimit"
	"github.com/noah-isme/estimate-export-api/pkg/response"
	"github.com/noah-isme/estimate-export-api/pkg/telemetry"
)

// RouterConfig carries everything the HTTP surface is assembled from.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Auth           middleware.TokenValidator
	Limiter        ratelimit.Limiter
	Exports        *EstimateExportHandler
	Health         *MetricsHandler
}

// NewRouter registers middleware and routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api"
	}

	r := gin.New()
	r.Use(gin.CustomRecovery(recoverWith(cfg.Logger)))
	r.Use(reqidmiddleware.Middleware())
	r.Use(telemetry.GinMiddleware())
	r.Use(logger.GinMiddleware(cfg.Logger))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(cfg.Metrics))

	r.GET("/health", cfg.Health.Health)
	r.GET("/ready", cfg.Health.Ready)
	r.GET("/metrics", cfg.Health.Prometheus)
	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/estimate/download/:token", cfg.Exports.Download)

	estimates := api.Group("/estimate")
	estimates.Use(middleware.JWT(cfg.Auth))
	estimates.Use(middleware.RateLimit(cfg.Limiter, ratelimit.CategoryAPI, cfg.Metrics, cfg.Logger))
	estimates.POST("/export", cfg.Exports.Export)
	estimates.GET("/exports", cfg.Exports.List)
	estimates.GET("/exports/:id", cfg.Exports.Get)

	return r
}

// recoverWith turns a panic into the generic export failure body.
func recoverWith(log *zap.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, recovered interface{}) {
		log.Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		response.Abort(c, appErrors.ErrExportFailed.WithDetails(fmt.Sprint(recovered)))
	}
}
