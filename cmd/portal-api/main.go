package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/lakewatch/lakes-portal-api/api/swagger"
	"github.com/lakewatch/lakes-portal-api/internal/handler"
	"github.com/lakewatch/lakes-portal-api/internal/middleware"
	"github.com/lakewatch/lakes-portal-api/internal/models"
	"github.com/lakewatch/lakes-portal-api/internal/repository"
	"github.com/lakewatch/lakes-portal-api/internal/service"
	"github.com/lakewatch/lakes-portal-api/pkg/cache"
	"github.com/lakewatch/lakes-portal-api/pkg/config"
	"github.com/lakewatch/lakes-portal-api/pkg/database"
	"github.com/lakewatch/lakes-portal-api/pkg/jobs"
	"github.com/lakewatch/lakes-portal-api/pkg/logger"
	"github.com/lakewatch/lakes-portal-api/pkg/mailer"
	corsmiddleware "github.com/lakewatch/lakes-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/lakewatch/lakes-portal-api/pkg/middleware/requestid"
	"github.com/lakewatch/lakes-portal-api/pkg/storage"
)

// @title Lakes Data Portal API
// @version 1.0.0
// @description REST backend for the lake research data portal
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, list caching disabled", "error", err)
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	publicationRepo := repository.NewPublicationRepository(db)
	metadataRepo := repository.NewMetadataRepository(db)
	photoRepo := repository.NewPhotoRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services
	cacheSvc := service.NewCacheService(cacheRepo, cfg.Cache, logr)

	mailSvc := service.NewMailService(mailer.New(cfg.SMTP, logr), jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	}, logr)

	authSvc := service.NewAuthService(userRepo, mailSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ActivationTTL:      cfg.JWT.ActivationTTL,
		ResetTTL:           cfg.JWT.ResetTTL,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	userSvc := service.NewUserService(userRepo, store, validate, logr, cfg.Uploads)
	publicationSvc := service.NewPublicationService(publicationRepo, userRepo, cacheSvc, store, signer, validate, logr, cfg.Uploads)
	metadataSvc := service.NewMetadataService(metadataRepo, userRepo, cacheSvc, store, signer, validate, logr, cfg.Uploads)
	photoSvc := service.NewPhotoService(photoRepo, userRepo, cacheSvc, store, signer, validate, logr, cfg.Uploads)
	projectSvc := service.NewProjectService(projectRepo, userRepo, cacheSvc, validate, logr)
	exportSvc := service.NewExportService(publicationRepo, metadataRepo, photoRepo, projectRepo, store, signer, logr)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, metricsSvc)
	profileHandler := handler.NewProfileHandler(userSvc)
	publicationHandler := handler.NewPublicationHandler(publicationSvc, metricsSvc)
	metadataHandler := handler.NewMetadataHandler(metadataSvc, metricsSvc)
	photoHandler := handler.NewPhotoHandler(photoSvc, metricsSvc)
	projectHandler := handler.NewProjectHandler(projectSvc, metricsSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	downloadHandler := handler.NewDownloadHandler(store, signer)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mailSvc.Start(ctx)
	defer mailSvc.Stop()

	// Periodic sweep of orphaned upload files.
	sweepQueue := jobs.NewQueue("uploads-sweep", func(ctx context.Context, job jobs.Job) error {
		removed, err := store.CleanupOlderThan(90 * 24 * time.Hour)
		if err != nil {
			return err
		}
		if len(removed) > 0 {
			logr.Sugar().Infow("upload sweep removed files", "count", len(removed))
		}
		return nil
	}, jobs.QueueConfig{Workers: 1, Logger: logr})
	sweepQueue.Start(ctx)
	defer sweepQueue.Stop()
	if cfg.Uploads.CleanupInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Uploads.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					_ = sweepQueue.Enqueue(jobs.Job{Type: "sweep"})
				}
			}
		}()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/downloads/:token", downloadHandler.Serve)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	requireAuth := middleware.JWT(authSvc, metricsSvc)
	optionalAuth := middleware.OptionalJWT(authSvc)
	requireAdmin := middleware.RequireRoles(models.RoleAdmin)

	auth := api.Group("/auth")
	auth.Use(rateLimiter.Handler())
	{
		auth.POST("/users/", authHandler.Register)
		auth.POST("/users/activation/", authHandler.Activate)
		auth.POST("/jwt/create/", authHandler.Login)
		auth.POST("/jwt/refresh/", authHandler.Refresh)
		auth.POST("/logout/", requireAuth, authHandler.Logout)
		auth.POST("/users/set_password/", requireAuth, authHandler.ChangePassword)
		auth.POST("/users/reset_password/", authHandler.ForgotPassword)
		auth.POST("/users/reset_password_confirm/", authHandler.ResetPassword)
	}

	profile := api.Group("/profile", requireAuth)
	{
		profile.GET("/me/", profileHandler.Me)
		profile.PATCH("/update/:username/", profileHandler.Update)
	}

	publications := api.Group("/publications")
	{
		publications.GET("/", publicationHandler.List)
		publications.GET("/:id/", optionalAuth, publicationHandler.Get)
		publications.POST("/", requireAuth, publicationHandler.Create)
		publications.GET("/me/", requireAuth, publicationHandler.ListMine)
		publications.GET("/:id/download/", requireAuth, publicationHandler.Download)
		publications.PATCH("/:id/", requireAuth, publicationHandler.Update)
		publications.DELETE("/:id/", requireAuth, publicationHandler.Delete)
		publications.GET("/unpublished/", requireAuth, requireAdmin, publicationHandler.ListPending)
		publications.PATCH("/unpublished/:id/", requireAuth, requireAdmin, publicationHandler.Moderate)
	}

	metadata := api.Group("/metadata")
	{
		metadata.GET("/", metadataHandler.List)
		metadata.GET("/:id/", optionalAuth, metadataHandler.Get)
		metadata.POST("/", requireAuth, metadataHandler.Create)
		metadata.GET("/me/", requireAuth, metadataHandler.ListMine)
		metadata.GET("/:id/download/", requireAuth, metadataHandler.Download)
		metadata.PATCH("/:id/", requireAuth, metadataHandler.Update)
		metadata.DELETE("/:id/", requireAuth, metadataHandler.Delete)
		metadata.GET("/unpublished/", requireAuth, requireAdmin, metadataHandler.ListPending)
		metadata.PATCH("/unpublished/:id/", requireAuth, requireAdmin, metadataHandler.Moderate)
	}

	photos := api.Group("/photos")
	{
		photos.GET("/", photoHandler.List)
		photos.GET("/:id/", optionalAuth, photoHandler.Get)
		photos.POST("/", requireAuth, photoHandler.Create)
		photos.GET("/me/", requireAuth, photoHandler.ListMine)
		photos.GET("/:id/download/", requireAuth, photoHandler.Download)
		photos.PATCH("/:id/", requireAuth, photoHandler.Update)
		photos.DELETE("/:id/", requireAuth, photoHandler.Delete)
		photos.GET("/unpublished/", requireAuth, requireAdmin, photoHandler.ListPending)
		photos.PATCH("/unpublished/:id/", requireAuth, requireAdmin, photoHandler.Moderate)
	}

	projects := api.Group("/projects")
	{
		projects.GET("/", projectHandler.List)
		projects.GET("/:id/", optionalAuth, projectHandler.Get)
		projects.POST("/", requireAuth, projectHandler.Create)
		projects.GET("/me/", requireAuth, projectHandler.ListMine)
		projects.PATCH("/:id/", requireAuth, projectHandler.Update)
		projects.DELETE("/:id/", requireAuth, projectHandler.Delete)
		projects.GET("/unpublished/", requireAuth, requireAdmin, projectHandler.ListPending)
		projects.PATCH("/unpublished/:id/", requireAuth, requireAdmin, projectHandler.Moderate)
	}

	if cfg.Exports.Enabled {
		exports := api.Group("/exports", requireAuth, requireAdmin)
		exports.POST("/:resource/", middleware.Audit(userRepo, "EXPORT", "reports"), exportHandler.Generate)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
