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
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/perf-review-api/api/swagger"
	"github.com/noah-isme/perf-review-api/internal/handler"
	internalmiddleware "github.com/noah-isme/perf-review-api/internal/middleware"
	"github.com/noah-isme/perf-review-api/internal/repository"
	"github.com/noah-isme/perf-review-api/internal/service"
	"github.com/noah-isme/perf-review-api/pkg/cache"
	"github.com/noah-isme/perf-review-api/pkg/config"
	"github.com/noah-isme/perf-review-api/pkg/database"
	"github.com/noah-isme/perf-review-api/pkg/export"
	"github.com/noah-isme/perf-review-api/pkg/jobs"
	"github.com/noah-isme/perf-review-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/perf-review-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/perf-review-api/pkg/middleware/requestid"
)

// @title Performance Review API
// @version 0.1.0
// @description Scheduled skill and task reviews, scoring and the nine-box talent matrix
// @BasePath /api/v1
// @schemes http

type dbPinger struct {
	db *sqlx.DB
}

func (p dbPinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	txManager := repository.NewTxManager(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	logRepo := repository.NewReviewLogRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	nineBoxRepo := repository.NewNineBoxRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled && redisClient != nil)
	scoringSvc := service.NewScoringService(answerRepo, cacheSvc, metricsSvc, logr, cfg.Analytics.CacheTTL)
	identitySvc := service.NewIdentityService(employeeRepo, validate, logr)
	cycleSvc := service.NewCycleService(
		txManager, employeeRepo, periodRepo, questionRepo, answerRepo, logRepo, notificationRepo,
		scoringSvc, metricsSvc, logr,
		service.CycleServiceConfig{TokenTTL: cfg.Review.TokenTTL, SkillLinkPath: cfg.Review.SkillLinkPath},
	)
	reviewSvc := service.NewReviewService(
		txManager, logRepo, answerRepo, questionRepo, periodRepo, employeeRepo, notificationRepo,
		scoringSvc, validate, metricsSvc, logr,
	)
	taskReviewSvc := service.NewTaskReviewService(
		txManager, taskRepo, employeeRepo, questionRepo, logRepo, notificationRepo,
		validate, metricsSvc, logr,
		service.TaskReviewServiceConfig{TokenTTL: cfg.Review.TokenTTL, TaskLinkPath: cfg.Review.TaskLinkPath},
	)
	overviewSvc := service.NewOverviewService(employeeRepo, periodRepo, logRepo, answerRepo, scoringSvc, logr)
	evaluationSvc := service.NewEvaluationService(questionRepo, identitySvc, validate, logr)
	nineBoxSvc := service.NewNineBoxService(
		employeeRepo, nineBoxRepo, nineBoxRepo,
		export.NewCSVExporter(), export.NewPDFExporter(),
		validate, metricsSvc, logr,
		service.NineBoxServiceConfig{
			DefaultScope:       cfg.NineBox.DefaultScope,
			DefaultTTL:         time.Duration(cfg.NineBox.DefaultTTLMinutes) * time.Minute,
			MaxTTL:             time.Duration(cfg.NineBox.MaxTTLMinutes) * time.Minute,
			MaxRecommendations: cfg.NineBox.MaxRecommendations,
			InferLegacyScales:  cfg.NineBox.InferLegacyScales,
		},
	)

	if cfg.Review.SeedDefaultPeriods {
		if _, err := cycleSvc.EnsureDefaultPeriods(ctx); err != nil {
			logr.Fatal("failed to seed review periods", zap.Error(err))
		}
	}

	queue := jobs.NewQueue("review", jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})
	runner := service.NewCycleRunner(queue, cycleSvc, nineBoxSvc, cfg.Review.CycleInterval, logr).
		WithTaskReviews(taskReviewSvc)
	queue.Start(ctx)
	if cfg.Review.CycleEnabled {
		runner.Start(ctx)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.WithResponseMeta())
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
		"postgres": dbPinger{db: db},
		"redis":    cacheRepo,
	})
	reviewHandler := handler.NewReviewHandler(cycleSvc, runner, reviewSvc, overviewSvc, identitySvc)
	analyticsHandler := handler.NewAnalyticsHandler(scoringSvc, metricsSvc)
	nineBoxHandler := handler.NewNineBoxHandler(nineBoxSvc)
	evaluationHandler := handler.NewEvaluationHandler(evaluationSvc)
	taskReviewHandler := handler.NewTaskReviewHandler(taskReviewSvc)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	review := api.Group("/review")
	review.POST("/initiate", reviewHandler.Initiate)
	review.GET("/token/:token", reviewHandler.TokenStatus)
	review.GET("/form", reviewHandler.Form)
	review.POST("/submit", reviewHandler.Submit)
	review.GET("/notifications", reviewHandler.Notifications)
	review.POST("/notifications/:id/read", reviewHandler.MarkNotificationRead)
	review.GET("/overview", reviewHandler.Overview)
	review.POST("/subjects/sync", reviewHandler.SyncSubject)
	review.GET("/analytics", analyticsHandler.Skills)
	review.GET("/adaptation-index", analyticsHandler.Adaptation)
	review.POST("/goals", taskReviewHandler.CreateGoal)
	review.POST("/tasks/initiate", taskReviewHandler.Initiate)
	review.GET("/tasks/form", taskReviewHandler.Form)
	review.POST("/tasks/submit", taskReviewHandler.Submit)

	api.GET("/analytics/system", analyticsHandler.System)
	api.GET("/nine-box/matrix", nineBoxHandler.Matrix)
	api.GET("/nine-box/export", nineBoxHandler.Export)
	api.POST("/assessments/evaluate", evaluationHandler.Evaluate)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	runner.Stop()
	queue.Stop()
}
