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
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-grading-api/api/swagger"
	"github.com/noah-isme/sma-grading-api/internal/grading"
	"github.com/noah-isme/sma-grading-api/internal/handler"
	"github.com/noah-isme/sma-grading-api/internal/middleware"
	"github.com/noah-isme/sma-grading-api/internal/repository"
	"github.com/noah-isme/sma-grading-api/internal/router"
	"github.com/noah-isme/sma-grading-api/internal/service"
	"github.com/noah-isme/sma-grading-api/pkg/cache"
	"github.com/noah-isme/sma-grading-api/pkg/config"
	"github.com/noah-isme/sma-grading-api/pkg/database"
	"github.com/noah-isme/sma-grading-api/pkg/jobs"
	"github.com/noah-isme/sma-grading-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-grading-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-grading-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-grading-api/pkg/storage"
)

// @title SMA Grading API
// @version 1.0.0
// @description Grade aggregation engine: weighted criteria, term grades, status overrides and approvals
// @BasePath /api/v1
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Grading.CacheEnabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, grade sheet cache disabled", zap.Error(err))
		} else {
			redisRepo := repository.NewCacheRepository(client, logr)
			defer redisRepo.Close() //nolint:errcheck
			cacheRepo = redisRepo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Grading.CacheTTL, logr, cacheRepo != nil)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	termRepo := repository.NewTermRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	criteriaRepo := repository.NewCriteriaRepository(db)
	componentRepo := repository.NewGradeComponentRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	statusRepo := repository.NewTermStatusRepository(db)
	termGradeRepo := repository.NewTermGradeRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)

	authService := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "sma-grading-api",
	})
	termService := service.NewTermService(termRepo, cacheSvc, validate, logr)
	gradingService := service.NewGradingService(service.GradingRepositories{
		Terms:      termRepo,
		Classes:    classRepo,
		Criteria:   criteriaRepo,
		Scores:     scoreRepo,
		Statuses:   statusRepo,
		TermGrades: termGradeRepo,
		Roster:     enrollmentRepo,
		Students:   studentRepo,
		Audit:      auditRepo,
	}, grading.NewEngine(nil), cacheSvc, metrics, cfg.Grading.CacheTTL, logr)
	criteriaService := service.NewCriteriaService(service.CriteriaDeps{
		Criteria:    criteriaRepo,
		Components:  componentRepo,
		Classes:     classRepo,
		Terms:       termRepo,
		Submissions: submissionRepo,
		Recomputer:  gradingService,
	}, validate, logr)
	scoreService := service.NewScoreService(service.ScoreDeps{
		Scores:      scoreRepo,
		Components:  componentRepo,
		Enrollments: enrollmentRepo,
		Classes:     classRepo,
		Submissions: submissionRepo,
		Recomputer:  gradingService,
		Audit:       auditRepo,
	}, validate, logr)
	statusService := service.NewStatusService(service.StatusDeps{
		Statuses: statusRepo,
		Terms:    termRepo,
		Roster:   enrollmentRepo,
		Classes:  classRepo,
		Cache:    gradingService,
		Audit:    auditRepo,
		Metrics:  metrics,
	}, validate, logr)
	submissionService := service.NewSubmissionService(service.SubmissionDeps{
		Submissions: submissionRepo,
		Classes:     classRepo,
		Terms:       termRepo,
		Audit:       auditRepo,
		Metrics:     metrics,
	}, validate, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, classRepo, logr)
	analyticsService := service.NewAnalyticsService(gradingService, metrics, logr)

	exportService, exportQueue := buildExports(ctx, cfg, logr, gradingService, classRepo, exportJobRepo, metrics)
	if exportQueue != nil {
		defer exportQueue.Stop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	router.Register(r, cfg, router.Dependencies{
		AuthHandler:        handler.NewAuthHandler(authService),
		AnalyticsHandler:   handler.NewAnalyticsHandler(analyticsService),
		TermHandler:        handler.NewTermHandler(termService),
		GradeConfigHandler: handler.NewGradeConfigHandler(criteriaService),
		GradeHandler:       handler.NewGradeHandler(scoreService),
		SheetHandler:       handler.NewSheetHandler(gradingService),
		StatusHandler:      handler.NewStatusHandler(statusService),
		SubmissionHandler:  handler.NewSubmissionHandler(submissionService),
		ExportHandler:      handler.NewExportHandler(exportService),
		EnrollmentHandler:  handler.NewEnrollmentHandler(enrollmentService),
		MetricsHandler:     handler.NewMetricsHandler(metrics),
		JWTMiddleware:      middleware.JWT(authService),
		Audit:              auditRepo,
	})

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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

// buildExports wires the export service. The worker queue only exists when
// background exports are enabled; inline downloads always work.
func buildExports(ctx context.Context, cfg *config.Config, logr *zap.Logger, sheets *service.GradingService, classes *repository.ClassRepository, jobRepo *repository.ExportJobRepository, metrics *service.MetricsService) (*service.ExportService, *jobs.Queue) {
	deps := service.ExportDeps{
		Sheets:  sheets,
		Classes: classes,
		Jobs:    jobRepo,
		Metrics: metrics,
	}
	exportCfg := service.ExportConfig{
		APIPrefix:       cfg.APIPrefix,
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	}

	if !cfg.Exports.Enabled {
		return service.NewExportService(deps, exportCfg, logr), nil
	}

	fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Warn("export storage unavailable, background exports disabled", zap.Error(err))
		return service.NewExportService(deps, exportCfg, logr), nil
	}
	deps.Storage = fileStore
	deps.Signer = storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	var (
		exportService *service.ExportService
		worker        *service.ExportWorker
	)
	queue := jobs.NewQueue("grade-exports", func(ctx context.Context, job jobs.Job) error {
		return worker.Handle(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
		OnExhausted: func(ctx context.Context, job jobs.Job, err error) {
			exportService.HandleExhausted(ctx, job, err)
		},
	})
	deps.Queue = queue
	exportService = service.NewExportService(deps, exportCfg, logr)
	worker = service.NewExportWorker(jobRepo, exportService, metrics, logr)

	queue.Start(ctx)
	exportService.RecoverPendingJobs(ctx)
	exportService.StartCleanup(ctx)
	return exportService, queue
}
