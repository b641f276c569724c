package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-supervision-api/internal/ai"
	"github.com/noah-isme/sma-supervision-api/internal/bootstrap"
	"github.com/noah-isme/sma-supervision-api/internal/repository"
	"github.com/noah-isme/sma-supervision-api/internal/service"
	"github.com/noah-isme/sma-supervision-api/pkg/cache"
	"github.com/noah-isme/sma-supervision-api/pkg/config"
	"github.com/noah-isme/sma-supervision-api/pkg/export"
	"github.com/noah-isme/sma-supervision-api/pkg/jobs"
	"github.com/noah-isme/sma-supervision-api/pkg/kvstore"
	"github.com/noah-isme/sma-supervision-api/pkg/logger"
	"github.com/noah-isme/sma-supervision-api/pkg/storage"
)

// @title School Supervision API
// @version 1.0.0
// @description Teacher evaluations, syllabus tracking and supervision activities scoped per school.
// @BasePath /api/v1
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()

	store, closeStore, err := bootstrap.OpenStateStore(ctx, cfg, metrics, logr)
	if err != nil {
		logr.Fatal("failed to open state store", zap.Error(err))
	}
	defer closeStore()

	app, err := buildApp(ctx, cfg, store, metrics, logr)
	if err != nil {
		logr.Fatal("failed to initialise services", zap.Error(err))
	}
	defer app.close()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := newRouter(cfg, app, logr)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "state_backend", cfg.State.Backend)
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
}

type app struct {
	state     *service.StateService
	metrics   *service.MetricsService
	auth      *service.AuthService
	users     *service.UserService
	schools   *service.SchoolService
	options   *service.OptionsService
	teachers  *service.TeacherService
	reports   *service.ReportService
	criteria  *service.CriteriaService
	syllabus  *service.SyllabusService
	tasks     *service.TaskService
	meetings  *service.MeetingService
	visits    *service.PeerVisitService
	delivery  *service.DeliverySheetService
	messages  *service.BulkMessageService
	plans     *service.SupervisoryPlanService
	dashboard *service.DashboardService
	exports   *service.ExportService
	backups   *service.BackupService
	imports   *service.ImportService

	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, store kvstore.Store, metrics *service.MetricsService, logr *zap.Logger) (*app, error) {
	a := &app{metrics: metrics}
	validate := validator.New()

	a.state = service.NewStateService(store, cfg.State.Schools, logr.Named("state"))
	if err := a.state.Load(ctx); err != nil {
		return nil, err
	}
	scope := service.NewScopeEngine(metrics)

	var completer interface {
		Complete(ctx context.Context, prompt string) (string, error)
	}
	if client := ai.NewClient(ai.Config{
		Endpoint:   cfg.AI.Endpoint,
		APIKey:     cfg.AI.APIKey,
		Model:      cfg.AI.Model,
		Timeout:    cfg.AI.Timeout,
		MaxRetries: cfg.AI.MaxRetries,
	}, logr.Named("ai")); client != nil {
		completer = client
	}

	a.users = service.NewUserService(a.state, scope, completer, validate, logr.Named("users"), service.UserServiceConfig{})
	code, err := a.users.EnsureAdmin(ctx, cfg.Admin.BootstrapCode, cfg.Admin.Name)
	if err != nil {
		return nil, err
	}
	if code != "" {
		logr.Warn("created administrator with a generated access code; change it after first login", zap.String("code", code))
	}

	a.auth = service.NewAuthService(a.state, a.users, validate, logr.Named("auth"), service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: "supervision-api",
	})
	a.schools = service.NewSchoolService(a.state, logr.Named("schools"))
	a.options = service.NewOptionsService(a.state.Store())
	a.teachers = service.NewTeacherService(a.state, scope, validate, logr.Named("teachers"))
	a.reports = service.NewReportService(a.state, scope, validate, logr.Named("reports"))
	a.criteria = service.NewCriteriaService(a.state, scope, validate, logr.Named("criteria"))
	a.syllabus = service.NewSyllabusService(a.state, scope, validate, logr.Named("syllabus"))
	a.tasks = service.NewTaskService(a.state, scope, validate, logr.Named("tasks"))
	a.meetings = service.NewMeetingService(a.state, scope, validate, logr.Named("meetings"))
	a.visits = service.NewPeerVisitService(a.state, scope, validate, logr.Named("peer_visits"))
	a.delivery = service.NewDeliverySheetService(a.state, scope, validate, logr.Named("delivery"))
	a.messages = service.NewBulkMessageService(a.state, scope, validate, logr.Named("messages"))
	a.plans = service.NewSupervisoryPlanService(a.state, scope, validate, logr.Named("plans"))

	cacheSvc := newCacheService(ctx, cfg, metrics, logr)
	a.dashboard = service.NewDashboardService(a.state, scope, cacheSvc, logr.Named("dashboard"), service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL})

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, err
	}
	a.exports = service.NewExportService(service.ExportSources{
		Reports:   a.reports,
		Teachers:  a.teachers,
		Analytics: a.dashboard,
		Coverage:  a.syllabus,
		Tasks:     a.tasks,
		Meetings:  a.meetings,
	}, export.NewRegistry(export.Options{
		PDFFontPath:  cfg.Exports.PDFFontPath,
		RightToLeft:  cfg.Exports.RightToLeft,
		ShareBaseURL: cfg.Exports.ShareBaseURL,
	}), files, storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL), metrics, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr.Named("exports"))
	cleanupCtx, cancelCleanup := context.WithCancel(ctx)
	go a.exports.RunCleanup(cleanupCtx, cfg.Exports.CleanupInterval)
	a.closers = append(a.closers, cancelCleanup)

	a.backups = service.NewBackupService(store, a.state, logr.Named("backups"), service.BackupConfig{HistorySlots: cfg.Backups.HistorySlots})

	a.imports = service.NewImportService(a.teachers, completer, metrics, validate, logr.Named("imports"))
	if completer != nil {
		queue := jobs.NewQueue("teacher-imports", a.imports.Handle, jobs.QueueConfig{
			Workers: cfg.AI.ImportWorkers,
			Logger:  logr.Named("imports"),
		})
		queue.Start(ctx)
		a.imports.UseQueue(queue)
		a.closers = append(a.closers, queue.Stop)
	}

	return a, nil
}

// newCacheService connects Redis when configured; otherwise caching stays disabled.
func newCacheService(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) *service.CacheService {
	if !cfg.Dashboard.CacheEnabled || cfg.Redis.Host == "" {
		return service.NewCacheService(nil, metrics, cfg.Dashboard.CacheTTL, logr.Named("cache"), false)
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
		return service.NewCacheService(nil, metrics, cfg.Dashboard.CacheTTL, logr.Named("cache"), false)
	}
	return service.NewCacheService(repository.NewCacheRepository(client, "supervision:"), metrics, cfg.Dashboard.CacheTTL, logr.Named("cache"), true)
}
