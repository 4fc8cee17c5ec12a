// Package app assembles the engine from configuration for the process entry points.
package app

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-core/internal/repository"
	"github.com/noah-isme/academic-core/internal/service"
	"github.com/noah-isme/academic-core/pkg/cache"
	"github.com/noah-isme/academic-core/pkg/config"
	"github.com/noah-isme/academic-core/pkg/database"
	"github.com/noah-isme/academic-core/pkg/events"
)

// App holds the wired services and the connections they own.
type App struct {
	DB            *sqlx.DB
	Metrics       *service.MetricsService
	Cache         *service.CacheService
	Notifications *service.NotificationService
	Prerequisites *service.PrerequisiteService
	Conflicts     *service.ScheduleConflictService
	Grades        *service.GradeService
	Enrollments   *service.EnrollmentService
	Schedules     *service.ScheduleService

	redis     *redis.Client
	publisher *events.NATSPublisher
	logger    *zap.Logger
}

// New connects to PostgreSQL, and to Redis and NATS when enabled, then wires
// every service. Redis and NATS failures degrade to running without them.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &App{DB: db, Metrics: service.NewMetricsService(), logger: logger}

	if a.redis, err = cache.NewRedis(cfg.Redis); err != nil {
		logger.Warn("redis unavailable, caching disabled", zap.Error(err))
	}
	if a.redis != nil {
		a.Cache = service.NewCacheService(repository.NewCacheRepository(a.redis), a.Metrics, cfg.Cache.TTL, logger, true)
	}

	sinks := []service.NotificationSink{service.NewLogSink(logger)}
	if a.publisher, err = events.Connect(cfg.NATS, logger); err != nil {
		logger.Warn("nats unavailable, events logged only", zap.Error(err))
	}
	if a.publisher != nil {
		sinks = append(sinks, a.publisher)
	}
	a.Notifications = service.NewNotificationService(sinks, a.Metrics, service.NotificationConfig{
		Workers:    cfg.Notifications.Workers,
		Retries:    cfg.Notifications.Retries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logger)

	courses := repository.NewCourseRepository(db)
	sections := repository.NewSectionRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	students := repository.NewStudentRepository(db)
	store := repository.NewEnrollmentStore(db)

	a.Prerequisites = service.NewPrerequisiteService(courses, enrollments, logger)
	a.Conflicts = service.NewScheduleConflictService(sections, enrollments, sections, logger)
	a.Grades = service.NewGradeService(enrollments, students, a.Cache, a.Metrics, a.Notifications, validator.New(), logger)
	a.Enrollments = service.NewEnrollmentService(store, students, a.Prerequisites, a.Conflicts, a.Cache, a.Metrics, a.Notifications,
		service.EnrollmentConfig{DropWindow: cfg.Enrollment.DropWindow, TxTimeout: cfg.Enrollment.TxTimeout}, logger)
	a.Schedules = service.NewScheduleService(enrollments, sections, a.Cache, logger)
	return a, nil
}

// Start launches background workers.
func (a *App) Start(ctx context.Context) {
	a.Notifications.Start(ctx)
}

// Close drains pending notifications and releases connections.
func (a *App) Close() {
	a.Notifications.Stop()
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("nats drain failed", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := a.DB.Close(); err != nil {
		a.logger.Warn("database close failed", zap.Error(err))
	}
}
