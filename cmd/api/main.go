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
	"go.uber.org/zap"

	"github.com/noah-isme/academic-core/internal/app"
	"github.com/noah-isme/academic-core/internal/handler"
	"github.com/noah-isme/academic-core/internal/middleware"
	"github.com/noah-isme/academic-core/pkg/config"
	"github.com/noah-isme/academic-core/pkg/logger"
	corsmiddleware "github.com/noah-isme/academic-core/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academic-core/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "api")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := app.New(cfg, logr)
	if err != nil {
		logr.Fatal("failed to initialise engine", zap.Error(err))
	}
	engine.Start(ctx)
	defer engine.Close()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(engine.Metrics))

	ops := handler.NewMetricsHandler(engine.Metrics, engine.DB)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	handler.Routes{
		Enrollments: handler.NewEnrollmentHandler(engine.Enrollments, cfg.Enrollment.RequireApproval),
		Grades:      handler.NewGradeHandler(engine.Grades),
		Schedules:   handler.NewScheduleHandler(engine.Schedules),
	}.Register(r.Group(cfg.APIPrefix))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
