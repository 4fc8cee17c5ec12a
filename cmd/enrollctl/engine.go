package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-core/internal/app"
	"github.com/noah-isme/academic-core/internal/models"
	"github.com/noah-isme/academic-core/pkg/config"
	"github.com/noah-isme/academic-core/pkg/logger"
)

type gradeOps interface {
	Recompute(ctx context.Context, studentID string) (*models.AcademicSummary, error)
}

type eligibilityOps interface {
	CheckEligibility(ctx context.Context, studentID, sectionID string) (*models.EligibilityReport, error)
}

type scheduleOps interface {
	GetStudentWeeklySchedule(ctx context.Context, studentID string, semester models.Semester, year int) ([]models.WeeklyScheduleEntry, error)
}

type prerequisiteOps interface {
	Resolve(ctx context.Context, courseID string) ([]models.PrerequisiteRequirement, error)
}

// services is the slice of the engine the CLI drives.
type services struct {
	grades        gradeOps
	enrollments   eligibilityOps
	schedules     scheduleOps
	prerequisites prerequisiteOps
}

// opener builds services and returns a cleanup func.
type opener func(cmd *cobra.Command) (*services, func(), error)

func openEngine(cmd *cobra.Command) (*services, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	cfg.Log.Format = "console"

	logr, err := logger.New(cfg, "enrollctl")
	if err != nil {
		return nil, nil, err
	}
	engine, err := app.New(cfg, logr)
	if err != nil {
		_ = logr.Sync()
		return nil, nil, err
	}
	engine.Start(cmd.Context())

	cleanup := func() {
		engine.Close()
		if err := logr.Sync(); err != nil {
			logr.Debug("logger sync", zap.Error(err))
		}
	}
	return &services{
		grades:        engine.Grades,
		enrollments:   engine.Enrollments,
		schedules:     engine.Schedules,
		prerequisites: engine.Prerequisites,
	}, cleanup, nil
}
