// cmd/jobrunner/main.go
//
// jobrunner executes one batch pipeline and exits, for running the
// nightly jobs from an external scheduler instead of the in-process
// cron.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"go_5_learn_rewards/internal/config"
	"go_5_learn_rewards/internal/model"
	"go_5_learn_rewards/internal/repository"
	"go_5_learn_rewards/internal/service"
)

func main() {
	var (
		jobName    = flag.String("job", "daily", "job to run: daily or stats")
		configPath = flag.String("config", "../configs", "directory containing config.yaml")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := config.LoadConfig(*configPath); err != nil {
		slog.Error("Error loading configuration", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := repository.NewDB(config.Cfg.Database.URL, logger)
	if err != nil {
		slog.Error("Error initializing database", slog.Any("error", err))
		os.Exit(1)
	}
	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Error getting underlying sql.DB from GORM", slog.Any("error", err))
		os.Exit(1)
	}
	defer sqlDB.Close()

	userRepo := repository.NewGormUserRepository()
	statsRepo := repository.NewGormStatsRepository()
	achRepo := repository.NewGormAchievementRepository()
	certRepo := repository.NewGormCertificationRepository()
	activityRepo := repository.NewGormActivityRepository()
	pathRepo := repository.NewGormPathRepository()

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(config.Cfg.Jobs.TimeoutMinutes)*time.Minute)
	defer cancel()

	var result model.JobResult
	switch *jobName {
	case "daily":
		evaluator := service.NewCriteriaEvaluator(activityRepo)
		achService := service.NewAchievementService(db, achRepo, statsRepo, evaluator)
		certService, err := service.NewCertificationService(db, certRepo, activityRepo, pathRepo, statsRepo,
			config.Cfg.Cert.Secret, config.Cfg.Cert.CodePrefix)
		if err != nil {
			slog.Error("Error initializing certification service", slog.Any("error", err))
			os.Exit(1)
		}
		mailer := service.NewMailer(&config.Cfg)
		notifService := service.NewNotificationService(db, userRepo, achRepo, certRepo, mailer)
		batchService := service.NewBatchService(db, userRepo, achService, certService, notifService, config.Cfg.Jobs)
		result = batchService.RunDaily(ctx)
	case "stats":
		statsService := service.NewStatsUpdateService(db, userRepo, statsRepo, activityRepo, achRepo, config.Cfg.Jobs)
		result = statsService.UpdateAll(ctx)
	default:
		slog.Error("Unknown job", slog.String("job", *jobName))
		os.Exit(2)
	}

	slog.Info("Job finished",
		slog.String("job", *jobName),
		slog.Bool("success", result.Success),
		slog.Int("processed", result.Processed),
		slog.Int("errors", result.Errors),
		slog.Int64("duration_ms", result.DurationMS),
		slog.String("message", result.Message),
	)
	if !result.Success {
		os.Exit(1)
	}
}
