// cmd/main.go
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lmittmann/tint"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"

	"go_5_learn_rewards/internal/config"
	"go_5_learn_rewards/internal/handlers"
	"go_5_learn_rewards/internal/middleware"
	"go_5_learn_rewards/internal/repository"
	"go_5_learn_rewards/internal/service"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	// Temporary logger so config loading has somewhere to write.
	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(tempLogger)
	log.Println("Log Config Loading...")

	if err := config.LoadConfig("../configs"); err != nil {
		slog.Error("Error loading configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// === Initialize slog from config ===
	logLevel := new(slog.LevelVar)
	switch strings.ToLower(config.Cfg.Log.Level) {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "info":
		logLevel.Set(slog.LevelInfo)
	case "warn", "warning":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
		slog.Warn("Unknown log level specified in config, defaulting to INFO", slog.String("level", config.Cfg.Log.Level))
	}
	var handler slog.Handler
	appEnv := os.Getenv("APP_ENV")
	if strings.ToLower(appEnv) == "dev" {
		tintOpts := &tint.Options{
			Level:      logLevel,
			TimeFormat: time.RFC3339,
		}
		handler = tint.NewHandler(os.Stderr, tintOpts)
		tempLogger.Info("Using TINT log handler", slog.String("APP_ENV", appEnv))
	} else {
		jsonOpts := &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}
		handler = slog.NewJSONHandler(os.Stderr, jsonOpts)
		tempLogger.Info("Using JSON log handler", slog.String("APP_ENV", appEnv))
	}
	logger := slog.New(handler)
	log.Println("Log Config Loaded...")
	slog.SetDefault(logger)

	slog.Info("Application starting...")

	// 2. Initialize Database Connection (GORM)
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
	defer func() {
		if err := sqlDB.Close(); err != nil {
			slog.Error("Error closing database connection", slog.Any("error", err))
		} else {
			slog.Info("Database connection closed.")
		}
	}()

	if err := repository.Migrate(db); err != nil {
		slog.Error("Error running migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// 3. Dependency Injection
	userRepo := repository.NewGormUserRepository()
	statsRepo := repository.NewGormStatsRepository()
	achRepo := repository.NewGormAchievementRepository()
	certRepo := repository.NewGormCertificationRepository()
	activityRepo := repository.NewGormActivityRepository()
	pathRepo := repository.NewGormPathRepository()

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
	statsService := service.NewStatsUpdateService(db, userRepo, statsRepo, activityRepo, achRepo, config.Cfg.Jobs)

	jobTimeout := time.Duration(config.Cfg.Jobs.TimeoutMinutes) * time.Minute

	achHandler := handlers.NewAchievementHandler(achService)
	certHandler := handlers.NewCertificationHandler(certService)
	jobHandler := handlers.NewJobHandler(batchService, statsService, jobTimeout)

	// 4. Setup Router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.LoggingMiddleware(logger))

	corsOptions := cors.Options{
		AllowedOrigins:   config.Cfg.CORS.AllowedOrigins,
		AllowedMethods:   config.Cfg.CORS.AllowedMethods,
		AllowedHeaders:   config.Cfg.CORS.AllowedHeaders,
		ExposedHeaders:   config.Cfg.CORS.ExposedHeaders,
		AllowCredentials: config.Cfg.CORS.AllowCredentials,
		MaxAge:           config.Cfg.CORS.MaxAge,
		Debug:            false,
	}
	corsHandler := cors.New(corsOptions)
	r.Use(corsHandler.Handler)

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		// --- Public routes ---
		r.Get("/certifications/verify/{code}", certHandler.Verify)

		r.Route("/users/{user_id}", func(r chi.Router) {
			r.Get("/achievements", achHandler.ListEarned)
			r.Get("/achievements/progress", achHandler.Progress)
			r.Get("/certifications/eligibility", certHandler.EligibilitySummary)
			r.Get("/certifications/{certification_id}/eligibility", certHandler.Eligibility)
		})

		// --- Admin routes (JWT) ---
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.JWTAuthMiddleware(&config.Cfg))

			r.Post("/users/{user_id}/achievements/check", achHandler.Check)
			r.Post("/users/{user_id}/certifications/{certification_id}/award", certHandler.Award)

			r.Route("/jobs", func(r chi.Router) {
				r.Post("/daily", jobHandler.RunDaily)
				r.Post("/stats", jobHandler.RunStats)
				r.Get("/status", jobHandler.Status)
			})
		})
	})

	// Health Check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sqlDB, err := db.DB()
		if err != nil {
			slog.ErrorContext(ctx, "Health check failed: could not get DB object", slog.Any("error", err))
			http.Error(w, "Health check failed", http.StatusInternalServerError)
			return
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			slog.ErrorContext(ctx, "Health check failed: could not ping DB", slog.Any("error", err))
			http.Error(w, "Health check failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// 5. Schedule the nightly jobs
	scheduler := cron.New()
	_, err = scheduler.AddFunc(config.Cfg.Jobs.DailySchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		result := batchService.RunDaily(ctx)
		slog.Info("Scheduled daily check finished",
			slog.Bool("success", result.Success),
			slog.Int("processed", result.Processed),
			slog.Int("errors", result.Errors),
			slog.Int64("duration_ms", result.DurationMS),
		)
	})
	if err != nil {
		slog.Error("Error scheduling daily job", slog.Any("error", err))
		os.Exit(1)
	}
	_, err = scheduler.AddFunc(config.Cfg.Jobs.StatsSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		result := statsService.UpdateAll(ctx)
		slog.Info("Scheduled stats update finished",
			slog.Bool("success", result.Success),
			slog.Int("processed", result.Processed),
			slog.Int("errors", result.Errors),
			slog.Int64("duration_ms", result.DurationMS),
		)
	})
	if err != nil {
		slog.Error("Error scheduling stats job", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Job scheduler started",
		slog.String("daily", config.Cfg.Jobs.DailySchedule),
		slog.String("stats", config.Cfg.Jobs.StatsSchedule),
	)

	// 6. Start Server
	server := &http.Server{
		Addr:         config.Cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", slog.String("port", config.Cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not listen on port", slog.String("port", config.Cfg.Server.Port), slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", slog.Any("error", err))
	}

	log.Println("Server exiting")
}
