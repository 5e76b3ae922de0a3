package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nikhilbhatia/commitcanvas/internal/api/handlers"
	"github.com/nikhilbhatia/commitcanvas/internal/api/router"
	"github.com/nikhilbhatia/commitcanvas/internal/config"
	"github.com/nikhilbhatia/commitcanvas/internal/github"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/logger"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/validator"
	"github.com/nikhilbhatia/commitcanvas/internal/repository/sqlite"
	"github.com/nikhilbhatia/commitcanvas/internal/services"
	"github.com/nikhilbhatia/commitcanvas/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	db, err := sqlite.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := sqlite.RunMigrations(db, migrations.Files); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	userRepo := sqlite.NewUserRepository(db)
	commitRepo := sqlite.NewCommitRepository(db)

	remote := github.NewClient(github.Config{
		BaseURL: cfg.GitHub.BaseURL,
		Token:   cfg.GitHub.Token,
		Timeout: cfg.GitHub.Timeout,
	}, log)

	clock := services.NewRealClock()
	notifier := services.NewLogNotifier(log)

	commitService := services.NewCommitService(
		userRepo, commitRepo, remote, notifier, log, clock,
		services.CommitServiceConfig{
			WriteDelay:     cfg.Commits.WriteDelay,
			MaxRetries:     cfg.Commits.MaxRetries,
			DefaultMessage: cfg.Commits.DefaultMessage,
		},
	)

	scheduler, err := services.NewSchedulerService(
		cfg.Scheduler, userRepo, commitRepo, commitService, log, clock,
	)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	if cfg.Scheduler.Enabled {
		if err := scheduler.Init(); err != nil {
			log.Fatalf("Failed to initialize scheduler: %v", err)
		}
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		defer scheduler.Stop()
	} else {
		log.Warn("Scheduler is disabled; commits run only via the API")
	}

	val := validator.New()
	h := &router.Handlers{
		Health:    handlers.NewHealthHandler(db, log),
		Commit:    handlers.NewCommitHandler(userRepo, commitRepo, commitService, log, val),
		Scheduler: handlers.NewSchedulerHandler(scheduler, log),
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.New(cfg, log, h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infof("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.ErrorWithErr(err, "Server forced to shutdown")
	}

	log.Info("Server exited")
}
