package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Silviu2326/Dentaflow-sub002/internal/gateway"
	"github.com/Silviu2326/Dentaflow-sub002/internal/iam"
	"github.com/Silviu2326/Dentaflow-sub002/internal/scheduling"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/config"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/database"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/logger"
)

func main() {
	// Load .env if present; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.CreateSchema(ctx); err != nil {
		logger.Fatalf("Failed to create database schema: %v", err)
	}

	// IAM wiring
	userRepo := iam.NewRepository(db, logger)
	tokenManager := iam.NewTokenManager(&cfg.JWT)
	iamService := iam.NewService(cfg, logger, userRepo,
		iam.NewPasswordManager(), iam.NewMFAProvider(logger, "DentaFlow"), tokenManager)
	iamHandler := iam.NewHandler(iamService, logger)

	// Scheduling wiring
	schedulingRepo := scheduling.NewRepository(db, logger)
	notification := scheduling.NewNotificationService(logger)
	schedulingService := scheduling.NewService(cfg, logger, schedulingRepo, notification)
	schedulingHandler := scheduling.NewHandler(schedulingService, logger)

	server := gateway.NewServer(cfg, logger, db, tokenManager, iamHandler, schedulingHandler)

	var reminders *scheduling.ReminderJob
	if cfg.Clinic.RemindersEnabled {
		reminders = scheduling.NewReminderJob(schedulingService, schedulingRepo, logger)
		if err := reminders.Start(cfg.Clinic.ReminderCronSpec); err != nil {
			logger.Fatalf("Failed to start reminder job: %v", err)
		}
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	if reminders != nil {
		reminders.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
	logger.Info("Server stopped")
}
