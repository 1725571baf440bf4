package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"parkwise-booking-core/internal/app"
	"parkwise-booking-core/internal/config"
	"parkwise-booking-core/internal/jobs"
	"parkwise-booking-core/internal/logger"
	"parkwise-booking-core/internal/scheduler"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'audit-ledgers', 'warm-occupancy-cache', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting ParkWise cronjob runner...", "log_level", cfg.Log.Level, "storage", cfg.Storage.Type)

	infra, err := app.Build(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize infrastructure", "error", err)
		log.Fatalf("Failed to initialize infrastructure: %v", err)
	}
	defer infra.Close()
	svcs := infra.Services()

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(&jobs.Services{
		Audit:        svcs.Audit,
		Availability: svcs.Availability,
	}, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if !runJobOnce(jobRunner, *runOnce) {
			infra.Close()
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		logger.Error("Failed to create scheduler", "error", err)
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.", "jobs", cronScheduler.JobCount())

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and reports whether the name was known
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) bool {
	switch jobName {
	case "audit-ledgers":
		jobRunner.AuditLedgers()
	case "warm-occupancy-cache":
		jobRunner.WarmOccupancyCache()
	case "all":
		jobRunner.RunAll()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - audit-ledgers\n")
		fmt.Printf("  - warm-occupancy-cache\n")
		fmt.Printf("  - all\n")
		return false
	}
	return true
}
