package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/segyhp/loan-importer/internal/config"
	"github.com/segyhp/loan-importer/internal/importer"
	"github.com/segyhp/loan-importer/internal/lifecycle"
	"github.com/segyhp/loan-importer/internal/logger"
	"github.com/segyhp/loan-importer/internal/repository"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.NewStructured("info", "json").Error("Failed to load configuration", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()
	log.Info("Starting lifecycle scheduler", nil)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		log.Error("Failed to initialize database", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	engine := importer.NewEngine(repository.NewPostgresStore(db), log, importer.OptionsFromConfig(cfg))

	c := cron.New(cron.WithSeconds())
	if err := setupCronJobs(c, cfg, engine, log); err != nil {
		log.Error("Error scheduling lifecycle refresh job", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	c.Start()
	log.Info("Scheduler started", map[string]interface{}{"schedule": cfg.Scheduler.RefreshCron})

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down scheduler", nil)
	<-c.Stop().Done()
	log.Info("Scheduler stopped", nil)
}

type refresher interface {
	RefreshAll(ctx context.Context) ([]*lifecycle.Result, error)
}

// setupCronJobs registers the nightly lifecycle and balance refresh. A run
// still in progress when the next one fires is skipped.
func setupCronJobs(c *cron.Cron, cfg *config.Config, engine refresher, log logger.Logger) error {
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		refreshRoutes(context.Background(), engine, log)
	}))
	_, err := c.AddJob(cfg.Scheduler.RefreshCron, job)
	return err
}

func refreshRoutes(ctx context.Context, engine refresher, log logger.Logger) {
	start := time.Now()
	log.Info("Running lifecycle refresh", nil)

	results, err := engine.RefreshAll(ctx)
	if err != nil {
		log.Error("Lifecycle refresh failed", map[string]interface{}{"error": err.Error()})
		return
	}

	loans := 0
	for _, r := range results {
		loans += r.Loans
	}
	log.Info("Lifecycle refresh completed", map[string]interface{}{
		"routes":   len(results),
		"loans":    loans,
		"duration": time.Since(start).String(),
	})
}
