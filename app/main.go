package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/crystalsense/crystal/app/api"
	"github.com/crystalsense/crystal/app/cfg"
	"github.com/crystalsense/crystal/app/config"
	"github.com/crystalsense/crystal/app/crawler"
	"github.com/crystalsense/crystal/app/database"
	"github.com/crystalsense/crystal/app/ingest"
	"github.com/crystalsense/crystal/app/scheduler"
)

func main() {
	// Load .env file if present; real environment variables win
	_ = godotenv.Load()

	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	if appCfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	slog.Info("Starting Crystal server...", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	itemRepo := database.NewItemRepository(db)
	targetRepo := database.NewTargetRepository(db)
	runRepo := database.NewRunRepository(db)
	accountRepo := database.NewAccountRepository(db)

	// Sync declared watch targets into the database
	seedLoader := config.NewLoader(appCfg.TargetsDir)
	seeds, err := seedLoader.LoadAll()
	if err != nil {
		slog.Error("Failed to load target seed files", "dir", appCfg.TargetsDir, "error", err)
		os.Exit(1)
	}
	createdCount := 0
	for _, seed := range seeds {
		id, created, err := targetRepo.UpsertSeed(seed)
		if err != nil {
			slog.Warn("Failed to register target", "display_name", seed.DisplayName, "error", err)
			continue
		}
		if created {
			slog.Info("Registered target", "id", id, "platform", seed.Platform, "type", seed.TargetType, "display_name", seed.DisplayName)
			createdCount++
		}
	}
	slog.Info("Target seeds synced", "declared", len(seeds), "created", createdCount)

	crawlerOpts := crawler.Options{
		UserAgent: appCfg.UserAgent,
		PageDelay: time.Duration(appCfg.PageDelay) * time.Second,
		MaxPages:  appCfg.MaxPages,
		Timeout:   time.Duration(appCfg.FetchTimeout) * time.Second,
	}
	newCrawler := func(platform string, creds *crawler.Credentials) (crawler.Crawler, error) {
		return crawler.New(platform, creds, crawlerOpts)
	}

	coordinator := ingest.NewCoordinator(targetRepo, itemRepo, runRepo, accountRepo, newCrawler)

	ingestScheduler := scheduler.NewScheduler(coordinator, appCfg.CronSchedule)
	if err := ingestScheduler.Start(); err != nil {
		slog.Error("Failed to start scheduler", "schedule", appCfg.CronSchedule, "error", err)
		os.Exit(1)
	}
	defer ingestScheduler.Stop()

	apiHandler := api.NewHandler(itemRepo, targetRepo, runRepo, accountRepo, coordinator)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("Crystal server started successfully")

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Crystal server shutdown complete")
}
