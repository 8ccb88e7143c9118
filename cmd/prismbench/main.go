// Command prismbench runs the MCTS-driven challenge-search HTTP service.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prismbench/search/pkg/api"
	"github.com/prismbench/search/pkg/config"
	"github.com/prismbench/search/pkg/services"
	"github.com/prismbench/search/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	ginMode := getEnv("GIN_MODE", "release")
	gin.SetMode(ginMode)

	slog.Info("starting prismbench search service", "version", version.Full(), "http_port", httpPort, "config_dir", *configDir)

	settings, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	slog.Info("configuration loaded", "phases", len(settings.Phases), "experiment", settings.Experiment.Name)

	sessionService := services.NewSessionService()
	checkpointDir := getEnv("CHECKPOINT_DIR", settings.Experiment.OutputDir)
	mctsService := services.NewMCTSService(settings, sessionService, checkpointDir)
	taskService := services.NewTaskService(mctsService, sessionService)

	cleaner := services.NewTaskCleaner(taskService, 24*time.Hour, time.Hour)
	cleaner.Start(context.Background())
	defer cleaner.Stop()

	router := api.NewRouter(sessionService, taskService, settings)

	slog.Info("HTTP server listening", "port", httpPort)
	if err := router.Run(":" + httpPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
