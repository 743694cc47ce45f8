package main

import (
	"log"
	"os"

	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/api"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/cli"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/config"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Initialize database
	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Check if running CLI command
	if len(os.Args) > 1 {
		cli.Execute(db, cfg)
		return
	}

	// Start API server
	router, authManager, schedulers, err := api.SetupRouter(db, cfg)
	if err != nil {
		log.Fatalf("Failed to setup router: %v", err)
	}
	defer schedulers.Stop()

	log.Printf("Starting wp-hub server on port %s", cfg.APIPort)
	log.Printf("Data directory: %s", cfg.DataDir)
	log.Printf("Database path: %s", cfg.DatabasePath)
	log.Printf("Sync interval: %s, poll interval: %s", cfg.SyncInterval(), cfg.PollInterval())
	log.Printf("API Key: %s", authManager.APIKeyManager.GetCurrentKey())
	if err := router.Run(":" + cfg.APIPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
