package cli

import (
	"fmt"
	"os"

	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/api/middleware"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/cache"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/config"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/services"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	db            *gorm.DB
	cfg           *config.Config
	apiKeyManager *middleware.APIKeyManager
	userService   *services.UserService
	siteService   *services.SiteService
	syncService   *services.SyncService
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wp-hub",
	Short: "WordPress contact form ticket hub backend",
	Long: `wp-hub pulls Fluent Forms contact submissions from registered
WordPress sites into a local ticket store and keeps each ticket's email
conversation on one Gmail thread.

Available tooling:
  wp-hub key show       show the current API key
  wp-hub key reset      reset the API key
  wp-hub user create    create a new operator account
  wp-hub user list      list operator accounts
  wp-hub user reset-pwd reset an account password
  wp-hub sync run       sync all active sites now
  wp-hub sync site <id> sync one site now`,
}

// Execute runs the CLI with the provided database and config
func Execute(database *gorm.DB, config *config.Config) {
	db = database
	cfg = config

	// Initialize API key manager
	var err error
	apiKeyManager, err = middleware.NewAPIKeyManager(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize API key manager: %v\n", err)
		os.Exit(1)
	}

	// Initialize services
	logService := services.NewLogService(db)
	userService = services.NewUserService(db, logService)
	siteService = services.NewSiteService(db, cfg, logService, nil)
	syncService = services.NewSyncService(db, cfg, logService, siteService, cache.NewMemoryStore())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(syncCmd)
}
