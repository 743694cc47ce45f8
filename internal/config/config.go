package config

import (
	"crypto/sha256"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	DatabasePath  string `json:"database_path"`
	APIPort       string `json:"api_port"`
	LogLevel      string `json:"log_level"`
	DataDir       string `json:"data_dir"`
	JWTSecret     string `json:"jwt_secret"`
	EncryptionKey string `json:"encryption_key"` // separate key for credential encryption
	CORSOrigins   string `json:"cors_origins"`   // comma separated, * allows all

	// SenderEmail is the shared Gmail mailbox used for all outbound mail
	SenderEmail string `json:"sender_email"`

	// Scheduler intervals in minutes
	SyncIntervalMinutes int `json:"sync_interval_minutes"`
	PollIntervalMinutes int `json:"poll_interval_minutes"`

	// SyncBatchSize is how many pending rows accumulate before a flush
	SyncBatchSize int `json:"sync_batch_size"`

	// SyncPageSize is how many entries each remote page request asks for
	SyncPageSize int `json:"sync_page_size"`

	// SMTP fallback transport, used when no Gmail credential is connected
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUser     string `json:"smtp_user"`
	SMTPPassword string `json:"smtp_password"`

	// Google OAuth application used to connect the sender mailbox
	GoogleClientID     string `json:"google_client_id"`
	GoogleClientSecret string `json:"google_client_secret"`
	GoogleRedirectURL  string `json:"google_redirect_url"`
}

// Default configuration values
const (
	DefaultDatabasePath        = "data/wp_hub.db"
	DefaultAPIPort             = "8080"
	DefaultLogLevel            = "INFO"
	DefaultDataDir             = "data"
	DefaultJWTSecret           = "wp-hub-default-secret-change-in-production"
	DefaultEncryptionKey       = "" // empty derives from JWTSecret
	DefaultCORSOrigins         = "*"
	DefaultSyncIntervalMinutes = 180
	DefaultPollIntervalMinutes = 180
	DefaultSyncBatchSize       = 500
	DefaultSyncPageSize        = 50
	DefaultSMTPHost            = "smtp.gmail.com"
	DefaultSMTPPort            = 587
)

// Load loads configuration from environment variables and config file
// Priority: Environment variables > Config file > Default values
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:        DefaultDatabasePath,
		APIPort:             DefaultAPIPort,
		LogLevel:            DefaultLogLevel,
		DataDir:             DefaultDataDir,
		JWTSecret:           DefaultJWTSecret,
		EncryptionKey:       DefaultEncryptionKey,
		CORSOrigins:         DefaultCORSOrigins,
		SyncIntervalMinutes: DefaultSyncIntervalMinutes,
		PollIntervalMinutes: DefaultPollIntervalMinutes,
		SyncBatchSize:       DefaultSyncBatchSize,
		SyncPageSize:        DefaultSyncPageSize,
		SMTPHost:            DefaultSMTPHost,
		SMTPPort:            DefaultSMTPPort,
	}

	// Config file is optional
	_ = cfg.loadFromFile()

	// Override with environment variables
	cfg.loadFromEnv()

	return cfg, nil
}

// loadFromFile loads configuration from config.json file
func (c *Config) loadFromFile() error {
	// Look for config file in current directory and data directory
	configPaths := []string{
		"config.json",
		filepath.Join(c.DataDir, "config.json"),
	}

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		if err := json.Unmarshal(data, c); err != nil {
			return err
		}
		return nil
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if val := os.Getenv("WPHUB_DATABASE_PATH"); val != "" {
		c.DatabasePath = val
	}
	if val := os.Getenv("WPHUB_API_PORT"); val != "" {
		c.APIPort = val
	}
	if val := os.Getenv("WPHUB_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("WPHUB_DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("WPHUB_JWT_SECRET"); val != "" {
		c.JWTSecret = val
	}
	if val := os.Getenv("WPHUB_ENCRYPTION_KEY"); val != "" {
		c.EncryptionKey = val
	}
	if val := os.Getenv("WPHUB_CORS_ORIGINS"); val != "" {
		c.CORSOrigins = val
	}
	if val := os.Getenv("WPHUB_SENDER_EMAIL"); val != "" {
		c.SenderEmail = val
	}
	if val := os.Getenv("WPHUB_SYNC_INTERVAL_MINUTES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.SyncIntervalMinutes = n
		}
	}
	if val := os.Getenv("WPHUB_POLL_INTERVAL_MINUTES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.PollIntervalMinutes = n
		}
	}
	if val := os.Getenv("WPHUB_SYNC_BATCH_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.SyncBatchSize = n
		}
	}
	if val := os.Getenv("WPHUB_SYNC_PAGE_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.SyncPageSize = n
		}
	}
	if val := os.Getenv("WPHUB_SMTP_HOST"); val != "" {
		c.SMTPHost = val
	}
	if val := os.Getenv("WPHUB_SMTP_PORT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.SMTPPort = n
		}
	}
	if val := os.Getenv("WPHUB_SMTP_USER"); val != "" {
		c.SMTPUser = val
	}
	if val := os.Getenv("WPHUB_SMTP_PASSWORD"); val != "" {
		c.SMTPPassword = val
	}
	if val := os.Getenv("WPHUB_GOOGLE_CLIENT_ID"); val != "" {
		c.GoogleClientID = val
	}
	if val := os.Getenv("WPHUB_GOOGLE_CLIENT_SECRET"); val != "" {
		c.GoogleClientSecret = val
	}
	if val := os.Getenv("WPHUB_GOOGLE_REDIRECT_URL"); val != "" {
		c.GoogleRedirectURL = val
	}
}

// SyncInterval returns the submission sync cadence
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMinutes) * time.Minute
}

// PollInterval returns the inbox polling cadence
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMinutes) * time.Minute
}

// GetEncryptionKey returns the key for credential encryption
// If EncryptionKey is set, use it; otherwise derive from JWTSecret
func (c *Config) GetEncryptionKey() []byte {
	if c.EncryptionKey != "" {
		// SHA-256 guarantees a 32 byte key
		hash := sha256.Sum256([]byte(c.EncryptionKey))
		return hash[:]
	}
	// Derived from JWTSecret for backwards compatibility
	hash := sha256.Sum256([]byte(c.JWTSecret + "-encryption"))
	return hash[:]
}

// Save saves the current configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
