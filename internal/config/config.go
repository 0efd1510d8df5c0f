package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	ServerAddress string        `json:"serverAddress"`
	DatabasePath  string        `json:"databasePath"`
	DatabaseURL   string        `json:"databaseUrl"`
	SnapshotCache SnapshotCache `json:"snapshotCache"`
	PhotoStorage  PhotoStorage  `json:"photoStorage"`
	Autosave      Autosave      `json:"autosave"`
	Security      Security      `json:"security"`
}

// UsePostgres returns true if PostgreSQL should be used for inspection data
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// SnapshotCache configuration for the local draft fallback store
type SnapshotCache struct {
	BasePath string `json:"basePath"`
}

// PhotoStorage configuration
type PhotoStorage struct {
	BasePath      string `json:"basePath"`
	MaxFileSizeMB int64  `json:"maxFileSizeMB"`
}

// Autosave configuration
type Autosave struct {
	DelaySeconds int `json:"delaySeconds"`
}

// Security configuration. APIKey, when set, enables a shared perimeter key
// on the X-Service-Key header in addition to the per-inspector keys.
type Security struct {
	APIKey       string `json:"apiKey"`
	APIKeyHeader string `json:"apiKeyHeader"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":5000",
		DatabasePath:  "inspectsync.db",
		SnapshotCache: SnapshotCache{
			BasePath: "./snapshots",
		},
		PhotoStorage: PhotoStorage{
			BasePath:      "./photos",
			MaxFileSizeMB: 5,
		},
		Autosave: Autosave{
			DelaySeconds: 30,
		},
		Security: Security{
			APIKeyHeader: "X-API-Key",
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	// Try to load from config file
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override from environment variables
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if basePath := os.Getenv("SNAPSHOT_CACHE_PATH"); basePath != "" {
		cfg.SnapshotCache.BasePath = basePath
	}
	if basePath := os.Getenv("PHOTO_STORAGE_PATH"); basePath != "" {
		cfg.PhotoStorage.BasePath = basePath
	}
	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		cfg.Security.APIKey = apiKey
	}
	if delay := os.Getenv("AUTOSAVE_DELAY_SECONDS"); delay != "" {
		if seconds, err := strconv.Atoi(delay); err == nil && seconds > 0 {
			cfg.Autosave.DelaySeconds = seconds
		}
	}

	// Ensure storage directories exist
	if err := os.MkdirAll(cfg.PhotoStorage.BasePath, 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.SnapshotCache.BasePath, 0755); err != nil {
		return nil, err
	}

	// Make base paths absolute
	absPath, err := filepath.Abs(cfg.PhotoStorage.BasePath)
	if err != nil {
		return nil, err
	}
	cfg.PhotoStorage.BasePath = absPath

	absCache, err := filepath.Abs(cfg.SnapshotCache.BasePath)
	if err != nil {
		return nil, err
	}
	cfg.SnapshotCache.BasePath = absCache

	return cfg, nil
}
