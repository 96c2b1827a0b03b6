package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Storage backends for the folder tree.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	CORSOrigins string `yaml:"cors_origins"`
	DataDir     string `yaml:"data_dir"`
	// LogDir enables file logging when set; stdout is always written.
	LogDir      string `yaml:"log_dir"`
	MaxLogFiles int    `yaml:"max_log_files"`
	// Folder tree persistence: "file" (JSON document under DataDir) or
	// "postgres" (DatabaseURL required).
	TreeStorage string `yaml:"tree_storage"`
	DatabaseURL string `yaml:"database_url"`
	TablePrefix string `yaml:"table_prefix"`
	// Review settings
	DueCardLimit int `yaml:"due_card_limit"`
	// Debug flags
	Debug bool `yaml:"debug"`
}

// Load builds configuration from the environment, optionally layered over a
// YAML config file named by NOTARIUM_CONFIG. Environment variables win.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         "8080",
		Environment:  "dev",
		CORSOrigins:  "http://localhost:3000",
		DataDir:      defaultDataDir(),
		TreeStorage:  StorageFile,
		TablePrefix:  "dev_",
		MaxLogFiles:  10,
		DueCardLimit: 20,
	}

	if path := os.Getenv("NOTARIUM_CONFIG"); path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(payload, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.CORSOrigins = getEnv("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.LogDir = getEnv("LOG_DIR", cfg.LogDir)
	cfg.TreeStorage = getEnv("TREE_STORAGE", cfg.TreeStorage)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.TablePrefix = getEnv("TABLE_PREFIX", tablePrefixFor(cfg.Environment))
	cfg.Debug = getEnv("DEBUG", defaultDebug(cfg.Environment)) == "true"

	if cfg.TreeStorage != StorageFile && cfg.TreeStorage != StoragePostgres {
		return nil, fmt.Errorf("unknown tree storage backend %q", cfg.TreeStorage)
	}
	if cfg.TreeStorage == StoragePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for postgres tree storage")
	}

	return cfg, nil
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.notarium"
	}
	return "./data"
}

// defaultDebug returns the default debug setting based on environment
func defaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// tablePrefixFor returns the table prefix based on environment
func tablePrefixFor(env string) string {
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
