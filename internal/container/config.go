// Package container wires the field-reports components together and owns
// their lifecycle.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
type Config struct {
	Database   DatabaseConfig
	Store      StoreConfig
	Redis      RedisConfig
	Submission SubmissionConfig
	Lark       LarkConfig
	Storage    StorageConfig
	Photos     PhotosConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// MigrationsDir overrides the bundled migrations when set
	MigrationsDir string
}

// StoreConfig selects the draft store backend.
type StoreConfig struct {
	// Backend is sqlite, redis or memory
	Backend string
}

// RedisConfig holds Redis settings for the redis backend.
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	Namespace string
}

// SubmissionConfig holds reports API settings.
type SubmissionConfig struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	UserAgent string
}

// LarkConfig holds submission notification settings.
type LarkConfig struct {
	Enabled       bool
	AppID         string
	AppSecret     string
	ReceiveIDType string
	ReceiveID     string
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// ExportDir is the base directory for archived workbooks
	ExportDir string

	// SchemaDir holds extra report definitions; empty loads none
	SchemaDir string
}

// PhotosConfig limits photo ingestion.
type PhotosConfig struct {
	MaxBytes int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/field-reports.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Store: StoreConfig{Backend: "sqlite"},
		Redis: RedisConfig{
			Address:   "localhost:6379",
			Namespace: "fieldreports:",
		},
		Submission: SubmissionConfig{
			Timeout:   30 * time.Second,
			UserAgent: "field-reports/1.0",
		},
		Lark: LarkConfig{ReceiveIDType: "chat_id"},
		Storage: StorageConfig{
			ExportDir: "exports",
		},
		Photos: PhotosConfig{MaxBytes: 15 << 20},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required")
		}
	case "redis":
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Submission.BaseURL == "" {
		return fmt.Errorf("submission.base_url is required")
	}

	if c.Lark.Enabled && (c.Lark.AppID == "" || c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret are required when lark is enabled")
	}

	if c.Storage.ExportDir == "" {
		return fmt.Errorf("storage.export_dir is required")
	}

	return nil
}
