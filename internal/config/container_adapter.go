package config

import (
	"github.com/fieldops/field-reports/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Store: container.StoreConfig{
			Backend: c.Store.Backend,
		},
		Redis: container.RedisConfig{
			Address:   c.Redis.Address,
			Password:  c.Redis.Password,
			DB:        c.Redis.DB,
			Namespace: c.Redis.Namespace,
		},
		Submission: container.SubmissionConfig{
			BaseURL:   c.Submission.BaseURL,
			Token:     c.Submission.Token,
			Timeout:   c.Submission.Timeout,
			UserAgent: c.Submission.UserAgent,
		},
		Lark: container.LarkConfig{
			Enabled:       c.Lark.Enabled,
			AppID:         c.Lark.AppID,
			AppSecret:     c.Lark.AppSecret,
			ReceiveIDType: c.Lark.ReceiveIDType,
			ReceiveID:     c.Lark.ReceiveID,
		},
		Storage: container.StorageConfig{
			ExportDir: c.Export.Dir,
			SchemaDir: c.Schemas.Dir,
		},
		Photos: container.PhotosConfig{
			MaxBytes: c.Photos.MaxBytes,
		},
	}
}
