package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
submission:
  base_url: http://reports.local
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "data/field-reports.db", cfg.Database.Path)
	assert.Equal(t, "fieldreports:", cfg.Redis.Namespace)
	assert.Equal(t, 30*time.Second, cfg.Submission.Timeout)
	assert.Equal(t, 15<<20, cfg.Photos.MaxBytes)
	assert.Equal(t, "exports", cfg.Export.Dir)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.False(t, cfg.Lark.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	t.Setenv("REPORTS_API_TOKEN", "secret")
	t.Setenv("DRAFT_STORE_BACKEND", BackendMemory)

	path := writeConfig(t, `
server:
  port: 9090
  write_timeout: 2m
submission:
  base_url: http://reports.local
  timeout: 5s
store:
  backend: redis
schemas:
  dir: /etc/field-reports/schemas
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, 5*time.Second, cfg.Submission.Timeout)
	assert.Equal(t, "secret", cfg.Submission.Token)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "/etc/field-reports/schemas", cfg.Schemas.Dir)

	cc := cfg.ToContainerConfig()
	assert.Equal(t, BackendMemory, cc.Store.Backend)
	assert.Equal(t, "secret", cc.Submission.Token)
	assert.Equal(t, "/etc/field-reports/schemas", cc.Storage.SchemaDir)
	assert.Equal(t, "exports", cc.Storage.ExportDir)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("missing base url", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server:\n  port: 8080\n"))
		assert.Error(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:     ServerConfig{Port: 8080},
			Database:   DatabaseConfig{Path: "drafts.db"},
			Store:      StoreConfig{Backend: BackendSQLite},
			Redis:      RedisConfig{Address: "localhost:6379"},
			Submission: SubmissionConfig{BaseURL: "http://reports.local"},
			Export:     ExportConfig{Dir: "exports"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, true},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }, true},
		{"sqlite without path", func(c *Config) { c.Database.Path = "" }, true},
		{"redis without address", func(c *Config) {
			c.Store.Backend = BackendRedis
			c.Redis.Address = ""
		}, true},
		{"memory ignores database", func(c *Config) {
			c.Store.Backend = BackendMemory
			c.Database.Path = ""
		}, false},
		{"missing base url", func(c *Config) { c.Submission.BaseURL = "" }, true},
		{"lark without receiver", func(c *Config) {
			c.Lark = LarkConfig{Enabled: true, AppID: "id", AppSecret: "secret"}
		}, true},
		{"lark complete", func(c *Config) {
			c.Lark = LarkConfig{Enabled: true, AppID: "id", AppSecret: "secret", ReceiveID: "oc_1"}
		}, false},
		{"missing export dir", func(c *Config) { c.Export.Dir = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
