package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"MAILEXPORT_DATABASE_TYPE",
	"MAILEXPORT_DATABASE_DSN",
	"MAILEXPORT_DATABASE_KEY",
	"MAILEXPORT_DATABASE_CONN_MAX_LIFETIME",
	"MAILEXPORT_EXPORT_OUTPUT_DIR",
	"MAILEXPORT_EXPORT_WORKERS",
	"MAILEXPORT_LOG_LEVEL",
	"MAILEXPORT_METRICS_ADDR",
}

// clearEnv 清除相关环境变量，测试结束后自动恢复
func clearEnv(t *testing.T) {
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	flags.String("dsn", "", "")
	flags.String("output", "", "")
	flags.Int("workers", 0, "")
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoad(t *testing.T) {
	t.Run("加载默认配置成功", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MAILEXPORT_DATABASE_DSN", "archive.db")

		cfg, err := Load(nil)
		require.NoError(t, err)

		assert.Equal(t, "sqlite", cfg.Database.Type)
		assert.Equal(t, "archive.db", cfg.Database.DSN)
		assert.Equal(t, 4, cfg.Database.MaxOpenConns)
		assert.Equal(t, 2, cfg.Database.MaxIdleConns)
		assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
		assert.Equal(t, "export", cfg.Export.OutputDir)
		assert.Equal(t, "attachments", cfg.Export.AttachmentsDir)
		assert.Empty(t, cfg.Export.DebugDir)
		assert.Equal(t, 4, cfg.Export.Workers)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.Development)
		assert.Empty(t, cfg.Metrics.Addr)
	})

	t.Run("加载环境变量配置成功", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MAILEXPORT_DATABASE_TYPE", "Postgres")
		t.Setenv("MAILEXPORT_DATABASE_DSN", "postgres://u:p@localhost/archive?sslmode=disable")
		t.Setenv("MAILEXPORT_DATABASE_CONN_MAX_LIFETIME", "30s")
		t.Setenv("MAILEXPORT_EXPORT_OUTPUT_DIR", "/tmp/out")
		t.Setenv("MAILEXPORT_EXPORT_WORKERS", "8")
		t.Setenv("MAILEXPORT_METRICS_ADDR", ":9102")

		cfg, err := Load(nil)
		require.NoError(t, err)

		assert.Equal(t, "postgres", cfg.Database.Type)
		assert.Equal(t, 30*time.Second, cfg.Database.ConnMaxLifetime)
		assert.Equal(t, "/tmp/out", cfg.Export.OutputDir)
		assert.Equal(t, 8, cfg.Export.Workers)
		assert.Equal(t, ":9102", cfg.Metrics.Addr)
	})

	t.Run("命令行参数优先于环境变量", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MAILEXPORT_DATABASE_DSN", "from-env.db")
		t.Setenv("MAILEXPORT_EXPORT_OUTPUT_DIR", "env-out")

		cfg, err := Load(newFlags(t, "--dsn", "from-flag.db", "--workers", "2"))
		require.NoError(t, err)

		assert.Equal(t, "from-flag.db", cfg.Database.DSN)
		assert.Equal(t, 2, cfg.Export.Workers)
		// 未设置的参数不覆盖环境变量
		assert.Equal(t, "env-out", cfg.Export.OutputDir)
	})

	t.Run("读取配置文件", func(t *testing.T) {
		clearEnv(t)
		file := filepath.Join(t.TempDir(), "exporter.yaml")
		require.NoError(t, os.WriteFile(file, []byte(
			"database:\n  type: mysql\n  dsn: user:pass@tcp(localhost:3306)/archive\nexport:\n  workers: 6\n"), 0644))

		cfg, err := Load(newFlags(t, "--config", file))
		require.NoError(t, err)

		assert.Equal(t, "mysql", cfg.Database.Type)
		assert.Equal(t, 6, cfg.Export.Workers)
	})

	t.Run("配置文件不存在", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(newFlags(t, "--config", "/nonexistent/exporter.yaml"))
		assert.Error(t, err)
	})

	t.Run("无效的连接生命周期", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MAILEXPORT_DATABASE_DSN", "archive.db")
		t.Setenv("MAILEXPORT_DATABASE_CONN_MAX_LIFETIME", "soon")

		_, err := Load(nil)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Type: "sqlite", DSN: "archive.db"},
			Export:   ExportConfig{OutputDir: "out", Workers: 4},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"json dump", func(c *Config) { c.Database.Type = "json" }, ""},
		{"unknown type", func(c *Config) { c.Database.Type = "oracle" }, "database.type"},
		{"missing dsn", func(c *Config) { c.Database.DSN = " " }, "database.dsn"},
		{"key on postgres", func(c *Config) { c.Database.Type = "postgres"; c.Database.Key = "k" }, "database.key"},
		{"missing output", func(c *Config) { c.Export.OutputDir = "" }, "export.output_dir"},
		{"zero workers", func(c *Config) { c.Export.Workers = 0 }, "export.workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegisterFlags(t *testing.T) {
	clearEnv(t)

	flags := pflag.NewFlagSet("exporter", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--db-type", "json", "--dsn", "dump.json", "-o", "out", "-w", "3", "--dev"}))

	for name := range flagKeys {
		assert.NotNil(t, flags.Lookup(name), name)
	}

	cfg, err := Load(flags)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Database.Type)
	assert.Equal(t, "dump.json", cfg.Database.DSN)
	assert.Equal(t, "out", cfg.Export.OutputDir)
	assert.Equal(t, 3, cfg.Export.Workers)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, "info", cfg.Log.Level)
}
