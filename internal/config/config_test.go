package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mautops/change-gin/internal/config"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConfig_Defaults 测试默认配置
func TestConfig_Defaults(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db", cfg.Store.Backend)
	assert.Equal(t, "none", cfg.Analyzer.Provider)
	assert.Equal(t, "simulated", cfg.TestRunner.Mode)
	assert.Equal(t, 4, cfg.TestRunner.Workers)
	assert.Equal(t, "backups", cfg.Rollback.BackupDir)
	assert.False(t, cfg.Events.Kafka.Enabled)
	assert.NoError(t, cfg.Validate())
}

// TestConfig_EnvironmentVariables 测试环境变量覆盖
func TestConfig_EnvironmentVariables(t *testing.T) {
	t.Setenv("APP_SERVER_PORT", "9090")
	t.Setenv("APP_DATABASE_DRIVER", "sqlite")
	t.Setenv("APP_DATABASE_PATH", "/tmp/changes.db")
	t.Setenv("APP_STORE_BACKEND", "redis")
	t.Setenv("APP_STORE_REDIS_ADDR", "redis:6379")
	t.Setenv("APP_ANALYZER_PROVIDER", "openai")
	t.Setenv("APP_ANALYZER_API_KEY", "sk-test")
	t.Setenv("APP_ANALYZER_BASE_URL", "https://llm.internal/v1")
	t.Setenv("APP_TESTRUNNER_MODE", "http")
	t.Setenv("APP_TESTRUNNER_ENDPOINT", "http://runner:9000/run")
	t.Setenv("APP_TESTRUNNER_TOKEN", "runner-token")
	t.Setenv("APP_TESTRUNNER_WORKERS", "8")
	t.Setenv("APP_STORE_REDIS_PASSWORD", "redis-secret")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/changes.db", cfg.Database.Path)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, "openai", cfg.Analyzer.Provider)
	assert.Equal(t, "sk-test", cfg.Analyzer.APIKey)
	assert.Equal(t, "https://llm.internal/v1", cfg.Analyzer.BaseURL)
	assert.Equal(t, "http", cfg.TestRunner.Mode)
	assert.Equal(t, "http://runner:9000/run", cfg.TestRunner.Endpoint)
	assert.Equal(t, "runner-token", cfg.TestRunner.Token)
	assert.Equal(t, 8, cfg.TestRunner.Workers)
	assert.Equal(t, "redis-secret", cfg.Store.Redis.Password)
}

// TestConfig_ProductionDefaults 测试生产环境默认值
func TestConfig_ProductionDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.True(t, config.IsProduction(cfg))
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 200, cfg.Database.MaxOpenConns)
}

// TestConfig_Invalid 测试非法配置
func TestConfig_Invalid(t *testing.T) {
	tests := map[string]func(c *config.Config){
		"driver":   func(c *config.Config) { c.Database.Driver = "mysql" },
		"backend":  func(c *config.Config) { c.Store.Backend = "s3" },
		"provider": func(c *config.Config) { c.Analyzer.Provider = "gemini" },
		"mode":     func(c *config.Config) { c.TestRunner.Mode = "docker" },
		"endpoint": func(c *config.Config) { c.TestRunner.Mode = "http" },
		"workers":  func(c *config.Config) { c.TestRunner.Workers = 0 },
		"suite exceeds request timeout": func(c *config.Config) {
			c.TestRunner.Timeout = 300
		},
		"two rounds exceed request timeout": func(c *config.Config) {
			c.TestRunner.Timeout = 30
			c.TestRunner.Workers = 4
		},
		"kafka": func(c *config.Config) {
			c.Events.Kafka.Enabled = true
			c.Events.Kafka.Brokers = nil
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// TestConfig_TestTimeoutWithinRequestTimeout 测试单测超时与请求超时的关系
func TestConfig_TestTimeoutWithinRequestTimeout(t *testing.T) {
	cfg := config.Default()
	assert.Less(t, cfg.TestRunner.Timeout*2, cfg.Server.RequestTimeout)

	cfg.TestRunner.Timeout = 50
	cfg.TestRunner.Workers = 5
	assert.NoError(t, cfg.Validate())

	// 不限制请求超时
	cfg.Server.RequestTimeout = 0
	cfg.TestRunner.Timeout = 600
	assert.NoError(t, cfg.Validate())
}

// TestConfig_File 测试配置文件加载
func TestConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  driver: sqlite
  path: ":memory:"
rollback:
  backup_dir: /srv/backups
testrunner:
  seed: 42
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, "/srv/backups", cfg.Rollback.BackupDir)
	assert.Equal(t, int64(42), cfg.TestRunner.Seed)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestConfigWatcher_Reload 测试配置热加载
func TestConfigWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	watcher := config.NewConfigWatcher(cfg, path, logger)

	var mu sync.Mutex
	var levels []string
	watcher.OnConfigChange(func(c *config.Config) {
		mu.Lock()
		defer mu.Unlock()
		levels = append(levels, c.Log.Level)
	})

	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(levels) > 0 && levels[len(levels)-1] == "error"
	}, 3*time.Second, 50*time.Millisecond)

	assert.Equal(t, "error", watcher.GetConfig().Log.Level)
}
