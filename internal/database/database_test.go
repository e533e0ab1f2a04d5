package database_test

import (
	"testing"
	"time"

	"github.com/mautops/change-gin/internal/config"
	"github.com/mautops/change-gin/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig() config.DatabaseConfig {
	return config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}
}

// TestBuildDSN 测试 DSN 构建
func TestBuildDSN(t *testing.T) {
	dsn := database.BuildDSN(config.DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", DBName: "changes", SSLMode: "disable",
	})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=changes sslmode=disable", dsn)
}

// TestGetPoolConfig 测试连接池默认值
func TestGetPoolConfig(t *testing.T) {
	pool := database.GetPoolConfig(config.DatabaseConfig{MaxOpenConns: 50})
	assert.Equal(t, 50, pool.MaxOpenConns)
	assert.Equal(t, 10, pool.MaxIdleConns)
	assert.Equal(t, 3600, pool.ConnMaxLifetime)
	assert.Equal(t, 600, pool.ConnMaxIdleTime)
}

// TestMigrate 测试 SQLite 迁移
func TestMigrate(t *testing.T) {
	db, err := database.Connect(sqliteConfig())
	require.NoError(t, err)
	defer database.Close(db)

	require.NoError(t, database.Migrate(db))
	assert.True(t, db.Migrator().HasTable("changes"))
	assert.True(t, db.Migrator().HasTable("change_events"))
	assert.True(t, db.Migrator().HasIndex("changes", "idx_changes_status_priority"))

	// 重复迁移是幂等的
	require.NoError(t, database.Migrate(db))
	assert.True(t, database.CheckHealth(db))
}

// TestConnect_UnsupportedDriver 测试未知驱动
func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := database.Connect(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

// TestConnectWithRetry 测试重试连接
func TestConnectWithRetry(t *testing.T) {
	db, err := database.ConnectWithRetry(sqliteConfig(), 2, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, database.CheckHealth(db))
	require.NoError(t, database.Close(db))
	assert.False(t, database.CheckHealth(db))

	_, err = database.ConnectWithRetry(config.DatabaseConfig{Driver: "oracle"}, 2, time.Millisecond)
	assert.Error(t, err)
}

// TestCheckHealth_Nil 测试空连接
func TestCheckHealth_Nil(t *testing.T) {
	assert.False(t, database.CheckHealth(nil))
}
