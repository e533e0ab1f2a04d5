package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRootCommand 测试根命令及子命令注册
func TestRootCommand(t *testing.T) {
	root := GetRootCmd()
	assert.Equal(t, "change-gin", root.Use)

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["server"])
	assert.True(t, names["migrate"])
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

// TestMigrateCommand 测试 sqlite 迁移
func TestMigrateCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	dbPath := filepath.Join(dir, "changes.db")
	content := "database:\n  driver: sqlite\n  path: " + dbPath + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))

	root := GetRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"migrate", "--config", cfgPath})
	require.NoError(t, root.Execute(), out.String())

	assert.FileExists(t, dbPath)
}

// TestApplyLogLevel 测试热更新日志级别
func TestApplyLogLevel(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)

	applyLogLevel(logger, "debug")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	applyLogLevel(logger, "noisy")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.Equal(t, "Ignoring invalid log level", hook.LastEntry().Message)
}
