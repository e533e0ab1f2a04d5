package utils_test

import (
	"strings"
	"testing"

	"github.com/mautops/change-gin/internal/utils"
	"github.com/stretchr/testify/assert"
)

// TestValidateChangeID 测试变更 ID 校验
func TestValidateChangeID(t *testing.T) {
	assert.NoError(t, utils.ValidateChangeID("CHG-20240501090001-5d4140"))
	assert.NoError(t, utils.ValidateChangeID("CHG-20240501090001-5d4140-ab12"))
	assert.Equal(t, utils.ErrEmptyID, utils.ValidateChangeID(""))
	assert.Equal(t, utils.ErrInvalidIDFormat, utils.ValidateChangeID("CHG 1"))
	assert.Equal(t, utils.ErrInvalidIDFormat, utils.ValidateChangeID("../etc/passwd"))
	assert.Equal(t, utils.ErrIDTooLong, utils.ValidateChangeID(strings.Repeat("a", 65)))
}

// TestValidateTitle 测试标题校验
func TestValidateTitle(t *testing.T) {
	assert.NoError(t, utils.ValidateTitle("Upgrade fraud model"))
	assert.Equal(t, utils.ErrEmptyName, utils.ValidateTitle("   "))
	assert.Equal(t, utils.ErrNameTooLong, utils.ValidateTitle(strings.Repeat("x", 256)))
	assert.Equal(t, utils.ErrDangerousChars, utils.ValidateTitle("<script>alert(1)</script>"))
	assert.Equal(t, utils.ErrDangerousChars, utils.ValidateTitle("<img src=x onerror=alert(1)>"))

	// 标题可以描述 SQL 相关的变更
	assert.NoError(t, utils.ValidateTitle("Fix DELETE FROM in purge job"))
	assert.NoError(t, utils.ValidateTitle("Drop table audit_2019 after archive"))
}

// TestValidateActor 测试操作人校验
func TestValidateActor(t *testing.T) {
	assert.NoError(t, utils.ValidateActor("qa@x"))
	assert.Equal(t, utils.ErrEmptyString, utils.ValidateActor(""))
	assert.Equal(t, utils.ErrStringTooLong, utils.ValidateActor(strings.Repeat("a", 129)))
	assert.Equal(t, utils.ErrDangerousChars, utils.ValidateActor("javascript:alert"))
	assert.Equal(t, utils.ErrDangerousChars, utils.ValidateActor("bob'; DROP TABLE changes"))
}
