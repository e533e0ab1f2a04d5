package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// ChangeModel 变更记录数据模型
// Data 保存完整的变更文档,其余列用于过滤和排序
type ChangeModel struct {
	ID         string         `gorm:"primaryKey;type:varchar(64)"`
	Title      string         `gorm:"type:varchar(255);not null"`
	ChangeType string         `gorm:"type:varchar(32);not null;index"`
	Priority   string         `gorm:"type:varchar(16);not null;index"`
	Status     string         `gorm:"type:varchar(32);not null;index"` // 变更状态
	Requester  string         `gorm:"type:varchar(128);index"`
	Data       datatypes.JSON `gorm:"not null"` // 序列化后的变更记录
	CreatedAt  time.Time      `gorm:"not null;index;autoCreateTime:false"`
	UpdatedAt  time.Time      `gorm:"not null;index;autoUpdateTime:false"`
}

// TableName 指定表名
func (ChangeModel) TableName() string {
	return "changes"
}

// Validate 验证变更模型
func (cm *ChangeModel) Validate() error {
	if cm.ID == "" {
		return errors.New("change ID is required")
	}
	if cm.Status == "" {
		return errors.New("change status is required")
	}
	if len(cm.Data) == 0 {
		return errors.New("change data is required")
	}
	return nil
}
