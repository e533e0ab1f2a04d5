package model

import (
	"errors"
	"time"
)

// ChangeEventModel 变更审计事件数据模型
type ChangeEventModel struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)"`
	ChangeID    string    `gorm:"type:varchar(64);not null;index"`
	Type        string    `gorm:"type:varchar(64);not null;index"`
	Description string    `gorm:"type:text"`
	Operator    string    `gorm:"type:varchar(128)"`
	RequestID   string    `gorm:"type:varchar(64);index"`
	CreatedAt   time.Time `gorm:"not null;index;autoCreateTime:false"`
}

// TableName 指定表名
func (ChangeEventModel) TableName() string {
	return "change_events"
}

// Validate 验证事件模型
func (em *ChangeEventModel) Validate() error {
	if em.ID == "" {
		return errors.New("event ID is required")
	}
	if em.ChangeID == "" {
		return errors.New("change ID is required")
	}
	if em.Type == "" {
		return errors.New("event type is required")
	}
	return nil
}
