package repository

import (
	"github.com/mautops/change-gin/internal/model"
	"gorm.io/gorm"
)

// ChangeEventRepository 变更事件仓储接口
type ChangeEventRepository interface {
	Save(event *model.ChangeEventModel) error
	FindByChangeID(changeID string) ([]*model.ChangeEventModel, error)
}

// changeEventRepository 变更事件仓储实现
type changeEventRepository struct {
	db *gorm.DB
}

// NewChangeEventRepository 创建变更事件仓储
func NewChangeEventRepository(db *gorm.DB) ChangeEventRepository {
	return &changeEventRepository{db: db}
}

// Save 保存事件,事件只追加
func (r *changeEventRepository) Save(event *model.ChangeEventModel) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return r.db.Create(event).Error
}

// FindByChangeID 查找变更的全部事件,按时间正序
func (r *changeEventRepository) FindByChangeID(changeID string) ([]*model.ChangeEventModel, error) {
	var events []*model.ChangeEventModel
	err := r.db.Where("change_id = ?", changeID).Order("created_at ASC").Order("id ASC").Find(&events).Error
	return events, err
}
