package repository

import (
	"github.com/mautops/change-gin/internal/model"
	"gorm.io/gorm"
)

// ChangeRepository 变更记录仓储接口
type ChangeRepository interface {
	Save(change *model.ChangeModel) error
	FindByID(id string) (*model.ChangeModel, error)
	FindByFilter(filter *ChangeFilter) ([]*model.ChangeModel, error)
	Exists(id string) (bool, error)
}

// ChangeFilter 变更查询过滤器
type ChangeFilter struct {
	Status     *string
	ChangeType *string
	Priority   *string
	Requester  *string
}

// changeRepository 变更记录仓储实现
type changeRepository struct {
	db *gorm.DB
}

// NewChangeRepository 创建变更记录仓储
func NewChangeRepository(db *gorm.DB) ChangeRepository {
	return &changeRepository{db: db}
}

// Save 保存变更记录,主键存在时整行覆盖
func (r *changeRepository) Save(change *model.ChangeModel) error {
	if err := change.Validate(); err != nil {
		return err
	}
	return r.db.Save(change).Error
}

// FindByID 根据 ID 查找变更记录
func (r *changeRepository) FindByID(id string) (*model.ChangeModel, error) {
	var change model.ChangeModel
	if err := r.db.Where("id = ?", id).First(&change).Error; err != nil {
		return nil, err
	}
	return &change, nil
}

// FindByFilter 根据过滤器查找变更记录,按创建时间倒序
func (r *changeRepository) FindByFilter(filter *ChangeFilter) ([]*model.ChangeModel, error) {
	var changes []*model.ChangeModel
	query := r.db.Model(&model.ChangeModel{})

	if filter != nil {
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if filter.ChangeType != nil {
			query = query.Where("change_type = ?", *filter.ChangeType)
		}
		if filter.Priority != nil {
			query = query.Where("priority = ?", *filter.Priority)
		}
		if filter.Requester != nil {
			query = query.Where("requester = ?", *filter.Requester)
		}
	}

	err := query.Order("created_at DESC").Order("id DESC").Find(&changes).Error
	return changes, err
}

// Exists 判断变更记录是否存在
func (r *changeRepository) Exists(id string) (bool, error) {
	var count int64
	if err := r.db.Model(&model.ChangeModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
