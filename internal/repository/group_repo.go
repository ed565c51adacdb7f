package repository

import (
	"context"
	"errors"
	"fmt"

	"ChannelSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("记录不存在")

// GroupRepository 赛事组仓储
type GroupRepository interface {
	List(ctx context.Context) ([]model.EventGroup, error)
	Get(ctx context.Context, id uint64) (*model.EventGroup, error)
	GetByName(ctx context.Context, name string) (*model.EventGroup, error)
	Create(ctx context.Context, g *model.EventGroup) error
	Update(ctx context.Context, g *model.EventGroup) error
	Delete(ctx context.Context, id uint64) error
	// UpsertByName 按组名导入，已存在则整行覆盖（id 不变）
	UpsertByName(ctx context.Context, g *model.EventGroup) error
	// Transaction fn 内的所有操作在同一事务里执行
	Transaction(ctx context.Context, fn func(repo GroupRepository) error) error
}

type groupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

// List 按 sort_order、id 排序
func (r *groupRepository) List(ctx context.Context) ([]model.EventGroup, error) {
	var groups []model.EventGroup
	if err := r.db.WithContext(ctx).Order("sort_order ASC").Order("id ASC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("查询赛事组失败: %w", err)
	}
	return groups, nil
}

func (r *groupRepository) Get(ctx context.Context, id uint64) (*model.EventGroup, error) {
	var g model.EventGroup
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *groupRepository) GetByName(ctx context.Context, name string) (*model.EventGroup, error) {
	var g model.EventGroup
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&g).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *groupRepository) Create(ctx context.Context, g *model.EventGroup) error {
	if err := r.db.WithContext(ctx).Create(g).Error; err != nil {
		return fmt.Errorf("创建赛事组失败: %w, name: %s", err, g.Name)
	}
	return nil
}

// Update 整行保存，零值字段（enabled=false 等）也会写入
func (r *groupRepository) Update(ctx context.Context, g *model.EventGroup) error {
	res := r.db.WithContext(ctx).Model(&model.EventGroup{}).Where("id = ?", g.ID).Select("*").Omit("id", "created_at").Updates(g)
	if res.Error != nil {
		return fmt.Errorf("更新赛事组失败: %w, id: %d", res.Error, g.ID)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *groupRepository) Delete(ctx context.Context, id uint64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.EventGroup{})
	if res.Error != nil {
		return fmt.Errorf("删除赛事组失败: %w, id: %d", res.Error, id)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *groupRepository) UpsertByName(ctx context.Context, g *model.EventGroup) error {
	g.ID = 0
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "leagues", "group_mode", "parent_group_id", "template_id", "source_group",
			"channel_group_id", "channel_profile_ids", "channel_assignment_mode", "channel_start_number",
			"max_channels", "duplicate_event_handling", "overlap_handling", "channel_sort_order",
			"extraction_patterns", "skip_builtin_filter", "include_teams", "exclude_teams",
			"team_filter_mode", "soccer_mode", "enabled", "sort_order", "updated_at",
		}),
	}).Create(g).Error; err != nil {
		return fmt.Errorf("导入赛事组失败: %w, name: %s", err, g.Name)
	}
	// 冲突更新时驱动回填的主键不可靠，按组名回查
	stored, err := r.GetByName(ctx, g.Name)
	if err != nil {
		return err
	}
	g.ID = stored.ID
	return nil
}

func (r *groupRepository) Transaction(ctx context.Context, fn func(repo GroupRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&groupRepository{db: tx})
	})
}
