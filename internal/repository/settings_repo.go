package repository

import (
	"context"
	"errors"
	"fmt"

	"ChannelSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 单行设置表的固定主键
const settingsRowID = 1

// SettingsRepository 全局设置仓储：编号、生命周期、例外关键词、排序优先级
type SettingsRepository interface {
	// EnsureDefaults 首次启动写入默认值，已有记录不覆盖
	EnsureDefaults(ctx context.Context, numbering model.ChannelNumberingSettings, lifecycle model.LifecycleSettings) error
	GetNumbering(ctx context.Context) (model.ChannelNumberingSettings, error)
	SaveNumbering(ctx context.Context, s model.ChannelNumberingSettings) error
	GetLifecycle(ctx context.Context) (model.LifecycleSettings, error)
	SaveLifecycle(ctx context.Context, s model.LifecycleSettings) error
	ListExceptionKeywords(ctx context.Context) ([]model.ExceptionKeyword, error)
	ReplaceExceptionKeywords(ctx context.Context, list []model.ExceptionKeyword) error
	ListSortPriorities(ctx context.Context) ([]model.SortPriority, error)
	ReplaceSortPriorities(ctx context.Context, list []model.SortPriority) error
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) EnsureDefaults(ctx context.Context, numbering model.ChannelNumberingSettings, lifecycle model.LifecycleSettings) error {
	numbering.ID = settingsRowID
	lifecycle.ID = settingsRowID
	// 每个 Create 单独构造语句链，复用会沿用上一个模型的 schema
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&numbering).Error; err != nil {
		return fmt.Errorf("写入默认编号设置失败: %w", err)
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&lifecycle).Error; err != nil {
		return fmt.Errorf("写入默认生命周期设置失败: %w", err)
	}
	return nil
}

// GetNumbering 未初始化时返回零值，由 runconfig 补齐默认
func (r *settingsRepository) GetNumbering(ctx context.Context) (model.ChannelNumberingSettings, error) {
	var s model.ChannelNumberingSettings
	err := r.db.WithContext(ctx).Where("id = ?", settingsRowID).First(&s).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return s, fmt.Errorf("查询编号设置失败: %w", err)
	}
	return s, nil
}

func (r *settingsRepository) SaveNumbering(ctx context.Context, s model.ChannelNumberingSettings) error {
	s.ID = settingsRowID
	if err := r.db.WithContext(ctx).Save(&s).Error; err != nil {
		return fmt.Errorf("保存编号设置失败: %w", err)
	}
	return nil
}

func (r *settingsRepository) GetLifecycle(ctx context.Context) (model.LifecycleSettings, error) {
	var s model.LifecycleSettings
	err := r.db.WithContext(ctx).Where("id = ?", settingsRowID).First(&s).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return s, fmt.Errorf("查询生命周期设置失败: %w", err)
	}
	return s, nil
}

func (r *settingsRepository) SaveLifecycle(ctx context.Context, s model.LifecycleSettings) error {
	s.ID = settingsRowID
	if err := r.db.WithContext(ctx).Save(&s).Error; err != nil {
		return fmt.Errorf("保存生命周期设置失败: %w", err)
	}
	return nil
}

func (r *settingsRepository) ListExceptionKeywords(ctx context.Context) ([]model.ExceptionKeyword, error) {
	var list []model.ExceptionKeyword
	if err := r.db.WithContext(ctx).Order("priority ASC").Order("id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("查询例外关键词失败: %w", err)
	}
	return list, nil
}

// ReplaceExceptionKeywords 整表替换
func (r *settingsRepository) ReplaceExceptionKeywords(ctx context.Context, list []model.ExceptionKeyword) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.ExceptionKeyword{}).Error; err != nil {
			return fmt.Errorf("清空例外关键词失败: %w", err)
		}
		for i := range list {
			list[i].ID = 0
			if err := tx.Create(&list[i]).Error; err != nil {
				return fmt.Errorf("保存例外关键词失败: %w, label: %s", err, list[i].Label)
			}
		}
		return nil
	})
}

func (r *settingsRepository) ListSortPriorities(ctx context.Context) ([]model.SortPriority, error) {
	var list []model.SortPriority
	if err := r.db.WithContext(ctx).Order("kind ASC").Order("priority_rank ASC").Order("priority_key ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("查询排序优先级失败: %w", err)
	}
	return list, nil
}

func (r *settingsRepository) ReplaceSortPriorities(ctx context.Context, list []model.SortPriority) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.SortPriority{}).Error; err != nil {
			return fmt.Errorf("清空排序优先级失败: %w", err)
		}
		for i := range list {
			list[i].ID = 0
			if err := tx.Create(&list[i]).Error; err != nil {
				return fmt.Errorf("保存排序优先级失败: %w, key: %s", err, list[i].Key)
			}
		}
		return nil
	})
}
