package repository

import (
	"context"
	"fmt"

	"ChannelSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChannelRepository 托管频道仓储
type ChannelRepository interface {
	// LoadAll 上一轮持久化的全部频道（不含 removed）
	LoadAll(ctx context.Context) ([]model.ManagedChannel, error)
	List(ctx context.Context, filter ChannelFilter) ([]model.ManagedChannel, error)
	// SaveState 在一个事务里写入本轮全部频道并删除被丢弃的频道
	SaveState(ctx context.Context, channels []*model.ManagedChannel, discarded []model.ManagedChannel) error
	// ApplyProviderResults 回写频道管理系统的结果：更新 provider id，删除已下线的频道
	ApplyProviderResults(ctx context.Context, providerIDs map[string]string, removed []string) error
}

// ChannelFilter 频道列表筛选
type ChannelFilter struct {
	GroupID *uint64
	State   model.ChannelState
}

// channelStateColumns 每轮运行可能变化的列
var channelStateColumns = []string{
	"name", "league", "sport", "event_name", "event_start", "event_end", "stream_order",
	"streams", "assigned_number", "state", "provider_channel_id", "scheduled_delete_at",
	"last_seen_at", "updated_at",
}

type channelRepository struct {
	db *gorm.DB
}

func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) LoadAll(ctx context.Context) ([]model.ManagedChannel, error) {
	var list []model.ManagedChannel
	if err := r.db.WithContext(ctx).
		Where("state <> ?", model.ChannelRemoved).
		Order("group_id ASC").Order("event_id ASC").Order("fanout_key ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("加载托管频道失败: %w", err)
	}
	return list, nil
}

// List 按频道号排序，未分配号码的排在最后
func (r *channelRepository) List(ctx context.Context, filter ChannelFilter) ([]model.ManagedChannel, error) {
	db := r.db.WithContext(ctx).Model(&model.ManagedChannel{})
	if filter.GroupID != nil {
		db = db.Where("group_id = ?", *filter.GroupID)
	}
	if filter.State != "" {
		db = db.Where("state = ?", filter.State)
	}
	var list []model.ManagedChannel
	if err := db.Order("assigned_number = 0 ASC").Order("assigned_number ASC").Order("channel_id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *channelRepository) SaveState(ctx context.Context, channels []*model.ManagedChannel, discarded []model.ManagedChannel) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("开启事务失败: %w", tx.Error)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	// 先删后写，同一个键可能在本轮被丢弃后重新创建
	if len(discarded) > 0 {
		ids := make([]string, 0, len(discarded))
		for _, d := range discarded {
			ids = append(ids, d.ChannelID)
		}
		if err := tx.Where("channel_id IN ?", ids).Delete(&model.ManagedChannel{}).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("删除丢弃频道失败: %w", err)
		}
	}

	for _, ch := range channels {
		var err error
		if ch.ID != 0 {
			err = tx.Model(&model.ManagedChannel{}).Where("id = ?", ch.ID).Select(channelStateColumns).Updates(ch).Error
		} else {
			err = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "channel_id"}},
				DoUpdates: clause.AssignmentColumns(channelStateColumns),
			}).Create(ch).Error
		}
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("保存频道失败: %w, channel_id: %s", err, ch.ChannelID)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

func (r *channelRepository) ApplyProviderResults(ctx context.Context, providerIDs map[string]string, removed []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for channelID, providerID := range providerIDs {
			if err := tx.Model(&model.ManagedChannel{}).
				Where("channel_id = ?", channelID).
				Update("provider_channel_id", providerID).Error; err != nil {
				return fmt.Errorf("回写 provider id 失败: %w, channel_id: %s", err, channelID)
			}
		}
		if len(removed) > 0 {
			if err := tx.Where("channel_id IN ?", removed).Delete(&model.ManagedChannel{}).Error; err != nil {
				return fmt.Errorf("删除已下线频道失败: %w", err)
			}
		}
		return nil
	})
}
