package model

import (
	"time"

	"gorm.io/datatypes"
)

// ChannelState 托管频道生命周期状态
type ChannelState string

const (
	ChannelPendingCreate ChannelState = "pending_create"
	ChannelActive        ChannelState = "active"
	ChannelPendingDelete ChannelState = "pending_delete"
	ChannelRemoved       ChannelState = "removed"
)

// StreamRef 频道挂载的一条流（按优先级排列）
type StreamRef struct {
	StreamID      uint64 `json:"stream_id"`
	Name          string `json:"name"`
	Order         int    `json:"order"`
	OriginGroupID uint64 `json:"origin_group_id"` // 来源组（子组/重叠组审计用）
}

// ManagedChannel 引擎托管的虚拟频道，跨运行持久化以保证编号稳定与延迟删除
type ManagedChannel struct {
	ID                uint64                         `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	ChannelID         string                         `gorm:"column:channel_id;type:varchar(64);uniqueIndex;not null" json:"channel_id"`
	GroupID           uint64                         `gorm:"column:group_id;not null;uniqueIndex:uq_group_event_fanout" json:"group_id"`
	EventID           string                         `gorm:"column:event_id;type:varchar(128);not null;uniqueIndex:uq_group_event_fanout" json:"event_id"`
	FanoutKey         string                         `gorm:"column:fanout_key;type:varchar(128);not null;default:'';uniqueIndex:uq_group_event_fanout" json:"fanout_key"`
	Name              string                         `gorm:"column:name;type:varchar(256)" json:"name"`
	League            string                         `gorm:"column:league;type:varchar(64)" json:"league"`
	Sport             string                         `gorm:"column:sport;type:varchar(64)" json:"sport"`
	EventName         string                         `gorm:"column:event_name;type:varchar(256)" json:"event_name"`
	EventStart        time.Time                      `gorm:"column:event_start" json:"event_start"`
	EventEnd          time.Time                      `gorm:"column:event_end" json:"event_end"`
	StreamOrder       int                            `gorm:"column:stream_order" json:"stream_order"`
	Streams           datatypes.JSONSlice[StreamRef] `gorm:"column:streams" json:"streams"`
	AssignedNumber    int                            `gorm:"column:assigned_number;index" json:"assigned_number"`
	State             ChannelState                   `gorm:"column:state;type:varchar(16);not null;index" json:"state"`
	ProviderChannelID *string                        `gorm:"column:provider_channel_id;type:varchar(64)" json:"provider_channel_id,omitempty"`
	CreatedAt         time.Time                      `gorm:"column:created_at" json:"created_at"`
	ScheduledDeleteAt *time.Time                     `gorm:"column:scheduled_delete_at" json:"scheduled_delete_at,omitempty"`
	LastSeenAt        *time.Time                     `gorm:"column:last_seen_at" json:"last_seen_at,omitempty"`
	UpdatedAt         time.Time                      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (ManagedChannel) TableName() string { return "managed_channels" }

// Key 频道的持久化键 (group_id, event_id, fanout_key)
func (c *ManagedChannel) Key() ChannelKey {
	return ChannelKey{GroupID: c.GroupID, EventID: c.EventID, FanoutKey: c.FanoutKey}
}

// ChannelKey 频道唯一键
type ChannelKey struct {
	GroupID   uint64
	EventID   string
	FanoutKey string
}
