package model

import (
	"time"

	"gorm.io/datatypes"
)

// NumberingMode 频道号分配模式
type NumberingMode string

const (
	NumberingStrictBlock   NumberingMode = "strict_block"
	NumberingRationalBlock NumberingMode = "rational_block"
	NumberingStrictCompact NumberingMode = "strict_compact"
)

// SortingScope 排序范围
type SortingScope string

const (
	ScopePerGroup SortingScope = "per_group"
	ScopeGlobal   SortingScope = "global"
)

// SortBy 块内排序依据
type SortBy string

const (
	SortByTime            SortBy = "time"
	SortBySportLeagueTime SortBy = "sport_league_time"
	SortByStreamOrder     SortBy = "stream_order"
)

// ChannelNumberingSettings 全局频道号设置，单行表
type ChannelNumberingSettings struct {
	ID            uint64        `gorm:"column:id;primaryKey" json:"-"`
	NumberingMode NumberingMode `gorm:"column:numbering_mode;type:varchar(32);not null" json:"numbering_mode"`
	SortingScope  SortingScope  `gorm:"column:sorting_scope;type:varchar(16);not null" json:"sorting_scope"`
	SortBy        SortBy        `gorm:"column:sort_by;type:varchar(32);not null" json:"sort_by"`
	RangeStart    int           `gorm:"column:range_start;not null" json:"range_start"`
	RangeEnd      *int          `gorm:"column:range_end" json:"range_end,omitempty"`
	BlockStep     int           `gorm:"column:block_step;not null;default:10" json:"block_step"` // strict_block 容量取整单位
	UpdatedAt     time.Time     `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (ChannelNumberingSettings) TableName() string { return "channel_numbering_settings" }

// SortPriorityKind 排序优先级维度
type SortPriorityKind string

const (
	PrioritySport  SortPriorityKind = "sport"
	PriorityLeague SortPriorityKind = "league"
)

// SortPriority sport/league -> rank，仅 sort_by=sport_league_time 时生效
type SortPriority struct {
	ID   uint64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Kind SortPriorityKind `gorm:"column:kind;type:varchar(16);not null;uniqueIndex:uq_sort_priority" json:"kind"`
	Key  string           `gorm:"column:priority_key;type:varchar(64);not null;uniqueIndex:uq_sort_priority" json:"key"`
	Rank int              `gorm:"column:priority_rank;not null" json:"rank"`
}

func (SortPriority) TableName() string { return "sort_priorities" }

// ExceptionKeyword 例外关键词：命中的流单独子合并
type ExceptionKeyword struct {
	ID       uint64                      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Label    string                      `gorm:"column:label;type:varchar(64);not null;uniqueIndex" json:"label"`
	Keywords datatypes.JSONSlice[string] `gorm:"column:keywords" json:"keywords"`
	Behavior DuplicateHandling           `gorm:"column:behavior;type:varchar(16);not null" json:"behavior"`
	Priority int                         `gorm:"column:priority;not null;default:0" json:"priority"`
	Enabled  bool                        `gorm:"column:enabled;not null" json:"enabled"`
}

func (ExceptionKeyword) TableName() string { return "exception_keywords" }

// LifecycleSettings 全局频道创建/删除时机，单行表
type LifecycleSettings struct {
	ID           uint64    `gorm:"column:id;primaryKey" json:"-"`
	CreateTiming string    `gorm:"column:create_timing;type:varchar(32);not null" json:"channel_create_timing"`
	DeleteTiming string    `gorm:"column:delete_timing;type:varchar(32);not null" json:"channel_delete_timing"`
	Timezone     string    `gorm:"column:timezone;type:varchar(64);not null" json:"timezone"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (LifecycleSettings) TableName() string { return "lifecycle_settings" }
