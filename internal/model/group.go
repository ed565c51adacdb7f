package model

import (
	"time"

	"gorm.io/datatypes"
)

// GroupMode 赛事组联赛模式
type GroupMode string

const (
	GroupModeSingle GroupMode = "single" // 单联赛
	GroupModeMulti  GroupMode = "multi"  // 多联赛
)

// AssignmentMode 频道号分配方式
type AssignmentMode string

const (
	AssignmentAuto   AssignmentMode = "auto"   // 按 sort_order 自动排块
	AssignmentManual AssignmentMode = "manual" // 固定 channel_start_number
)

// DuplicateHandling 同组内同一赛事多条流的处理策略
type DuplicateHandling string

const (
	DuplicateConsolidate DuplicateHandling = "consolidate" // 合并为一个频道（默认）
	DuplicateSeparate    DuplicateHandling = "separate"    // 每条流一个频道
	DuplicateIgnore      DuplicateHandling = "ignore"      // 只保留第一条流
)

// OverlapHandling 不同赛事组命中同一赛事时的处理策略
type OverlapHandling string

const (
	OverlapAddStream OverlapHandling = "add_stream" // 把流追加到优先组的频道（默认）
	OverlapAddOnly   OverlapHandling = "add_only"   // 仅当别处已有频道时追加
	OverlapCreateAll OverlapHandling = "create_all" // 总是创建自己的频道
	OverlapSkip      OverlapHandling = "skip"       // 放弃该赛事
)

// ChannelSortOrder 组内频道排序（UI 层字段，分配器以全局 sort_by 为准）
type ChannelSortOrder string

const (
	SortOrderTime       ChannelSortOrder = "time"
	SortOrderSportTime  ChannelSortOrder = "sport_time"
	SortOrderLeagueTime ChannelSortOrder = "league_time"
)

// TeamFilterMode 球队过滤方式
type TeamFilterMode string

const (
	TeamFilterInclude TeamFilterMode = "include"
	TeamFilterExclude TeamFilterMode = "exclude"
)

// SoccerMode 足球多联赛搜索范围
type SoccerMode string

const (
	SoccerAll    SoccerMode = "all"    // 所有足球联赛
	SoccerTeams  SoccerMode = "teams"  // 关注球队所在联赛
	SoccerManual SoccerMode = "manual" // 仅 leagues 字段
)

// ExtractionPatterns 组级自定义提取正则，空字段使用内置规则
type ExtractionPatterns struct {
	IncludeRegex string `json:"include_regex,omitempty" yaml:"include_regex"` // 流名必须命中
	ExcludeRegex string `json:"exclude_regex,omitempty" yaml:"exclude_regex"` // 流名命中则排除
	Teams        string `json:"teams,omitempty" yaml:"teams"`                 // 需包含 team1/team2 命名捕获
	Date         string `json:"date,omitempty" yaml:"date"`                   // 需包含 date 命名捕获
	Time         string `json:"time,omitempty" yaml:"time"`                   // 需包含 time 命名捕获
	League       string `json:"league,omitempty" yaml:"league"`               // 需包含 league 命名捕获
	Fighters     string `json:"fighters,omitempty" yaml:"fighters"`           // 需包含 fighter1/fighter2 命名捕获
	EventName    string `json:"event_name,omitempty" yaml:"event_name"`       // 需包含 event_name 命名捕获
}

// EventGroup 赛事组：把流匹配到赛事并以频道形式输出的规则集
type EventGroup struct {
	ID                     uint64                                 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name                   string                                 `gorm:"column:name;type:varchar(128);uniqueIndex;not null" json:"name"`
	DisplayName            *string                                `gorm:"column:display_name;type:varchar(128)" json:"display_name,omitempty"`
	Leagues                datatypes.JSONSlice[string]            `gorm:"column:leagues" json:"leagues"`
	GroupMode              GroupMode                              `gorm:"column:group_mode;type:varchar(16);default:single" json:"group_mode"`
	ParentGroupID          *uint64                                `gorm:"column:parent_group_id;index" json:"parent_group_id,omitempty"`
	TemplateID             *uint64                                `gorm:"column:template_id" json:"template_id,omitempty"`
	SourceGroup            string                                 `gorm:"column:source_group;type:varchar(256)" json:"source_group"`
	ChannelGroupID         *uint64                                `gorm:"column:channel_group_id" json:"channel_group_id,omitempty"`
	ChannelProfileIDs      datatypes.JSONSlice[uint64]            `gorm:"column:channel_profile_ids" json:"channel_profile_ids"`
	ChannelAssignmentMode  AssignmentMode                         `gorm:"column:channel_assignment_mode;type:varchar(16);default:auto" json:"channel_assignment_mode"`
	ChannelStartNumber     *int                                   `gorm:"column:channel_start_number" json:"channel_start_number,omitempty"`
	MaxChannels            *int                                   `gorm:"column:max_channels" json:"max_channels,omitempty"`
	DuplicateEventHandling DuplicateHandling                      `gorm:"column:duplicate_event_handling;type:varchar(16);default:consolidate" json:"duplicate_event_handling"`
	OverlapHandling        OverlapHandling                        `gorm:"column:overlap_handling;type:varchar(16);default:add_stream" json:"overlap_handling"`
	ChannelSortOrder       ChannelSortOrder                       `gorm:"column:channel_sort_order;type:varchar(16);default:time" json:"channel_sort_order"`
	ExtractionPatterns     datatypes.JSONType[ExtractionPatterns] `gorm:"column:extraction_patterns" json:"extraction_patterns"`
	SkipBuiltinFilter      bool                                   `gorm:"column:skip_builtin_filter;default:false" json:"skip_builtin_filter"`
	IncludeTeams           datatypes.JSONSlice[string]            `gorm:"column:include_teams" json:"include_teams,omitempty"`
	ExcludeTeams           datatypes.JSONSlice[string]            `gorm:"column:exclude_teams" json:"exclude_teams,omitempty"`
	TeamFilterMode         TeamFilterMode                         `gorm:"column:team_filter_mode;type:varchar(16);default:include" json:"team_filter_mode"`
	SoccerMode             *SoccerMode                            `gorm:"column:soccer_mode;type:varchar(16)" json:"soccer_mode,omitempty"`
	Enabled                bool                                   `gorm:"column:enabled;not null" json:"enabled"`
	SortOrder              int                                    `gorm:"column:sort_order;default:0;index" json:"sort_order"`
	CreatedAt              time.Time                              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time                              `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (EventGroup) TableName() string { return "event_groups" }

// IsChild 是否为子组
func (g *EventGroup) IsChild() bool { return g.ParentGroupID != nil }

// Patterns 取出提取正则
func (g *EventGroup) Patterns() ExtractionPatterns { return g.ExtractionPatterns.Data() }
