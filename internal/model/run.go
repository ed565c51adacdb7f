package model

import (
	"time"

	"gorm.io/datatypes"
)

// RunStatus 生成任务状态
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// ExhaustedChannel 因号段不足未能创建的频道
type ExhaustedChannel struct {
	GroupID uint64 `json:"group_id"`
	EventID string `json:"event_id"`
	Name    string `json:"name"`
}

// GroupBlock 分配结果中某组占用的号段
type GroupBlock struct {
	GroupID uint64 `json:"group_id"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Used    int    `json:"used"`
}

// RunReport 单次运行的非致命情况汇总，展示给运维
type RunReport struct {
	StreamsTotal      int                `json:"streams_total"`
	StreamsFiltered   int                `json:"streams_filtered"`
	StreamsExcluded   int                `json:"streams_excluded"`
	StreamsUnmatched  int                `json:"streams_unmatched"`
	StreamsMatched    int                `json:"streams_matched"`
	LookupFailures    int                `json:"lookup_failures"`
	ChannelsActive    int                `json:"channels_active"`
	ChannelsPending   int                `json:"channels_pending"`
	ChannelsCreated   int                `json:"channels_created"`
	ChannelsDeleted   int                `json:"channels_deleted"`
	ChannelsDiscarded int                `json:"channels_discarded"`
	NumberDrift       int                `json:"number_drift"`
	DuplicatesIgnored int                `json:"duplicates_ignored"`
	OverlapMerged     int                `json:"overlap_merged"`
	OverlapDropped    int                `json:"overlap_dropped"`
	ChildMerged       int                `json:"child_merged"`
	ChildDropped      int                `json:"child_dropped"`
	Exhausted         []ExhaustedChannel `json:"exhausted,omitempty"`
	Blocks            []GroupBlock       `json:"blocks,omitempty"`
	ProviderErrors    int                `json:"provider_errors"`
	Warnings          []string           `json:"warnings,omitempty"`
	ExclusionReasons  map[string]int     `json:"exclusion_reasons,omitempty"`
}

// Warn 追加一条告警
func (r *RunReport) Warn(msg string) { r.Warnings = append(r.Warnings, msg) }

// CountExclusion 按原因计数
func (r *RunReport) CountExclusion(reason string) {
	if r.ExclusionReasons == nil {
		r.ExclusionReasons = make(map[string]int)
	}
	r.ExclusionReasons[reason]++
}

// GenerationRun 生成任务历史
type GenerationRun struct {
	ID         uint64                        `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RunID      string                        `gorm:"column:run_id;type:varchar(64);uniqueIndex;not null" json:"run_id"`
	Trigger    string                        `gorm:"column:trigger_source;type:varchar(32);not null" json:"trigger"`
	Status     RunStatus                     `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	Error      *string                       `gorm:"column:error;type:text" json:"error,omitempty"`
	Report     datatypes.JSONType[RunReport] `gorm:"column:report" json:"report"`
	StartedAt  time.Time                     `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt *time.Time                    `gorm:"column:finished_at" json:"finished_at,omitempty"`
}

func (GenerationRun) TableName() string { return "generation_runs" }
