package model

import "time"

// EventStatus 赛事状态
type EventStatus string

const (
	EventScheduled EventStatus = "scheduled"
	EventLive      EventStatus = "live"
	EventFinal     EventStatus = "final"
)

// MatchedEvent 外部赛程源提供的赛事实例，单次运行内不可变
type MatchedEvent struct {
	EventID      string      `json:"event_id"`
	League       string      `json:"league"`
	Sport        string      `json:"sport"`
	Name         string      `json:"name"` // 如 "Lakers @ Celtics"
	StartTime    time.Time   `json:"start_time"`
	EndTime      time.Time   `json:"end_time"`
	Status       EventStatus `json:"status"`
	Participants []string    `json:"participants"`
}

// RawStream 流来源返回的原始 M3U 条目
type RawStream struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url,omitempty"`
	Group string `json:"channel_group,omitempty"`
}

// 流排除/未匹配原因
const (
	ReasonNotIncluded   = "not_included"
	ReasonExcludedRegex = "excluded_regex"
	ReasonNotGame       = "not_game"
	ReasonNoTeams       = "no_teams_extracted"
	ReasonNoEvent       = "no_event_found"
	ReasonTeamFiltered  = "team_filtered"
	ReasonEventFinal    = "event_final"
	ReasonLookupFailed  = "lookup_failed"
	ReasonDuplicate     = "duplicate_ignored"
)

// StreamCandidate 分类器输出：一条候选赛事流
type StreamCandidate struct {
	StreamID        uint64 `json:"stream_id"`
	Name            string `json:"name"`
	Order           int    `json:"order"` // 在来源中的原始顺序
	ExclusionReason string `json:"exclusion_reason,omitempty"`
}

// Excluded 是否已被分类器排除
func (c StreamCandidate) Excluded() bool { return c.ExclusionReason != "" }

// MatchResult 匹配器返回
type MatchResult struct {
	Event           *MatchedEvent `json:"event,omitempty"`
	League          string        `json:"league,omitempty"` // 命中的联赛（重叠判定按联赛）
	ExclusionReason string        `json:"exclusion_reason,omitempty"`
}

// Matched 是否命中赛事
func (r MatchResult) Matched() bool { return r.Event != nil && r.ExclusionReason == "" }

// StreamMatch 单条流在一次运行中的匹配结果，运行结束即丢弃
type StreamMatch struct {
	StreamID              uint64        `json:"stream_id"`
	StreamName            string        `json:"stream_name"`
	StreamOrder           int           `json:"stream_order"`
	GroupID               uint64        `json:"group_id"`
	Event                 *MatchedEvent `json:"event,omitempty"`
	League                string        `json:"league,omitempty"`
	ExclusionReason       string        `json:"exclusion_reason,omitempty"`
	ExceptionKeywordLabel string        `json:"exception_keyword_label,omitempty"`
}

// EventID 未匹配时返回空串
func (m StreamMatch) EventID() string {
	if m.Event == nil {
		return ""
	}
	return m.Event.EventID
}
