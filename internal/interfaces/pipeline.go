package interfaces

import (
	"context"
	"time"

	"ChannelSync/internal/model"
	"ChannelSync/internal/runconfig"
)

// StreamSource 原始流来源（M3U / Dispatcharr 流列表）
type StreamSource interface {
	// FetchStreams 按来源分组拉取流，顺序即来源中的原始顺序
	FetchStreams(ctx context.Context, sourceGroup string) ([]model.RawStream, error)
}

// Classifier 把原始流筛成候选赛事流
type Classifier interface {
	Classify(ctx context.Context, cfg runconfig.RunConfig, group runconfig.ResolvedGroupConfig) ([]model.StreamCandidate, error)
}

// EventMatcher 把候选流解析为具体赛事。查询失败时返回 *matcher.MatchError，
// 结果中同时带上 lookup_failed，调用方继续处理其余流。
type EventMatcher interface {
	Match(ctx context.Context, cfg runconfig.RunConfig, group runconfig.ResolvedGroupConfig, c model.StreamCandidate) (model.MatchResult, error)
}

// ScheduleProvider 外部赛程源
type ScheduleProvider interface {
	GetName() string
	// Events 某联赛在 [from, to) 内开赛的赛事
	Events(ctx context.Context, league string, from, to time.Time) ([]model.MatchedEvent, error)
	// TeamLeagues 某支球队参加的联赛（soccer_mode=teams 用）
	TeamLeagues(ctx context.Context, team string) ([]string, error)
	// SoccerLeagues 全部足球联赛（soccer_mode=all 用）
	SoccerLeagues(ctx context.Context) ([]string, error)
}
